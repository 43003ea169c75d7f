// Package gate 实现基于版本号的乐观并发写入闸门。
//
// 写入流程：按键加锁 → 读取当前记录 → 比对调用方期望版本 → 在副本上执行变更 →
// 存储层 CAS 提交（version+1）→ 仍持锁时触发提交回调 → 释放锁。
// 版本不一致时不做任何修改，返回携带当前记录的 ConflictError。
// 闸门从不自动重试，重试由调用方用冲突中的版本发起。
package gate

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// Record 受乐观并发控制的记录
type Record[T any] interface {
	RecordKey() string
	RecordVersion() int
	SetVersion(v int)
	Clone() T
}

// Store 闸门依赖的存储接口
// CompareAndSwap 仅当存储中版本等于 expected 时写入 next（版本 expected+1），
// 否则返回 pkgerrors.ErrOptimisticLock
type Store[T any] interface {
	Load(ctx context.Context, key string) (T, error)
	CompareAndSwap(ctx context.Context, next T, expected int) error
}

// StoreFuncs 以函数适配 Store
type StoreFuncs[T any] struct {
	LoadFunc func(ctx context.Context, key string) (T, error)
	SwapFunc func(ctx context.Context, next T, expected int) error
}

func (s StoreFuncs[T]) Load(ctx context.Context, key string) (T, error) {
	return s.LoadFunc(ctx, key)
}

func (s StoreFuncs[T]) CompareAndSwap(ctx context.Context, next T, expected int) error {
	return s.SwapFunc(ctx, next, expected)
}

// Mutation 纯变更函数：输入当前记录的副本，返回新记录；返回错误表示拒绝写入
type Mutation[T any] func(current T) (T, error)

// CommitHook 提交成功后调用，调用时仍持有该键的锁，因此同一键的回调按提交顺序执行
type CommitHook[T any] func(committed T)

// Gate 乐观并发闸门
type Gate[T Record[T]] struct {
	store    Store[T]
	locks    *KeyLock
	onCommit CommitHook[T]
}

// Option 闸门选项
type Option[T Record[T]] func(*Gate[T])

// WithCommitHook 设置提交回调
func WithCommitHook[T Record[T]](hook CommitHook[T]) Option[T] {
	return func(g *Gate[T]) { g.onCommit = hook }
}

// New 创建闸门
func New[T Record[T]](store Store[T], opts ...Option[T]) *Gate[T] {
	g := &Gate[T]{store: store, locks: NewKeyLock()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Read 读取当前记录
func (g *Gate[T]) Read(ctx context.Context, key string) (T, error) {
	return g.store.Load(ctx, key)
}

// Write 以期望版本写入 key
//   - 版本一致：提交 mutation 结果，版本 +1，返回新记录
//   - 版本不一致：不修改，返回 *pkgerrors.ConflictError（Current 为存储中的当前记录）
//   - 记录不存在：原样返回存储层错误
//   - mutation 返回错误：不修改，原样返回该错误
func (g *Gate[T]) Write(ctx context.Context, key string, expectedVersion int, mutate Mutation[T]) (T, error) {
	var zero T

	unlock, err := g.locks.Lock(ctx, key)
	if err != nil {
		return zero, err
	}
	defer unlock()

	current, err := g.store.Load(ctx, key)
	if err != nil {
		return zero, err
	}

	if current.RecordVersion() != expectedVersion {
		return zero, pkgerrors.NewConflict(current,
			fmt.Sprintf("版本已变更：提交版本 %d，当前版本 %d", expectedVersion, current.RecordVersion()))
	}

	next, err := mutate(current.Clone())
	if err != nil {
		return zero, err
	}
	next.SetVersion(expectedVersion + 1)

	if err := g.store.CompareAndSwap(ctx, next, expectedVersion); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return zero, err
		}
		// 其他实例抢先提交，重新读取后以冲突返回
		fresh, lerr := g.store.Load(ctx, key)
		if lerr != nil {
			return zero, lerr
		}
		return zero, pkgerrors.NewConflict(fresh,
			fmt.Sprintf("版本已变更：提交版本 %d，当前版本 %d", expectedVersion, fresh.RecordVersion()))
	}

	if g.onCommit != nil {
		g.onCommit(next)
	}

	return next, nil
}
