package gate

import (
	"context"
	"sync"
)

// KeyLock 按键互斥锁。不同键互不阻塞，没有全局提交锁；
// 内部 mu 只保护 entries 表本身，持有时间为常数级
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyLock 创建按键锁
func NewKeyLock() *KeyLock {
	return &KeyLock{entries: make(map[string]*keyEntry)}
}

// Lock 获取 key 的独占权，返回释放函数
// ctx 结束时放弃等待并返回 ctx.Err()
func (l *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *KeyLock) release(key string, e *keyEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// size 当前被引用的键数量
func (l *KeyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
