package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 测试记录与存储 ──

type testRecord struct {
	ID      string
	Value   string
	Version int
}

func (r *testRecord) RecordKey() string  { return r.ID }
func (r *testRecord) RecordVersion() int { return r.Version }
func (r *testRecord) SetVersion(v int)   { r.Version = v }

func (r *testRecord) Clone() *testRecord {
	cp := *r
	return &cp
}

var errNotFound = errors.New("not found")

type memStore struct {
	mu      sync.Mutex
	records map[string]*testRecord
	swaps   int
	// hijack 在下一次 CAS 前模拟其他实例抢先提交
	hijack bool
}

func newMemStore(recs ...*testRecord) *memStore {
	s := &memStore{records: make(map[string]*testRecord)}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStore) Load(_ context.Context, key string) (*testRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return nil, errNotFound
	}
	return r.Clone(), nil
}

func (s *memStore) CompareAndSwap(_ context.Context, next *testRecord, expected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[next.ID]
	if !ok {
		return errNotFound
	}
	if s.hijack {
		s.hijack = false
		cur.Version++
		cur.Value = "other-instance"
	}
	if cur.Version != expected {
		return pkgerrors.ErrOptimisticLock
	}
	s.swaps++
	cp := next.Clone()
	cp.Version = expected + 1
	s.records[next.ID] = cp
	return nil
}

func setValue(v string) Mutation[*testRecord] {
	return func(r *testRecord) (*testRecord, error) {
		r.Value = v
		return r, nil
	}
}

// ── Write 测试 ──

func TestGate_Write_Success(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 3})
	g := New[*testRecord](store)

	rec, err := g.Write(context.Background(), "k1", 3, setValue("b"))
	if err != nil {
		t.Fatalf("Write 应成功: %v", err)
	}
	if rec.Version != 4 || rec.Value != "b" {
		t.Errorf("期望 version=4 value=b，实际 version=%d value=%s", rec.Version, rec.Value)
	}
}

func TestGate_Write_StaleVersion_ReturnsCurrent(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 4})
	g := New[*testRecord](store)

	_, err := g.Write(context.Background(), "k1", 3, setValue("stale"))
	ce, ok := pkgerrors.AsConflict(err)
	if !ok {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}
	cur := ce.Current.(*testRecord)
	if cur.Version != 4 || cur.Value != "a" {
		t.Errorf("冲突应携带当前记录 version=4 value=a，实际 version=%d value=%s", cur.Version, cur.Value)
	}
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Error("ConflictError 应可匹配 ErrOptimisticLock")
	}
	if store.swaps != 0 {
		t.Errorf("冲突时不应写入，实际写入 %d 次", store.swaps)
	}
}

func TestGate_Write_RetryWithConflictVersion(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 7})
	g := New[*testRecord](store)

	_, err := g.Write(context.Background(), "k1", 5, setValue("x"))
	ce, ok := pkgerrors.AsConflict(err)
	if !ok {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}

	rec, err := g.Write(context.Background(), "k1", ce.Current.(*testRecord).Version, setValue("x"))
	if err != nil {
		t.Fatalf("使用冲突返回的版本重试应成功: %v", err)
	}
	if rec.Version != 8 {
		t.Errorf("期望 version=8，实际=%d", rec.Version)
	}
}

func TestGate_Write_NotFound(t *testing.T) {
	g := New[*testRecord](newMemStore())

	_, err := g.Write(context.Background(), "missing", 0, setValue("x"))
	if !errors.Is(err, errNotFound) {
		t.Errorf("期望透传 not found，实际: %v", err)
	}
}

func TestGate_Write_MutationRejected(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 0})
	g := New[*testRecord](store)
	reject := errors.New("invalid patch")

	_, err := g.Write(context.Background(), "k1", 0, func(r *testRecord) (*testRecord, error) {
		r.Value = "mutated"
		return nil, reject
	})
	if !errors.Is(err, reject) {
		t.Fatalf("期望透传变更错误，实际: %v", err)
	}

	cur, _ := store.Load(context.Background(), "k1")
	if cur.Value != "a" || cur.Version != 0 {
		t.Errorf("拒绝的变更不应影响存储，实际 value=%s version=%d", cur.Value, cur.Version)
	}
}

func TestGate_Write_LostRaceInStore(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 2})
	store.hijack = true
	g := New[*testRecord](store)

	_, err := g.Write(context.Background(), "k1", 2, setValue("mine"))
	ce, ok := pkgerrors.AsConflict(err)
	if !ok {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}
	cur := ce.Current.(*testRecord)
	if cur.Version != 3 || cur.Value != "other-instance" {
		t.Errorf("冲突应携带重新读取的记录，实际 version=%d value=%s", cur.Version, cur.Value)
	}
}

// ── 并发测试 ──

func TestGate_ConcurrentWriters_ExactlyOneCommits(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := newMemStore(&testRecord{ID: "k1", Value: "a", Version: 10})
		g := New[*testRecord](store)

		const writers = 8
		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := g.Write(context.Background(), "k1", 10, setValue("w"))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		committed, conflicts := 0, 0
		for err := range results {
			if err == nil {
				committed++
				continue
			}
			ce, ok := pkgerrors.AsConflict(err)
			if !ok {
				t.Fatalf("期望 nil 或 ConflictError，实际: %v", err)
			}
			if v := ce.Current.(*testRecord).Version; v != 11 {
				t.Errorf("冲突应携带 version=11 的记录，实际=%d", v)
			}
			conflicts++
		}
		if committed != 1 || conflicts != writers-1 {
			t.Fatalf("期望恰好 1 次提交，实际提交 %d 冲突 %d", committed, conflicts)
		}
	}
}

func TestGate_CommitHook_OrderedPerKey(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1", Version: 0})

	var mu sync.Mutex
	var seen []int
	g := New[*testRecord](store, WithCommitHook[*testRecord](func(r *testRecord) {
		mu.Lock()
		seen = append(seen, r.Version)
		mu.Unlock()
	}))

	// 每个 goroutine 都按最新版本重试，直到提交成功
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			version := 0
			for {
				_, err := g.Write(context.Background(), "k1", version, setValue("v"))
				if err == nil {
					return
				}
				ce, ok := pkgerrors.AsConflict(err)
				if !ok {
					t.Errorf("非冲突错误: %v", err)
					return
				}
				version = ce.Current.(*testRecord).Version
			}
		}()
	}
	wg.Wait()

	if len(seen) != 10 {
		t.Fatalf("期望 10 次提交回调，实际 %d", len(seen))
	}
	for i, v := range seen {
		if v != i+1 {
			t.Fatalf("提交回调应按版本递增且无间隔，第 %d 个为 %d", i, v)
		}
	}
}

func TestGate_DifferentKeys_Independent(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1"}, &testRecord{ID: "k2"})
	blocked := make(chan struct{})
	release := make(chan struct{})

	g := New[*testRecord](store)

	go func() {
		_, _ = g.Write(context.Background(), "k1", 0, func(r *testRecord) (*testRecord, error) {
			close(blocked)
			<-release
			return r, nil
		})
	}()
	<-blocked

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := g.Write(ctx, "k2", 0, setValue("b")); err != nil {
		t.Fatalf("k1 持锁时 k2 应可写入: %v", err)
	}
	close(release)
}

func TestGate_Write_ContextCanceledWhileWaiting(t *testing.T) {
	store := newMemStore(&testRecord{ID: "k1"})
	g := New[*testRecord](store)

	blocked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Write(context.Background(), "k1", 0, func(r *testRecord) (*testRecord, error) {
			close(blocked)
			<-release
			return r, nil
		})
	}()
	<-blocked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Write(ctx, "k1", 0, setValue("late"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("期望 DeadlineExceeded，实际: %v", err)
	}

	close(release)
	<-done
	if n := g.locks.size(); n != 0 {
		t.Errorf("锁表应被清空，实际剩余 %d", n)
	}
}
