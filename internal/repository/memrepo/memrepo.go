// Package memrepo 进程内存储，实现 repository 包全部接口。
// 用于 store.driver=memory 的开发/演示模式以及各包测试。
// 语义与 GORM 实现保持一致：记录不存在返回 gorm.ErrRecordNotFound，
// 版本不匹配返回 pkgerrors.ErrOptimisticLock，所有读写均为深拷贝。
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

type state struct {
	mu        sync.RWMutex
	buildings map[string]model.Building
	rooms     map[string]model.Room
	seats     map[string]*model.Seat
	students  map[string]model.Student
	bookings  map[string]*model.Booking
	ledgers   map[string]int
	runs      map[string]model.AllocationRun
}

// New 创建内存存储并返回 Repository 聚合
func New() *repository.Repository {
	st := &state{
		buildings: make(map[string]model.Building),
		rooms:     make(map[string]model.Room),
		seats:     make(map[string]*model.Seat),
		students:  make(map[string]model.Student),
		bookings:  make(map[string]*model.Booking),
		ledgers:   make(map[string]int),
		runs:      make(map[string]model.AllocationRun),
	}
	return &repository.Repository{
		Building:      &buildingStore{st},
		Room:          &roomStore{st},
		Seat:          &seatStore{st},
		Student:       &studentStore{st},
		Booking:       &bookingStore{st},
		AllocationRun: &runStore{st},
	}
}

func stamp(b *model.BaseModel) {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// ════════════════════════ Building ════════════════════════

type buildingStore struct{ s *state }

func (r *buildingStore) Create(_ context.Context, b *model.Building) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.buildings {
		if existing.Name == b.Name || existing.BuildingID == b.BuildingID {
			return pkgerrors.ErrDuplicate
		}
	}
	stamp(&b.BaseModel)
	r.s.buildings[b.BuildingID] = *b
	return nil
}

func (r *buildingStore) GetByID(_ context.Context, id string) (*model.Building, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.buildings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *buildingStore) List(_ context.Context) ([]model.Building, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Building, 0, len(r.s.buildings))
	for _, b := range r.s.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ════════════════════════ Room ════════════════════════

type roomStore struct{ s *state }

func (r *roomStore) Create(_ context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[room.RoomID]; ok {
		return pkgerrors.ErrDuplicate
	}
	stamp(&room.BaseModel)
	cp := *room
	cp.Building = nil
	r.s.rooms[room.RoomID] = cp
	return nil
}

// withBuilding 模拟 Preload("Building")，调用方需持有读锁
func (r *roomStore) withBuilding(room model.Room) model.Room {
	if b, ok := r.s.buildings[room.BuildingID]; ok {
		room.Building = &b
	}
	return room
}

func (r *roomStore) GetByID(_ context.Context, id string) (*model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	room = r.withBuilding(room)
	return &room, nil
}

func (r *roomStore) List(_ context.Context, filter repository.RoomFilter) ([]model.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	out := make([]model.Room, 0)
	for _, room := range r.s.rooms {
		if filter.BuildingID != "" && room.BuildingID != filter.BuildingID {
			continue
		}
		if filter.OnlyAvailable && !room.Available {
			continue
		}
		if ids != nil && !ids[room.RoomID] {
			continue
		}
		out = append(out, r.withBuilding(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func (r *roomStore) SetAvailable(_ context.Context, id string, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	room.Available = available
	room.UpdatedAt = time.Now()
	r.s.rooms[id] = room
	return nil
}

// ════════════════════════ Seat ════════════════════════

type seatStore struct{ s *state }

func (r *seatStore) GetByID(_ context.Context, id string) (*model.Seat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seat, ok := r.s.seats[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return seat.Clone(), nil
}

func (r *seatStore) list(match func(*model.Seat) bool) []model.Seat {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Seat, 0)
	for _, seat := range r.s.seats {
		if match(seat) {
			out = append(out, *seat.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func (r *seatStore) ListByRoom(_ context.Context, roomID string) ([]model.Seat, error) {
	return r.list(func(s *model.Seat) bool { return s.RoomID == roomID }), nil
}

func (r *seatStore) ListByRooms(_ context.Context, roomIDs []string) ([]model.Seat, error) {
	set := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		set[id] = true
	}
	return r.list(func(s *model.Seat) bool { return set[s.RoomID] }), nil
}

func (r *seatStore) ListByStudent(_ context.Context, studentID string) ([]model.Seat, error) {
	return r.list(func(s *model.Seat) bool { return s.HeldBy(studentID) }), nil
}

func (r *seatStore) BatchCreate(_ context.Context, seats []model.Seat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type pos struct {
		room     string
		row, col int
	}
	taken := make(map[pos]bool)
	for _, s := range r.s.seats {
		taken[pos{s.RoomID, s.Row, s.Col}] = true
	}
	for i := range seats {
		p := pos{seats[i].RoomID, seats[i].Row, seats[i].Col}
		if taken[p] {
			return pkgerrors.ErrDuplicate
		}
		if _, ok := r.s.seats[seats[i].SeatID]; ok {
			return pkgerrors.ErrDuplicate
		}
		taken[p] = true
	}
	for i := range seats {
		stamp(&seats[i].BaseModel)
		r.s.seats[seats[i].SeatID] = seats[i].Clone()
	}
	return nil
}

func (r *seatStore) CompareAndSwap(_ context.Context, next *model.Seat, expected int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.seats[next.SeatID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if cur.Version != expected {
		return pkgerrors.ErrOptimisticLock
	}
	cp := next.Clone()
	cp.RoomID, cp.Row, cp.Col = cur.RoomID, cur.Row, cur.Col
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	cp.Version = expected + 1
	r.s.seats[next.SeatID] = cp
	next.Version = cp.Version
	next.UpdatedAt = cp.UpdatedAt
	return nil
}

// ════════════════════════ Student ════════════════════════

type studentStore struct{ s *state }

func (r *studentStore) Upsert(_ context.Context, st *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.students[st.StudentID]; ok {
		st.CreatedAt = existing.CreatedAt
	}
	stamp(&st.BaseModel)
	r.s.students[st.StudentID] = cloneStudent(*st)
	return nil
}

func cloneStudent(st model.Student) model.Student {
	st.AccessibilityNeeds = append(model.Tags(nil), st.AccessibilityNeeds...)
	st.Tags = append(model.Tags(nil), st.Tags...)
	return st
}

func (r *studentStore) GetByID(_ context.Context, id string) (*model.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	st = cloneStudent(st)
	return &st, nil
}

func (r *studentStore) List(_ context.Context) ([]model.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Student, 0, len(r.s.students))
	for _, st := range r.s.students {
		out = append(out, cloneStudent(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *studentStore) ListByIDs(ctx context.Context, ids []string) ([]model.Student, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	all, _ := r.List(ctx)
	out := make([]model.Student, 0, len(ids))
	for _, st := range all {
		if set[st.StudentID] {
			out = append(out, st)
		}
	}
	return out, nil
}

// ════════════════════════ Booking ════════════════════════

type bookingStore struct{ s *state }

func (r *bookingStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return b.Clone(), nil
}

func (r *bookingStore) list(match func(*model.Booking) bool) []model.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, b := range r.s.bookings {
		if match(b) {
			out = append(out, *b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out
}

func (r *bookingStore) ListByRoom(_ context.Context, roomID string) ([]model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.RoomID == roomID }), nil
}

func (r *bookingStore) ListByTeacher(_ context.Context, teacherID string) ([]model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.TeacherID == teacherID }), nil
}

func (r *bookingStore) CompareAndSwap(_ context.Context, next *model.Booking, expected int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[next.BookingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if cur.Version != expected {
		return pkgerrors.ErrOptimisticLock
	}
	cp := cur.Clone()
	cp.Status = next.Status
	cp.Purpose = next.Purpose
	cp.Version = expected + 1
	cp.UpdatedAt = time.Now()
	r.s.bookings[next.BookingID] = cp
	next.Version = cp.Version
	next.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *bookingStore) LoadLedger(_ context.Context, roomID string) (*model.RoomLedger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.ledgers[roomID]
	if !ok {
		r.s.ledgers[roomID] = 0
	}
	return &model.RoomLedger{RoomID: roomID, Version: v}, nil
}

func (r *bookingStore) CommitLedger(_ context.Context, next *model.RoomLedger, expected int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ledgers[next.RoomID] != expected {
		return pkgerrors.ErrOptimisticLock
	}
	if next.Pending != nil {
		if _, ok := r.s.bookings[next.Pending.BookingID]; ok {
			return pkgerrors.ErrDuplicate
		}
		b := next.Pending.Clone()
		stamp(&b.BaseModel)
		r.s.bookings[b.BookingID] = b
		next.Pending.CreatedAt, next.Pending.UpdatedAt = b.CreatedAt, b.UpdatedAt
	}
	r.s.ledgers[next.RoomID] = expected + 1
	next.Version = expected + 1
	return nil
}

// ════════════════════════ AllocationRun ════════════════════════

type runStore struct{ s *state }

func (r *runStore) Create(_ context.Context, run *model.AllocationRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[run.RunID]; ok {
		return pkgerrors.ErrDuplicate
	}
	r.s.runs[run.RunID] = *run
	return nil
}

func (r *runStore) GetByID(_ context.Context, id string) (*model.AllocationRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &run, nil
}

func (r *runStore) List(_ context.Context, limit int) ([]model.AllocationRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.AllocationRun, 0, len(r.s.runs))
	for _, run := range r.s.runs {
		run.Outcomes = nil
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
