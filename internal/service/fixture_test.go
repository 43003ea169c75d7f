package service

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/queue"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	"github.com/Somye55/seatplanner-sub002/internal/repository/memrepo"
)

// ── 测试辅助 ──

// recordingNotifier 记录所有推送事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (n *recordingNotifier) Publish(ev realtime.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) byType(typ string) []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []realtime.Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// recordingPublisher 记录分配完成事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AllocationCompletedEvent
}

func (p *recordingPublisher) PublishAllocationCompleted(_ context.Context, ev queue.AllocationCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	cfg       *config.Config
	repo      *repository.Repository
	notifier  *recordingNotifier
	publisher *recordingPublisher
	svc       *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Allocation: config.AllocationConfig{
			MaxRetries:      30,
			ProximityWeight: 10,
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:       testConfig(),
		repo:      memrepo.New(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewService(f.cfg, f.repo, f.notifier, f.publisher, zap.NewNop())
	return f
}

func (f *fixture) building(t *testing.T, id, block string) *model.Building {
	t.Helper()
	b := &model.Building{BuildingID: id, Name: "楼-" + id, Block: block}
	if err := f.repo.Building.Create(context.Background(), b); err != nil {
		t.Fatalf("创建教学楼失败: %v", err)
	}
	return b
}

// room 创建教室及其座位；seats 为空时按 rows×cols 生成全部座位
func (f *fixture) room(t *testing.T, id, buildingID string, floor, rows, cols int, seats ...model.Seat) *model.Room {
	t.Helper()
	ctx := context.Background()
	if len(seats) == 0 {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				seats = append(seats, model.Seat{
					SeatID: seatID(id, r, c),
					Row:    r,
					Col:    c,
					Status: model.SeatAvailable,
				})
			}
		}
	}
	for i := range seats {
		seats[i].RoomID = id
		if seats[i].Label == "" {
			seats[i].Label = seatLabel(seats[i].Row, seats[i].Col)
		}
	}

	room := &model.Room{
		RoomID:     id,
		BuildingID: buildingID,
		Name:       "教室-" + id,
		Floor:      floor,
		Rows:       rows,
		Cols:       cols,
		Capacity:   len(seats),
		Available:  true,
	}
	if err := f.repo.Room.Create(ctx, room); err != nil {
		t.Fatalf("创建教室失败: %v", err)
	}
	if err := f.repo.Seat.BatchCreate(ctx, seats); err != nil {
		t.Fatalf("创建座位失败: %v", err)
	}
	return room
}

func (f *fixture) student(t *testing.T, id string, needs []string, tags ...string) *model.Student {
	t.Helper()
	st := &model.Student{
		StudentID:          id,
		Name:               "学生-" + id,
		Branch:             "CSE",
		AccessibilityNeeds: needs,
		Tags:               tags,
	}
	if err := f.repo.Student.Upsert(context.Background(), st); err != nil {
		t.Fatalf("创建学生失败: %v", err)
	}
	return st
}

func (f *fixture) seat(t *testing.T, id string) *model.Seat {
	t.Helper()
	s, err := f.repo.Seat.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("读取座位 %s 失败: %v", id, err)
	}
	return s
}

func versionedSeat(id string, row, col, version int) model.Seat {
	s := model.Seat{SeatID: id, Row: row, Col: col, Status: model.SeatAvailable}
	s.Version = version
	return s
}

func seatID(roomID string, row, col int) string {
	return roomID + "-" + seatLabel(row, col)
}

func intPtr(v int) *int                 { return &v }
func strPtr(v string) *string           { return &v }
func boolPtr(v bool) *bool              { return &v }
func featureList(v ...string) *[]string { return &v }
