package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

func wheelchairSeat(id string, row, col int) model.Seat {
	return model.Seat{SeatID: id, Row: row, Col: col, Status: model.SeatAvailable, Features: model.Tags{"wheelchair-access"}}
}

func plainSeat(id string, row, col int) model.Seat {
	return model.Seat{SeatID: id, Row: row, Col: col, Status: model.SeatAvailable}
}

// ── ClaimBestSeat ──

// 两个座位中只有一个带 wheelchair-access：需要轮椅位的学生必然拿到它，第二个同需求学生得到明确原因
func TestAllocationService_Claim_WheelchairScenario(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 1, 2, plainSeat("plain", 0, 0), wheelchairSeat("wc", 0, 1))
	f.student(t, "w1", []string{"wheelchair-access"})
	f.student(t, "w2", []string{"wheelchair-access"})
	ctx := context.Background()

	seat, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "w1"})
	if err != nil {
		t.Fatalf("w1 申领应成功: %v", err)
	}
	if seat.ID != "wc" {
		t.Fatalf("w1 应拿到轮椅位，实际 %s", seat.ID)
	}

	_, err = f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "w2"})
	if !errors.Is(err, ErrConstraintUnsatisfiable) {
		t.Fatalf("w2 期望 ErrConstraintUnsatisfiable，实际: %v", err)
	}
	if !strings.Contains(err.Error(), "wheelchair-access") {
		t.Errorf("原因应指出缺少的需求，实际: %v", err)
	}
	if got := f.seat(t, "plain"); got.Status != model.SeatAvailable {
		t.Errorf("不满足硬约束的座位不应被分配，实际 %s", got.Status)
	}
}

func TestAllocationService_Claim_SoftPreference(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 3, 3)
	f.student(t, "s1", nil, "back-row")

	seat, err := f.svc.Allocation.ClaimBestSeat(context.Background(), "r1", &dto.ClaimSeatRequest{StudentID: "s1"})
	if err != nil {
		t.Fatalf("申领应成功: %v", err)
	}
	if seat.Row != 2 || seat.Col != 0 {
		t.Errorf("偏好后排时应选 (2,0)，实际 (%d,%d)", seat.Row, seat.Col)
	}
}

func TestAllocationService_Claim_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 2, 2)
	f.student(t, "s1", nil)
	ctx := context.Background()

	first, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "s1"})
	if err != nil {
		t.Fatalf("首次申领应成功: %v", err)
	}
	second, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "s1"})
	if err != nil {
		t.Fatalf("重复申领应成功: %v", err)
	}
	if first.ID != second.ID || first.Version != second.Version {
		t.Errorf("重复申领应返回原座位，首次 %s v%d，再次 %s v%d", first.ID, first.Version, second.ID, second.Version)
	}
}

func TestAllocationService_Claim_Errors(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 1, 1)
	f.student(t, "s1", nil)
	ctx := context.Background()

	if _, err := f.svc.Allocation.ClaimBestSeat(ctx, "missing", &dto.ClaimSeatRequest{StudentID: "s1"}); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("期望 ErrRoomNotFound，实际: %v", err)
	}
	if _, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "nobody"}); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("期望 ErrStudentNotFound，实际: %v", err)
	}

	if _, err := f.svc.Room.SetAvailability(ctx, "r1", false); err != nil {
		t.Fatalf("停用教室失败: %v", err)
	}
	if _, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "s1"}); !errors.Is(err, ErrConstraintUnsatisfiable) {
		t.Errorf("不可用教室期望 ErrConstraintUnsatisfiable，实际: %v", err)
	}
}

// 并发申领：座位数少于学生数时，每个座位最多一个学生，其余学生得到明确结果
func TestAllocationService_Claim_ConcurrentNoDoubleAllocation(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 2, 5)
	const students = 25
	for i := 0; i < students; i++ {
		f.student(t, studentName(i), nil)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      = map[string]string{}
		rejected int
	)
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			seat, err := f.svc.Allocation.ClaimBestSeat(context.Background(), "r1", &dto.ClaimSeatRequest{StudentID: id})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if prev, ok := won[seat.ID]; ok {
					t.Errorf("座位 %s 同时分配给 %s 与 %s", seat.ID, prev, id)
				}
				won[seat.ID] = id
			case errors.Is(err, ErrConstraintUnsatisfiable):
				rejected++
			default:
				t.Errorf("学生 %s 意外错误: %v", id, err)
			}
		}(studentName(i))
	}
	wg.Wait()

	if len(won) != 10 || rejected != students-10 {
		t.Fatalf("期望 10 人成功、%d 人无座，实际 %d / %d", students-10, len(won), rejected)
	}
	seats, _ := f.repo.Seat.ListByRoom(context.Background(), "r1")
	for _, s := range seats {
		if s.Status != model.SeatAllocated || s.StudentID == nil || won[s.SeatID] != *s.StudentID {
			t.Errorf("座位 %s 状态与申领结果不一致", s.SeatID)
		}
		if s.Version != 1 {
			t.Errorf("座位 %s 应恰好提交一次，实际版本 %d", s.SeatID, s.Version)
		}
	}
}

func studentName(i int) string {
	return "stu-" + string(rune('a'+i/10)) + string(rune('0'+i%10))
}

// contendedSeatRepo 每次 CAS 都模拟被其他实例抢先提交
type contendedSeatRepo struct {
	repository.SeatRepository
}

func (contendedSeatRepo) CompareAndSwap(context.Context, *model.Seat, int) error {
	return pkgerrors.ErrOptimisticLock
}

func TestAllocationService_Claim_RetryExhausted(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 1, 2)
	f.student(t, "s1", nil)

	f.cfg.Allocation.MaxRetries = 3
	repo := *f.repo
	repo.Seat = contendedSeatRepo{f.repo.Seat}
	svc := NewService(f.cfg, &repo, f.notifier, f.publisher, zap.NewNop())

	_, err := svc.Allocation.ClaimBestSeat(context.Background(), "r1", &dto.ClaimSeatRequest{StudentID: "s1"})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("期望 ErrRetryExhausted，实际: %v", err)
	}
	if errors.Is(err, ErrConstraintUnsatisfiable) {
		t.Error("重试耗尽不应与约束不满足混淆")
	}

	conflicts := f.notifier.byType(realtime.EventAllocationConflict)
	if len(conflicts) != 3 {
		t.Fatalf("每次冲突都应推送 allocation.conflict，期望 3 条，实际 %d", len(conflicts))
	}
	data, ok := conflicts[0].Data.(realtime.ConflictData)
	if !ok || data.ConflictingRecord == nil {
		t.Errorf("冲突事件应携带当前记录，实际 %+v", conflicts[0].Data)
	}
	if conflicts[0].Scope != realtime.RoomScope("r1") {
		t.Errorf("冲突事件应推送到教室作用域，实际 %s", conflicts[0].Scope)
	}
}

// ── RunAllocation ──

func TestAllocationService_RunAllocation_MostConstrainedFirst(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	// 轮椅位位于 (0,0)，按行优先它也是无约束学生的首选
	f.room(t, "r1", "b1", 0, 1, 2, wheelchairSeat("wc", 0, 0), plainSeat("plain", 0, 1))
	f.student(t, "a", nil)
	f.student(t, "m", nil)
	f.student(t, "z", []string{"wheelchair-access"})
	ctx := context.Background()

	summary, err := f.svc.Allocation.RunAllocation(ctx, &dto.RunAllocationRequest{})
	if err != nil {
		t.Fatalf("RunAllocation 应成功: %v", err)
	}
	if summary.Allocated != 2 || summary.Unallocated != 1 {
		t.Fatalf("期望分配 2 人、未分配 1 人，实际 %d / %d", summary.Allocated, summary.Unallocated)
	}

	got := map[string]dto.AllocationOutcome{}
	for _, o := range summary.Outcomes {
		got[o.StudentID] = o
	}
	if got["z"].SeatID != "wc" {
		t.Errorf("z 应分到轮椅位，实际 %+v", got["z"])
	}
	if got["a"].SeatID != "plain" {
		t.Errorf("a 应分到普通座位，实际 %+v", got["a"])
	}
	if got["m"].Outcome != model.OutcomeUnallocated || got["m"].Reason == "" {
		t.Errorf("m 应未分配且带原因，实际 %+v", got["m"])
	}

	// 持久化、消息队列与批量推送
	run, err := f.svc.Allocation.GetRun(ctx, summary.RunID)
	if err != nil || run.Allocated != 2 || len(run.Outcomes) != 3 {
		t.Fatalf("运行记录应已保存，实际 %+v (%v)", run, err)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].RunID != summary.RunID {
		t.Errorf("应发布一次分配完成事件，实际 %+v", f.publisher.events)
	}
	var roomBulk *realtime.Event
	for _, ev := range f.notifier.byType(realtime.EventSeatsBulkChanged) {
		if ev.Scope == realtime.RoomScope("r1") {
			ev := ev
			roomBulk = &ev
		}
	}
	if roomBulk == nil || len(roomBulk.Items) != 2 {
		t.Fatalf("应向教室推送包含 2 个座位的批量变更，实际 %+v", roomBulk)
	}

	// 再次运行：已就座学生不会重复分配
	again, err := f.svc.Allocation.RunAllocation(ctx, &dto.RunAllocationRequest{})
	if err != nil {
		t.Fatalf("第二次运行应成功: %v", err)
	}
	if again.Allocated != 0 || again.Unallocated != 1 || len(again.Outcomes) != 1 {
		t.Errorf("第二次运行只应处理未就座学生，实际 %+v", again)
	}

	runs, err := f.svc.Allocation.ListRuns(ctx, 10)
	if err != nil || len(runs) != 2 {
		t.Errorf("应有 2 条运行记录，实际 %d (%v)", len(runs), err)
	}
}

func TestAllocationService_RunAllocation_PrefersOriginBuilding(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "east")
	f.building(t, "b2", "east")
	f.room(t, "ra", "b1", 0, 1, 1)
	f.room(t, "rb", "b2", 0, 1, 1)
	f.student(t, "s1", nil)

	summary, err := f.svc.Allocation.RunAllocation(context.Background(), &dto.RunAllocationRequest{BuildingID: "b2"})
	if err != nil {
		t.Fatalf("RunAllocation 应成功: %v", err)
	}
	if len(summary.Outcomes) != 1 || summary.Outcomes[0].RoomID != "rb" {
		t.Errorf("应优先分配参照教学楼内的教室，实际 %+v", summary.Outcomes)
	}
}

func TestAllocationService_GetRun_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Allocation.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("期望 ErrRunNotFound，实际: %v", err)
	}
}

// ── RunRebalance ──

func TestAllocationService_RunRebalance(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 1, 1)
	f.room(t, "r2", "b1", 1, 1, 2)
	f.student(t, "s1", nil)
	f.student(t, "s2", []string{"wheelchair-access"})
	ctx := context.Background()

	if _, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "s1"}); err != nil {
		t.Fatalf("s1 申领失败: %v", err)
	}
	// 管理员把 s2 安排在一个没有轮椅通道的座位上
	if _, err := f.svc.Seat.WriteSeat(ctx, seatID("r2", 0, 0), &dto.WriteSeatRequest{
		ExpectedVersion: intPtr(0),
		Status:          strPtr("allocated"),
		StudentID:       strPtr("s2"),
	}); err != nil {
		t.Fatalf("安排 s2 失败: %v", err)
	}
	if _, err := f.svc.Room.SetAvailability(ctx, "r1", false); err != nil {
		t.Fatalf("停用 r1 失败: %v", err)
	}

	summary, err := f.svc.Allocation.RunRebalance(ctx, &dto.RunAllocationRequest{})
	if err != nil {
		t.Fatalf("RunRebalance 应成功: %v", err)
	}

	got := map[string]dto.AllocationOutcome{}
	for _, o := range summary.Outcomes {
		got[o.StudentID] = o
	}

	moved := got["s1"]
	if moved.Outcome != model.OutcomeMoved || moved.RoomID != "r2" || moved.FromSeatID != seatID("r1", 0, 0) {
		t.Fatalf("s1 应从 r1 迁到 r2，实际 %+v", moved)
	}
	if old := f.seat(t, seatID("r1", 0, 0)); old.Status != model.SeatAvailable || old.StudentID != nil {
		t.Errorf("迁出后旧座位应释放，实际 %s", old.Status)
	}

	kept := got["s2"]
	if kept.Outcome != model.OutcomeKept || kept.Reason == "" || kept.SeatID != seatID("r2", 0, 0) {
		t.Errorf("s2 无替代座位时应保留原座位并给出原因，实际 %+v", kept)
	}
	if summary.Moved != 1 {
		t.Errorf("期望 moved=1，实际 %d", summary.Moved)
	}

	// 任何座位都不被两人共用
	seats, _ := f.repo.Seat.ListByRooms(ctx, []string{"r1", "r2"})
	holders := map[string]int{}
	for _, s := range seats {
		if s.StudentID != nil {
			holders[*s.StudentID]++
		}
	}
	if holders["s1"] != 1 || holders["s2"] != 1 {
		t.Errorf("每个学生应恰好占用一个座位，实际 %v", holders)
	}
}

// releaseFailingSeatRepo 指定座位释放为 available 时存储报错
type releaseFailingSeatRepo struct {
	repository.SeatRepository
	seatID string
}

func (r releaseFailingSeatRepo) CompareAndSwap(ctx context.Context, next *model.Seat, expected int) error {
	if next.SeatID == r.seatID && next.Status == model.SeatAvailable {
		return errors.New("存储不可用")
	}
	return r.SeatRepository.CompareAndSwap(ctx, next, expected)
}

// 旧座位释放失败时退还新座位，结果记为 kept 并说明原因，学生不会同时占用两个座位
func TestAllocationService_RunRebalance_ReleaseFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.building(t, "b1", "")
	f.room(t, "r1", "b1", 0, 1, 1)
	f.room(t, "r2", "b1", 1, 1, 2)
	f.student(t, "s1", nil)
	ctx := context.Background()

	if _, err := f.svc.Allocation.ClaimBestSeat(ctx, "r1", &dto.ClaimSeatRequest{StudentID: "s1"}); err != nil {
		t.Fatalf("s1 申领失败: %v", err)
	}
	if _, err := f.svc.Room.SetAvailability(ctx, "r1", false); err != nil {
		t.Fatalf("停用 r1 失败: %v", err)
	}

	repo := *f.repo
	repo.Seat = releaseFailingSeatRepo{SeatRepository: f.repo.Seat, seatID: seatID("r1", 0, 0)}
	svc := NewService(f.cfg, &repo, f.notifier, f.publisher, zap.NewNop())

	summary, err := svc.Allocation.RunRebalance(ctx, &dto.RunAllocationRequest{})
	if err != nil {
		t.Fatalf("RunRebalance 应成功: %v", err)
	}
	if len(summary.Outcomes) != 1 {
		t.Fatalf("期望 1 条结果，实际 %+v", summary.Outcomes)
	}
	out := summary.Outcomes[0]
	if out.Outcome != model.OutcomeKept || out.SeatID != seatID("r1", 0, 0) {
		t.Errorf("释放失败时应保留原座位，实际 %+v", out)
	}
	if !strings.Contains(out.Reason, "存储不可用") {
		t.Errorf("原因应包含释放错误，实际 %q", out.Reason)
	}
	if summary.Moved != 0 {
		t.Errorf("期望 moved=0，实际 %d", summary.Moved)
	}

	seats, _ := f.repo.Seat.ListByRooms(ctx, []string{"r1", "r2"})
	held := 0
	for i := range seats {
		if seats[i].HeldBy("s1") {
			held++
			if seats[i].SeatID != seatID("r1", 0, 0) {
				t.Errorf("s1 不应占用 %s", seats[i].SeatID)
			}
		}
	}
	if held != 1 {
		t.Errorf("s1 应恰好占用 1 个座位，实际 %d", held)
	}
}
