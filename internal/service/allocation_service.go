package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/allocation"
	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/gate"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/queue"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 分配模块业务错误 ──

var (
	ErrConstraintUnsatisfiable = errors.New("没有满足约束的可用座位")
	ErrRetryExhausted          = errors.New("座位竞争激烈，请稍后重试")
	ErrRunNotFound             = errors.New("分配记录不存在")
)

// AllocationService 座位分配业务接口
//
// 每一次座位变更都是一次独立的闸门写入：批量运行不会跨座位持锁，
// 单个学生失败不影响其他学生，部分完成是正常结果
type AllocationService interface {
	// ClaimBestSeat 为学生在指定教室申领最佳座位；学生已在该教室就座时直接返回原座位
	ClaimBestSeat(ctx context.Context, roomID string, req *dto.ClaimSeatRequest) (*dto.SeatResponse, error)
	// RunAllocation 为范围内所有未就座学生分配座位
	RunAllocation(ctx context.Context, req *dto.RunAllocationRequest) (*dto.AllocationSummary, error)
	// RunRebalance 迁出不可用教室或不再满足需求的座位，随后为未就座学生分配
	RunRebalance(ctx context.Context, req *dto.RunAllocationRequest) (*dto.AllocationSummary, error)
	GetRun(ctx context.Context, id string) (*dto.AllocationSummary, error)
	ListRuns(ctx context.Context, limit int) ([]dto.AllocationSummary, error)
}

type allocationService struct {
	cfg       *config.AllocationConfig
	repo      *repository.Repository
	seats     *gate.Gate[*model.Seat]
	claims    *gate.KeyLock
	notifier  realtime.Notifier
	publisher queue.Publisher
	scopes    *scopeResolver
	score     allocation.ScoreFunc
	logger    *zap.Logger
}

// NewAllocationService 创建 AllocationService 实例
func NewAllocationService(
	cfg *config.AllocationConfig,
	repo *repository.Repository,
	seats *gate.Gate[*model.Seat],
	claims *gate.KeyLock,
	notifier realtime.Notifier,
	publisher queue.Publisher,
	scopes *scopeResolver,
	logger *zap.Logger,
) AllocationService {
	return &allocationService{
		cfg:       cfg,
		repo:      repo,
		seats:     seats,
		claims:    claims,
		notifier:  notifier,
		publisher: publisher,
		scopes:    scopes,
		score:     allocation.DefaultScore,
		logger:    logger,
	}
}

// ────────────────────── ClaimBestSeat ──────────────────────

func (s *allocationService) ClaimBestSeat(ctx context.Context, roomID string, req *dto.ClaimSeatRequest) (*dto.SeatResponse, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, err
	}
	s.scopes.remember(room.RoomID, room.BuildingID)

	student, err := s.repo.Student.GetByID(ctx, req.StudentID)
	if err != nil {
		if err = notFound(err, ErrStudentNotFound); !errors.Is(err, ErrStudentNotFound) {
			s.logger.Error("查询学生失败", zap.String("student_id", req.StudentID), zap.Error(err))
		}
		return nil, err
	}

	if !room.Available {
		return nil, fmt.Errorf("%w: 教室 %s 当前不可用", ErrConstraintUnsatisfiable, room.Name)
	}

	cons := s.constraintsFor(student, req.Hard, req.Soft)
	seat, err := s.claimInRoom(ctx, room, student.StudentID, cons, "")
	if err != nil {
		if !errors.Is(err, ErrConstraintUnsatisfiable) && !errors.Is(err, ErrRetryExhausted) {
			s.logger.Error("申领座位失败", zap.String("room_id", roomID), zap.String("student_id", student.StudentID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("座位申领成功",
		zap.String("room_id", roomID),
		zap.String("student_id", student.StudentID),
		zap.String("seat_id", seat.SeatID),
	)
	resp := toSeatResponse(seat, nil)
	return &resp, nil
}

// constraintsFor 请求未指定约束时使用学生档案：无障碍需求为硬约束，标签为软约束
func (s *allocationService) constraintsFor(st *model.Student, hard, soft []string) allocation.Constraints {
	if hard == nil {
		hard = st.AccessibilityNeeds
	}
	if soft == nil {
		soft = st.Tags
	}
	return allocation.Constraints{Hard: hard, Soft: soft, Weights: s.cfg.SoftWeights}
}

// claimInRoom 在单个教室内筛选、评分并以筛选时的版本写入。
// 冲突时推送 allocation.conflict 后重新筛选，最多 MaxRetries 次。
// skipSeatID 非空时不把该座位视为学生已有座位（重平衡迁出时使用）
func (s *allocationService) claimInRoom(
	ctx context.Context,
	room *model.Room,
	studentID string,
	cons allocation.Constraints,
	skipSeatID string,
) (*model.Seat, error) {
	unlock, err := s.claims.Lock(ctx, claimKey(room.RoomID, studentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		seats, err := s.repo.Seat.ListByRoom(ctx, room.RoomID)
		if err != nil {
			return nil, err
		}
		for i := range seats {
			if seats[i].SeatID != skipSeatID && seats[i].HeldBy(studentID) {
				return &seats[i], nil
			}
		}

		cands := allocation.BuildCandidates(room, seats)
		best, ok := allocation.SelectBest(cands, cons, s.score)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrConstraintUnsatisfiable, allocation.Explain(cands, cons))
		}

		committed, err := s.seats.Write(ctx, best.Seat.SeatID, best.Seat.Version, func(seat *model.Seat) (*model.Seat, error) {
			if seat.Status != model.SeatAvailable {
				return nil, pkgerrors.NewConflict(seat, "座位已不可用")
			}
			id := studentID
			seat.Status = model.SeatAllocated
			seat.StudentID = &id
			return seat, nil
		})
		if err == nil {
			return committed, nil
		}

		ce, ok := pkgerrors.AsConflict(err)
		if !ok {
			return nil, err
		}
		s.publishConflict(room.RoomID, studentID, ce)
		s.logger.Debug("申领冲突，重新筛选",
			zap.String("room_id", room.RoomID),
			zap.String("student_id", studentID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, ErrRetryExhausted
}

func (s *allocationService) publishConflict(roomID, studentID string, ce *pkgerrors.ConflictError) {
	publishConflict(s.notifier, roomID, fmt.Sprintf("学生 %s 申领时座位已被占用，正在重新选择", studentID), ce)
}

// ────────────────────── RunAllocation ──────────────────────

func (s *allocationService) RunAllocation(ctx context.Context, req *dto.RunAllocationRequest) (*dto.AllocationSummary, error) {
	run := s.newRun(model.RunAllocate)

	pool, err := s.poolRooms(ctx, req, true)
	if err != nil {
		return nil, err
	}
	students, err := s.scopeStudents(ctx, req)
	if err != nil {
		return nil, err
	}
	seated, err := s.seatedStudents(ctx, pool)
	if err != nil {
		return nil, err
	}

	origin := s.origin(ctx, req.BuildingID)
	tracker := newSeatTracker()
	run.Outcomes = append(run.Outcomes, s.allocateUnseated(ctx, students, pool, seated, origin, tracker)...)

	return s.finishRun(ctx, run, tracker)
}

// allocateUnseated 最受约束的学生优先（硬约束多者先），同等时按学生 ID
func (s *allocationService) allocateUnseated(
	ctx context.Context,
	students []model.Student,
	pool []model.Room,
	seated map[string]bool,
	origin allocation.Origin,
	tracker *seatTracker,
) []model.AllocationOutcome {
	pending := make([]model.Student, 0, len(students))
	for _, st := range students {
		if !seated[st.StudentID] {
			pending = append(pending, st)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if len(pending[i].AccessibilityNeeds) != len(pending[j].AccessibilityNeeds) {
			return len(pending[i].AccessibilityNeeds) > len(pending[j].AccessibilityNeeds)
		}
		return pending[i].StudentID < pending[j].StudentID
	})

	ranked := s.rankPool(pool, origin)
	outcomes := make([]model.AllocationOutcome, 0, len(pending))
	for i := range pending {
		if ctx.Err() != nil {
			outcomes = append(outcomes, model.AllocationOutcome{
				StudentID: pending[i].StudentID,
				Outcome:   model.OutcomeUnallocated,
				Reason:    "分配已取消",
			})
			continue
		}
		outcomes = append(outcomes, s.allocateOne(ctx, &pending[i], ranked, tracker))
	}
	return outcomes
}

func (s *allocationService) allocateOne(ctx context.Context, st *model.Student, rooms []*model.Room, tracker *seatTracker) model.AllocationOutcome {
	out := model.AllocationOutcome{StudentID: st.StudentID, Outcome: model.OutcomeUnallocated}
	if len(rooms) == 0 {
		out.Reason = "没有可用教室"
		return out
	}

	cons := s.constraintsFor(st, nil, nil)
	var reasons []string
	for _, room := range rooms {
		seat, err := s.claimInRoom(ctx, room, st.StudentID, cons, "")
		if err == nil {
			tracker.add(seat)
			out.Outcome = model.OutcomeAllocated
			out.SeatID = seat.SeatID
			out.RoomID = seat.RoomID
			return out
		}
		if !errors.Is(err, ErrConstraintUnsatisfiable) && !errors.Is(err, ErrRetryExhausted) {
			s.logger.Error("批量分配写入失败", zap.String("student_id", st.StudentID), zap.String("room_id", room.RoomID), zap.Error(err))
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", room.Name, err.Error()))
	}

	if len(reasons) == 1 {
		out.Reason = reasons[0]
	} else {
		out.Reason = fmt.Sprintf("%d 个教室均未找到座位，最后一个: %s", len(reasons), reasons[len(reasons)-1])
	}
	return out
}

// ────────────────────── RunRebalance ──────────────────────

func (s *allocationService) RunRebalance(ctx context.Context, req *dto.RunAllocationRequest) (*dto.AllocationSummary, error) {
	run := s.newRun(model.RunRebalance)

	scope, err := s.poolRooms(ctx, req, false)
	if err != nil {
		return nil, err
	}
	targets := make([]model.Room, 0, len(scope))
	for _, room := range scope {
		if room.Available {
			targets = append(targets, room)
		}
	}

	students, err := s.scopeStudents(ctx, req)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Student, len(students))
	for i := range students {
		byID[students[i].StudentID] = &students[i]
	}

	roomIDs := make([]string, 0, len(scope))
	roomByID := make(map[string]*model.Room, len(scope))
	for i := range scope {
		roomIDs = append(roomIDs, scope[i].RoomID)
		roomByID[scope[i].RoomID] = &scope[i]
	}
	seats, err := s.repo.Seat.ListByRooms(ctx, roomIDs)
	if err != nil {
		s.logger.Error("重平衡列出座位失败", zap.Error(err))
		return nil, err
	}

	layouts := layoutsByRoom(scope, seats)
	tracker := newSeatTracker()
	seated := make(map[string]bool)

	for i := range seats {
		seat := &seats[i]
		if seat.Status != model.SeatAllocated || seat.StudentID == nil {
			continue
		}
		st, ok := byID[*seat.StudentID]
		if !ok {
			continue
		}
		seated[st.StudentID] = true

		room := roomByID[seat.RoomID]
		reason := moveReason(room, layouts[room.RoomID], seat, st)
		if reason == "" {
			continue
		}
		run.Outcomes = append(run.Outcomes, s.moveOne(ctx, st, seat, room, targets, reason, tracker))
	}

	run.Outcomes = append(run.Outcomes, s.allocateUnseated(ctx, students, targets, seated, s.origin(ctx, req.BuildingID), tracker)...)
	return s.finishRun(ctx, run, tracker)
}

// moveReason 座位需要迁出的原因，空串表示无需迁出
func moveReason(room *model.Room, layout allocation.Layout, seat *model.Seat, st *model.Student) string {
	if !room.Available {
		return fmt.Sprintf("教室 %s 已不可用", room.Name)
	}
	have := make(map[string]bool)
	for _, f := range seat.Features {
		have[f] = true
	}
	for _, f := range layout.DerivedFeatures(seat.Row, seat.Col) {
		have[f] = true
	}
	var missing []string
	for _, need := range st.AccessibilityNeeds {
		if !have[need] {
			missing = append(missing, need)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Sprintf("座位不再满足无障碍需求 %v", missing)
	}
	return ""
}

// moveOne 先申领新座位再释放旧座位，任何时刻都不会出现两人共用一个座位
func (s *allocationService) moveOne(
	ctx context.Context,
	st *model.Student,
	old *model.Seat,
	oldRoom *model.Room,
	targets []model.Room,
	reason string,
	tracker *seatTracker,
) model.AllocationOutcome {
	out := model.AllocationOutcome{
		StudentID:  st.StudentID,
		Outcome:    model.OutcomeKept,
		SeatID:     old.SeatID,
		RoomID:     old.RoomID,
		FromSeatID: old.SeatID,
	}

	floor := oldRoom.Floor
	origin := allocation.Origin{BuildingID: oldRoom.BuildingID, Floor: &floor}
	if oldRoom.Building != nil {
		origin.Block = oldRoom.Building.Block
	}

	cons := s.constraintsFor(st, nil, nil)
	var last error
	for _, room := range s.rankPool(targets, origin) {
		seat, err := s.claimInRoom(ctx, room, st.StudentID, cons, old.SeatID)
		if err != nil {
			last = err
			continue
		}
		if seat.SeatID == old.SeatID {
			continue
		}
		tracker.add(seat)
		if err := s.release(ctx, old.SeatID, st.StudentID, tracker); err != nil {
			return s.undoMove(ctx, out, seat, reason, err, tracker)
		}
		out.Outcome = model.OutcomeMoved
		out.SeatID = seat.SeatID
		out.RoomID = seat.RoomID
		out.Reason = reason
		return out
	}

	out.Reason = reason + "，未找到替代座位"
	if last != nil {
		out.Reason += ": " + last.Error()
	}
	return out
}

// undoMove 旧座位释放失败时退还新座位，学生保留原座位。
// 退还也失败时学生同时占用两个座位，结果记为 moved 并在原因中注明
func (s *allocationService) undoMove(
	ctx context.Context,
	out model.AllocationOutcome,
	claimed *model.Seat,
	reason string,
	releaseErr error,
	tracker *seatTracker,
) model.AllocationOutcome {
	s.logger.Error("释放旧座位失败",
		zap.String("seat_id", out.FromSeatID),
		zap.String("student_id", out.StudentID),
		zap.Error(releaseErr),
	)
	if err := s.release(ctx, claimed.SeatID, out.StudentID, tracker); err != nil {
		s.logger.Error("退还新座位失败",
			zap.String("seat_id", claimed.SeatID),
			zap.String("student_id", out.StudentID),
			zap.Error(err),
		)
		out.Outcome = model.OutcomeMoved
		out.SeatID = claimed.SeatID
		out.RoomID = claimed.RoomID
		out.Reason = fmt.Sprintf("%s，旧座位 %s 仍被占用: %v", reason, out.FromSeatID, releaseErr)
		return out
	}
	out.Reason = fmt.Sprintf("%s，释放旧座位失败: %v", reason, releaseErr)
	return out
}

// release 释放学生占用的座位，冲突时以当前版本重试
func (s *allocationService) release(ctx context.Context, seatID, studentID string, tracker *seatTracker) error {
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		current, err := s.seats.Read(ctx, seatID)
		if err != nil {
			return err
		}
		if !current.HeldBy(studentID) {
			return nil
		}
		committed, err := s.seats.Write(ctx, seatID, current.Version, func(seat *model.Seat) (*model.Seat, error) {
			seat.Status = model.SeatAvailable
			seat.StudentID = nil
			return seat, nil
		})
		if err == nil {
			tracker.add(committed)
			return nil
		}
		if _, ok := pkgerrors.AsConflict(err); !ok {
			return err
		}
	}
	return ErrRetryExhausted
}

// ────────────────────── 运行记录 ──────────────────────

func (s *allocationService) GetRun(ctx context.Context, id string) (*dto.AllocationSummary, error) {
	run, err := s.repo.AllocationRun.GetByID(ctx, id)
	if err != nil {
		if err = notFound(err, ErrRunNotFound); !errors.Is(err, ErrRunNotFound) {
			s.logger.Error("查询分配记录失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return toAllocationSummary(run), nil
}

func (s *allocationService) ListRuns(ctx context.Context, limit int) ([]dto.AllocationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.repo.AllocationRun.List(ctx, limit)
	if err != nil {
		s.logger.Error("列出分配记录失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.AllocationSummary, 0, len(runs))
	for i := range runs {
		result = append(result, *toAllocationSummary(&runs[i]))
	}
	return result, nil
}

func (s *allocationService) newRun(kind string) *model.AllocationRun {
	return &model.AllocationRun{RunID: model.NewID(), Kind: kind, StartedAt: time.Now()}
}

// finishRun 统计、推送每个教室的批量变更、持久化并发布完成事件
func (s *allocationService) finishRun(ctx context.Context, run *model.AllocationRun, tracker *seatTracker) (*dto.AllocationSummary, error) {
	for _, o := range run.Outcomes {
		switch o.Outcome {
		case model.OutcomeAllocated:
			run.Allocated++
		case model.OutcomeMoved:
			run.Moved++
		case model.OutcomeUnallocated:
			run.Unallocated++
		}
	}
	run.FinishedAt = time.Now()

	for roomID, items := range tracker.byRoom() {
		for _, scope := range s.scopes.forRoom(roomID) {
			s.notifier.Publish(realtime.Event{Type: realtime.EventSeatsBulkChanged, Scope: scope, Items: items})
		}
	}

	if err := s.repo.AllocationRun.Create(ctx, run); err != nil {
		s.logger.Error("保存分配记录失败", zap.String("run_id", run.RunID), zap.Error(err))
		return nil, err
	}

	err := s.publisher.PublishAllocationCompleted(ctx, queue.AllocationCompletedEvent{
		RunID:       run.RunID,
		Kind:        run.Kind,
		Allocated:   run.Allocated,
		Moved:       run.Moved,
		Unallocated: run.Unallocated,
		FinishedAt:  run.FinishedAt,
	})
	if err != nil {
		s.logger.Warn("发布分配完成事件失败", zap.String("run_id", run.RunID), zap.Error(err))
	}

	s.logger.Info("批量分配完成",
		zap.String("run_id", run.RunID),
		zap.String("kind", run.Kind),
		zap.Int("allocated", run.Allocated),
		zap.Int("moved", run.Moved),
		zap.Int("unallocated", run.Unallocated),
	)
	return toAllocationSummary(run), nil
}

// ────────────────────── 范围解析 ──────────────────────

func (s *allocationService) poolRooms(ctx context.Context, req *dto.RunAllocationRequest, onlyAvailable bool) ([]model.Room, error) {
	rooms, err := s.repo.Room.List(ctx, repository.RoomFilter{
		BuildingID:    req.BuildingID,
		OnlyAvailable: onlyAvailable,
		IDs:           req.RoomIDs,
	})
	if err != nil {
		s.logger.Error("列出教室失败", zap.Error(err))
		return nil, err
	}
	for i := range rooms {
		s.scopes.remember(rooms[i].RoomID, rooms[i].BuildingID)
	}
	return rooms, nil
}

func (s *allocationService) scopeStudents(ctx context.Context, req *dto.RunAllocationRequest) ([]model.Student, error) {
	var (
		students []model.Student
		err      error
	)
	if len(req.StudentIDs) > 0 {
		students, err = s.repo.Student.ListByIDs(ctx, req.StudentIDs)
	} else {
		students, err = s.repo.Student.List(ctx)
	}
	if err != nil {
		s.logger.Error("列出学生失败", zap.Error(err))
		return nil, err
	}
	return students, nil
}

// seatedStudents 在任一池内教室已有座位的学生
func (s *allocationService) seatedStudents(ctx context.Context, pool []model.Room) (map[string]bool, error) {
	ids := make([]string, 0, len(pool))
	for i := range pool {
		ids = append(ids, pool[i].RoomID)
	}
	seats, err := s.repo.Seat.ListByRooms(ctx, ids)
	if err != nil {
		s.logger.Error("列出座位失败", zap.Error(err))
		return nil, err
	}
	seated := make(map[string]bool)
	for i := range seats {
		if seats[i].Status == model.SeatAllocated && seats[i].StudentID != nil {
			seated[*seats[i].StudentID] = true
		}
	}
	return seated, nil
}

func (s *allocationService) origin(ctx context.Context, buildingID string) allocation.Origin {
	if buildingID == "" {
		return allocation.Origin{}
	}
	origin := allocation.Origin{BuildingID: buildingID}
	if b, err := s.repo.Building.GetByID(ctx, buildingID); err == nil {
		origin.Block = b.Block
	}
	return origin
}

// rankPool 按与参照位置的层级距离排序，同级按教室 ID
func (s *allocationService) rankPool(pool []model.Room, origin allocation.Origin) []*model.Room {
	sites := make([]allocation.Site, 0, len(pool))
	for i := range pool {
		sites = append(sites, allocation.Site{Room: &pool[i], Building: pool[i].Building})
	}
	ranked := allocation.RankRooms(sites, origin, 0, s.cfg.ProximityWeight)
	out := make([]*model.Room, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Room)
	}
	return out
}

func layoutsByRoom(rooms []model.Room, seats []model.Seat) map[string]allocation.Layout {
	grouped := make(map[string][]model.Seat, len(rooms))
	for _, seat := range seats {
		grouped[seat.RoomID] = append(grouped[seat.RoomID], seat)
	}
	out := make(map[string]allocation.Layout, len(rooms))
	for i := range rooms {
		out[rooms[i].RoomID] = allocation.NewLayout(&rooms[i], grouped[rooms[i].RoomID])
	}
	return out
}

// seatTracker 记录一次运行中提交过的座位，每个座位只保留最新版本
type seatTracker struct {
	seats map[string]*model.Seat
}

func newSeatTracker() *seatTracker {
	return &seatTracker{seats: make(map[string]*model.Seat)}
}

func (t *seatTracker) add(seat *model.Seat) {
	if prev, ok := t.seats[seat.SeatID]; ok && prev.Version >= seat.Version {
		return
	}
	t.seats[seat.SeatID] = seat
}

func (t *seatTracker) byRoom() map[string][]realtime.Item {
	out := make(map[string][]realtime.Item)
	for _, seat := range t.seats {
		out[seat.RoomID] = append(out[seat.RoomID], seatItem(seat))
	}
	for _, items := range out {
		sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	}
	return out
}

func toAllocationSummary(run *model.AllocationRun) *dto.AllocationSummary {
	outcomes := make([]dto.AllocationOutcome, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		outcomes = append(outcomes, dto.AllocationOutcome{
			StudentID:  o.StudentID,
			Outcome:    o.Outcome,
			SeatID:     o.SeatID,
			RoomID:     o.RoomID,
			FromSeatID: o.FromSeatID,
			Reason:     o.Reason,
		})
	}
	return &dto.AllocationSummary{
		RunID:       run.RunID,
		Kind:        run.Kind,
		Allocated:   run.Allocated,
		Moved:       run.Moved,
		Unallocated: run.Unallocated,
		Outcomes:    outcomes,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		FinishedAt:  run.FinishedAt.Format(time.RFC3339),
	}
}
