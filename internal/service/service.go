package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/gate"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/queue"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 通用业务错误 ──

var (
	ErrSeatNotFound    = errors.New("座位不存在")
	ErrRoomNotFound    = errors.New("教室不存在")
	ErrStudentNotFound = errors.New("学生不存在")
)

// Service 所有 Service 的聚合入口
type Service struct {
	Seat       SeatService
	Allocation AllocationService
	Booking    BookingService
	Room       RoomService
	Student    StudentService
	Export     ExportService
}

// NewService 创建 Service 聚合
// 座位闸门在各服务间共享：同一座位的写入无论来自管理员修改、申领还是批量分配都经过同一把键锁。
// 教室/学生键锁同样共享，管理员指定学生与申领在同一教室内互斥
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	notifier realtime.Notifier,
	publisher queue.Publisher,
	logger *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}

	scopes := newScopeResolver(repo, logger)
	seats := newSeatGate(repo, notifier, scopes)
	claims := gate.NewKeyLock()
	clock := time.Now

	return &Service{
		Seat:       NewSeatService(repo, seats, claims, logger),
		Allocation: NewAllocationService(&cfg.Allocation, repo, seats, claims, notifier, publisher, scopes, logger),
		Booking:    NewBookingService(&cfg.Allocation, repo, notifier, scopes, clock, logger),
		Room:       NewRoomService(&cfg.Allocation, repo, logger),
		Student:    NewStudentService(repo, logger),
		Export:     NewExportService(repo, clock, logger),
	}
}

// newSeatGate 座位闸门，提交后向教室、教学楼与全局作用域推送 seat.changed
func newSeatGate(repo *repository.Repository, notifier realtime.Notifier, scopes *scopeResolver) *gate.Gate[*model.Seat] {
	store := gate.StoreFuncs[*model.Seat]{
		LoadFunc: repo.Seat.GetByID,
		SwapFunc: repo.Seat.CompareAndSwap,
	}
	return gate.New[*model.Seat](store, gate.WithCommitHook[*model.Seat](func(seat *model.Seat) {
		ev := realtime.Event{
			Type:  realtime.EventSeatChanged,
			Items: []realtime.Item{seatItem(seat)},
		}
		for _, scope := range scopes.forRoom(seat.RoomID) {
			ev.Scope = scope
			notifier.Publish(ev)
		}
	}))
}

// claimKey 同一学生在同一教室的座位变更串行化
func claimKey(roomID, studentID string) string {
	return roomID + "/" + studentID
}

// publishConflict 申领或预约输给已提交的竞争写入时推送 allocation.conflict
func publishConflict(notifier realtime.Notifier, roomID, message string, ce *pkgerrors.ConflictError) {
	notifier.Publish(realtime.Event{
		Type:    realtime.EventAllocationConflict,
		Scope:   realtime.RoomScope(roomID),
		Message: message,
		Data:    realtime.ConflictData{ConflictingRecord: dto.ToRecord(ce.Current, time.Now())},
	})
}

func seatItem(seat *model.Seat) realtime.Item {
	return realtime.Item{Key: seat.SeatID, Version: seat.Version, Record: dto.SeatRecord(seat)}
}

// ── 作用域解析 ──

// scopeResolver 缓存教室所属教学楼。教室不会更换所属楼，缓存无需失效
type scopeResolver struct {
	repo   *repository.Repository
	logger *zap.Logger
	cache  sync.Map // roomID → buildingID
}

func newScopeResolver(repo *repository.Repository, logger *zap.Logger) *scopeResolver {
	return &scopeResolver{repo: repo, logger: logger}
}

func (r *scopeResolver) remember(roomID, buildingID string) {
	r.cache.Store(roomID, buildingID)
}

// forRoom 教室变更需要推送到的全部作用域
func (r *scopeResolver) forRoom(roomID string) []string {
	scopes := []string{realtime.RoomScope(roomID)}
	if b := r.building(roomID); b != "" {
		scopes = append(scopes, realtime.BuildingScope(b))
	}
	return append(scopes, realtime.ScopeGlobal)
}

func (r *scopeResolver) building(roomID string) string {
	if v, ok := r.cache.Load(roomID); ok {
		return v.(string)
	}
	room, err := r.repo.Room.GetByID(context.Background(), roomID)
	if err != nil {
		r.logger.Warn("解析教室所属教学楼失败", zap.String("room_id", roomID), zap.Error(err))
		return ""
	}
	r.remember(roomID, room.BuildingID)
	return room.BuildingID
}

// ── 通用转换 ──

func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func toSeatResponse(seat *model.Seat, derived []string) dto.SeatResponse {
	features := []string(seat.Features)
	if features == nil {
		features = []string{}
	}
	return dto.SeatResponse{
		ID:              seat.SeatID,
		RoomID:          seat.RoomID,
		Label:           seat.Label,
		Row:             seat.Row,
		Col:             seat.Col,
		Status:          string(seat.Status),
		StudentID:       seat.StudentID,
		Features:        features,
		DerivedFeatures: derived,
		Version:         seat.Version,
		UpdatedAt:       seat.UpdatedAt.Format(time.RFC3339),
	}
}

func toBuildingResponse(b *model.Building) *dto.BuildingResponse {
	if b == nil {
		return nil
	}
	return &dto.BuildingResponse{ID: b.BuildingID, Name: b.Name, Block: b.Block}
}

func toRoomResponse(room *model.Room) dto.RoomResponse {
	return dto.RoomResponse{
		ID:         room.RoomID,
		BuildingID: room.BuildingID,
		Building:   toBuildingResponse(room.Building),
		Name:       room.Name,
		Floor:      room.Floor,
		Rows:       room.Rows,
		Cols:       room.Cols,
		Capacity:   room.Capacity,
		AisleEvery: room.AisleEvery,
		Available:  room.Available,
	}
}

func toBookingResponse(b *model.Booking, now time.Time) dto.BookingResponse {
	return dto.BookingResponse{
		ID:        b.BookingID,
		RoomID:    b.RoomID,
		TeacherID: b.TeacherID,
		StartTime: b.StartTime.Format(time.RFC3339),
		EndTime:   b.EndTime.Format(time.RFC3339),
		Attendees: b.Attendees,
		Purpose:   b.Purpose,
		Status:    b.EffectiveStatus(now),
		Version:   b.Version,
	}
}
