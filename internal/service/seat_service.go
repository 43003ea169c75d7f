package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/allocation"
	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/gate"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 座位模块业务错误 ──

var (
	ErrInvalidSeatPatch = errors.New("座位修改不合法")
)

// SeatService 座位业务接口
type SeatService interface {
	GetSeat(ctx context.Context, id string) (*dto.SeatResponse, error)
	ListSeats(ctx context.Context, roomID string) ([]dto.SeatResponse, error)
	// WriteSeat 带期望版本修改座位；版本不一致返回 *errors.ConflictError
	WriteSeat(ctx context.Context, id string, req *dto.WriteSeatRequest) (*dto.SeatResponse, error)
	// ValidateScope 校验订阅作用域格式及其指向的教室 / 教学楼存在
	ValidateScope(ctx context.Context, scope string) error
	// Snapshot 订阅作用域的完整当前状态，用于 resync
	Snapshot(ctx context.Context, scope string) (realtime.Event, error)
}

type seatService struct {
	repo   *repository.Repository
	seats  *gate.Gate[*model.Seat]
	claims *gate.KeyLock
	logger *zap.Logger
}

// NewSeatService 创建 SeatService 实例
func NewSeatService(repo *repository.Repository, seats *gate.Gate[*model.Seat], claims *gate.KeyLock, logger *zap.Logger) SeatService {
	return &seatService{repo: repo, seats: seats, claims: claims, logger: logger}
}

// ────────────────────── GetSeat ──────────────────────

func (s *seatService) GetSeat(ctx context.Context, id string) (*dto.SeatResponse, error) {
	seat, err := s.seats.Read(ctx, id)
	if err != nil {
		if err = notFound(err, ErrSeatNotFound); !errors.Is(err, ErrSeatNotFound) {
			s.logger.Error("查询座位失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	room, err := s.repo.Room.GetByID(ctx, seat.RoomID)
	if err != nil {
		s.logger.Error("查询座位所属教室失败", zap.String("room_id", seat.RoomID), zap.Error(err))
		return nil, err
	}
	all, err := s.repo.Seat.ListByRoom(ctx, seat.RoomID)
	if err != nil {
		s.logger.Error("列出教室座位失败", zap.String("room_id", seat.RoomID), zap.Error(err))
		return nil, err
	}

	layout := allocation.NewLayout(room, all)
	resp := toSeatResponse(seat, layout.DerivedFeatures(seat.Row, seat.Col))
	return &resp, nil
}

// ────────────────────── ListSeats ──────────────────────

func (s *seatService) ListSeats(ctx context.Context, roomID string) ([]dto.SeatResponse, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, err
	}

	seats, err := s.repo.Seat.ListByRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("列出教室座位失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	layout := allocation.NewLayout(room, seats)
	result := make([]dto.SeatResponse, 0, len(seats))
	for i := range seats {
		result = append(result, toSeatResponse(&seats[i], layout.DerivedFeatures(seats[i].Row, seats[i].Col)))
	}
	return result, nil
}

// ────────────────────── WriteSeat ──────────────────────

func (s *seatService) WriteSeat(ctx context.Context, id string, req *dto.WriteSeatRequest) (*dto.SeatResponse, error) {
	if req.StudentID != nil && *req.StudentID != "" {
		unlock, err := s.lockAssignee(ctx, id, *req.StudentID)
		if err != nil {
			return nil, s.writeError(id, err)
		}
		defer unlock()
	}

	committed, err := s.seats.Write(ctx, id, *req.ExpectedVersion, func(seat *model.Seat) (*model.Seat, error) {
		return applySeatPatch(seat, req)
	})
	if err != nil {
		return nil, s.writeError(id, err)
	}

	s.logger.Info("座位已更新",
		zap.String("seat_id", id),
		zap.String("status", string(committed.Status)),
		zap.Int("version", committed.Version),
	)
	resp := toSeatResponse(committed, nil)
	return &resp, nil
}

// lockAssignee 校验被指定的学生存在且在该教室没有其他座位，返回后持有教室/学生键锁直到写入结束
func (s *seatService) lockAssignee(ctx context.Context, seatID, studentID string) (func(), error) {
	if _, err := s.repo.Student.GetByID(ctx, studentID); err != nil {
		return nil, notFound(err, ErrStudentNotFound)
	}
	seat, err := s.seats.Read(ctx, seatID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.claims.Lock(ctx, claimKey(seat.RoomID, studentID))
	if err != nil {
		return nil, err
	}
	seats, err := s.repo.Seat.ListByRoom(ctx, seat.RoomID)
	if err != nil {
		unlock()
		return nil, err
	}
	for i := range seats {
		if seats[i].SeatID != seatID && seats[i].HeldBy(studentID) {
			unlock()
			return nil, fmt.Errorf("%w: 学生 %s 在该教室已占用座位 %s", ErrInvalidSeatPatch, studentID, seats[i].Label)
		}
	}
	return unlock, nil
}

func (s *seatService) writeError(id string, err error) error {
	err = notFound(err, ErrSeatNotFound)
	if errors.Is(err, ErrSeatNotFound) || errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrInvalidSeatPatch) {
		return err
	}
	if _, ok := pkgerrors.AsConflict(err); ok {
		s.logger.Info("座位写入冲突", zap.String("seat_id", id), zap.Error(err))
		return err
	}
	s.logger.Error("写入座位失败", zap.String("seat_id", id), zap.Error(err))
	return err
}

// applySeatPatch 在副本上应用修改并维持 StudentID 非空 ⇔ allocated。
// 切换到 broken / available 时清空占用学生，被挤出的学生由下一次批量分配重新安排
func applySeatPatch(seat *model.Seat, req *dto.WriteSeatRequest) (*model.Seat, error) {
	status := seat.Status
	if req.Status != nil {
		status = model.SeatStatus(*req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: 未知状态 %q", ErrInvalidSeatPatch, *req.Status)
		}
	}

	studentID := seat.StudentID
	studentGiven := req.StudentID != nil
	if studentGiven {
		if *req.StudentID == "" {
			studentID = nil
		} else {
			v := *req.StudentID
			studentID = &v
		}
	}

	switch status {
	case model.SeatAllocated:
		if studentID == nil {
			return nil, fmt.Errorf("%w: 已分配座位必须指定学生", ErrInvalidSeatPatch)
		}
	default:
		if studentGiven && studentID != nil {
			return nil, fmt.Errorf("%w: 状态为 %s 的座位不能指定学生", ErrInvalidSeatPatch, status)
		}
		studentID = nil
	}

	seat.Status = status
	seat.StudentID = studentID
	if req.Features != nil {
		seat.Features = append(model.Tags{}, (*req.Features)...)
	}
	if req.Label != nil {
		seat.Label = *req.Label
	}
	return seat, nil
}

// ────────────────────── Snapshot ──────────────────────

func (s *seatService) ValidateScope(ctx context.Context, scope string) error {
	kind, id, err := realtime.ParseScope(scope)
	if err != nil {
		return err
	}
	switch kind {
	case "room":
		_, err = s.repo.Room.GetByID(ctx, id)
		err = notFound(err, ErrRoomNotFound)
	case "building":
		_, err = s.repo.Building.GetByID(ctx, id)
		err = notFound(err, ErrBuildingNotFound)
	}
	if err != nil && !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrBuildingNotFound) {
		s.logger.Error("校验订阅作用域失败", zap.String("scope", scope), zap.Error(err))
	}
	return err
}

func (s *seatService) Snapshot(ctx context.Context, scope string) (realtime.Event, error) {
	kind, id, err := realtime.ParseScope(scope)
	if err != nil {
		return realtime.Event{}, err
	}

	var filter repository.RoomFilter
	switch kind {
	case "room":
		filter.IDs = []string{id}
	case "building":
		filter.BuildingID = id
	}

	rooms, err := s.repo.Room.List(ctx, filter)
	if err != nil {
		s.logger.Error("resync 列出教室失败", zap.String("scope", scope), zap.Error(err))
		return realtime.Event{}, err
	}
	if kind == "room" && len(rooms) == 0 {
		return realtime.Event{}, ErrRoomNotFound
	}

	roomIDs := make([]string, 0, len(rooms))
	for i := range rooms {
		roomIDs = append(roomIDs, rooms[i].RoomID)
	}
	seats, err := s.repo.Seat.ListByRooms(ctx, roomIDs)
	if err != nil {
		s.logger.Error("resync 列出座位失败", zap.String("scope", scope), zap.Error(err))
		return realtime.Event{}, err
	}

	items := make([]realtime.Item, 0, len(seats))
	for i := range seats {
		items = append(items, seatItem(&seats[i]))
	}

	if kind == "room" {
		bookings, err := s.repo.Booking.ListByRoom(ctx, id)
		if err != nil {
			s.logger.Error("resync 列出预约失败", zap.String("scope", scope), zap.Error(err))
			return realtime.Event{}, err
		}
		now := time.Now()
		for i := range bookings {
			items = append(items, bookingItem(&bookings[i], now))
		}
	}

	return realtime.Event{Type: realtime.EventResync, Scope: scope, Items: items}, nil
}
