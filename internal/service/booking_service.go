package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/allocation"
	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/gate"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/realtime"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 预约模块业务错误 ──

var (
	ErrBookingNotFound      = errors.New("预约不存在")
	ErrBookingOverlap       = errors.New("该时段已被预约")
	ErrInvalidInterval      = errors.New("预约时间区间不合法")
	ErrBookingForbidden     = errors.New("只能取消自己的预约")
	ErrBookingNotCancelable = errors.New("预约已取消或已结束")
)

// BookingService 教室预约业务接口
//
// 同一教室的新建预约都是对 RoomLedger 的一次闸门写入，重叠检查在变更函数中完成，
// 因此两个教师同时预约同一时段只有一个成功，另一个收到携带已有预约的冲突
type BookingService interface {
	// Create 指定教室时只尝试该教室；否则按推荐顺序逐个尝试，直到成功
	Create(ctx context.Context, req *dto.CreateBookingRequest, teacherID string) (*dto.BookingResponse, error)
	Get(ctx context.Context, id string) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, id string, req *dto.CancelBookingRequest, callerID string, isAdmin bool) (*dto.BookingResponse, error)
	ListByRoom(ctx context.Context, roomID string) ([]dto.BookingResponse, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]dto.BookingResponse, error)
	// ImportCalendar 将 ICS 中的事件逐个预约到指定教室，单个时段失败不影响其他时段
	ImportCalendar(ctx context.Context, roomID string, r io.Reader, teacherID string) (*dto.ImportBookingsResult, error)
}

type bookingService struct {
	cfg      *config.AllocationConfig
	repo     *repository.Repository
	ledgers  *gate.Gate[*model.RoomLedger]
	bookings *gate.Gate[*model.Booking]
	notifier realtime.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewBookingService 创建 BookingService 实例
func NewBookingService(
	cfg *config.AllocationConfig,
	repo *repository.Repository,
	notifier realtime.Notifier,
	scopes *scopeResolver,
	now func() time.Time,
	logger *zap.Logger,
) BookingService {
	publish := func(b *model.Booking) {
		ev := realtime.Event{Type: realtime.EventBookingChanged, Items: []realtime.Item{bookingItem(b, now())}}
		for _, scope := range scopes.forRoom(b.RoomID) {
			ev.Scope = scope
			notifier.Publish(ev)
		}
	}

	ledgerStore := gate.StoreFuncs[*model.RoomLedger]{
		LoadFunc: repo.Booking.LoadLedger,
		SwapFunc: repo.Booking.CommitLedger,
	}
	bookingStore := gate.StoreFuncs[*model.Booking]{
		LoadFunc: repo.Booking.GetByID,
		SwapFunc: repo.Booking.CompareAndSwap,
	}

	return &bookingService{
		cfg:  cfg,
		repo: repo,
		ledgers: gate.New[*model.RoomLedger](ledgerStore, gate.WithCommitHook[*model.RoomLedger](func(l *model.RoomLedger) {
			if l.Pending != nil {
				publish(l.Pending)
			}
		})),
		bookings: gate.New[*model.Booking](bookingStore, gate.WithCommitHook[*model.Booking](publish)),
		notifier: notifier,
		now:      now,
		logger:   logger,
	}
}

func bookingItem(b *model.Booking, now time.Time) realtime.Item {
	return realtime.Item{Key: b.BookingID, Version: b.Version, Record: dto.BookingRecord(b, now)}
}

// ────────────────────── Create ──────────────────────

func (s *bookingService) Create(ctx context.Context, req *dto.CreateBookingRequest, teacherID string) (*dto.BookingResponse, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: 结束时间必须晚于开始时间", ErrInvalidInterval)
	}
	if !req.EndTime.After(s.now()) {
		return nil, fmt.Errorf("%w: 不能预约已结束的时段", ErrInvalidInterval)
	}

	rooms, err := s.candidateRooms(ctx, req)
	if err != nil {
		return nil, err
	}

	var lastOverlap error
	for _, room := range rooms {
		booking, err := s.claimRoom(ctx, room, req, teacherID)
		if err == nil {
			s.logger.Info("教室预约成功",
				zap.String("booking_id", booking.BookingID),
				zap.String("room_id", room.RoomID),
				zap.String("teacher_id", teacherID),
			)
			resp := toBookingResponse(booking, s.now())
			return &resp, nil
		}
		if !errors.Is(err, ErrBookingOverlap) {
			if !errors.Is(err, ErrRetryExhausted) {
				s.logger.Error("预约写入失败", zap.String("room_id", room.RoomID), zap.Error(err))
			}
			return nil, err
		}
		lastOverlap = err
	}

	if req.RoomID != "" && lastOverlap != nil {
		return nil, lastOverlap
	}
	return nil, fmt.Errorf("%w: 该时段没有容量不少于 %d 人的空闲教室", ErrConstraintUnsatisfiable, req.Attendees)
}

// candidateRooms 指定教室时返回该教室，否则按位置层级与容量排序
func (s *bookingService) candidateRooms(ctx context.Context, req *dto.CreateBookingRequest) ([]*model.Room, error) {
	if req.RoomID != "" {
		room, err := s.repo.Room.GetByID(ctx, req.RoomID)
		if err != nil {
			if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
				s.logger.Error("查询教室失败", zap.String("room_id", req.RoomID), zap.Error(err))
			}
			return nil, err
		}
		if !room.Available {
			return nil, fmt.Errorf("%w: 教室 %s 当前不可用", ErrConstraintUnsatisfiable, room.Name)
		}
		if room.Capacity < req.Attendees {
			return nil, fmt.Errorf("%w: 教室 %s 容量 %d 小于参与人数 %d", ErrConstraintUnsatisfiable, room.Name, room.Capacity, req.Attendees)
		}
		return []*model.Room{room}, nil
	}

	rooms, err := s.repo.Room.List(ctx, repository.RoomFilter{OnlyAvailable: true})
	if err != nil {
		s.logger.Error("列出教室失败", zap.Error(err))
		return nil, err
	}

	origin := allocation.Origin{BuildingID: req.BuildingID, Floor: req.Floor}
	sites := make([]allocation.Site, 0, len(rooms))
	for i := range rooms {
		sites = append(sites, allocation.Site{Room: &rooms[i], Building: rooms[i].Building})
		if rooms[i].BuildingID == req.BuildingID && rooms[i].Building != nil {
			origin.Block = rooms[i].Building.Block
		}
	}

	ranked := allocation.RankRooms(sites, origin, req.Attendees, s.cfg.ProximityWeight)
	out := make([]*model.Room, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Room)
	}
	return out, nil
}

// claimRoom 对教室账本做一次闸门写入；账本版本冲突时以新版本重试，时段重叠直接返回。
// 两种冲突都会向教室作用域推送 allocation.conflict
func (s *bookingService) claimRoom(ctx context.Context, room *model.Room, req *dto.CreateBookingRequest, teacherID string) (*model.Booking, error) {
	booking := &model.Booking{
		BookingID: model.NewID(),
		RoomID:    room.RoomID,
		TeacherID: teacherID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Purpose:   req.Purpose,
		Attendees: req.Attendees,
		Status:    model.BookingActive,
	}

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		ledger, err := s.ledgers.Read(ctx, room.RoomID)
		if err != nil {
			return nil, err
		}

		committed, err := s.ledgers.Write(ctx, room.RoomID, ledger.Version, func(l *model.RoomLedger) (*model.RoomLedger, error) {
			existing, err := s.repo.Booking.ListByRoom(ctx, room.RoomID)
			if err != nil {
				return nil, err
			}
			now := s.now()
			for i := range existing {
				b := &existing[i]
				if b.Holds(now) && b.Overlaps(req.StartTime, req.EndTime) {
					return nil, &pkgerrors.ConflictError{
						Current: b,
						Reason: fmt.Sprintf("教室 %s 在 %s ~ %s 已被预约", room.Name,
							b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339)),
						Cause: ErrBookingOverlap,
					}
				}
			}
			l.Pending = booking
			return l, nil
		})
		if err == nil {
			return committed.Pending, nil
		}
		ce, ok := pkgerrors.AsConflict(err)
		if !ok {
			return nil, err
		}
		publishConflict(s.notifier, room.RoomID, fmt.Sprintf("教师 %s 预约教室 %s 时与已提交的预约冲突", teacherID, room.Name), ce)
		if errors.Is(err, ErrBookingOverlap) {
			return nil, err
		}
	}
	return nil, ErrRetryExhausted
}

// ────────────────────── Get / List ──────────────────────

func (s *bookingService) Get(ctx context.Context, id string) (*dto.BookingResponse, error) {
	b, err := s.bookings.Read(ctx, id)
	if err != nil {
		if err = notFound(err, ErrBookingNotFound); !errors.Is(err, ErrBookingNotFound) {
			s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	resp := toBookingResponse(b, s.now())
	return &resp, nil
}

func (s *bookingService) ListByRoom(ctx context.Context, roomID string) ([]dto.BookingResponse, error) {
	if _, err := s.repo.Room.GetByID(ctx, roomID); err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, err
	}
	list, err := s.repo.Booking.ListByRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("列出教室预约失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *bookingService) ListByTeacher(ctx context.Context, teacherID string) ([]dto.BookingResponse, error) {
	list, err := s.repo.Booking.ListByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("列出教师预约失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	return s.toResponses(list), nil
}

func (s *bookingService) toResponses(list []model.Booking) []dto.BookingResponse {
	now := s.now()
	result := make([]dto.BookingResponse, 0, len(list))
	for i := range list {
		result = append(result, toBookingResponse(&list[i], now))
	}
	return result
}

// ────────────────────── Cancel ──────────────────────

func (s *bookingService) Cancel(ctx context.Context, id string, req *dto.CancelBookingRequest, callerID string, isAdmin bool) (*dto.BookingResponse, error) {
	committed, err := s.bookings.Write(ctx, id, *req.ExpectedVersion, func(b *model.Booking) (*model.Booking, error) {
		if !isAdmin && b.TeacherID != callerID {
			return nil, ErrBookingForbidden
		}
		if !b.Holds(s.now()) {
			return nil, ErrBookingNotCancelable
		}
		b.Status = model.BookingCanceled
		return b, nil
	})
	if err != nil {
		err = notFound(err, ErrBookingNotFound)
		switch {
		case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrBookingForbidden), errors.Is(err, ErrBookingNotCancelable):
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			s.logger.Info("取消预约冲突", zap.String("booking_id", id), zap.Error(err))
		default:
			s.logger.Error("取消预约失败", zap.String("booking_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("预约已取消", zap.String("booking_id", id), zap.String("caller_id", callerID))
	resp := toBookingResponse(committed, s.now())
	return &resp, nil
}

// ────────────────────── ImportCalendar ──────────────────────

// importHorizon 导入时只展开未来一年内的重复事件
const importHorizon = 365 * 24 * time.Hour

func (s *bookingService) ImportCalendar(ctx context.Context, roomID string, r io.Reader, teacherID string) (*dto.ImportBookingsResult, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("room_id", roomID), zap.Error(err))
		}
		return nil, err
	}
	if !room.Available {
		return nil, fmt.Errorf("%w: 教室 %s 当前不可用", ErrConstraintUnsatisfiable, room.Name)
	}

	now := s.now()
	slots, err := ParseBookingICS(r, now, now.Add(importHorizon))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	result := &dto.ImportBookingsResult{
		Created:  make([]dto.BookingResponse, 0, len(slots)),
		Rejected: make([]dto.ImportRejection, 0),
	}
	for _, slot := range slots {
		req := &dto.CreateBookingRequest{
			RoomID:    roomID,
			StartTime: slot.Start,
			EndTime:   slot.End,
			Purpose:   slot.Summary,
		}
		booking, err := s.claimRoom(ctx, room, req, teacherID)
		if err != nil {
			if !errors.Is(err, ErrBookingOverlap) && !errors.Is(err, ErrRetryExhausted) {
				s.logger.Error("导入预约写入失败", zap.String("room_id", roomID), zap.Error(err))
			}
			result.Rejected = append(result.Rejected, dto.ImportRejection{
				Summary:   slot.Summary,
				StartTime: slot.Start.Format(time.RFC3339),
				EndTime:   slot.End.Format(time.RFC3339),
				Reason:    err.Error(),
			})
			continue
		}
		result.Created = append(result.Created, toBookingResponse(booking, now))
	}

	s.logger.Info("ICS 预约导入完成",
		zap.String("room_id", roomID),
		zap.Int("created", len(result.Created)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}
