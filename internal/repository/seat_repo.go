package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Somye55/seatplanner-sub002/internal/model"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// SeatRepository 座位数据访问接口
type SeatRepository interface {
	GetByID(ctx context.Context, id string) (*model.Seat, error)
	ListByRoom(ctx context.Context, roomID string) ([]model.Seat, error)
	ListByRooms(ctx context.Context, roomIDs []string) ([]model.Seat, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Seat, error)
	BatchCreate(ctx context.Context, seats []model.Seat) error
	// CompareAndSwap 仅当存储版本等于 expected 时写入，成功后版本为 expected+1
	CompareAndSwap(ctx context.Context, next *model.Seat, expected int) error
}

type seatRepo struct {
	db *gorm.DB
}

// NewSeatRepo 创建 SeatRepository 实例
func NewSeatRepo(db *gorm.DB) SeatRepository {
	return &seatRepo{db: db}
}

func (r *seatRepo) GetByID(ctx context.Context, id string) (*model.Seat, error) {
	var seat model.Seat
	err := r.db.WithContext(ctx).
		Where("seat_id = ?", id).
		First(&seat).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *seatRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Seat, error) {
	var seats []model.Seat
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("row_idx ASC, col_idx ASC").
		Find(&seats).Error
	return seats, err
}

func (r *seatRepo) ListByRooms(ctx context.Context, roomIDs []string) ([]model.Seat, error) {
	var seats []model.Seat
	if len(roomIDs) == 0 {
		return seats, nil
	}
	err := r.db.WithContext(ctx).
		Where("room_id IN ?", roomIDs).
		Order("room_id ASC, row_idx ASC, col_idx ASC").
		Find(&seats).Error
	return seats, err
}

func (r *seatRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Seat, error) {
	var seats []model.Seat
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, model.SeatAllocated).
		Order("room_id ASC").
		Find(&seats).Error
	return seats, err
}

func (r *seatRepo) BatchCreate(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(seats, 200).Error)
}

func (r *seatRepo) CompareAndSwap(ctx context.Context, next *model.Seat, expected int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Seat{}).
		Where("seat_id = ? AND version = ?", next.SeatID, expected).
		Updates(map[string]interface{}{
			"label":      next.Label,
			"status":     next.Status,
			"student_id": next.StudentID,
			"features":   next.Features,
			"version":    expected + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Seat{}).Where("seat_id = ?", next.SeatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return pkgerrors.ErrOptimisticLock
	}
	next.Version = expected + 1
	return nil
}
