package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Somye55/seatplanner-sub002/internal/model"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// BookingRepository 预约与教室账本数据访问接口
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]model.Booking, error)
	CompareAndSwap(ctx context.Context, next *model.Booking, expected int) error

	// LoadLedger 读取教室账本，不存在时以版本 0 创建
	LoadLedger(ctx context.Context, roomID string) (*model.RoomLedger, error)
	// CommitLedger 在同一事务中推进账本版本并写入 Pending 预约
	CommitLedger(ctx context.Context, next *model.RoomLedger, expected int) error
}

type bookingRepo struct {
	db *gorm.DB
}

// NewBookingRepo 创建 BookingRepository 实例
func NewBookingRepo(db *gorm.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).Where("booking_id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error) {
	var list []model.Booking
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("start_time ASC").
		Find(&list).Error
	return list, err
}

func (r *bookingRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.Booking, error) {
	var list []model.Booking
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("start_time ASC").
		Find(&list).Error
	return list, err
}

func (r *bookingRepo) CompareAndSwap(ctx context.Context, next *model.Booking, expected int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("booking_id = ? AND version = ?", next.BookingID, expected).
		Updates(map[string]interface{}{
			"status":  next.Status,
			"purpose": next.Purpose,
			"version": expected + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, next.BookingID); err != nil {
			return err
		}
		return pkgerrors.ErrOptimisticLock
	}
	next.Version = expected + 1
	return nil
}

func (r *bookingRepo) LoadLedger(ctx context.Context, roomID string) (*model.RoomLedger, error) {
	var ledger model.RoomLedger
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&ledger).Error
	if err == nil {
		return &ledger, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ledger = model.RoomLedger{RoomID: roomID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ledger).Error; err != nil {
		return nil, err
	}
	// 并发创建时以库中记录为准
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&ledger).Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *bookingRepo) CommitLedger(ctx context.Context, next *model.RoomLedger, expected int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.RoomLedger{}).
			Where("room_id = ? AND version = ?", next.RoomID, expected).
			Update("version", expected+1)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		if next.Pending != nil {
			if err := tx.Create(next.Pending).Error; err != nil {
				return translateError(err)
			}
		}
		next.Version = expected + 1
		return nil
	})
}
