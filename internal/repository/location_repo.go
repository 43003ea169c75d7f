package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// BuildingRepository 教学楼数据访问接口
type BuildingRepository interface {
	Create(ctx context.Context, b *model.Building) error
	GetByID(ctx context.Context, id string) (*model.Building, error)
	List(ctx context.Context) ([]model.Building, error)
}

type buildingRepo struct {
	db *gorm.DB
}

// NewBuildingRepo 创建 BuildingRepository 实例
func NewBuildingRepo(db *gorm.DB) BuildingRepository {
	return &buildingRepo{db: db}
}

func (r *buildingRepo) Create(ctx context.Context, b *model.Building) error {
	return translateError(r.db.WithContext(ctx).Create(b).Error)
}

func (r *buildingRepo) GetByID(ctx context.Context, id string) (*model.Building, error) {
	var b model.Building
	if err := r.db.WithContext(ctx).Where("building_id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *buildingRepo) List(ctx context.Context) ([]model.Building, error) {
	var list []model.Building
	err := r.db.WithContext(ctx).Order("block ASC, name ASC").Find(&list).Error
	return list, err
}

// RoomFilter 教室查询条件
type RoomFilter struct {
	BuildingID    string
	OnlyAvailable bool
	IDs           []string
}

// RoomRepository 教室数据访问接口
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, filter RoomFilter) ([]model.Room, error)
	SetAvailable(ctx context.Context, id string, available bool) error
}

type roomRepo struct {
	db *gorm.DB
}

// NewRoomRepo 创建 RoomRepository 实例
func NewRoomRepo(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	return translateError(r.db.WithContext(ctx).Omit("Building").Create(room).Error)
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Preload("Building").
		Where("room_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) List(ctx context.Context, filter RoomFilter) ([]model.Room, error) {
	var rooms []model.Room
	db := r.db.WithContext(ctx).Preload("Building")

	if filter.BuildingID != "" {
		db = db.Where("building_id = ?", filter.BuildingID)
	}
	if filter.OnlyAvailable {
		db = db.Where("available = ?", true)
	}
	if len(filter.IDs) > 0 {
		db = db.Where("room_id IN ?", filter.IDs)
	}

	err := db.Order("room_id ASC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepo) SetAvailable(ctx context.Context, id string, available bool) error {
	// MySQL 对未变化的行返回 RowsAffected=0，存在性由调用方先行校验
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("room_id = ?", id).
		Update("available", available).Error
}
