package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// AllocationRunRepository 批量分配运行记录数据访问接口
type AllocationRunRepository interface {
	Create(ctx context.Context, run *model.AllocationRun) error
	GetByID(ctx context.Context, id string) (*model.AllocationRun, error)
	List(ctx context.Context, limit int) ([]model.AllocationRun, error)
}

type allocationRunRepo struct {
	db *gorm.DB
}

// NewAllocationRunRepo 创建 AllocationRunRepository 实例
func NewAllocationRunRepo(db *gorm.DB) AllocationRunRepository {
	return &allocationRunRepo{db: db}
}

func (r *allocationRunRepo) Create(ctx context.Context, run *model.AllocationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *allocationRunRepo) GetByID(ctx context.Context, id string) (*model.AllocationRun, error) {
	var run model.AllocationRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *allocationRunRepo) List(ctx context.Context, limit int) ([]model.AllocationRun, error) {
	var runs []model.AllocationRun
	db := r.db.WithContext(ctx).Omit("outcomes").Order("finished_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&runs).Error
	return runs, err
}
