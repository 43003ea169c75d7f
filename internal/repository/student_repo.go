package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	Upsert(ctx context.Context, st *model.Student) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	List(ctx context.Context) ([]model.Student, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) Upsert(ctx context.Context, st *model.Student) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "branch", "accessibility_needs", "tags", "updated_at"}),
		}).
		Create(st).Error
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var st model.Student
	if err := r.db.WithContext(ctx).Where("student_id = ?", id).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *studentRepo) List(ctx context.Context) ([]model.Student, error) {
	var list []model.Student
	err := r.db.WithContext(ctx).Order("student_id ASC").Find(&list).Error
	return list, err
}

func (r *studentRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Student, error) {
	var list []model.Student
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_id IN ?", ids).
		Order("student_id ASC").
		Find(&list).Error
	return list, err
}
