package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
)

// StudentService 学生档案业务接口
type StudentService interface {
	Upsert(ctx context.Context, id string, req *dto.UpsertStudentRequest) (*dto.StudentResponse, error)
	Get(ctx context.Context, id string) (*dto.StudentResponse, error)
	List(ctx context.Context) ([]dto.StudentResponse, error)
}

type studentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

func (s *studentService) Upsert(ctx context.Context, id string, req *dto.UpsertStudentRequest) (*dto.StudentResponse, error) {
	st := &model.Student{
		StudentID:          id,
		Name:               req.Name,
		Branch:             req.Branch,
		AccessibilityNeeds: append(model.Tags{}, req.AccessibilityNeeds...),
		Tags:               append(model.Tags{}, req.Tags...),
	}
	if err := s.repo.Student.Upsert(ctx, st); err != nil {
		s.logger.Error("保存学生失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.withSeats(ctx, st)
}

func (s *studentService) Get(ctx context.Context, id string) (*dto.StudentResponse, error) {
	st, err := s.repo.Student.GetByID(ctx, id)
	if err != nil {
		if err = notFound(err, ErrStudentNotFound); !errors.Is(err, ErrStudentNotFound) {
			s.logger.Error("查询学生失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	return s.withSeats(ctx, st)
}

func (s *studentService) List(ctx context.Context) ([]dto.StudentResponse, error) {
	list, err := s.repo.Student.List(ctx)
	if err != nil {
		s.logger.Error("列出学生失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.StudentResponse, 0, len(list))
	for i := range list {
		result = append(result, toStudentResponse(&list[i], nil))
	}
	return result, nil
}

// withSeats 座位归属以座位记录为准
func (s *studentService) withSeats(ctx context.Context, st *model.Student) (*dto.StudentResponse, error) {
	seats, err := s.repo.Seat.ListByStudent(ctx, st.StudentID)
	if err != nil {
		s.logger.Error("查询学生座位失败", zap.String("id", st.StudentID), zap.Error(err))
		return nil, err
	}
	resp := toStudentResponse(st, seats)
	return &resp, nil
}

func toStudentResponse(st *model.Student, seats []model.Seat) dto.StudentResponse {
	out := dto.StudentResponse{
		ID:                 st.StudentID,
		Name:               st.Name,
		Branch:             st.Branch,
		AccessibilityNeeds: append([]string{}, st.AccessibilityNeeds...),
		Tags:               append([]string{}, st.Tags...),
		Seats:              make([]dto.SeatResponse, 0, len(seats)),
	}
	for i := range seats {
		out.Seats = append(out.Seats, toSeatResponse(&seats[i], nil))
	}
	return out
}
