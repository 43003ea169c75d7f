package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
	"github.com/Somye55/seatplanner-sub002/internal/allocation"
	"github.com/Somye55/seatplanner-sub002/internal/dto"
	"github.com/Somye55/seatplanner-sub002/internal/model"
	"github.com/Somye55/seatplanner-sub002/internal/repository"
	pkgerrors "github.com/Somye55/seatplanner-sub002/pkg/errors"
)

// ── 教室模块业务错误 ──

var (
	ErrBuildingNotFound  = errors.New("教学楼不存在")
	ErrBuildingDuplicate = errors.New("教学楼名称已存在")
	ErrInvalidRoomLayout = errors.New("教室布局不合法")
)

// RoomService 教学楼 / 教室业务接口
type RoomService interface {
	CreateBuilding(ctx context.Context, req *dto.CreateBuildingRequest) (*dto.BuildingResponse, error)
	ListBuildings(ctx context.Context) ([]dto.BuildingResponse, error)
	// CreateRoom 创建教室并按网格生成座位，容量等于生成的座位数
	CreateRoom(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	GetRoom(ctx context.Context, id string) (*dto.RoomResponse, error)
	ListRooms(ctx context.Context, req *dto.RoomListRequest) ([]dto.RoomResponse, error)
	// SetAvailability 教室停用后已分配的座位不会自动释放，由重平衡迁出
	SetAvailability(ctx context.Context, id string, available bool) (*dto.RoomResponse, error)
	Recommend(ctx context.Context, req *dto.RecommendRoomsRequest) ([]dto.RoomRecommendation, error)
}

type roomService struct {
	cfg    *config.AllocationConfig
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(cfg *config.AllocationConfig, repo *repository.Repository, logger *zap.Logger) RoomService {
	return &roomService{cfg: cfg, repo: repo, logger: logger}
}

// ────────────────────── 教学楼 ──────────────────────

func (s *roomService) CreateBuilding(ctx context.Context, req *dto.CreateBuildingRequest) (*dto.BuildingResponse, error) {
	b := &model.Building{BuildingID: model.NewID(), Name: req.Name, Block: req.Block}
	if err := s.repo.Building.Create(ctx, b); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicate) {
			return nil, ErrBuildingDuplicate
		}
		s.logger.Error("创建教学楼失败", zap.Error(err))
		return nil, err
	}
	return toBuildingResponse(b), nil
}

func (s *roomService) ListBuildings(ctx context.Context) ([]dto.BuildingResponse, error) {
	list, err := s.repo.Building.List(ctx)
	if err != nil {
		s.logger.Error("列出教学楼失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.BuildingResponse, 0, len(list))
	for i := range list {
		result = append(result, *toBuildingResponse(&list[i]))
	}
	return result, nil
}

// ────────────────────── CreateRoom ──────────────────────

func (s *roomService) CreateRoom(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	building, err := s.repo.Building.GetByID(ctx, req.BuildingID)
	if err != nil {
		if err = notFound(err, ErrBuildingNotFound); !errors.Is(err, ErrBuildingNotFound) {
			s.logger.Error("查询教学楼失败", zap.String("building_id", req.BuildingID), zap.Error(err))
		}
		return nil, err
	}

	room := &model.Room{
		RoomID:     model.NewID(),
		BuildingID: building.BuildingID,
		Name:       req.Name,
		Floor:      req.Floor,
		Rows:       req.Rows,
		Cols:       req.Cols,
		AisleEvery: req.AisleEvery,
		Available:  true,
	}

	seats, err := provisionSeats(room, req)
	if err != nil {
		return nil, err
	}
	room.Capacity = len(seats)

	if err := s.repo.Room.Create(ctx, room); err != nil {
		s.logger.Error("创建教室失败", zap.Error(err))
		return nil, err
	}
	if err := s.repo.Seat.BatchCreate(ctx, seats); err != nil {
		s.logger.Error("生成座位失败", zap.String("room_id", room.RoomID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("教室已创建",
		zap.String("room_id", room.RoomID),
		zap.String("name", room.Name),
		zap.Int("capacity", room.Capacity),
	)
	room.Building = building
	resp := toRoomResponse(room)
	return &resp, nil
}

// provisionSeats 按行优先生成座位，标签形如 A1（行字母 + 列序号）
func provisionSeats(room *model.Room, req *dto.CreateRoomRequest) ([]model.Seat, error) {
	type cell struct{ row, col int }
	inGrid := func(c cell) bool { return c.row < room.Rows && c.col < room.Cols }

	unused := make(map[cell]bool, len(req.Unused))
	for _, u := range req.Unused {
		c := cell{u.Row, u.Col}
		if !inGrid(c) {
			return nil, fmt.Errorf("%w: 空位 (%d,%d) 超出网格", ErrInvalidRoomLayout, u.Row, u.Col)
		}
		unused[c] = true
	}
	features := make(map[cell][]string, len(req.SeatFeatures))
	for _, f := range req.SeatFeatures {
		c := cell{f.Row, f.Col}
		if !inGrid(c) || unused[c] {
			return nil, fmt.Errorf("%w: 座位 (%d,%d) 不存在", ErrInvalidRoomLayout, f.Row, f.Col)
		}
		features[c] = append(features[c], f.Features...)
	}

	seats := make([]model.Seat, 0, room.Rows*room.Cols)
	for r := 0; r < room.Rows; r++ {
		for c := 0; c < room.Cols; c++ {
			if unused[cell{r, c}] {
				continue
			}
			seats = append(seats, model.Seat{
				SeatID:   model.NewID(),
				RoomID:   room.RoomID,
				Label:    seatLabel(r, c),
				Row:      r,
				Col:      c,
				Status:   model.SeatAvailable,
				Features: append(model.Tags{}, features[cell{r, c}]...),
			})
		}
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: 教室至少需要一个座位", ErrInvalidRoomLayout)
	}
	return seats, nil
}

func seatLabel(row, col int) string {
	prefix := ""
	for n := row; ; n = n/26 - 1 {
		prefix = string(rune('A'+n%26)) + prefix
		if n < 26 {
			break
		}
	}
	return fmt.Sprintf("%s%d", prefix, col+1)
}

// ────────────────────── 查询 ──────────────────────

func (s *roomService) GetRoom(ctx context.Context, id string) (*dto.RoomResponse, error) {
	room, err := s.repo.Room.GetByID(ctx, id)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	resp := toRoomResponse(room)
	return &resp, nil
}

func (s *roomService) ListRooms(ctx context.Context, req *dto.RoomListRequest) ([]dto.RoomResponse, error) {
	rooms, err := s.repo.Room.List(ctx, repository.RoomFilter{
		BuildingID:    req.BuildingID,
		OnlyAvailable: req.OnlyAvailable,
	})
	if err != nil {
		s.logger.Error("列出教室失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, toRoomResponse(&rooms[i]))
	}
	return result, nil
}

// ────────────────────── SetAvailability ──────────────────────

func (s *roomService) SetAvailability(ctx context.Context, id string, available bool) (*dto.RoomResponse, error) {
	room, err := s.repo.Room.GetByID(ctx, id)
	if err != nil {
		if err = notFound(err, ErrRoomNotFound); !errors.Is(err, ErrRoomNotFound) {
			s.logger.Error("查询教室失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}
	if err := s.repo.Room.SetAvailable(ctx, id, available); err != nil {
		s.logger.Error("更新教室可用状态失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("教室可用状态已更新", zap.String("room_id", id), zap.Bool("available", available))
	room.Available = available
	resp := toRoomResponse(room)
	return &resp, nil
}

// ────────────────────── Recommend ──────────────────────

func (s *roomService) Recommend(ctx context.Context, req *dto.RecommendRoomsRequest) ([]dto.RoomRecommendation, error) {
	rooms, err := s.repo.Room.List(ctx, repository.RoomFilter{OnlyAvailable: true})
	if err != nil {
		s.logger.Error("列出教室失败", zap.Error(err))
		return nil, err
	}

	origin := allocation.Origin{BuildingID: req.BuildingID, Floor: req.Floor}
	if req.BuildingID != "" {
		b, err := s.repo.Building.GetByID(ctx, req.BuildingID)
		if err != nil {
			if err = notFound(err, ErrBuildingNotFound); !errors.Is(err, ErrBuildingNotFound) {
				s.logger.Error("查询教学楼失败", zap.String("building_id", req.BuildingID), zap.Error(err))
			}
			return nil, err
		}
		origin.Block = b.Block
	}

	sites := make([]allocation.Site, 0, len(rooms))
	for i := range rooms {
		sites = append(sites, allocation.Site{Room: &rooms[i], Building: rooms[i].Building})
	}
	ranked := allocation.RankRooms(sites, origin, req.Capacity, s.cfg.ProximityWeight)

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := make([]dto.RoomRecommendation, 0, len(ranked))
	for _, r := range ranked {
		result = append(result, dto.RoomRecommendation{
			Room:      toRoomResponse(r.Room),
			Proximity: r.Proximity,
			Score:     r.Score,
		})
	}
	return result, nil
}
