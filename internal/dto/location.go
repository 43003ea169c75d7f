package dto

// ── 教学楼 ──

// CreateBuildingRequest 创建教学楼
type CreateBuildingRequest struct {
	Name  string `json:"name"  binding:"required,max=100"`
	Block string `json:"block" binding:"max=50"`
}

// BuildingResponse 教学楼信息
type BuildingResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Block string `json:"block"`
}

// ── 教室 ──

// GridCell 网格坐标
type GridCell struct {
	Row int `json:"row" binding:"min=0"`
	Col int `json:"col" binding:"min=0"`
}

// SeatFeatureSpec 指定座位的静态特征（如 wheelchair-access、near-exit）
type SeatFeatureSpec struct {
	Row      int      `json:"row"      binding:"min=0"`
	Col      int      `json:"col"      binding:"min=0"`
	Features []string `json:"features" binding:"required"`
}

// CreateRoomRequest 创建教室并按网格生成座位
// Unused 中的格子不生成座位，因此容量可能小于 rows×cols
type CreateRoomRequest struct {
	BuildingID   string            `json:"building_id"   binding:"required"`
	Name         string            `json:"name"          binding:"required,max=100"`
	Floor        int               `json:"floor"`
	Rows         int               `json:"rows"          binding:"required,min=1,max=100"`
	Cols         int               `json:"cols"          binding:"required,min=1,max=100"`
	AisleEvery   int               `json:"aisle_every"   binding:"min=0"`
	Unused       []GridCell        `json:"unused"`
	SeatFeatures []SeatFeatureSpec `json:"seat_features"`
}

// RoomListRequest 教室列表查询
type RoomListRequest struct {
	BuildingID    string `form:"building_id"`
	OnlyAvailable bool   `form:"only_available"`
}

// SetAvailabilityRequest 设置教室是否可用
type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// RecommendRoomsRequest 教室推荐查询
type RecommendRoomsRequest struct {
	BuildingID string `form:"building_id"`
	Floor      *int   `form:"floor"`
	Capacity   int    `form:"capacity" binding:"omitempty,min=1"`
	Limit      int    `form:"limit"    binding:"omitempty,min=1,max=50"`
}

// RoomResponse 教室信息
type RoomResponse struct {
	ID         string            `json:"id"`
	BuildingID string            `json:"building_id"`
	Building   *BuildingResponse `json:"building,omitempty"`
	Name       string            `json:"name"`
	Floor      int               `json:"floor"`
	Rows       int               `json:"rows"`
	Cols       int               `json:"cols"`
	Capacity   int               `json:"capacity"`
	AisleEvery int               `json:"aisle_every"`
	Available  bool              `json:"available"`
}

// RoomRecommendation 推荐结果
type RoomRecommendation struct {
	Room      RoomResponse `json:"room"`
	Proximity int          `json:"proximity"`
	Score     float64      `json:"score"`
}

// ── 学生 ──

// UpsertStudentRequest 创建或更新学生档案
type UpsertStudentRequest struct {
	Name               string   `json:"name"   binding:"required,max=100"`
	Branch             string   `json:"branch" binding:"required,max=100"`
	AccessibilityNeeds []string `json:"accessibility_needs"`
	Tags               []string `json:"tags"`
}

// StudentResponse 学生信息及其当前座位
type StudentResponse struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Branch             string         `json:"branch"`
	AccessibilityNeeds []string       `json:"accessibility_needs"`
	Tags               []string       `json:"tags"`
	Seats              []SeatResponse `json:"seats"`
}
