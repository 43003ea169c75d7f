package dto

// ── 座位模块请求 ──

// WriteSeatRequest 带期望版本的座位修改（PATCH /seats/:id）
// 未提供的字段保持不变
type WriteSeatRequest struct {
	ExpectedVersion *int      `json:"expected_version" binding:"required,min=0"`
	Status          *string   `json:"status"           binding:"omitempty,oneof=available allocated broken"`
	StudentID       *string   `json:"student_id"`
	Features        *[]string `json:"features"`
	Label           *string   `json:"label"            binding:"omitempty,min=1,max=20"`
}

// ClaimSeatRequest 为学生在教室中申领最佳座位
// Hard/Soft 为空时使用学生档案中的无障碍需求与标签
type ClaimSeatRequest struct {
	StudentID string   `json:"student_id" binding:"required"`
	Hard      []string `json:"hard"`
	Soft      []string `json:"soft"`
}

// ── 座位模块响应 ──

// SeatResponse 座位信息
type SeatResponse struct {
	ID              string   `json:"id"`
	RoomID          string   `json:"room_id"`
	Label           string   `json:"label"`
	Row             int      `json:"row"`
	Col             int      `json:"col"`
	Status          string   `json:"status"`
	StudentID       *string  `json:"student_id,omitempty"`
	Features        []string `json:"features"`
	DerivedFeatures []string `json:"derived_features,omitempty"`
	Version         int      `json:"version"`
	UpdatedAt       string   `json:"updated_at"`
}
