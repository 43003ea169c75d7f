package dto

// RunAllocationRequest 批量分配 / 重平衡范围
// 均为空时覆盖全部学生与全部教室
type RunAllocationRequest struct {
	StudentIDs []string `json:"student_ids"`
	RoomIDs    []string `json:"room_ids"`
	BuildingID string   `json:"building_id"`
}

// AllocationOutcome 单个学生的结果
type AllocationOutcome struct {
	StudentID  string `json:"student_id"`
	Outcome    string `json:"outcome"`
	SeatID     string `json:"seat_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	FromSeatID string `json:"from_seat_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AllocationSummary 批量运行结果
type AllocationSummary struct {
	RunID       string              `json:"run_id"`
	Kind        string              `json:"kind"`
	Allocated   int                 `json:"allocated"`
	Moved       int                 `json:"moved"`
	Unallocated int                 `json:"unallocated"`
	Outcomes    []AllocationOutcome `json:"outcomes,omitempty"`
	StartedAt   string              `json:"started_at"`
	FinishedAt  string              `json:"finished_at"`
}

// AllocationRunListRequest 运行记录查询
type AllocationRunListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
