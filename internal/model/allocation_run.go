package model

import (
	"time"

	"gorm.io/datatypes"
)

// 批量分配类型
const (
	RunAllocate  = "allocate"
	RunRebalance = "rebalance"
)

// 单个学生的分配结果
const (
	OutcomeAllocated   = "allocated"
	OutcomeUnallocated = "unallocated"
	OutcomeMoved       = "moved"
	OutcomeKept        = "kept"
)

// AllocationOutcome 单个学生在一次批量运行中的结果
type AllocationOutcome struct {
	StudentID  string `json:"student_id"`
	Outcome    string `json:"outcome"`
	SeatID     string `json:"seat_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	FromSeatID string `json:"from_seat_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AllocationRun 批量分配/重平衡运行记录：对应 allocation_runs
type AllocationRun struct {
	RunID       string                                  `gorm:"type:varchar(36);primaryKey"  json:"run_id"`
	Kind        string                                  `gorm:"type:varchar(20);not null"    json:"kind"`
	Allocated   int                                     `gorm:"not null;default:0"           json:"allocated"`
	Moved       int                                     `gorm:"not null;default:0"           json:"moved"`
	Unallocated int                                     `gorm:"not null;default:0"           json:"unallocated"`
	Outcomes    datatypes.JSONSlice[AllocationOutcome] `json:"outcomes"`
	StartedAt   time.Time                               `gorm:"not null"                     json:"started_at"`
	FinishedAt  time.Time                               `gorm:"not null;index"               json:"finished_at"`
}

// TableName 指定表名
func (AllocationRun) TableName() string { return "allocation_runs" }
