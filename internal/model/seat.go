package model

// SeatStatus 座位状态
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatAllocated SeatStatus = "allocated"
	SeatBroken    SeatStatus = "broken"
)

// Valid 是否为合法状态
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatAllocated, SeatBroken:
		return true
	}
	return false
}

// Seat 座位：对应 seats
// 不变式：StudentID 非空 ⇔ Status == allocated
type Seat struct {
	SeatID    string     `gorm:"type:varchar(36);primaryKey"                                      json:"id"`
	RoomID    string     `gorm:"type:varchar(36);not null;uniqueIndex:uk_seats_room_pos,priority:1" json:"room_id"`
	Label     string     `gorm:"type:varchar(20);not null"                                        json:"label"`
	Row       int        `gorm:"column:row_idx;not null;uniqueIndex:uk_seats_room_pos,priority:2"  json:"row"`
	Col       int        `gorm:"column:col_idx;not null;uniqueIndex:uk_seats_room_pos,priority:3"  json:"col"`
	Status    SeatStatus `gorm:"type:varchar(20);not null;default:'available';index"              json:"status"`
	StudentID *string    `gorm:"type:varchar(36);index"                                           json:"student_id,omitempty"`
	Features  Tags       `json:"features"`
	VersionedModel
}

// TableName 指定表名
func (Seat) TableName() string { return "seats" }

// RecordKey 并发闸门键
func (s *Seat) RecordKey() string { return s.SeatID }

// RecordVersion 当前版本
func (s *Seat) RecordVersion() int { return s.Version }

// SetVersion 由闸门在提交时写入新版本
func (s *Seat) SetVersion(v int) { s.Version = v }

// Clone 深拷贝，变更函数只作用于副本
func (s *Seat) Clone() *Seat {
	cp := *s
	if s.StudentID != nil {
		id := *s.StudentID
		cp.StudentID = &id
	}
	cp.Features = cloneTags(s.Features)
	return &cp
}

// HeldBy 座位是否由指定学生占用
func (s *Seat) HeldBy(studentID string) bool {
	return s.Status == SeatAllocated && s.StudentID != nil && *s.StudentID == studentID
}
