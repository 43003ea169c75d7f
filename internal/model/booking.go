package model

import "time"

// 预约存储状态
const (
	BookingActive   = "active"
	BookingCanceled = "canceled"
)

// 预约生命周期状态（读取时按当前时间计算）
const (
	BookingStatusCreated  = "created" // 尚未开始
	BookingStatusActive   = "active"
	BookingStatusExpired  = "expired"
	BookingStatusCanceled = "canceled"
)

// Booking 教室预约：对应 bookings
// 时间区间为 [StartTime, EndTime)
type Booking struct {
	BookingID string    `gorm:"type:varchar(36);primaryKey"                  json:"id"`
	RoomID    string    `gorm:"type:varchar(36);not null;index:idx_bookings_room_time,priority:1" json:"room_id"`
	TeacherID string    `gorm:"type:varchar(36);not null;index"              json:"teacher_id"`
	StartTime time.Time `gorm:"not null;index:idx_bookings_room_time,priority:2" json:"start_time"`
	EndTime   time.Time `gorm:"not null"                                     json:"end_time"`
	Purpose   string    `gorm:"type:varchar(200)"                            json:"purpose,omitempty"`
	Attendees int       `gorm:"not null;default:0"                           json:"attendees"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'"   json:"status"`
	VersionedModel
}

// TableName 指定表名
func (Booking) TableName() string { return "bookings" }

func (b *Booking) RecordKey() string  { return b.BookingID }
func (b *Booking) RecordVersion() int { return b.Version }
func (b *Booking) SetVersion(v int)   { b.Version = v }

// Clone 拷贝
func (b *Booking) Clone() *Booking {
	cp := *b
	return &cp
}

// Overlaps 半开区间是否与 [start, end) 相交
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// EffectiveStatus 依据当前时间推导生命周期状态，不依赖后台任务
func (b *Booking) EffectiveStatus(now time.Time) string {
	if b.Status == BookingCanceled {
		return BookingStatusCanceled
	}
	switch {
	case now.Before(b.StartTime):
		return BookingStatusCreated
	case now.Before(b.EndTime):
		return BookingStatusActive
	default:
		return BookingStatusExpired
	}
}

// Holds 预约是否仍占用时段（未取消且未结束）
func (b *Booking) Holds(now time.Time) bool {
	return b.Status != BookingCanceled && now.Before(b.EndTime)
}

// RoomLedger 教室预约账本：对应 room_ledgers
// 每次新建预约都是对账本的一次闸门写入，以此防止同一教室时段被重复预约
type RoomLedger struct {
	RoomID  string `gorm:"type:varchar(36);primaryKey" json:"room_id"`
	Version int    `gorm:"not null;default:0"          json:"version"`

	// Pending 随本次版本提交一并写入的预约
	Pending *Booking `gorm:"-" json:"-"`
}

// TableName 指定表名
func (RoomLedger) TableName() string { return "room_ledgers" }

func (l *RoomLedger) RecordKey() string  { return l.RoomID }
func (l *RoomLedger) RecordVersion() int { return l.Version }
func (l *RoomLedger) SetVersion(v int)   { l.Version = v }

// Clone 深拷贝
func (l *RoomLedger) Clone() *RoomLedger {
	cp := *l
	if l.Pending != nil {
		cp.Pending = l.Pending.Clone()
	}
	return &cp
}
