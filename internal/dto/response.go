package dto

import (
	"time"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

const timeLayout = time.RFC3339

// RecordView 受版本控制记录的统一持久化视图
// {id, parent_id, position, status, owner_ref, features, version}
type RecordView struct {
	Kind     string         `json:"kind"`
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id"`
	Position map[string]any `json:"position"`
	Status   string         `json:"status"`
	OwnerRef *string        `json:"owner_ref,omitempty"`
	Features []string       `json:"features"`
	Version  int            `json:"version"`
}

// SeatRecord 座位的持久化视图
func SeatRecord(s *model.Seat) RecordView {
	return RecordView{
		Kind:     "seat",
		ID:       s.SeatID,
		ParentID: s.RoomID,
		Position: map[string]any{"row": s.Row, "col": s.Col, "label": s.Label},
		Status:   string(s.Status),
		OwnerRef: s.StudentID,
		Features: nonNil(s.Features),
		Version:  s.Version,
	}
}

// BookingRecord 预约的持久化视图，status 为读取时的生命周期状态
func BookingRecord(b *model.Booking, now time.Time) RecordView {
	teacher := b.TeacherID
	return RecordView{
		Kind:     "booking",
		ID:       b.BookingID,
		ParentID: b.RoomID,
		Position: map[string]any{
			"start_time": b.StartTime.Format(timeLayout),
			"end_time":   b.EndTime.Format(timeLayout),
		},
		Status:   b.EffectiveStatus(now),
		OwnerRef: &teacher,
		Features: []string{},
		Version:  b.Version,
	}
}

// ToRecord 将闸门返回的当前记录转换为视图，未知类型原样返回
func ToRecord(v interface{}, now time.Time) interface{} {
	switch r := v.(type) {
	case *model.Seat:
		return SeatRecord(r)
	case *model.Booking:
		return BookingRecord(r, now)
	case *model.RoomLedger:
		return map[string]any{"kind": "room_ledger", "room_id": r.RoomID, "version": r.Version}
	default:
		return v
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
