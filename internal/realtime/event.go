// Package realtime 提交后的变更推送：按作用域（教室 / 教学楼 / 全局）广播，
// 同一记录按版本递增送达，新订阅者通过 resync 获取完整状态，不做事件回放。
package realtime

import (
	"fmt"
	"strings"
)

// 事件类型
const (
	EventSeatChanged        = "seat.changed"
	EventSeatsBulkChanged   = "seats.bulk_changed"
	EventAllocationConflict = "allocation.conflict"
	EventBookingChanged     = "booking.changed"
	EventResync             = "resync"
)

// ScopeGlobal 全局作用域
const ScopeGlobal = "global"

// RoomScope 教室作用域
func RoomScope(roomID string) string { return "room:" + roomID }

// BuildingScope 教学楼作用域
func BuildingScope(buildingID string) string { return "building:" + buildingID }

// ParseScope 解析作用域字符串，返回类别与 ID（global 的 ID 为空）
func ParseScope(scope string) (kind, id string, err error) {
	if scope == ScopeGlobal {
		return ScopeGlobal, "", nil
	}
	kind, id, ok := strings.Cut(scope, ":")
	if !ok || id == "" || (kind != "room" && kind != "building") {
		return "", "", fmt.Errorf("无效的订阅作用域 %q", scope)
	}
	return kind, id, nil
}

// Item 带版本的记录。同一 Key 的 Item 对每个订阅者严格按版本递增送达
type Item struct {
	Key     string      `json:"key"`
	Version int         `json:"version"`
	Record  interface{} `json:"record"`
}

// Event 推送消息
type Event struct {
	Type    string      `json:"type"`
	Scope   string      `json:"scope"`
	Items   []Item      `json:"items,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ConflictData allocation.conflict 的附加数据
type ConflictData struct {
	ConflictingRecord interface{} `json:"conflicting_record"`
}

// Notifier 事件发布接口
type Notifier interface {
	Publish(ev Event)
}

// NopNotifier 丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}
