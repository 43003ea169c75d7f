package service

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// ── ICS 日历 ──────────────────────────────────────────────
//
// 导出：教室预约 → VEVENT，UID 为预约 ID，已取消的预约标记 STATUS:CANCELLED。
// 导入：VEVENT → 预约时段。单次事件直接使用 DTSTART/DTEND；
// FREQ=WEEKLY 的 RRULE 按 INTERVAL / COUNT / UNTIL / EXDATE 展开到 horizon 为止。
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize     = 5 * 1024 * 1024 // 5MB
	icsMaxOccurrences  = 200
	icsDefaultDuration = 2 * time.Hour
	defaultTimezone    = "Asia/Shanghai"
)

// CalendarSlot 从日历中解析出的一个预约时段
type CalendarSlot struct {
	Summary string
	Start   time.Time
	End     time.Time
}

// BuildRoomCalendar 生成教室预约日历
func BuildRoomCalendar(room *model.Room, bookings []model.Booking, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//seatplanner//room bookings//CN")

	location := room.Name
	if room.Building != nil {
		location = room.Building.Name + " " + room.Name
	}

	for i := range bookings {
		b := &bookings[i]
		evt := cal.AddEvent(b.BookingID)
		evt.SetDtStampTime(now)
		evt.SetCreatedTime(b.CreatedAt)
		evt.SetModifiedAt(b.UpdatedAt)
		evt.SetStartAt(b.StartTime)
		evt.SetEndAt(b.EndTime)
		evt.SetLocation(location)

		summary := b.Purpose
		if summary == "" {
			summary = "教室预约"
		}
		evt.SetSummary(summary)
		evt.SetDescription(fmt.Sprintf("预约人: %s；人数: %d；状态: %s", b.TeacherID, b.Attendees, b.EffectiveStatus(now)))

		if b.Status == model.BookingCanceled {
			evt.SetStatus(ics.ObjectStatusCancelled)
		} else {
			evt.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}

// ParseBookingICS 解析 ICS 内容为预约时段，按开始时间排序。
// 早于 from 结束或晚于 horizon 开始的时段被丢弃
func ParseBookingICS(reader io.Reader, from, horizon time.Time) ([]CalendarSlot, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		loc = time.Local
	}

	var slots []CalendarSlot
	for _, evt := range cal.Events() {
		for _, slot := range expandVEvent(evt, horizon, loc) {
			if slot.End.After(from) && slot.Start.Before(horizon) {
				slots = append(slots, slot)
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

// expandVEvent 解析单个 VEVENT；缺少 SUMMARY 或 DTSTART 的事件被忽略
func expandVEvent(evt *ics.VEvent, horizon time.Time, loc *time.Location) []CalendarSlot {
	if prop := evt.GetProperty(ics.ComponentPropertyStatus); prop != nil && strings.EqualFold(prop.Value, string(ics.ObjectStatusCancelled)) {
		return nil
	}
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return nil
	}
	name := strings.TrimSpace(summary.Value)

	start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil
	}
	end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil || !end.After(start) {
		// 无 DTEND（或仅有 DURATION）时按默认时长处理
		end = start.Add(icsDefaultDuration)
	}
	duration := end.Sub(start)

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []CalendarSlot{{Summary: name, Start: start, End: end}}
	}
	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		return []CalendarSlot{{Summary: name, Start: start, End: end}}
	}

	exDates := parseExDates(evt, loc)
	interval := rule.interval
	if interval < 1 {
		interval = 1
	}

	var out []CalendarSlot
	current := start
	for count := 0; count < icsMaxOccurrences; count++ {
		if rule.count > 0 && count >= rule.count {
			break
		}
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if current.After(horizon) {
			break
		}
		if !exDates[current.Format("20060102")] {
			out = append(out, CalendarSlot{Summary: name, Start: current, End: current.Add(duration)})
		}
		current = current.AddDate(0, 0, 7*interval)
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			if t, ok := parseICSValue(v, "", loc); ok {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，支持 UTC、TZID 与浮动时间
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("缺少属性 %s", propName)
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	t, ok := parseICSValue(prop.Value, tzid, loc)
	if !ok {
		return time.Time{}, fmt.Errorf("无法解析日期: %s", prop.Value)
	}
	return t, nil
}

func parseICSValue(val, tzid string, loc *time.Location) (time.Time, bool) {
	val = strings.TrimSpace(val)
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), true
		}
		zone := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				zone = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), true
	}
	return time.Time{}, false
}
