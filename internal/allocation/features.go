// Package allocation 座位匹配与教室推荐策略（纯函数，不访问存储）。
package allocation

import (
	"sort"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// 几何派生特征。每次匹配时根据 (row, col) 与教室尺寸重新计算，不落库
const (
	FeatureFrontRow = "front-row"
	FeatureBackRow  = "back-row"
	FeatureAisle    = "aisle"
	FeatureMiddle   = "middle"
)

// Layout 教室布局
type Layout struct {
	Cols       int
	AisleEvery int
	MinRow     int
	MaxRow     int
}

// NewLayout 由教室与其全部座位构造布局
// 前排为座位中实际存在的最小行号，而不是固定的 0
func NewLayout(room *model.Room, seats []model.Seat) Layout {
	l := Layout{Cols: room.Cols, AisleEvery: room.AisleEvery, MinRow: 0, MaxRow: room.Rows - 1}
	if len(seats) > 0 {
		l.MinRow, l.MaxRow = seats[0].Row, seats[0].Row
		for _, s := range seats[1:] {
			if s.Row < l.MinRow {
				l.MinRow = s.Row
			}
			if s.Row > l.MaxRow {
				l.MaxRow = s.Row
			}
		}
	}
	return l
}

// DerivedFeatures 计算 (row, col) 的几何特征
func (l Layout) DerivedFeatures(row, col int) []string {
	var out []string
	if row == l.MinRow {
		out = append(out, FeatureFrontRow)
	}
	if row == l.MaxRow && l.MaxRow != l.MinRow {
		out = append(out, FeatureBackRow)
	}
	if l.isAisle(col) {
		out = append(out, FeatureAisle)
	}
	if l.isMiddle(col) {
		out = append(out, FeatureMiddle)
	}
	return out
}

// 列组两端的列即为过道位
func (l Layout) isAisle(col int) bool {
	if l.Cols <= 0 {
		return false
	}
	group := l.AisleEvery
	if group <= 0 || group > l.Cols {
		group = l.Cols
	}
	pos := col % group
	return pos == 0 || pos == group-1 || col == l.Cols-1
}

// 行中间三分之一
func (l Layout) isMiddle(col int) bool {
	if l.Cols <= 0 {
		return false
	}
	lo := l.Cols / 3
	hi := l.Cols - lo
	return col >= lo && col < hi
}

// Candidate 候选座位（存储特征 ∪ 几何特征）
type Candidate struct {
	Seat     *model.Seat
	Features map[string]bool
}

// Has 是否具备某特征
func (c Candidate) Has(tag string) bool { return c.Features[tag] }

// BuildCandidates 从座位列表中筛出可分配座位并计算特征
// 只有 available 座位会成为候选，broken 座位永不入选
func BuildCandidates(room *model.Room, seats []model.Seat) []Candidate {
	layout := NewLayout(room, seats)
	out := make([]Candidate, 0, len(seats))
	for i := range seats {
		s := &seats[i]
		if s.Status != model.SeatAvailable {
			continue
		}
		feats := make(map[string]bool, len(s.Features)+4)
		for _, f := range s.Features {
			feats[f] = true
		}
		for _, f := range layout.DerivedFeatures(s.Row, s.Col) {
			feats[f] = true
		}
		out = append(out, Candidate{Seat: s, Features: feats})
	}
	return out
}

// FeatureList 排序后的特征列表，用于响应展示
func (c Candidate) FeatureList() []string {
	out := make([]string, 0, len(c.Features))
	for f := range c.Features {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
