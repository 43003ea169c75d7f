package allocation

import (
	"sort"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

// 位置层级距离：同楼层 < 同楼 < 同区 < 跨区
const (
	ProximitySameFloor    = 0
	ProximitySameBuilding = 1
	ProximitySameBlock    = 2
	ProximityCrossBlock   = 3
)

// Origin 推荐的参照位置；BuildingID 为空时所有教室视为跨区
type Origin struct {
	BuildingID string
	Block      string
	Floor      *int
}

// Site 候选教室及其所属楼
type Site struct {
	Room     *model.Room
	Building *model.Building
}

// Ranked 推荐结果
type Ranked struct {
	Site
	Proximity int
	Score     float64 // 越小越好
}

// Proximity 计算教室相对参照位置的层级距离
func Proximity(origin Origin, site Site) int {
	if origin.BuildingID == "" {
		return ProximityCrossBlock
	}
	if site.Room.BuildingID == origin.BuildingID {
		if origin.Floor != nil && site.Room.Floor == *origin.Floor {
			return ProximitySameFloor
		}
		return ProximitySameBuilding
	}
	if origin.Block != "" && site.Building != nil && site.Building.Block == origin.Block {
		return ProximitySameBlock
	}
	return ProximityCrossBlock
}

// RankRooms 按位置层级距离与容量匹配度排序
//
// score = proximity × weight + waste，其中 waste = (capacity - need) / capacity ∈ [0, 1)。
// weight ≥ 1 时 score 对 proximity 单调：近的教室总是排在远的前面；
// 同一层级内容量越贴合越靠前；完全相同时按教室 ID 排序，保证确定性。
// 不可用或容量不足的教室被排除。
func RankRooms(sites []Site, origin Origin, need int, weight float64) []Ranked {
	if weight < 1 {
		weight = 1
	}
	out := make([]Ranked, 0, len(sites))
	for _, s := range sites {
		if !s.Room.Available || s.Room.Capacity <= 0 || s.Room.Capacity < need {
			continue
		}
		p := Proximity(origin, s)
		waste := float64(s.Room.Capacity-need) / float64(s.Room.Capacity)
		if need <= 0 {
			waste = 0
		}
		out = append(out, Ranked{Site: s, Proximity: p, Score: float64(p)*weight + waste})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Room.RoomID < out[j].Room.RoomID
	})
	return out
}
