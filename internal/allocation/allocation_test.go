package allocation

import (
	"testing"

	"github.com/Somye55/seatplanner-sub002/internal/model"
)

func seat(id string, row, col int, status model.SeatStatus, feats ...string) model.Seat {
	return model.Seat{SeatID: id, RoomID: "r1", Row: row, Col: col, Status: status, Features: feats}
}

// ── 几何特征 ──

func TestLayout_DerivedFeatures(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 3, Cols: 6, AisleEvery: 3}
	seats := []model.Seat{seat("a", 1, 0, model.SeatAvailable), seat("b", 2, 5, model.SeatAvailable)}
	l := NewLayout(room, seats)

	if l.MinRow != 1 {
		t.Fatalf("前排应为实际存在的最小行 1，实际=%d", l.MinRow)
	}

	cases := []struct {
		row, col int
		want     map[string]bool
	}{
		{1, 0, map[string]bool{FeatureFrontRow: true, FeatureAisle: true}},
		{1, 2, map[string]bool{FeatureFrontRow: true, FeatureAisle: true, FeatureMiddle: true}},
		{2, 3, map[string]bool{FeatureBackRow: true, FeatureAisle: true, FeatureMiddle: true}},
		{2, 4, map[string]bool{FeatureBackRow: true}},
	}
	for _, tc := range cases {
		got := map[string]bool{}
		for _, f := range l.DerivedFeatures(tc.row, tc.col) {
			got[f] = true
		}
		if len(got) != len(tc.want) {
			t.Errorf("(%d,%d) 期望特征 %v，实际 %v", tc.row, tc.col, tc.want, got)
			continue
		}
		for f := range tc.want {
			if !got[f] {
				t.Errorf("(%d,%d) 缺少特征 %s，实际 %v", tc.row, tc.col, f, got)
			}
		}
	}
}

func TestLayout_LayoutChangeMovesFrontRow(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 4, Cols: 2}
	before := NewLayout(room, []model.Seat{seat("a", 0, 0, model.SeatAvailable), seat("b", 1, 0, model.SeatAvailable)})
	after := NewLayout(room, []model.Seat{seat("b", 1, 0, model.SeatAvailable)})

	if !contains(before.DerivedFeatures(0, 0), FeatureFrontRow) {
		t.Error("第 0 行应为前排")
	}
	if !contains(after.DerivedFeatures(1, 0), FeatureFrontRow) {
		t.Error("移除第 0 行后第 1 行应成为前排")
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ── 候选与评分 ──

func TestBuildCandidates_ExcludesBrokenAndAllocated(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 1, Cols: 3}
	cands := BuildCandidates(room, []model.Seat{
		seat("a", 0, 0, model.SeatBroken),
		seat("b", 0, 1, model.SeatAllocated),
		seat("c", 0, 2, model.SeatAvailable),
	})
	if len(cands) != 1 || cands[0].Seat.SeatID != "c" {
		t.Fatalf("只有 available 座位可作为候选，实际 %d 个", len(cands))
	}
}

func TestSelectBest_HardConstraintWinsOverScore(t *testing.T) {
	// 两个座位：一个带 wheelchair-access，另一个无标签但位于前排中间
	room := &model.Room{RoomID: "r1", Rows: 2, Cols: 3}
	cands := BuildCandidates(room, []model.Seat{
		seat("plain", 0, 1, model.SeatAvailable),
		seat("wc", 1, 2, model.SeatAvailable, "wheelchair-access"),
	})
	cons := Constraints{Hard: []string{"wheelchair-access"}, Soft: []string{FeatureFrontRow, FeatureMiddle}}

	best, ok := SelectBest(cands, cons, DefaultScore)
	if !ok {
		t.Fatal("应找到满足硬约束的座位")
	}
	if best.Seat.SeatID != "wc" {
		t.Errorf("期望 wc，实际 %s", best.Seat.SeatID)
	}
}

func TestSelectBest_NoCandidateWithHardTag(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 1, Cols: 1}
	cands := BuildCandidates(room, []model.Seat{seat("only", 0, 0, model.SeatAvailable)})
	cons := Constraints{Hard: []string{"wheelchair-access"}}

	if _, ok := SelectBest(cands, cons, nil); ok {
		t.Fatal("唯一可用座位缺少硬约束特征时不应入选")
	}
	if reason := Explain(cands, cons); reason != "没有满足无障碍需求 wheelchair-access 的可用座位" {
		t.Errorf("原因不符，实际: %s", reason)
	}
}

func TestSelectBest_TieBreakRowMajor(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 3, Cols: 9}
	cands := BuildCandidates(room, []model.Seat{
		seat("x", 2, 4, model.SeatAvailable),
		seat("y", 1, 4, model.SeatAvailable),
		seat("z", 1, 3, model.SeatAvailable),
	})

	best, ok := SelectBest(cands, Constraints{}, nil)
	if !ok || best.Seat.SeatID != "z" {
		t.Errorf("同分应选最小 (row, col)，期望 z，实际 %v", best.Seat)
	}
}

func TestSelectBest_SoftWeights(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 2, Cols: 9, AisleEvery: 3}
	cands := BuildCandidates(room, []model.Seat{
		seat("front", 0, 4, model.SeatAvailable), // front-row + middle
		seat("aisle", 1, 3, model.SeatAvailable), // aisle + middle + back-row
	})
	cons := Constraints{
		Soft:    []string{FeatureFrontRow, FeatureAisle},
		Weights: map[string]float64{FeatureAisle: 3},
	}

	best, _ := SelectBest(cands, cons, nil)
	if best.Seat.SeatID != "aisle" {
		t.Errorf("过道权重更高，期望 aisle，实际 %s", best.Seat.SeatID)
	}
}

func TestSelectBest_CustomScoreFunc(t *testing.T) {
	room := &model.Room{RoomID: "r1", Rows: 3, Cols: 1}
	cands := BuildCandidates(room, []model.Seat{
		seat("a", 0, 0, model.SeatAvailable),
		seat("b", 2, 0, model.SeatAvailable),
	})
	preferBack := func(c Candidate, _ Constraints) (float64, bool) {
		return float64(c.Seat.Row), true
	}

	best, _ := SelectBest(cands, Constraints{}, preferBack)
	if best.Seat.SeatID != "b" {
		t.Errorf("自定义策略应选后排，实际 %s", best.Seat.SeatID)
	}
}

// ── 教室推荐 ──

func TestRankRooms_MonotonicInProximity(t *testing.T) {
	floor := 2
	origin := Origin{BuildingID: "b1", Block: "east", Floor: &floor}
	b1 := &model.Building{BuildingID: "b1", Block: "east"}
	b2 := &model.Building{BuildingID: "b2", Block: "east"}
	b3 := &model.Building{BuildingID: "b3", Block: "west"}

	sites := []Site{
		{Room: &model.Room{RoomID: "cross", BuildingID: "b3", Capacity: 30, Available: true}, Building: b3},
		{Room: &model.Room{RoomID: "block", BuildingID: "b2", Capacity: 30, Available: true}, Building: b2},
		{Room: &model.Room{RoomID: "building", BuildingID: "b1", Floor: 1, Capacity: 30, Available: true}, Building: b1},
		// 同楼层但容量浪费很大，仍应排第一
		{Room: &model.Room{RoomID: "floor", BuildingID: "b1", Floor: 2, Capacity: 500, Available: true}, Building: b1},
		{Room: &model.Room{RoomID: "closed", BuildingID: "b1", Floor: 2, Capacity: 30, Available: false}, Building: b1},
		{Room: &model.Room{RoomID: "small", BuildingID: "b1", Floor: 2, Capacity: 10, Available: true}, Building: b1},
	}

	ranked := RankRooms(sites, origin, 30, 10)
	want := []string{"floor", "building", "block", "cross"}
	if len(ranked) != len(want) {
		t.Fatalf("期望 %d 个教室，实际 %d", len(want), len(ranked))
	}
	for i, id := range want {
		if ranked[i].Room.RoomID != id {
			t.Errorf("第 %d 位期望 %s，实际 %s", i, id, ranked[i].Room.RoomID)
		}
	}
}

func TestRankRooms_CapacityFitAndDeterminism(t *testing.T) {
	b := &model.Building{BuildingID: "b1"}
	sites := []Site{
		{Room: &model.Room{RoomID: "r-big", BuildingID: "b1", Capacity: 100, Available: true}, Building: b},
		{Room: &model.Room{RoomID: "r-b", BuildingID: "b1", Capacity: 40, Available: true}, Building: b},
		{Room: &model.Room{RoomID: "r-a", BuildingID: "b1", Capacity: 40, Available: true}, Building: b},
	}

	first := RankRooms(sites, Origin{BuildingID: "b1"}, 35, 10)
	second := RankRooms([]Site{sites[2], sites[0], sites[1]}, Origin{BuildingID: "b1"}, 35, 10)

	want := []string{"r-a", "r-b", "r-big"}
	for i, id := range want {
		if first[i].Room.RoomID != id || second[i].Room.RoomID != id {
			t.Errorf("第 %d 位期望 %s，实际 %s / %s", i, id, first[i].Room.RoomID, second[i].Room.RoomID)
		}
	}
}
