package allocation

import (
	"fmt"
	"sort"
	"strings"
)

// Constraints 申请人的约束集合
type Constraints struct {
	Hard    []string           // 必须全部满足，否则候选被排除
	Soft    []string           // 满足则加分，不排除
	Weights map[string]float64 // 软约束权重，缺省为 1
}

// ScoreFunc 评分策略。ok=false 表示候选被排除
type ScoreFunc func(c Candidate, cons Constraints) (score float64, ok bool)

// DefaultScore 默认策略：硬约束缺一即排除，软约束按权重累加
func DefaultScore(c Candidate, cons Constraints) (float64, bool) {
	for _, h := range cons.Hard {
		if !c.Has(h) {
			return 0, false
		}
	}
	var score float64
	for _, s := range cons.Soft {
		if !c.Has(s) {
			continue
		}
		w, ok := cons.Weights[s]
		if !ok {
			w = 1
		}
		score += w
	}
	return score, true
}

// SelectBest 选出得分最高的候选；同分按 (row, col) 行优先最小者，再按座位 ID
func SelectBest(cands []Candidate, cons Constraints, score ScoreFunc) (Candidate, bool) {
	if score == nil {
		score = DefaultScore
	}
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, c := range cands {
		sc, ok := score(c, cons)
		if !ok {
			continue
		}
		if !found || sc > bestScore || (sc == bestScore && before(c, best)) {
			best, bestScore, found = c, sc, true
		}
	}
	return best, found
}

func before(a, b Candidate) bool {
	if a.Seat.Row != b.Seat.Row {
		return a.Seat.Row < b.Seat.Row
	}
	if a.Seat.Col != b.Seat.Col {
		return a.Seat.Col < b.Seat.Col
	}
	return a.Seat.SeatID < b.Seat.SeatID
}

// Explain 说明为何没有候选满足硬约束
func Explain(cands []Candidate, cons Constraints) string {
	if len(cands) == 0 {
		return "没有可用座位"
	}
	var missing []string
	for _, h := range cons.Hard {
		present := false
		for _, c := range cands {
			if c.Has(h) {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Sprintf("没有满足无障碍需求 %s 的可用座位", strings.Join(missing, ", "))
	}
	return fmt.Sprintf("没有同时满足 %s 的可用座位", strings.Join(cons.Hard, ", "))
}
