package backtest

import (
	"sort"
	"time"
)

// resolveRecoveries fills RecoveryDays or Stuck on every loss row. Row i ends
// at index i+horizon; its recovery is the first later index whose close is at
// or above the row's own strike level.
//
// Rows are walked from the last to the first while a stack is extended
// leftwards over the closes. After indices (e, n) have been pushed, the stack
// holds the chain of successive record highs starting at e+1: indices
// decrease and values strictly decrease from bottom to top. The first close
// >= level after e is always on that chain, so one binary search per loss
// row finds it.
func resolveRecoveries(rows []Row, closes []float64, dates []time.Time, horizon int) {
	stack := make([]int, 0, 64)
	next := len(closes) - 1

	for i := len(rows) - 1; i >= 0; i-- {
		end := i + horizon

		for ; next > end; next-- {
			for len(stack) > 0 && closes[stack[len(stack)-1]] <= closes[next] {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, next)
		}

		row := &rows[i]
		if row.Outcome != OutcomeLoss {
			continue
		}

		level := row.StrikeLevel
		q := sort.Search(len(stack), func(p int) bool {
			return closes[stack[p]] < level
		})
		if q == 0 {
			row.Stuck = true
			continue
		}

		days := calendarDays(dates[end], dates[stack[q-1]])
		row.RecoveryDays = &days
	}
}

func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24 + 0.5)
}
