package series

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/eln-backtest/internal/contracts"
)

// Prepare normalizes raw samples into a Series.
//
//   - samples sharing a calendar date collapse to the first occurrence
//   - closes are parsed as numbers; unparsable, non-finite and non-positive
//     values are dropped
//   - the survivors are ordered by date and get MA20/MA60/MA240 attached
//
// An empty result fails with *InsufficientDataError.
func Prepare(raw []contracts.RawPrice) (*Series, error) {
	if len(raw) == 0 {
		return nil, &InsufficientDataError{Reason: "no samples"}
	}

	seen := make(map[int64]struct{}, len(raw))
	points := make([]PricePoint, 0, len(raw))

	for _, r := range raw {
		if r.Date.IsZero() {
			continue
		}
		d := calendarDate(r.Date)
		key := d.Unix()
		if _, dup := seen[key]; dup {
			continue
		}
		// A date counts as taken even when its close is unusable, so a
		// later duplicate cannot fill in for it.
		seen[key] = struct{}{}

		v, ok := ParseClose(r.Close)
		if !ok {
			continue
		}
		points = append(points, PricePoint{Date: d, Close: v})
	}

	if len(points) == 0 {
		return nil, &InsufficientDataError{Reason: "no numeric close prices"}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	attachMovingAverages(points)
	return &Series{points: points}, nil
}

// ParseClose coerces a textual close to a price. Thousands separators and
// surrounding blanks are tolerated.
func ParseClose(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !validClose(v) {
		return 0, false
	}
	return v, true
}

func validClose(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
