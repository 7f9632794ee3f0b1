package backtest

import (
	"math"
	"time"

	"github.com/wonny/eln-backtest/internal/series"
)

// Simulate backtests a note issued on every day of s that has a full
// observation window ahead of it, then aggregates the outcomes.
//
// Simulate is pure: it neither mutates s nor keeps state, so concurrent calls
// on independent inputs need no coordination.
func Simulate(s *series.Series, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil || s.Len() == 0 {
		return nil, &series.InsufficientDataError{Reason: "empty series"}
	}

	horizon := cfg.HorizonDays()
	n := s.Len()
	if horizon >= n {
		return nil, &InsufficientHistoryError{HorizonDays: horizon, Available: n}
	}

	closes := s.Closes()
	dates := s.Dates()
	mins := forwardMin(closes, horizon)

	rows := make([]Row, n-horizon)
	for i := range rows {
		rows[i] = classify(cfg, dates[i], closes[i], dates[i+horizon], closes[i+horizon], mins[i])
	}

	resolveRecoveries(rows, closes, dates, horizon)

	stats, err := Aggregate(rows)
	if err != nil {
		return nil, err
	}

	return &Result{
		Config:      cfg,
		HorizonDays: horizon,
		Rows:        rows,
		Stats:       stats,
	}, nil
}

func classify(cfg Config, startDate time.Time, startPrice float64, endDate time.Time, finalPrice, minPrice float64) Row {
	row := Row{
		StartDate:    startDate,
		StartPrice:   startPrice,
		EndDate:      endDate,
		FinalPrice:   finalPrice,
		MinPrice:     minPrice,
		KnockInLevel: startPrice * (cfg.KnockInPct / 100),
		StrikeLevel:  startPrice * (cfg.StrikePct / 100),
	}

	row.TouchedKnockIn = row.MinPrice < row.KnockInLevel
	row.BelowStrike = row.FinalPrice < row.StrikeLevel

	// Touching knock-in alone is not a loss; the note must also finish
	// below strike.
	row.Outcome = OutcomeSafe
	if row.TouchedKnockIn && row.BelowStrike {
		row.Outcome = OutcomeLoss
	}

	row.ReturnVsStrikePct = returnVsStrike(row.FinalPrice, row.StrikeLevel, row.Outcome)
	return row
}

func returnVsStrike(final, strike float64, outcome Outcome) float64 {
	pct := (final - strike) / strike * 100
	if outcome == OutcomeSafe {
		return math.Max(0, pct)
	}
	return pct
}
