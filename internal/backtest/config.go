package backtest

import (
	"fmt"
	"math"
)

// TradingDaysPerMonth converts a horizon in months to trading days. It is a
// fixed convention; keep it stable so runs stay comparable.
const TradingDaysPerMonth = 21

// Config holds the note terms of one backtest.
// Percentages are relative to the price on the issue (start) date.
type Config struct {
	KnockOutPct   float64 `json:"knock_out_pct" yaml:"knock_out_pct"` // level display only
	StrikePct     float64 `json:"strike_pct" yaml:"strike_pct"`
	KnockInPct    float64 `json:"knock_in_pct" yaml:"knock_in_pct"`
	HorizonMonths float64 `json:"horizon_months" yaml:"horizon_months"`
}

// HorizonDays returns the observation window in trading days
func (c Config) HorizonDays() int {
	return int(math.Round(c.HorizonMonths * TradingDaysPerMonth))
}

// Validate checks that the terms describe a runnable backtest
func (c Config) Validate() error {
	if !positive(c.KnockOutPct) {
		return &ConfigError{Field: "knock_out_pct", Message: "must be > 0"}
	}
	if !positive(c.StrikePct) {
		return &ConfigError{Field: "strike_pct", Message: "must be > 0"}
	}
	if !positive(c.KnockInPct) {
		return &ConfigError{Field: "knock_in_pct", Message: "must be > 0"}
	}
	if !positive(c.HorizonMonths) {
		return &ConfigError{Field: "horizon_months", Message: "must be > 0"}
	}
	if c.HorizonDays() < 1 {
		return &ConfigError{Field: "horizon_months", Message: fmt.Sprintf("%g months is shorter than one trading day", c.HorizonMonths)}
	}
	return nil
}

// String renders the terms compactly, e.g. "KO100/S80/KI65/6M"
func (c Config) String() string {
	return fmt.Sprintf("KO%g/S%g/KI%g/%gM", c.KnockOutPct, c.StrikePct, c.KnockInPct, c.HorizonMonths)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
