package backtest

import "time"

// Outcome classifies one issue date
type Outcome string

const (
	OutcomeSafe Outcome = "safe"
	OutcomeLoss Outcome = "loss"
)

// Row is the simulated life of a note issued on StartDate
type Row struct {
	StartDate  time.Time `json:"start_date"`
	StartPrice float64   `json:"start_price"`
	EndDate    time.Time `json:"end_date"`
	FinalPrice float64   `json:"final_price"`

	// MinPrice is the lowest close over the observation window, which
	// starts at StartDate and stops one trading day short of EndDate.
	MinPrice     float64 `json:"min_price"`
	KnockInLevel float64 `json:"knock_in_level"`
	StrikeLevel  float64 `json:"strike_level"`

	TouchedKnockIn bool    `json:"touched_knock_in"`
	BelowStrike    bool    `json:"below_strike"`
	Outcome        Outcome `json:"outcome"`

	// Loss rows only. RecoveryDays counts calendar days from EndDate to the
	// first later close at or above StrikeLevel; Stuck is set instead when no
	// such close exists in the series.
	RecoveryDays *int `json:"recovery_days,omitempty"`
	Stuck        bool `json:"stuck"`

	// ReturnVsStrikePct is the final price against strike in percent,
	// floored at 0 for safe rows.
	ReturnVsStrikePct float64 `json:"return_vs_strike_pct"`
}

// Stats summarizes a set of rows
type Stats struct {
	TotalPeriods              int     `json:"total_periods"`
	SafetyProbability         float64 `json:"safety_probability"`
	LossProbability           float64 `json:"loss_probability"`
	PositiveReturnProbability float64 `json:"positive_return_probability"`
	LossCount                 int     `json:"loss_count"`
	StuckCount                int     `json:"stuck_count"`
	StuckRate                 float64 `json:"stuck_rate"`
	AverageRecoveryDays       float64 `json:"average_recovery_days"`
}

// Result is the full output of one simulation
type Result struct {
	Config      Config `json:"config"`
	HorizonDays int    `json:"horizon_days"`
	Rows        []Row  `json:"rows"`
	Stats       Stats  `json:"stats"`
}

// Levels are the note's price levels if it were issued at ReferencePrice
type Levels struct {
	ReferenceDate  time.Time `json:"reference_date"`
	ReferencePrice float64   `json:"reference_price"`
	KnockOut       float64   `json:"knock_out"`
	Strike         float64   `json:"strike"`
	KnockIn        float64   `json:"knock_in"`
}
