package backtest_test

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
)

// Example_simulate backtests a two-day note over eight daily closes
func Example_simulate() {
	closes := []float64{100, 95, 60, 70, 85, 90, 101, 102}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	raw := make([]contracts.RawPrice, len(closes))
	for i, c := range closes {
		raw[i] = contracts.RawPrice{Date: start.AddDate(0, 0, i), Close: strconv.FormatFloat(c, 'f', -1, 64)}
	}

	s, err := series.Prepare(raw)
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := backtest.Config{
		KnockOutPct:   100,
		StrikePct:     80,
		KnockInPct:    65,
		HorizonMonths: 2.0 / backtest.TradingDaysPerMonth,
	}
	result, err := backtest.Simulate(s, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	st := result.Stats
	fmt.Printf("periods=%d losses=%d stuck=%d\n", st.TotalPeriods, st.LossCount, st.StuckCount)
	fmt.Printf("safety=%.1f%% avg_recovery=%.0f\n", st.SafetyProbability, st.AverageRecoveryDays)
	for _, row := range result.Rows {
		if row.Outcome == backtest.OutcomeLoss {
			fmt.Printf("%s loss, recovered in %d days\n", row.StartDate.Format("2006-01-02"), *row.RecoveryDays)
		}
	}

	// Output:
	// periods=6 losses=1 stuck=0
	// safety=83.3% avg_recovery=1
	// 2020-01-02 loss, recovered in 1 days
}
