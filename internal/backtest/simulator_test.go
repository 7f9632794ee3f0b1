package backtest

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eln-backtest/internal/series"
)

// bruteRows recomputes every row the slow, obvious way
func bruteRows(closes []float64, cfg Config) []Row {
	h := cfg.HorizonDays()
	rows := make([]Row, 0, len(closes)-h)

	for i := 0; i+h < len(closes); i++ {
		minPrice := closes[i]
		for _, c := range closes[i : i+h] {
			if c < minPrice {
				minPrice = c
			}
		}
		row := Row{
			StartPrice:   closes[i],
			FinalPrice:   closes[i+h],
			MinPrice:     minPrice,
			KnockInLevel: closes[i] * (cfg.KnockInPct / 100),
			StrikeLevel:  closes[i] * (cfg.StrikePct / 100),
		}
		row.TouchedKnockIn = row.MinPrice < row.KnockInLevel
		row.BelowStrike = row.FinalPrice < row.StrikeLevel
		row.Outcome = OutcomeSafe
		if row.TouchedKnockIn && row.BelowStrike {
			row.Outcome = OutcomeLoss
			row.Stuck = true
			for j := i + h + 1; j < len(closes); j++ {
				if closes[j] >= row.StrikeLevel {
					days := j - (i + h)
					row.RecoveryDays = &days
					row.Stuck = false
					break
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func assertRowsMatch(t *testing.T, want, got []Row) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		require.Equal(t, w.StartPrice, g.StartPrice, "row %d start", i)
		require.Equal(t, w.FinalPrice, g.FinalPrice, "row %d final", i)
		require.Equal(t, w.MinPrice, g.MinPrice, "row %d min", i)
		require.Equal(t, w.TouchedKnockIn, g.TouchedKnockIn, "row %d touched", i)
		require.Equal(t, w.BelowStrike, g.BelowStrike, "row %d below", i)
		require.Equal(t, w.Outcome, g.Outcome, "row %d outcome", i)
		require.Equal(t, w.Stuck, g.Stuck, "row %d stuck", i)
		require.Equal(t, w.RecoveryDays, g.RecoveryDays, "row %d recovery", i)
	}
}

func TestSimulate_RowCountAndDates(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	s := seriesOf(t, closes)

	res, err := Simulate(s, termsFor(21, 65, 80))
	require.NoError(t, err)

	assert.Equal(t, 21, res.HorizonDays)
	require.Len(t, res.Rows, 100-21)
	assert.Equal(t, res.Rows[0].StartDate, s.At(0).Date)
	assert.Equal(t, res.Rows[0].EndDate, s.At(21).Date)
	last := res.Rows[len(res.Rows)-1]
	assert.Equal(t, s.Latest().Date, last.EndDate)
	assert.Equal(t, 79, res.Stats.TotalPeriods)
}

func TestSimulate_InsufficientHistory(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	s := seriesOf(t, closes)

	for _, days := range []int{200, 50} {
		res, err := Simulate(s, termsFor(days, 65, 80))
		assert.Nil(t, res)

		var histErr *InsufficientHistoryError
		require.True(t, errors.As(err, &histErr), "got %v", err)
		assert.Equal(t, days, histErr.HorizonDays)
		assert.Equal(t, 50, histErr.Available)
	}

	res, err := Simulate(s, termsFor(49, 65, 80))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestSimulate_RejectsBadInput(t *testing.T) {
	_, err := Simulate(nil, termsFor(5, 65, 80))
	var dataErr *series.InsufficientDataError
	assert.True(t, errors.As(err, &dataErr))

	s := seriesOf(t, []float64{1, 2, 3})
	_, err = Simulate(s, Config{KnockOutPct: 100, StrikePct: 80, KnockInPct: 65})
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSimulate_MatchesBruteForceOnRandomSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 30; trial++ {
		closes := randomWalk(rng, 80+rng.Intn(600))
		cfg := termsFor(1+rng.Intn(70), 55+rng.Float64()*40, 70+rng.Float64()*35)

		res, err := Simulate(seriesOf(t, closes), cfg)
		require.NoError(t, err)

		assertRowsMatch(t, bruteRows(closes, cfg), res.Rows)
	}
}

func TestSimulate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	closes := randomWalk(rng, 1500)
	cfg := termsFor(126, 65, 80)

	res, err := Simulate(seriesOf(t, closes), cfg)
	require.NoError(t, err)

	assert.Len(t, res.Rows, len(closes)-126)
	for i, r := range res.Rows {
		assert.Equal(t, r.TouchedKnockIn && r.BelowStrike, r.Outcome == OutcomeLoss, "row %d", i)
		assert.LessOrEqual(t, r.MinPrice, r.StartPrice, "row %d", i)
		if r.Outcome == OutcomeSafe {
			assert.Nil(t, r.RecoveryDays)
			assert.False(t, r.Stuck)
			assert.GreaterOrEqual(t, r.ReturnVsStrikePct, 0.0)
		} else {
			assert.NotEqual(t, r.Stuck, r.RecoveryDays != nil, "row %d", i)
		}
	}
	assert.LessOrEqual(t, res.Stats.StuckCount, res.Stats.LossCount)
}

func TestSimulate_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := seriesOf(t, randomWalk(rng, 400))
	cfg := termsFor(63, 75, 90)

	first, err := Simulate(s, cfg)
	require.NoError(t, err)
	second, err := Simulate(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSimulate_KnockInTouchedButRecoveredIsSafe(t *testing.T) {
	s := seriesOf(t, []float64{100, 60, 95})

	res, err := Simulate(s, termsFor(2, 70, 85))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.True(t, row.TouchedKnockIn)
	assert.False(t, row.BelowStrike)
	assert.Equal(t, OutcomeSafe, row.Outcome)
	assert.InDelta(t, (95.0-85.0)/85.0*100, row.ReturnVsStrikePct, 1e-9)
	assert.Equal(t, 0, res.Stats.LossCount)
	assert.Equal(t, 0.0, res.Stats.AverageRecoveryDays)
	assert.Equal(t, 100.0, res.Stats.SafetyProbability)
}

func TestSimulate_LossEndingOnLastDateIsStuck(t *testing.T) {
	// h=2. Row 0 loses and recovers a day after its end; row 3 loses on the
	// final date with nothing left to observe.
	s := seriesOf(t, []float64{100, 50, 60, 100, 40, 30})

	res, err := Simulate(s, termsFor(2, 70, 85))
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)

	r0 := res.Rows[0]
	assert.Equal(t, OutcomeLoss, r0.Outcome)
	require.NotNil(t, r0.RecoveryDays)
	assert.Equal(t, 1, *r0.RecoveryDays)
	assert.InDelta(t, (60.0-85.0)/85.0*100, r0.ReturnVsStrikePct, 1e-9)

	assert.Equal(t, OutcomeSafe, res.Rows[1].Outcome)
	assert.Equal(t, OutcomeSafe, res.Rows[2].Outcome)

	r3 := res.Rows[3]
	assert.Equal(t, s.Latest().Date, r3.EndDate)
	assert.Equal(t, OutcomeLoss, r3.Outcome)
	assert.True(t, r3.Stuck)
	assert.Nil(t, r3.RecoveryDays)

	st := res.Stats
	assert.Equal(t, 2, st.LossCount)
	assert.Equal(t, 1, st.StuckCount)
	assert.Equal(t, 1.0, st.AverageRecoveryDays)
	assert.Equal(t, 50.0, st.SafetyProbability)
	assert.Equal(t, 50.0, st.LossProbability)
	assert.Equal(t, 25.0, st.PositiveReturnProbability)
	assert.Equal(t, 50.0, st.StuckRate)
}

func TestSimulate_RecoveryUsesEachRowsStrike(t *testing.T) {
	// h=1 with KI above 100% makes every row touch; a row loses whenever the
	// next close is lower. The two losses need different strike levels, so
	// their recoveries land on different days.
	s := seriesOf(t, []float64{100, 80, 70, 75, 85, 101})

	res, err := Simulate(s, termsFor(1, 110, 100))
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)

	require.Equal(t, OutcomeLoss, res.Rows[0].Outcome)
	require.NotNil(t, res.Rows[0].RecoveryDays)
	assert.Equal(t, 4, *res.Rows[0].RecoveryDays)

	require.Equal(t, OutcomeLoss, res.Rows[1].Outcome)
	require.NotNil(t, res.Rows[1].RecoveryDays)
	assert.Equal(t, 2, *res.Rows[1].RecoveryDays)

	for _, r := range res.Rows[2:] {
		assert.Equal(t, OutcomeSafe, r.Outcome)
	}
	assert.Equal(t, 3.0, res.Stats.AverageRecoveryDays)
}

func TestSimulate_FlatMarket(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}

	res, err := Simulate(seriesOf(t, closes), termsFor(10, 100, 100))
	require.NoError(t, err)

	for _, r := range res.Rows {
		assert.False(t, r.TouchedKnockIn)
		assert.False(t, r.BelowStrike)
		assert.Equal(t, OutcomeSafe, r.Outcome)
	}
	assert.Equal(t, 100.0, res.Stats.SafetyProbability)
	assert.Equal(t, 0.0, res.Stats.PositiveReturnProbability)
}

// riseFallRecover is 300 closes: 100 → 130 over days 0-99, 130 → 80 over
// days 100-199, 80 → 120 over days 200-299.
func riseFallRecover() []float64 {
	closes := make([]float64, 300)
	for i := 0; i < 100; i++ {
		closes[i] = 100 + 30*float64(i)/99
	}
	for i := 0; i < 100; i++ {
		closes[100+i] = 130 - 50*float64(i)/99
	}
	for i := 0; i < 100; i++ {
		closes[200+i] = 80 + 40*float64(i)/99
	}
	return closes
}

func TestSimulate_RiseFallRecoverScenario(t *testing.T) {
	closes := riseFallRecover()
	s := seriesOf(t, closes)
	cfg := termsFor(60, 70, 85)

	res, err := Simulate(s, cfg)
	require.NoError(t, err)
	require.Len(t, res.Rows, 240)
	assertRowsMatch(t, bruteRows(closes, cfg), res.Rows)

	// Window [140, 200) holds the trough at day 199.
	row := res.Rows[140]
	start := closes[140]
	assert.Equal(t, 80.0, row.MinPrice)
	assert.Equal(t, closes[200], row.FinalPrice)
	assert.InDelta(t, start*0.70, row.KnockInLevel, 1e-9)
	// 80 is above 70% of a start near 110, so the barrier holds.
	assert.False(t, row.TouchedKnockIn)
	assert.Equal(t, OutcomeSafe, row.Outcome)

	// The 30% drop from the peak never breaches a 70% barrier anywhere.
	assert.Equal(t, 0, res.Stats.LossCount)
	assert.Equal(t, 100.0, res.Stats.SafetyProbability)
	assert.Equal(t, 0.0, res.Stats.AverageRecoveryDays)
}

func TestSimulate_RiseFallRecoverScenarioTightBarrier(t *testing.T) {
	closes := riseFallRecover()
	cfg := termsFor(60, 85, 95)

	res, err := Simulate(seriesOf(t, closes), cfg)
	require.NoError(t, err)
	assertRowsMatch(t, bruteRows(closes, cfg), res.Rows)

	// Issued at the peak (day 99, 130): barrier 110.5, window bottoms at
	// day 158 and ends at day 159 below the 123.5 strike.
	peak := res.Rows[99]
	assert.Equal(t, 130.0, peak.StartPrice)
	assert.Equal(t, closes[158], peak.MinPrice)
	assert.True(t, peak.TouchedKnockIn)
	assert.True(t, peak.BelowStrike)
	assert.Equal(t, OutcomeLoss, peak.Outcome)
	// 120 at the end never reaches 123.5 again.
	assert.True(t, peak.Stuck)

	assert.Greater(t, res.Stats.LossCount, 0)
	assert.LessOrEqual(t, res.Stats.StuckCount, res.Stats.LossCount)
}
