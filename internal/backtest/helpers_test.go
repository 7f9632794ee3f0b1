package backtest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/eln-backtest/internal/series"
)

var seriesStart = time.Date(2009, 1, 2, 0, 0, 0, 0, time.UTC)

// seriesOf builds a series on consecutive calendar days, so recovery days
// equal index distances.
func seriesOf(t *testing.T, closes []float64) *series.Series {
	t.Helper()
	points := make([]series.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = series.PricePoint{Date: seriesStart.AddDate(0, 0, i), Close: c}
	}
	s, err := series.New(points)
	require.NoError(t, err)
	return s
}

// termsFor returns terms whose horizon is exactly days trading days
func termsFor(days int, knockInPct, strikePct float64) Config {
	return Config{
		KnockOutPct:   100,
		StrikePct:     strikePct,
		KnockInPct:    knockInPct,
		HorizonMonths: float64(days) / TradingDaysPerMonth,
	}
}

func randomWalk(rng *rand.Rand, n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.08
		if price < 1 {
			price = 1
		}
		closes[i] = price
	}
	return closes
}
