package pricedata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eln-backtest/internal/contracts"
)

func TestPriceRepository_RoundTrip(t *testing.T) {
	// Skip if DATABASE_URL is not set
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewPriceRepository(pool)
	ticker := "ELNTEST"
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.EnsureSchema(ctx))

	saved, err := repo.SavePrices(ctx, ticker, []contracts.RawPrice{
		{Date: day, Close: "100"},
		{Date: day.AddDate(0, 0, 1), Close: "101.5"},
		{Close: "99"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	prices, err := repo.LoadPrices(ctx, ticker)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(prices), 2)
	assert.Equal(t, "100", prices[0].Close)

	_, err = repo.LoadPrices(ctx, "NO_SUCH_TICKER_ELN")
	assert.ErrorIs(t, err, contracts.ErrUnknownTicker)
}
