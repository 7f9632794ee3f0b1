package pricedata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCSVSource_LoadPrices(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL.csv", "Date,Open,Close,Volume\n2024-01-03,1,\"1,234.5\",10\n2024-01-02,1,1200,10\n")
	src := NewCSVSource(dir)

	prices, err := src.LoadPrices(context.Background(), " aapl")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), prices[0].Date)
	assert.Equal(t, "1,234.5", prices[0].Close)
	assert.Equal(t, "1200", prices[1].Close)

	s, err := series.Prepare(prices)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1234.5, s.Latest().Close)
}

func TestCSVSource_UnknownTicker(t *testing.T) {
	_, err := NewCSVSource(t.TempDir()).LoadPrices(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, contracts.ErrUnknownTicker))
}

func TestCSVSource_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCSVSource(t.TempDir()).LoadPrices(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty file", ""},
		{"no close column", "Date,Open\n2024-01-02,1\n"},
		{"no date column", "Day,Close\n2024-01-02,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.body))
			var dataErr *series.InsufficientDataError
			assert.ErrorAs(t, err, &dataErr)
		})
	}
}

func TestReadCSV_FirstMatchingColumnWins(t *testing.T) {
	body := "\ufeffdate,CLOSE,close\n2024/01/02,10,99\n"
	prices, err := ReadCSV(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "10", prices[0].Close)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), prices[0].Date)
}

func TestReadCSV_ShortAndBadRows(t *testing.T) {
	body := "Date,Close\n2024-01-02,10\n2024-01-03\nnot-a-date,11\n2024-01-04,n/a\n"
	prices, err := ReadCSV(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, prices, 4)
	assert.Equal(t, "", prices[1].Close)
	assert.True(t, prices[2].Date.IsZero())

	// preparation keeps only the usable row
	s, err := series.Prepare(prices)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05", "2024/03/05", "20240305", " 2024-03-05 "} {
		assert.Equal(t, want, ParseDate(in), in)
	}
	assert.True(t, ParseDate("05.03.2024").IsZero())
}
