// Package pricedata provides the price sources a backtest can load from:
// a directory of CSV files and the PostgreSQL daily price table.
package pricedata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
)

// Layouts tried in order when parsing the date column
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
}

// CSVSource reads <dir>/<TICKER>.csv files with at least a Date and a Close
// column. Column names are matched case-insensitively; extra columns are
// ignored.
type CSVSource struct {
	dir string
}

// NewCSVSource creates a CSV price source rooted at dir
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Path returns the file a ticker is read from
func (s *CSVSource) Path(ticker string) string {
	return filepath.Join(s.dir, strings.ToUpper(strings.TrimSpace(ticker))+".csv")
}

// LoadPrices implements contracts.PriceSource
func (s *CSVSource) LoadPrices(ctx context.Context, ticker string) ([]contracts.RawPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(ticker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", ticker, contracts.ErrUnknownTicker)
		}
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses a price table. The first column named "date" and the first
// named "close" are used. A table without a close column yields
// series.InsufficientDataError.
func ReadCSV(r io.Reader) ([]contracts.RawPrice, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &series.InsufficientDataError{Reason: "empty price file"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "date":
			if dateCol < 0 {
				dateCol = i
			}
		case "close":
			if closeCol < 0 {
				closeCol = i
			}
		}
	}
	if closeCol < 0 {
		return nil, &series.InsufficientDataError{Reason: "no close column"}
	}
	if dateCol < 0 {
		return nil, &series.InsufficientDataError{Reason: "no date column"}
	}

	var prices []contracts.RawPrice
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price row: %w", err)
		}
		if dateCol >= len(record) {
			continue
		}

		p := contracts.RawPrice{Date: ParseDate(record[dateCol])}
		if closeCol < len(record) {
			p.Close = record[closeCol]
		}
		prices = append(prices, p)
	}

	return prices, nil
}

// ParseDate parses a date in any supported layout. It returns the zero time
// when nothing matches, which preparation discards.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
