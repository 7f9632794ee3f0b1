package pricedata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/eln-backtest/internal/contracts"
	"github.com/wonny/eln-backtest/internal/series"
)

// PriceRepository loads closes from the daily price table
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// LoadPrices implements contracts.PriceSource. NULL closes are passed on as
// empty strings so preparation drops them like any other unusable value.
func (r *PriceRepository) LoadPrices(ctx context.Context, ticker string) ([]contracts.RawPrice, error) {
	query := `
		SELECT trade_date, close_price
		FROM data.daily_prices
		WHERE stock_code = $1
		ORDER BY trade_date ASC
	`

	code := strings.ToUpper(strings.TrimSpace(ticker))
	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var prices []contracts.RawPrice
	for rows.Next() {
		var (
			date       time.Time
			closePrice *float64
		)
		if err := rows.Scan(&date, &closePrice); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, contracts.RawPrice{Date: date, Close: formatClose(closePrice)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("%s: %w", code, contracts.ErrUnknownTicker)
	}
	return prices, nil
}

// EnsureSchema creates the daily price table when it does not exist yet
func (r *PriceRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS data;
		CREATE TABLE IF NOT EXISTS data.daily_prices (
			stock_code  TEXT NOT NULL,
			trade_date  DATE NOT NULL,
			close_price DOUBLE PRECISION,
			PRIMARY KEY (stock_code, trade_date)
		);
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure price schema: %w", err)
	}
	return nil
}

// SavePrices upserts closes for a ticker in one batch. Samples without a
// date are skipped; unusable closes are stored as NULL.
func (r *PriceRepository) SavePrices(ctx context.Context, ticker string, prices []contracts.RawPrice) (int, error) {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO data.daily_prices (stock_code, trade_date, close_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			close_price = EXCLUDED.close_price`

	code := strings.ToUpper(strings.TrimSpace(ticker))
	for _, p := range prices {
		if p.Date.IsZero() {
			continue
		}
		var closePrice *float64
		if v, ok := series.ParseClose(p.Close); ok {
			closePrice = &v
		}
		batch.Queue(query, code, p.Date, closePrice)
	}

	queued := batch.Len()
	if queued == 0 {
		return 0, nil
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("save prices %s: %w", code, err)
		}
	}
	return queued, nil
}

func formatClose(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
