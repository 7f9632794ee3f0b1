package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRecord is the persisted summary of one fresh run. Rows are not stored;
// they can be recomputed from the series identified by SeriesHash.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	Ticker      string    `json:"ticker"`
	SeriesHash  string    `json:"series_hash"`
	Config      Config    `json:"config"`
	HorizonDays int       `json:"horizon_days"`
	Stats       Stats     `json:"stats"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRunRecord summarizes a finished report
func NewRunRecord(report *Report) *RunRecord {
	rec := &RunRecord{
		RunID:      report.RunID,
		Ticker:     report.Ticker,
		SeriesHash: report.SeriesHash,
		FirstDate:  report.FirstDate,
		LastDate:   report.LastDate,
		CreatedAt:  time.Now(),
	}
	if report.Result != nil {
		rec.Config = report.Result.Config
		rec.HorizonDays = report.Result.HorizonDays
		rec.Stats = report.Result.Stats
	}
	return rec
}

// RunRepository stores run summaries in PostgreSQL
// ⭐ SSOT: 백테스트 실행 이력 저장/조회는 여기서만
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// EnsureSchema creates the runs table when it does not exist yet
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS backtest;
		CREATE TABLE IF NOT EXISTS backtest.runs (
			run_id       TEXT PRIMARY KEY,
			ticker       TEXT NOT NULL,
			series_hash  TEXT NOT NULL,
			terms        JSONB NOT NULL,
			horizon_days INTEGER NOT NULL,
			stats        JSONB NOT NULL,
			first_date   DATE NOT NULL,
			last_date    DATE NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_runs_ticker_created ON backtest.runs (ticker, created_at DESC);
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure runs schema: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run summary
func (r *RunRepository) SaveRun(ctx context.Context, run *RunRecord) error {
	termsJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal terms: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	query := `
		INSERT INTO backtest.runs (
			run_id, ticker, series_hash, terms, horizon_days, stats, first_date, last_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			series_hash = EXCLUDED.series_hash,
			terms = EXCLUDED.terms,
			horizon_days = EXCLUDED.horizon_days,
			stats = EXCLUDED.stats,
			first_date = EXCLUDED.first_date,
			last_date = EXCLUDED.last_date
	`

	_, err = r.pool.Exec(ctx, query,
		run.RunID, run.Ticker, run.SeriesHash, termsJSON, run.HorizonDays, statsJSON,
		run.FirstDate, run.LastDate, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// ListByTicker returns the most recent runs of a ticker, newest first
func (r *RunRepository) ListByTicker(ctx context.Context, ticker string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, ticker, series_hash, terms, horizon_days, stats, first_date, last_date, created_at
		FROM backtest.runs
		WHERE ticker = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, NormalizeTicker(ticker), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			termsJSON []byte
			statsJSON []byte
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Ticker, &rec.SeriesHash, &termsJSON, &rec.HorizonDays, &statsJSON,
			&rec.FirstDate, &rec.LastDate, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(termsJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal terms: %w", err)
		}
		if err := json.Unmarshal(statsJSON, &rec.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
		runs = append(runs, &rec)
	}
	return runs, rows.Err()
}
