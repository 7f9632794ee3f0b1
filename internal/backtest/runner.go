package backtest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/eln-backtest/pkg/logger"
)

// Job is one ticker to backtest with its terms
type Job struct {
	Ticker string `json:"ticker"`
	Config Config `json:"config"`
}

// BatchItem is the outcome of one Job. Err is set instead of Report when the
// ticker failed; one failing ticker never aborts the batch.
type BatchItem struct {
	Ticker string  `json:"ticker"`
	Report *Report `json:"report,omitempty"`
	Err    error   `json:"-"`
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Workers int // Number of concurrent tickers
}

// Runner fans a batch of jobs out over a bounded number of workers
type Runner struct {
	engine *Engine
	cfg    RunnerConfig
	logger *logger.Logger
}

// NewRunner creates a new batch runner
func NewRunner(engine *Engine, cfg RunnerConfig, log *logger.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		engine: engine,
		cfg:    cfg,
		logger: log.WithField("module", "runner"),
	}
}

// JobsFor applies the same terms to every ticker
func JobsFor(tickers []string, cfg Config) []Job {
	jobs := make([]Job, len(tickers))
	for i, t := range tickers {
		jobs[i] = Job{Ticker: t, Config: cfg}
	}
	return jobs
}

// RunBatch runs every job and returns items in job order. The returned error
// is non-nil only when ctx ends before the batch completes.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) ([]BatchItem, error) {
	r.logger.WithFields(map[string]interface{}{
		"jobs":    len(jobs),
		"workers": r.cfg.Workers,
	}).Info("Starting backtest batch")

	items := make([]BatchItem, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, job := range jobs {
		g.Go(func() error {
			items[i].Ticker = NormalizeTicker(job.Ticker)
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}

			report, err := r.engine.Run(gctx, job.Ticker, job.Config)
			if err != nil {
				r.logger.WithError(err).WithFields(map[string]interface{}{
					"ticker": items[i].Ticker,
					"kind":   ErrorKind(err),
				}).Warn("Backtest failed")
				items[i].Err = err
				return nil
			}
			items[i].Report = report
			return nil
		})
	}

	_ = g.Wait()

	success, failed := 0, 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		} else {
			success++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
		"total":   len(items),
	}).Info("Backtest batch completed")

	return items, ctx.Err()
}
