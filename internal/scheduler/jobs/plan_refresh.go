package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/internal/plan"
	"github.com/wonny/eln-backtest/pkg/logger"
)

// DefaultRefreshSchedule runs after the close on weekdays
const DefaultRefreshSchedule = "0 30 18 * * 1-5"

// BatchRunner runs a batch of ticker backtests
type BatchRunner interface {
	RunBatch(ctx context.Context, jobs []backtest.Job) ([]backtest.BatchItem, error)
}

// PlanRefreshJob re-runs every note of a plan so fresh results land in the
// result cache and the run history.
// ⭐ SSOT: 플랜 갱신 스케줄은 이 Job에서만
type PlanRefreshJob struct {
	runner BatchRunner
	plan   *plan.Plan
	logger *logger.Logger
}

// NewPlanRefreshJob creates a new plan refresh job
func NewPlanRefreshJob(runner BatchRunner, p *plan.Plan, log *logger.Logger) *PlanRefreshJob {
	return &PlanRefreshJob{
		runner: runner,
		plan:   p,
		logger: log,
	}
}

// Name returns the job name
func (j *PlanRefreshJob) Name() string {
	return "plan_refresh:" + j.plan.Meta.PlanID
}

// Schedule returns the plan's cron schedule or the weekday default
func (j *PlanRefreshJob) Schedule() string {
	if j.plan.Schedule.Cron != "" {
		return j.plan.Schedule.Cron
	}
	return DefaultRefreshSchedule
}

// Run executes the refresh. Tickers whose data cannot support the terms are
// logged and skipped; any other failure fails the job so the scheduler
// retries it.
func (j *PlanRefreshJob) Run(ctx context.Context) error {
	j.logger.WithField("plan", j.plan.Meta.PlanID).Info("Starting scheduled plan refresh")

	items, err := j.runner.RunBatch(ctx, j.plan.Jobs())
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	var retryable []string
	skipped := 0
	for _, item := range items {
		if item.Err == nil {
			continue
		}
		switch backtest.ErrorKind(item.Err) {
		case "insufficient_data", "insufficient_history", "invalid_config", "unknown_ticker":
			skipped++
		default:
			retryable = append(retryable, item.Ticker)
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"plan":      j.plan.Meta.PlanID,
		"notes":     len(items),
		"skipped":   skipped,
		"retryable": len(retryable),
	}).Info("Plan refresh finished")

	if len(retryable) > 0 {
		return fmt.Errorf("refresh failed for %v", retryable)
	}
	return nil
}
