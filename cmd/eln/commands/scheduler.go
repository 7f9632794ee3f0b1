package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/internal/plan"
	"github.com/wonny/eln-backtest/internal/scheduler"
	"github.com/wonny/eln-backtest/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `플랜 파일의 노트를 정기적으로 재계산하는 스케줄러입니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/eln scheduler start --plan config/plans/example.yaml
  go run ./cmd/eln scheduler list --plan config/plans/example.yaml
  go run ./cmd/eln scheduler run plan_refresh:asia_tech_weekly --plan config/plans/example.yaml`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- plan_refresh:<plan_id>: 플랜의 cron (기본 평일 18:30)
- cache_cleanup: 매주 일요일 03:00 (Redis 사용 시)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var (
	schedPlans  []string
	schedRunNow bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringSliceVar(&schedPlans, "plan", nil, "plan file(s) to refresh")
	schedulerStartCmd.Flags().BoolVar(&schedRunNow, "run-now", false, "refresh every plan once before waiting for the schedule")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ELN Backtest Scheduler ===")

	ctx, stop := signalContext()
	defer stop()

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	if schedRunNow {
		for _, name := range sched.GetAllJobs() {
			if name == "cache_cleanup" {
				continue
			}
			result, err := sched.RunJob(name)
			if err != nil {
				return fmt.Errorf("run job: %w", err)
			}
			printJobResult(result)
		}
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	columns := []string{"Job", "Schedule"}
	widths := []int{36, 20}

	fmt.Println("Registered jobs:")
	PrintTableHeader(columns, widths)
	stats := sched.GetJobStats()
	for _, jobName := range sched.GetAllJobs() {
		PrintTableRow([]string{jobName, stats[jobName].Schedule}, widths)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	ctx, stop := signalContext()
	defer stop()

	a, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	result, err := sched.RunJob(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	printJobResult(result)

	if !result.Success {
		return fmt.Errorf("job %s failed", jobName)
	}
	return nil
}

func printJobResult(result scheduler.JobResult) {
	if result.Success {
		PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration.Round(time.Millisecond)))
		return
	}
	PrintError(fmt.Sprintf("%s failed after %s: %s", result.JobName, result.Duration.Round(time.Millisecond), result.Error))
}

func initScheduler(ctx context.Context) (*app, *scheduler.Scheduler, error) {
	if len(schedPlans) == 0 {
		return nil, nil, fmt.Errorf("--plan: at least one plan file is required")
	}

	// 1. Load plans first so a bad file fails before connecting anywhere
	plans := make([]*plan.Plan, 0, len(schedPlans))
	for _, path := range schedPlans {
		p, err := plan.Load(path)
		if err != nil {
			return nil, nil, err
		}
		plans = append(plans, p)
	}

	// 2. Wire dependencies
	a, err := newApp(ctx, appOptions{metrics: true, cacheTTL: plans[0].CacheTTL(0)})
	if err != nil {
		return nil, nil, err
	}

	// 3. Create scheduler
	opts := scheduler.DefaultOptions()
	if a.metrics != nil {
		opts.Observer = a.metrics
	}
	sched := scheduler.New(a.log, opts)

	// 4. Register jobs
	for _, p := range plans {
		if err := sched.AddJob(jobs.NewPlanRefreshJob(a.runner, p, a.log)); err != nil {
			a.close()
			return nil, nil, fmt.Errorf("add plan %s: %w", p.Meta.PlanID, err)
		}
	}
	if a.redis.Enabled() {
		if err := sched.AddJob(jobs.NewCacheCleanupJob(a.cache, a.log)); err != nil {
			a.close()
			return nil, nil, fmt.Errorf("add cache cleanup: %w", err)
		}
	}

	return a, sched, nil
}
