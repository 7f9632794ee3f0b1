package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/internal/plan"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "ELN 백테스트",
	Long: `과거 종가로 ELN 발행 시나리오를 시뮬레이션합니다.

매 영업일을 발행일로 보고 만기까지의 최저가, 만기 종가, 손실 여부,
손실 시 행사가 회복까지 걸린 일수를 계산합니다.

Subcommands:
  run    - 티커 목록을 같은 조건으로 실행
  batch  - YAML 플랜 파일의 노트를 실행

Example:
  go run ./cmd/eln backtest run --tickers NVDA --ki 60 --months 12
  go run ./cmd/eln backtest batch --plan config/plans/example.yaml`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 티커들을 같은 노트 조건으로 백테스트합니다.

Flags:
  --tickers     쉼표로 구분한 티커 목록 (필수)
  --ko          Knock-Out 레벨 (%, 기본 ELN_KO_PCT)
  --strike      행사가 레벨 (%, 기본 ELN_STRIKE_PCT)
  --ki          Knock-In 레벨 (%, 기본 ELN_KI_PCT)
  --months      만기 개월 수 (1개월 = 21 영업일, 기본 ELN_MONTHS)
  --out         결과 표 CSV 경로 (티커가 여러 개면 파일명에 티커를 붙임)
  --json        JSON 출력`,
		RunE: runBacktest,
	}

	backtestBatchCmd = &cobra.Command{
		Use:   "batch",
		Short: "플랜 파일 실행",
		Long: `YAML 플랜 파일에 정의된 모든 노트를 실행합니다.

Example:
  go run ./cmd/eln backtest batch --plan config/plans/example.yaml --json`,
		RunE: runBatch,
	}
)

var (
	btTickers  string
	btKO       float64
	btStrike   float64
	btKI       float64
	btMonths   float64
	btOut      string
	btJSON     bool
	btRows     bool
	btPlanPath string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestBatchCmd)

	backtestRunCmd.Flags().StringVar(&btTickers, "tickers", "", "comma separated tickers")
	addTermFlags(backtestRunCmd)
	backtestRunCmd.Flags().StringVar(&btOut, "out", "", "write the result table as CSV")
	backtestRunCmd.Flags().BoolVar(&btJSON, "json", false, "print JSON instead of a report")
	backtestRunCmd.Flags().BoolVar(&btRows, "rows", false, "include rows in JSON output")
	_ = backtestRunCmd.MarkFlagRequired("tickers")

	backtestBatchCmd.Flags().StringVar(&btPlanPath, "plan", "", "plan file (YAML)")
	backtestBatchCmd.Flags().BoolVar(&btJSON, "json", false, "print JSON instead of a table")
	_ = backtestBatchCmd.MarkFlagRequired("plan")
}

// addTermFlags registers --ko/--strike/--ki/--months on cmd
func addTermFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&btKO, "ko", 0, "knock-out level in percent")
	cmd.Flags().Float64Var(&btStrike, "strike", 0, "strike level in percent")
	cmd.Flags().Float64Var(&btKI, "ki", 0, "knock-in level in percent")
	cmd.Flags().Float64Var(&btMonths, "months", 0, "horizon in months")
}

// termsFromFlags overrides base with the term flags the user set
func termsFromFlags(cmd *cobra.Command, base backtest.Config) backtest.Config {
	if cmd.Flags().Changed("ko") {
		base.KnockOutPct = btKO
	}
	if cmd.Flags().Changed("strike") {
		base.StrikePct = btStrike
	}
	if cmd.Flags().Changed("ki") {
		base.KnockInPct = btKI
	}
	if cmd.Flags().Changed("months") {
		base.HorizonMonths = btMonths
	}
	return base
}

func runBacktest(cmd *cobra.Command, args []string) error {
	tickers := backtest.ParseTickers(btTickers)
	if len(tickers) == 0 {
		return fmt.Errorf("--tickers: no ticker given")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	terms := termsFromFlags(cmd, a.defaultTerms())
	if err := terms.Validate(); err != nil {
		return err
	}

	start := time.Now()
	items, err := a.runner.RunBatch(ctx, backtest.JobsFor(tickers, terms))
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	if btOut != "" {
		if err := writeRowFiles(items, btOut); err != nil {
			return err
		}
	}

	if btJSON {
		if !btRows {
			stripRows(items)
		}
		if err := PrintJSON(jsonItems(items)); err != nil {
			return err
		}
	} else {
		for _, item := range items {
			if item.Err == nil {
				PrintReport(item.Report)
			}
		}
		if len(items) > 1 {
			PrintSummaryTable(items)
		}
		fmt.Println()
		PrintFailures(items)
		fmt.Printf("\nCompleted %d ticker(s) in %.2fs\n", len(items), time.Since(start).Seconds())
	}

	return batchError(items)
}

func runBatch(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(btPlanPath)
	if err != nil {
		return err
	}
	hash, err := plan.Hash(p)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{cacheTTL: p.CacheTTL(0)})
	if err != nil {
		return err
	}
	defer a.close()

	a.log.WithFields(map[string]interface{}{
		"plan":  p.Meta.PlanID,
		"hash":  hash[:12],
		"notes": len(p.Notes),
	}).Info("Running plan")

	start := time.Now()
	items, err := a.runner.RunBatch(ctx, p.Jobs())
	if err != nil {
		return fmt.Errorf("run plan %s: %w", p.Meta.PlanID, err)
	}

	if btJSON {
		stripRows(items)
		if err := PrintJSON(map[string]interface{}{
			"plan_id": p.Meta.PlanID,
			"hash":    hash,
			"results": jsonItems(items),
		}); err != nil {
			return err
		}
	} else {
		fmt.Println()
		PrintDoubleSeparator()
		fmt.Printf("  Plan %s (%s)\n", p.Meta.PlanID, hash[:12])
		if p.Meta.Description != "" {
			fmt.Printf("  %s\n", p.Meta.Description)
		}
		PrintDoubleSeparator()
		PrintSummaryTable(items)
		fmt.Println()
		PrintFailures(items)
		fmt.Printf("\nCompleted %d note(s) in %.2fs\n", len(items), time.Since(start).Seconds())
	}

	return batchError(items)
}

// writeRowFiles writes each successful ticker's rows. With several tickers
// the ticker is appended to the file name: rows.csv -> rows_NVDA.csv.
func writeRowFiles(items []backtest.BatchItem, out string) error {
	ext := filepath.Ext(out)
	base := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".csv"
	}

	for _, item := range items {
		if item.Err != nil {
			continue
		}
		path := out
		if len(items) > 1 {
			path = fmt.Sprintf("%s_%s%s", base, item.Ticker, ext)
		}
		if err := backtest.WriteRowsCSVFile(path, item.Report.Result.Rows); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		PrintSuccess(fmt.Sprintf("%s: %d rows written to %s", item.Ticker, len(item.Report.Result.Rows), path))
	}
	return nil
}

type jsonItem struct {
	Ticker string           `json:"ticker"`
	Report *backtest.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
	Kind   string           `json:"kind,omitempty"`
}

func jsonItems(items []backtest.BatchItem) []jsonItem {
	out := make([]jsonItem, len(items))
	for i, item := range items {
		out[i] = jsonItem{Ticker: item.Ticker, Report: item.Report}
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			out[i].Kind = backtest.ErrorKind(item.Err)
		}
	}
	return out
}

// stripRows drops row tables from reports. Reports are copied so cached
// values are never mutated.
func stripRows(items []backtest.BatchItem) {
	for i := range items {
		if items[i].Report == nil || items[i].Report.Result == nil {
			continue
		}
		report := *items[i].Report
		result := *report.Result
		result.Rows = nil
		report.Result = &result
		items[i].Report = &report
	}
}

// batchError fails the command only when no ticker succeeded
func batchError(items []backtest.BatchItem) error {
	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(items) {
		return fmt.Errorf("all %d backtest(s) failed", failed)
	}
	return nil
}

// signalContext is canceled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
