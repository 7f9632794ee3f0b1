package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/internal/api"
	"github.com/wonny/eln-backtest/internal/api/handlers"
	"github.com/wonny/eln-backtest/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                           - Health check (DB, Redis 포함)
  GET  /metrics                          - Prometheus metrics
  POST /api/backtest                     - 백테스트 실행 (여러 티커)
  GET  /api/backtest/{ticker}/rows.csv   - 결과 표 CSV
  GET  /api/levels/{ticker}              - 현재가 기준 노트 레벨
  GET  /api/runs/{ticker}                - 실행 이력

Example:
  go run ./cmd/eln api
  go run ./cmd/eln api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort    string
	apiOrigins []string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본 PORT)")
	apiCmd.Flags().StringSliceVar(&apiOrigins, "cors-origin", nil, "allowed CORS origins (default *)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ELN Backtest API Server ===")

	ctx, stop := signalContext()
	defer stop()

	// 1. Wire dependencies
	a, err := newApp(ctx, appOptions{metrics: true})
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. Health checks
	checks := map[string]handlers.Check{}
	if a.db != nil {
		checks["database"] = func(ctx context.Context) error {
			if status := a.db.HealthCheck(ctx); !status.Healthy {
				return errors.New(status.Error)
			}
			return nil
		}
	}
	if a.redis.Enabled() {
		checks["redis"] = a.redis.Ping
	}

	// 3. Handlers
	var runs handlers.RunLister
	if a.runs != nil {
		runs = a.runs
	}
	deps := api.RouterDeps{
		Backtest:       handlers.NewBacktestHandler(a.engine, a.runner, runs, a.defaultTerms(), a.log),
		Health:         handlers.NewHealthHandler("eln-backtest", checks),
		Limiter:        api.NewRateLimiter(redis.NewRateLimiter(a.redis, "eln"), a.cfg.RateLimitPerMinute, a.log),
		AllowedOrigins: apiOrigins,
		Logger:         a.log,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
		deps.MetricsHandler = api.PrometheusHandler()
	}

	// 4. Create server
	server := api.New(a.cfg, a.log, api.NewRouter(deps))

	// 5. Serve until Ctrl+C, then shut down gracefully
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
