package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/pkg/config"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "설정 및 의존성 점검",
	Long: `설정을 읽고 가격 입력, PostgreSQL, Redis 연결을 점검합니다.

이 명령어는:
- config 로드 및 검증
- 가격 소스 확인 (CSV 디렉터리 또는 DB)
- Database Health Check 및 Connection Pool 통계
- Redis Ping

Example:
  go run ./cmd/eln check
  go run ./cmd/eln check --price-dir ./data`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ELN Backtest Dependency Check ===")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer a.close()

	cfg := a.cfg
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	PrintKeyValue("Terms", a.defaultTerms().String(), 12)
	PrintKeyValue("Workers", fmt.Sprintf("%d", cfg.Backtest.Workers), 12)
	PrintKeyValue("Cache TTL", cfg.Backtest.CacheTTL.String(), 12)
	fmt.Println()

	// Price source
	switch cfg.PriceSource {
	case config.PriceSourceCSV:
		files, err := filepath.Glob(filepath.Join(cfg.PriceDir, "*.csv"))
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(cfg.PriceDir); statErr != nil {
			PrintError(fmt.Sprintf("Price directory %s: %v", cfg.PriceDir, statErr))
		} else {
			PrintSuccess(fmt.Sprintf("Price directory %s (%d CSV files)", cfg.PriceDir, len(files)))
		}
	case config.PriceSourcePostgres:
		PrintSuccess("Prices from data.daily_prices")
	}

	// Database
	if a.db == nil {
		fmt.Println("ℹ️  Database not configured (run history disabled)")
	} else {
		status := a.db.HealthCheck(ctx)
		if status.Healthy {
			PrintSuccess(fmt.Sprintf("Database %s (%v)", maskPassword(cfg.Database.URL), status.ResponseTime))
		} else {
			PrintError(fmt.Sprintf("Database %s: %s", maskPassword(cfg.Database.URL), status.Error))
		}
		fmt.Println("📊 Connection Pool Statistics:")
		fmt.Printf("   Max Connections: %d\n", status.MaxConns)
		fmt.Printf("   Total Connections: %d\n", status.TotalConns)
		fmt.Printf("   Idle Connections: %d\n", status.IdleConns)
	}

	// Redis
	if !a.redis.Enabled() {
		fmt.Println("ℹ️  Redis disabled (result cache and shared rate limit off)")
	} else if err := a.redis.Ping(ctx); err != nil {
		PrintError(fmt.Sprintf("Redis %s:%s: %v", cfg.Redis.Host, cfg.Redis.Port, err))
	} else {
		PrintSuccess(fmt.Sprintf("Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port))
	}

	return nil
}

// maskPassword hides the password of a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
