package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/internal/pricedata"
)

// pricesCmd represents the prices command
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "가격 데이터 관리",
	Long: `PostgreSQL 가격 테이블(data.daily_prices)을 관리합니다.

Example:
  go run ./cmd/eln prices import --ticker NVDA --file data/NVDA.csv`,
}

var pricesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "CSV 종가 가져오기",
	RunE:  runPricesImport,
}

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 관리",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "가격/실행 이력 테이블 생성",
	RunE:  runDBMigrate,
}

var (
	importTicker string
	importFile   string
)

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesImportCmd)
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)

	pricesImportCmd.Flags().StringVar(&importTicker, "ticker", "", "ticker to store the prices under")
	pricesImportCmd.Flags().StringVar(&importFile, "file", "", "CSV file with date and close columns")
	_ = pricesImportCmd.MarkFlagRequired("ticker")
	_ = pricesImportCmd.MarkFlagRequired("file")
}

func runPricesImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if a.db == nil {
		return fmt.Errorf("prices import needs DATABASE_URL")
	}

	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", importFile, err)
	}
	defer f.Close()

	raw, err := pricedata.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", importFile, err)
	}

	ticker := backtest.NormalizeTicker(importTicker)
	repo := pricedata.NewPriceRepository(a.db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	saved, err := repo.SavePrices(ctx, ticker, raw)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s: %d rows imported from %s", ticker, saved, importFile))
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if a.runs == nil {
		return fmt.Errorf("db migrate needs DATABASE_URL")
	}

	if err := pricedata.NewPriceRepository(a.db.Pool).EnsureSchema(ctx); err != nil {
		return err
	}
	if err := a.runs.EnsureSchema(ctx); err != nil {
		return err
	}

	PrintSuccess("data.daily_prices and backtest.runs are ready")
	return nil
}
