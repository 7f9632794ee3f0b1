package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	priceDir string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eln",
	Short: "ELN 배리어 노트 백테스터",
	Long: `ELN Backtest Unified CLI

과거 종가로 ELN(Knock-In 배리어 노트)을 매 영업일 발행했다고 가정하고
만기 손실 확률, 손실 회복 기간, 회복 불가(stuck) 비율을 계산합니다.

Usage:
  go run ./cmd/eln [command]

Examples:
  go run ./cmd/eln backtest run --tickers NVDA,AAPL --ki 60
  go run ./cmd/eln backtest batch --plan config/plans/example.yaml
  go run ./cmd/eln levels --tickers 005930.KS
  go run ./cmd/eln api
  go run ./cmd/eln scheduler start --plan config/plans/example.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&priceDir, "price-dir", "", "CSV price directory (overrides PRICE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
