package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/eln-backtest/internal/backtest"
)

// levelsCmd represents the levels command
var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "현재가 기준 노트 레벨 조회",
	Long: `최근 종가 기준으로 KO, 행사가, KI 가격 레벨을 계산합니다.
시뮬레이션은 실행하지 않습니다.

Example:
  go run ./cmd/eln levels --tickers NVDA,005930.KS --ki 55`,
	RunE: runLevels,
}

var lvTickers string

func init() {
	rootCmd.AddCommand(levelsCmd)

	levelsCmd.Flags().StringVar(&lvTickers, "tickers", "", "comma separated tickers")
	addTermFlags(levelsCmd)
	levelsCmd.Flags().BoolVar(&btJSON, "json", false, "print JSON instead of a table")
	_ = levelsCmd.MarkFlagRequired("tickers")
}

func runLevels(cmd *cobra.Command, args []string) error {
	tickers := backtest.ParseTickers(lvTickers)
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

	type entry struct {
		Ticker string           `json:"ticker"`
		Levels *backtest.Levels `json:"levels,omitempty"`
		Error  string           `json:"error,omitempty"`
	}
	entries := make([]entry, 0, len(tickers))
	failed := 0
	for _, t := range tickers {
		levels, err := a.engine.Levels(ctx, t, terms)
		if err != nil {
			failed++
			entries = append(entries, entry{Ticker: t, Error: err.Error()})
			continue
		}
		entries = append(entries, entry{Ticker: t, Levels: &levels})
	}

	if btJSON {
		if err := PrintJSON(entries); err != nil {
			return err
		}
	} else {
		columns := []string{"Ticker", "Date", "Close", "KO", "Strike", "KI"}
		widths := []int{12, 10, 12, 12, 12, 12}

		fmt.Printf("\n%s\n\n", terms.String())
		PrintTableHeader(columns, widths)
		for _, e := range entries {
			if e.Levels == nil {
				continue
			}
			PrintTableRow([]string{
				e.Ticker,
				formatDate(e.Levels.ReferenceDate),
				formatPrice(e.Levels.ReferencePrice),
				formatPrice(e.Levels.KnockOut),
				formatPrice(e.Levels.Strike),
				formatPrice(e.Levels.KnockIn),
			}, widths)
		}
		fmt.Println()
		for _, e := range entries {
			if e.Error != "" {
				PrintError(fmt.Sprintf("%s: %s", e.Ticker, e.Error))
			}
		}
	}

	if failed == len(tickers) {
		return fmt.Errorf("no levels computed")
	}
	return nil
}
