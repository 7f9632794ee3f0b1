package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wonny/eln-backtest/internal/backtest"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v to stdout as indented JSON
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintReport prints the summary block of one ticker run
func PrintReport(r *backtest.Report) {
	res := r.Result
	st := res.Stats

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s  (%s, %d trading days)\n", r.Ticker, res.Config.String(), res.HorizonDays)
	PrintSeparator()
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", formatDate(r.FirstDate), formatDate(r.LastDate)), 14)
	PrintKeyValue("Reference", fmt.Sprintf("%s (%s)", formatPrice(r.Levels.ReferencePrice), formatDate(r.Levels.ReferenceDate)), 14)
	PrintKeyValue("Levels", fmt.Sprintf("KO %s / Strike %s / KI %s",
		formatPrice(r.Levels.KnockOut), formatPrice(r.Levels.Strike), formatPrice(r.Levels.KnockIn)), 14)
	PrintSeparator()
	PrintKeyValue("Periods", strconv.Itoa(st.TotalPeriods), 14)
	PrintKeyValue("Safety", formatPct(st.SafetyProbability), 14)
	PrintKeyValue("Loss", fmt.Sprintf("%s (%d)", formatPct(st.LossProbability), st.LossCount), 14)
	PrintKeyValue("Positive", formatPct(st.PositiveReturnProbability), 14)
	PrintKeyValue("Stuck", fmt.Sprintf("%d (%s of losses)", st.StuckCount, formatPct(st.StuckRate)), 14)
	if st.LossCount > st.StuckCount {
		PrintKeyValue("Avg recovery", fmt.Sprintf("%.0f days", st.AverageRecoveryDays), 14)
	} else {
		PrintKeyValue("Avg recovery", "-", 14)
	}
	if r.Cached {
		PrintKeyValue("Source", "cache", 14)
	}
}

// PrintSummaryTable prints one line per batch item
func PrintSummaryTable(items []backtest.BatchItem) {
	columns := []string{"Ticker", "Terms", "Periods", "Safety", "Loss", "Stuck", "AvgRecov"}
	widths := []int{12, 22, 8, 8, 8, 6, 8}

	fmt.Println()
	PrintTableHeader(columns, widths)
	for _, item := range items {
		if item.Err != nil {
			PrintTableRow([]string{item.Ticker, backtest.ErrorKind(item.Err), "-", "-", "-", "-", "-"}, widths)
			continue
		}
		res := item.Report.Result
		PrintTableRow([]string{
			item.Ticker,
			res.Config.String(),
			strconv.Itoa(res.Stats.TotalPeriods),
			formatPct(res.Stats.SafetyProbability),
			formatPct(res.Stats.LossProbability),
			strconv.Itoa(res.Stats.StuckCount),
			fmt.Sprintf("%.0f", res.Stats.AverageRecoveryDays),
		}, widths)
	}
}

// PrintFailures lists failed tickers with their error
func PrintFailures(items []backtest.BatchItem) {
	for _, item := range items {
		if item.Err != nil {
			PrintError(fmt.Sprintf("%s: %v", item.Ticker, item.Err))
		}
	}
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
