package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

var rowsHeader = []string{
	"start_date",
	"start_price",
	"end_date",
	"final_price",
	"min_price",
	"knock_in_level",
	"strike_level",
	"touched_knock_in",
	"below_strike",
	"outcome",
	"recovery_days",
	"stuck",
	"return_vs_strike_pct",
}

// WriteRowsCSVFile writes the result table to path
func WriteRowsCSVFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteRowsCSV(f, rows)
}

// WriteRowsCSV writes the result table with a header line. Recovery days are
// left blank when undefined.
func WriteRowsCSV(out io.Writer, rows []Row) error {
	w := csv.NewWriter(out)

	if err := w.Write(rowsHeader); err != nil {
		return err
	}

	for _, r := range rows {
		recovery := ""
		if r.RecoveryDays != nil {
			recovery = strconv.Itoa(*r.RecoveryDays)
		}
		record := []string{
			fmtDate(r.StartDate),
			fmtFloat(r.StartPrice),
			fmtDate(r.EndDate),
			fmtFloat(r.FinalPrice),
			fmtFloat(r.MinPrice),
			fmtFloat(r.KnockInLevel),
			fmtFloat(r.StrikeLevel),
			strconv.FormatBool(r.TouchedKnockIn),
			strconv.FormatBool(r.BelowStrike),
			string(r.Outcome),
			recovery,
			strconv.FormatBool(r.Stuck),
			fmtFloat(r.ReturnVsStrikePct),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
