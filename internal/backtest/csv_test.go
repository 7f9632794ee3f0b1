package backtest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRowsCSV(t *testing.T) {
	// row 0 knocks in, ends below strike and recovers a day later
	s := seriesOf(t, []float64{100, 60, 70, 85, 90})
	result, err := Simulate(s, termsFor(2, 65, 80))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRowsCSV(&buf, result.Rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+len(result.Rows))
	assert.Equal(t, rowsHeader, records[0])

	first := records[1]
	assert.Equal(t, "2009-01-02", first[0])
	assert.Equal(t, "100", first[1])
	assert.Equal(t, "2009-01-04", first[2])
	assert.Equal(t, "70", first[3])
	assert.Equal(t, "60", first[4])
	assert.Equal(t, "true", first[7])
	assert.Equal(t, "loss", first[9])
	assert.Equal(t, "1", first[10])
	assert.Equal(t, "false", first[11])

	for i, row := range result.Rows {
		if row.RecoveryDays == nil {
			assert.Empty(t, records[i+1][10], "row %d", i)
		}
	}
}

func TestWriteRowsCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, WriteRowsCSVFile(path, nil))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "start_date,start_price,end_date,final_price,min_price,knock_in_level,strike_level,touched_knock_in,below_strike,outcome,recovery_days,stuck,return_vs_strike_pct\n", string(b))
}
