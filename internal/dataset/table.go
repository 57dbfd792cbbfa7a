// Package dataset holds the reference time series an implementation module
// forecasts from. A Table is immutable after Load, so it can be shared with
// interpreted code and read from concurrent predictions.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"forecast-miner/internal/common"

	"github.com/rs/zerolog/log"
)

var (
	ErrOutOfCoverage       = errors.New("timestamp outside data coverage")
	ErrInsufficientHistory = errors.New("insufficient history before timestamp")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrEmpty               = errors.New("dataset has no usable rows")
)

// column names recognised as the time axis, in priority order
var timeColumns = []string{"timestamp", "datetime", "time", "date"}

// Table is a time-indexed numeric table sorted by time.
type Table struct {
	path    string
	times   []time.Time
	columns []string
	index   map[string]int
	values  [][]float64 // values[col][row]
	skipped int
}

// Load reads a CSV file with a header row. The time column is the first of
// timestamp/datetime/time/date present, otherwise the first column. Rows
// with a malformed timestamp are skipped; malformed numeric cells are NaN.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	t, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.path = path

	log.Debug().
		Str("path", path).
		Int("rows", t.Len()).
		Int("skipped", t.skipped).
		Strs("columns", t.columns).
		Msg("dataset loaded")
	return t, nil
}

// Parse reads a CSV table from r.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	timeIdx := 0
	lower := make([]string, len(header))
	for i, col := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	}
found:
	for _, name := range timeColumns {
		for i, col := range lower {
			if col == name {
				timeIdx = i
				break found
			}
		}
	}

	t := &Table{index: make(map[string]int)}
	var valueIdx []int
	for i, col := range header {
		if i == timeIdx {
			continue
		}
		name := strings.TrimSpace(col)
		t.index[name] = len(t.columns)
		t.columns = append(t.columns, name)
		valueIdx = append(valueIdx, i)
	}

	type row struct {
		ts   time.Time
		vals []float64
	}
	var rows []row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if timeIdx >= len(record) {
			t.skipped++
			continue
		}
		ts, err := common.ParseTimestamp(record[timeIdx])
		if err != nil {
			t.skipped++
			continue
		}
		vals := make([]float64, len(valueIdx))
		for j, idx := range valueIdx {
			vals[j] = parseCell(record, idx)
		}
		rows = append(rows, row{ts: ts, vals: vals})
	}

	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })

	t.times = make([]time.Time, len(rows))
	t.values = make([][]float64, len(t.columns))
	for c := range t.values {
		t.values[c] = make([]float64, len(rows))
	}
	for i, r := range rows {
		t.times[i] = r.ts
		for c, v := range r.vals {
			t.values[c][i] = v
		}
	}
	return t, nil
}

func parseCell(record []string, idx int) float64 {
	if idx >= len(record) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Path returns the file the table was loaded from, if any.
func (t *Table) Path() string { return t.path }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.times) }

// Skipped returns the number of rows dropped for a malformed timestamp.
func (t *Table) Skipped() int { return t.skipped }

// Columns returns the value column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Start returns the first timestamp.
func (t *Table) Start() time.Time { return t.times[0] }

// End returns the last timestamp.
func (t *Table) End() time.Time { return t.times[len(t.times)-1] }

// Covers reports whether ts lies within [Start, End].
func (t *Table) Covers(ts time.Time) bool {
	return !ts.Before(t.Start()) && !ts.After(t.End())
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]float64, len(t.values[c]))
	copy(out, t.values[c])
	return out, nil
}

// Window returns the last n values of column at or before ts.
func (t *Table) Window(ts time.Time, column string, n int) ([]float64, error) {
	c, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if n <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", n)
	}
	if !t.Covers(ts) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfCoverage,
			ts.Format(time.RFC3339), t.Start().Format(time.RFC3339), t.End().Format(time.RFC3339))
	}

	// first row strictly after ts
	end := sort.Search(len(t.times), func(i int) bool { return t.times[i].After(ts) })
	if end < n {
		return nil, fmt.Errorf("%w: need %d rows, have %d", ErrInsufficientHistory, n, end)
	}
	out := make([]float64, n)
	copy(out, t.values[c][end-n:end])
	return out, nil
}

// Last returns the most recent value of column at or before ts.
func (t *Table) Last(ts time.Time, column string) (float64, error) {
	w, err := t.Window(ts, column, 1)
	if err != nil {
		return 0, err
	}
	return w[0], nil
}
