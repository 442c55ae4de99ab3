package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/pkg/logger"
)

// ErrMissingColumn is returned (wrapped, with the column name) when the header lacks a required column
var ErrMissingColumn = errors.New("missing required report column")

// Column names of a trade history report. A repeated header gets a ".1"
// suffix, so the close time and close price read as "Time.1" and "Price.1".
const (
	ColOpenTime   = "Time"
	ColPosition   = "Position"
	ColSymbol     = "Symbol"
	ColType       = "Type"
	ColVolume     = "Volume"
	ColEntry      = "Price"
	ColStop       = "S / L"
	ColTakeProfit = "T / P"
	ColCloseTime  = "Time.1"
	ColClosePrice = "Price.1"
)

// RequiredColumns must all be present in the header
var RequiredColumns = []string{
	ColOpenTime, ColPosition, ColSymbol, ColType, ColVolume,
	ColEntry, ColStop, ColTakeProfit, ColCloseTime, ColClosePrice,
}

// TimeLayouts are the accepted report timestamp formats
var TimeLayouts = []string{
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
}

// DefaultFallbackHorizon bounds the tick window of a trade without close time
const DefaultFallbackHorizon = 72 * time.Hour

// Options configures report parsing
type Options struct {
	FallbackHorizon time.Duration
	Comma           rune
}

// Stats counts what happened to the rows of one report
type Stats struct {
	Rows    int
	Kept    int
	Dropped int
}

// Reader parses trade history reports into trades
// ⭐ SSOT: 리포트 CSV 파싱은 여기서만
type Reader struct {
	opts   Options
	logger *logger.Logger
}

// NewReader creates a report reader
func NewReader(opts Options, log *logger.Logger) *Reader {
	if opts.FallbackHorizon <= 0 {
		opts.FallbackHorizon = DefaultFallbackHorizon
	}
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	return &Reader{opts: opts, logger: log.Component("report")}
}

// ReadFile parses the report at path. A missing file is an error.
func (r *Reader) ReadFile(path string) ([]contracts.Trade, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	trades, stats, err := r.Read(f)
	if err != nil {
		return nil, stats, fmt.Errorf("read report %s: %w", path, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"path":    path,
		"rows":    stats.Rows,
		"kept":    stats.Kept,
		"dropped": stats.Dropped,
	}).Info("Report loaded")

	return trades, stats, nil
}

// Read parses a report stream. Rows whose open time, symbol, type, entry or
// stop do not parse are dropped; a missing required column is an error.
func (r *Reader) Read(in io.Reader) ([]contracts.Trade, Stats, error) {
	cr := csv.NewReader(in)
	cr.Comma = r.opts.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}

	idx := indexColumns(DedupeHeader(header))
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, Stats{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var (
		trades []contracts.Trade
		stats  Stats
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		tr, ok := r.parseRow(rec, idx)
		if !ok {
			stats.Dropped++
			continue
		}
		trades = append(trades, tr)
		stats.Kept++
	}

	return trades, stats, nil
}

func (r *Reader) parseRow(rec []string, idx map[string]int) (contracts.Trade, bool) {
	get := func(col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	open, ok := ParseTime(get(ColOpenTime))
	if !ok {
		return contracts.Trade{}, false
	}
	symbol := strings.ToUpper(get(ColSymbol))
	if symbol == "" {
		return contracts.Trade{}, false
	}
	dir, ok := contracts.ParseDirection(get(ColType))
	if !ok {
		return contracts.Trade{}, false
	}
	entry, ok := ParseNumber(get(ColEntry))
	if !ok {
		return contracts.Trade{}, false
	}
	stop, ok := ParseNumber(get(ColStop))
	if !ok {
		return contracts.Trade{}, false
	}

	tr := contracts.Trade{
		ID:        get(ColPosition),
		Symbol:    symbol,
		Direction: dir,
		Entry:     entry,
		Stop:      stop,
		OpenTime:  open,
		WindowEnd: open.Add(r.opts.FallbackHorizon),
	}
	if v, ok := ParseNumber(get(ColVolume)); ok {
		tr.Volume = v
	}
	if v, ok := ParseNumber(get(ColTakeProfit)); ok {
		tr.TakeProfit = &v
	}
	if v, ok := ParseNumber(get(ColClosePrice)); ok {
		tr.ClosePrice = &v
	}
	if ct, ok := ParseTime(get(ColCloseTime)); ok {
		tr.CloseTime = &ct
		tr.WindowEnd = ct
	}
	return tr, true
}

// DedupeHeader renames repeated column names the way spreadsheet exports are
// usually read back: the second "Time" becomes "Time.1", the third "Time.2".
func DedupeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		n := seen[h]
		seen[h] = n + 1
		if n > 0 {
			out[i] = fmt.Sprintf("%s.%d", h, n)
		} else {
			out[i] = h
		}
	}
	return out
}

func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// ParseTime accepts any of TimeLayouts
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a finite float, ignoring thousands spaces
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
