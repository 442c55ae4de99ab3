package tickdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/pkg/logger"
)

// ErrMissingColumn is returned when a tick file lacks time, bid or ask
var ErrMissingColumn = errors.New("missing tick column")

// tick file columns
const (
	colTime = "time"
	colBid  = "bid"
	colAsk  = "ask"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006.01.02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006.01.02 15:04",
}

// MonthFile is the corpus path of one symbol-month
func MonthFile(dir, symbol string, year int, month time.Month) string {
	return filepath.Join(dir, fmt.Sprintf("Ticks_%s_%04d_%02d.csv", symbol, year, int(month)))
}

type monthKey struct {
	symbol string
	year   int
	month  time.Month
}

// CSVSource serves ticks from monthly CSV files. Parsed months are cached for
// the lifetime of the source.
// ⭐ SSOT: 틱 CSV 코퍼스 접근은 여기서만
type CSVSource struct {
	dir    string
	logger *logger.Logger

	mu    sync.Mutex
	cache map[monthKey][]contracts.Tick
}

// NewCSVSource opens the tick directory. A missing directory is an error.
func NewCSVSource(dir string, log *logger.Logger) (*CSVSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tick corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tick corpus root %s is not a directory", dir)
	}
	return &CSVSource{
		dir:    dir,
		logger: log.Component("tickdata"),
		cache:  make(map[monthKey][]contracts.Tick),
	}, nil
}

// Ticks returns the ticks of symbol in [from, to] across every covered month.
// Months without a file contribute nothing.
func (s *CSVSource) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Tick, error) {
	if to.Before(from) {
		return nil, nil
	}

	var out []contracts.Tick
	for _, key := range monthsBetween(symbol, from, to) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		month, err := s.month(key)
		if err != nil {
			return nil, err
		}
		out = append(out, Window(month, from, to)...)
	}
	return out, nil
}

func (s *CSVSource) month(key monthKey) ([]contracts.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticks, ok := s.cache[key]; ok {
		return ticks, nil
	}

	path := MonthFile(s.dir, key.symbol, key.year, key.month)
	ticks, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": key.symbol,
		"month":  fmt.Sprintf("%04d-%02d", key.year, int(key.month)),
		"ticks":  len(ticks),
	}).Debug("Tick month loaded")

	s.cache[key] = ticks
	return ticks, nil
}

// ReadFile parses one month file. A missing file yields no ticks.
func ReadFile(path string) ([]contracts.Tick, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	defer f.Close()

	ticks, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read tick file %s: %w", path, err)
	}
	return ticks, nil
}

// Read parses a time,bid,ask stream sorted by time. Rows with an unparseable
// time are dropped; unparseable prices become NaN and are skipped on replay.
func Read(in io.Reader) ([]contracts.Tick, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, col := range []string{colTime, colBid, colAsk} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	ti, bi, ai := idx[colTime], idx[colBid], idx[colAsk]

	var ticks []contracts.Tick
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tick row: %w", err)
		}
		if ti >= len(rec) {
			continue
		}
		ts, ok := ParseTime(rec[ti])
		if !ok {
			continue
		}
		ticks = append(ticks, contracts.Tick{
			Time: ts,
			Bid:  field(rec, bi),
			Ask:  field(rec, ai),
		})
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Time.Before(ticks[j].Time)
	})
	return ticks, nil
}

func field(rec []string, i int) float64 {
	if i >= len(rec) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseTime accepts the common tick timestamp layouts and unix epochs in
// seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// Window returns the sub-slice of sorted ticks with from <= time <= to
func Window(ticks []contracts.Tick, from, to time.Time) []contracts.Tick {
	lo := sort.Search(len(ticks), func(i int) bool {
		return !ticks[i].Time.Before(from)
	})
	hi := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time.After(to)
	})
	if lo >= hi {
		return nil
	}
	return ticks[lo:hi]
}

func monthFiles(dir, symbol string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("Ticks_%s_*.csv", symbol)))
	if err != nil {
		return nil, fmt.Errorf("glob tick files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func monthsBetween(symbol string, from, to time.Time) []monthKey {
	var keys []monthKey
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		keys = append(keys, monthKey{symbol: symbol, year: cur.Year(), month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return keys
}
