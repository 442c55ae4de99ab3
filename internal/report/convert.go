package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/exitlab/internal/contracts"
)

// =============================================================================
// Signals -> report converter
// =============================================================================

// Signal is one entry signal from a generated signals file
type Signal struct {
	Time       time.Time
	Symbol     string
	Direction  contracts.Direction
	Entry      float64
	Stop       float64
	TakeProfit *float64
}

// SignalColumns are the required signal file columns
var SignalColumns = []string{"Time", "symbol", "direction", "entry", "sl", "tp"}

var signalTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
}

// ConvertOptions controls the synthetic report rows
type ConvertOptions struct {
	FirstPosition int64
	Volume        float64
	Duration      time.Duration
	Commission    float64
	PipValue      float64 // account currency per price unit at Volume
}

// DefaultConvertOptions returns the converter defaults
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{
		FirstPosition: 90000000,
		Volume:        0.01,
		Duration:      24 * time.Hour,
		Commission:    -0.20,
		PipValue:      100,
	}
}

// ReadSignals parses a signals CSV. Rows with a bad time, direction, entry or
// stop are skipped; a missing column is an error.
func ReadSignals(in io.Reader) ([]Signal, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read signals header: %w", err)
	}
	idx := indexColumns(DedupeHeader(header))
	for _, col := range SignalColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var signals []Signal
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read signal row: %w", err)
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		ts, ok := parseSignalTime(get("Time"))
		if !ok {
			continue
		}
		dir, ok := contracts.ParseDirection(get("direction"))
		if !ok {
			continue
		}
		entry, ok := ParseNumber(get("entry"))
		if !ok {
			continue
		}
		stop, ok := ParseNumber(get("sl"))
		if !ok {
			continue
		}

		sig := Signal{
			Time:      ts,
			Symbol:    strings.ToUpper(get("symbol")),
			Direction: dir,
			Entry:     entry,
			Stop:      stop,
		}
		if tp, ok := ParseNumber(get("tp")); ok {
			sig.TakeProfit = &tp
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func parseSignalTime(s string) (time.Time, bool) {
	for _, layout := range signalTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WriteReport renders signals as report rows readable by Reader. Every row is
// booked as closed at its stop after opts.Duration.
func WriteReport(out io.Writer, signals []Signal, opts ConvertOptions) error {
	w := csv.NewWriter(out)
	header := []string{
		ColOpenTime, ColPosition, ColSymbol, ColType, ColVolume, ColEntry, ColStop, ColTakeProfit,
		ColCloseTime, ColClosePrice, "Commission", "Swap", "Profit", "result",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	layout := TimeLayouts[0]
	for i, sig := range signals {
		risk := decimal.NewFromFloat(sig.Entry).Sub(decimal.NewFromFloat(sig.Stop)).Abs()
		profit := risk.Mul(decimal.NewFromFloat(opts.PipValue)).Neg().Round(2)

		tp := ""
		if sig.TakeProfit != nil {
			tp = formatPrice(*sig.TakeProfit)
		}

		row := []string{
			sig.Time.Format(layout),
			strconv.FormatInt(opts.FirstPosition+int64(i), 10),
			sig.Symbol,
			string(sig.Direction),
			decimal.NewFromFloat(opts.Volume).String(),
			formatPrice(sig.Entry),
			formatPrice(sig.Stop),
			tp,
			sig.Time.Add(opts.Duration).Format(layout),
			formatPrice(sig.Stop),
			decimal.NewFromFloat(opts.Commission).StringFixed(2),
			"0",
			profit.StringFixed(2),
			"loss",
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	return w.Error()
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).String()
}
