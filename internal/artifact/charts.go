package artifact

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/exitlab/internal/risk"
)

// DefaultHistogramBins is the bin count of the R distribution chart
const DefaultHistogramBins = 40

// Histogram is a fixed-width binning of an R series. Edges has len(Counts)+1
// entries; the last bin includes its upper edge.
type Histogram struct {
	Edges  []float64
	Counts []int
}

// NewHistogram bins rs into equal-width bins spanning [min, max]. A constant
// series is centred in a unit-wide range.
func NewHistogram(rs []float64, bins int) Histogram {
	if bins < 1 {
		bins = DefaultHistogramBins
	}
	h := Histogram{Edges: make([]float64, bins+1), Counts: make([]int, bins)}
	if len(rs) == 0 {
		for i := range h.Edges {
			h.Edges[i] = float64(i) / float64(bins)
		}
		return h
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rs {
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi

	for _, r := range rs {
		i := int((r - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		h.Counts[i]++
	}
	return h
}

// Plotter renders the charts of the best configuration
type Plotter interface {
	EquityCurve(curve []float64) error
	Distribution(h Histogram) error
}

// Chart data file names
const (
	EquityCurveFile  = "equity_curve_best.csv"
	DistributionFile = "r_distribution_best.csv"
)

// CSVPlotter writes chart data for an external renderer
type CSVPlotter struct {
	Dir string
}

// EquityCurve writes trade number and cumulative R
func (p CSVPlotter) EquityCurve(curve []float64) error {
	rows := make([][]string, 0, len(curve)+1)
	rows = append(rows, []string{"trade", "cum_R"})
	for i, v := range curve {
		rows = append(rows, []string{strconv.Itoa(i + 1), FormatFloat(v)})
	}
	return writeRows(filepath.Join(p.Dir, EquityCurveFile), rows)
}

// Distribution writes one row per histogram bin
func (p CSVPlotter) Distribution(h Histogram) error {
	rows := make([][]string, 0, len(h.Counts)+1)
	rows = append(rows, []string{"bin_lo", "bin_hi", "count"})
	for i, c := range h.Counts {
		rows = append(rows, []string{FormatFloat(h.Edges[i]), FormatFloat(h.Edges[i+1]), strconv.Itoa(c)})
	}
	return writeRows(filepath.Join(p.Dir, DistributionFile), rows)
}

// Plot hands the equity curve and R distribution of rs to p
func Plot(p Plotter, rs []float64, bins int) error {
	if err := p.EquityCurve(risk.EquityCurve(rs)); err != nil {
		return fmt.Errorf("equity curve: %w", err)
	}
	if err := p.Distribution(NewHistogram(rs, bins)); err != nil {
		return fmt.Errorf("r distribution: %w", err)
	}
	return nil
}

func writeRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
