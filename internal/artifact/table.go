package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wonny/exitlab/internal/contracts"
)

// ResultColumns is the header of the ranked and top-K tables
var ResultColumns = append(append([]string{}, contracts.ExitParamKeys...),
	"n_trades",
	"skipped_no_ticks",
	"unusable",
	"average_R",
	"profit_factor",
	"win_rate",
	"max_drawdown_R",
	"reasons_sample",
)

// WriteResults writes one row per grid result in the given order
func WriteResults(out io.Writer, results []contracts.GridResult) error {
	w := csv.NewWriter(out)
	if err := w.Write(ResultColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range results {
		row := make([]string, 0, len(ResultColumns))
		for _, v := range r.Params.Values() {
			row = append(row, formatOptional(v))
		}

		reasons := make([]string, len(r.ReasonsSample))
		for i, reason := range r.ReasonsSample {
			reasons[i] = string(reason)
		}

		row = append(row,
			strconv.Itoa(r.Trades),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Unusable),
			FormatFloat(r.Metrics.AverageR),
			FormatFloat(r.Metrics.ProfitFactor),
			FormatFloat(r.Metrics.WinRate),
			FormatFloat(r.Metrics.MaxDrawdownR),
			strings.Join(reasons, ";"),
		)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write result %d: %w", r.Index, err)
		}
	}

	w.Flush()
	return w.Error()
}

func writeResultsFile(path string, results []contracts.GridResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := WriteResults(f, results); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// FormatFloat renders NaN as an empty cell and infinities as inf/-inf
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v)
}
