package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/pkg/logger"
)

// Batch output file names
const (
	ResultsFile    = "exit_grid_results.csv"
	TopFile        = "exit_grid_top20.csv"
	BestConfigFile = "best_config.txt"
)

// Files lists what WriteRun produced
type Files struct {
	Results    string
	Top        string
	BestConfig string
	Charts     bool
}

// Writer persists the outputs of a grid run into one directory
// ⭐ SSOT: 배치 산출물 파일 작성은 여기서만
type Writer struct {
	dir     string
	plotter Plotter
	bins    int
	logger  *logger.Logger
}

// NewWriter creates an output writer; a nil plotter writes chart data as CSV into dir
func NewWriter(dir string, plotter Plotter, log *logger.Logger) *Writer {
	if plotter == nil {
		plotter = CSVPlotter{Dir: dir}
	}
	return &Writer{
		dir:     dir,
		plotter: plotter,
		bins:    DefaultHistogramBins,
		logger:  log.Component("artifact"),
	}
}

// WriteRun writes the ranked table and top-K table. When the run has a best
// configuration it also writes the best-config artifact and chart data.
func (w *Writer) WriteRun(res *backtest.Result) (Files, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}

	files := Files{
		Results: filepath.Join(w.dir, ResultsFile),
		Top:     filepath.Join(w.dir, TopFile),
	}

	if err := writeResultsFile(files.Results, res.Ranked); err != nil {
		return files, err
	}
	if err := writeResultsFile(files.Top, res.Top); err != nil {
		return files, err
	}

	if res.Best == nil {
		w.logger.Warn("No configuration produced trades, best config not written")
		return files, nil
	}

	files.BestConfig = filepath.Join(w.dir, BestConfigFile)
	best := BestConfig{
		Params:     res.Best.Params,
		Metrics:    res.Best.Metrics,
		MonteCarlo: res.MonteCarlo,
	}
	if err := best.Save(files.BestConfig); err != nil {
		return files, err
	}

	if err := Plot(w.plotter, res.BestSeries, w.bins); err != nil {
		return files, fmt.Errorf("plot best series: %w", err)
	}
	files.Charts = true

	w.logger.WithFields(map[string]interface{}{
		"dir":     w.dir,
		"results": len(res.Ranked),
		"top":     len(res.Top),
	}).Info("Grid outputs written")

	return files, nil
}
