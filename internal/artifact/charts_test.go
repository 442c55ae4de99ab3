package artifact

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistogram(t *testing.T) {
	h := NewHistogram([]float64{-1, 0, 0.5, 1, 3}, 4)

	require.Len(t, h.Edges, 5)
	assert.Equal(t, []float64{-1, 0, 1, 2, 3}, h.Edges)
	assert.Equal(t, []int{1, 2, 1, 1}, h.Counts, "upper edge belongs to the last bin")
}

func TestNewHistogramConstantSeries(t *testing.T) {
	h := NewHistogram([]float64{2, 2, 2}, 2)
	assert.Equal(t, []float64{1.5, 2, 2.5}, h.Edges)
	assert.Equal(t, []int{0, 3}, h.Counts)
}

func TestNewHistogramEmpty(t *testing.T) {
	h := NewHistogram(nil, DefaultHistogramBins)
	assert.Len(t, h.Counts, DefaultHistogramBins)
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	assert.Zero(t, total)
}

type recordingPlotter struct {
	curve []float64
	hist  Histogram
}

func (p *recordingPlotter) EquityCurve(curve []float64) error {
	p.curve = curve
	return nil
}

func (p *recordingPlotter) Distribution(h Histogram) error {
	p.hist = h
	return nil
}

func TestPlotDelegates(t *testing.T) {
	p := &recordingPlotter{}
	require.NoError(t, Plot(p, []float64{2, -1, 1, -1, 3, -2}, DefaultHistogramBins))

	assert.Equal(t, []float64{2, 1, 2, 1, 4, 2}, p.curve)
	assert.Len(t, p.hist.Counts, DefaultHistogramBins)
}

func TestCSVPlotterFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Plot(CSVPlotter{Dir: dir}, []float64{1, -1}, 2))

	equity := readCSV(t, filepath.Join(dir, EquityCurveFile))
	assert.Equal(t, [][]string{{"trade", "cum_R"}, {"1", "1"}, {"2", "0"}}, equity)

	dist := readCSV(t, filepath.Join(dir, DistributionFile))
	assert.Equal(t, [][]string{{"bin_lo", "bin_hi", "count"}, {"-1", "0", "1"}, {"0", "1", "1"}}, dist)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
