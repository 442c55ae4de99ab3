package brain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/artifact"
	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/report"
	"github.com/wonny/exitlab/internal/risk"
	"github.com/wonny/exitlab/pkg/logger"
)

const testReport = `Time,Position,Symbol,Type,Volume,Price,S / L,T / P,Time,Price
2024.03.04 10:00:00,1,EURUSD,buy,0.10,100,95,,2024.03.04 12:00:00,110
2024.03.04 10:00:00,2,GBPUSD,sell,0.10,200,210,,,
`

type memSource map[string][]contracts.Tick

func (m memSource) Ticks(_ context.Context, symbol string, from, to time.Time) ([]contracts.Tick, error) {
	var out []contracts.Tick
	for _, tk := range m[symbol] {
		if !tk.Time.Before(from) && !tk.Time.After(to) {
			out = append(out, tk)
		}
	}
	return out, nil
}

func setup(t *testing.T) (*Orchestrator, string, string) {
	t.Helper()
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "ReportHistory.csv")
	require.NoError(t, os.WriteFile(reportPath, []byte(testReport), 0o644))

	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	src := memSource{"EURUSD": nil}
	for i, p := range []float64{100, 104, 108, 111} {
		src["EURUSD"] = append(src["EURUSD"], contracts.Tick{
			Time: start.Add(time.Duration(i) * time.Minute), Bid: p, Ask: p,
		})
	}

	log := logger.Nop()
	cfg := backtest.DefaultConfig()
	cfg.Workers = 2
	cfg.MonteCarlo = risk.MonteCarloConfig{Runs: 50, Seed: 7, Workers: 1}

	outDir := filepath.Join(dir, "out")
	o := NewOrchestrator(
		report.NewReader(report.Options{}, log),
		src,
		backtest.NewEngine(cfg, nil, log),
		artifact.NewWriter(outDir, nil, log),
		nil,
		log,
	)
	return o, reportPath, outDir
}

func tpOnly() backtest.Space {
	return backtest.Space{TPR: []*float64{contracts.F(2.0)}}
}

func TestRun(t *testing.T) {
	o, reportPath, outDir := setup(t)

	res, err := o.Run(context.Background(), RunConfig{ReportPath: reportPath, Space: tpOnly()})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{StageReport, StageCorpus, StageGrid, StageOutputs}, res.CompletedStages)
	assert.Equal(t, report.Stats{Rows: 2, Kept: 2}, res.ReportStats)
	assert.NotEmpty(t, res.RunID)

	grid := res.Grid
	assert.Equal(t, 1, grid.Combos)
	assert.Equal(t, 1, grid.SkippedNoTicks)
	require.NotNil(t, grid.Best)
	assert.InDelta(t, 2.0, grid.Best.Metrics.AverageR, 1e-9)
	assert.Equal(t, []contracts.ExitReason{contracts.ExitReasonTakeProfit}, grid.BestReasons)

	assert.FileExists(t, filepath.Join(outDir, artifact.ResultsFile))
	assert.FileExists(t, filepath.Join(outDir, artifact.BestConfigFile))
	assert.Equal(t, filepath.Join(outDir, artifact.BestConfigFile), res.Files.BestConfig)
}

func TestRunDryRun(t *testing.T) {
	o, reportPath, outDir := setup(t)

	res, err := o.Run(context.Background(), RunConfig{ReportPath: reportPath, Space: tpOnly(), DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, []string{StageReport, StageCorpus, StageGrid}, res.CompletedStages)
	assert.NoDirExists(t, outDir)
}

func TestRunMissingReport(t *testing.T) {
	o, _, _ := setup(t)

	res, err := o.Run(context.Background(), RunConfig{ReportPath: "/nonexistent/report.csv", Space: tpOnly()})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.CompletedStages)
	assert.Contains(t, err.Error(), "S1 failed")
}

func TestRunSingle(t *testing.T) {
	o, reportPath, _ := setup(t)

	params := contracts.DefaultExitParams()
	params.TPR = contracts.F(2.0)

	res, err := o.RunSingle(context.Background(), reportPath, params, risk.MonteCarloConfig{Runs: 20, Seed: 1, Workers: 1}, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Evaluation.Result.Trades)
	assert.Equal(t, 1, res.Evaluation.Result.Skipped)
	assert.Equal(t, []float64{2.0}, res.Evaluation.Series)
	// a single trade never draws down
	assert.InDelta(t, 0, res.MonteCarlo.P95, 1e-12)
}

func TestRunSingleRejectsInvalidParams(t *testing.T) {
	o, reportPath, _ := setup(t)

	params := contracts.DefaultExitParams()
	params.ScaleOutFrac = 2

	_, err := o.RunSingle(context.Background(), reportPath, params, risk.DefaultMonteCarloConfig(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaleout_frac")
}
