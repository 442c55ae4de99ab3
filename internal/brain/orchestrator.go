package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/exitlab/internal/artifact"
	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/report"
	"github.com/wonny/exitlab/internal/risk"
	"github.com/wonny/exitlab/pkg/logger"
)

// Stage names recorded in RunResult.CompletedStages
const (
	StageReport  = "S1:Report"
	StageCorpus  = "S2:Corpus"
	StageGrid    = "S3:Grid"
	StageOutputs = "S4:Outputs"
	StageHistory = "S5:History"
)

// Orchestrator coordinates one exit optimisation run
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	// Stage components
	reader *report.Reader
	ticks  contracts.TickSource
	engine *backtest.Engine
	writer *artifact.Writer

	// optional; nil skips the history stage
	runStore *backtest.RunStore

	logger *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	ReportPath   string
	Space        backtest.Space
	StrategyHash string
	DryRun       bool // If true, skip writing outputs and history
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string
	Success         bool
	Error           error
	CompletedStages []string
	ReportStats     report.Stats
	Corpus          *backtest.Corpus
	Grid            *backtest.Result
	Files           artifact.Files
	Duration        time.Duration
}

// SingleResult is the outcome of replaying one configuration
type SingleResult struct {
	ReportStats report.Stats
	Corpus      *backtest.Corpus
	Evaluation  backtest.Evaluation
	MonteCarlo  contracts.MaxDDPercentiles
}

// NewOrchestrator creates a new orchestrator; runStore may be nil
func NewOrchestrator(
	reader *report.Reader,
	ticks contracts.TickSource,
	engine *backtest.Engine,
	writer *artifact.Writer,
	runStore *backtest.RunStore,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		reader:   reader,
		ticks:    ticks,
		engine:   engine,
		writer:   writer,
		runStore: runStore,
		logger:   logger.Component("brain"),
	}
}

// Run executes the full grid pipeline
// Report → Corpus → Grid → Outputs → History
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	result := &RunResult{
		CompletedStages: make([]string, 0, 5),
	}

	o.logger.WithFields(map[string]interface{}{
		"report":        config.ReportPath,
		"raw_combos":    config.Space.Size(),
		"strategy_hash": config.StrategyHash,
		"dry_run":       config.DryRun,
	}).Info("Starting pipeline run")

	// S1: Report
	trades, stats, err := o.reader.ReadFile(config.ReportPath)
	if err != nil {
		result.Error = fmt.Errorf("S1 failed: %w", err)
		return result, result.Error
	}
	result.ReportStats = stats
	result.CompletedStages = append(result.CompletedStages, StageReport)

	// S2: Corpus
	corpus, err := backtest.LoadCorpus(ctx, trades, o.ticks, o.logger)
	if err != nil {
		result.Error = fmt.Errorf("S2 failed: %w", err)
		return result, result.Error
	}
	result.Corpus = corpus
	result.CompletedStages = append(result.CompletedStages, StageCorpus)

	// S3: Grid
	grid, err := o.engine.Run(ctx, corpus, config.Space)
	if err != nil {
		result.Error = fmt.Errorf("S3 failed: %w", err)
		return result, result.Error
	}
	result.RunID = grid.RunID
	result.Grid = grid
	result.CompletedStages = append(result.CompletedStages, StageGrid)

	if config.DryRun {
		o.logger.Info("Skipping outputs and history (dry run mode)")
	} else {
		// S4: Outputs
		files, err := o.writer.WriteRun(grid)
		if err != nil {
			result.Error = fmt.Errorf("S4 failed: %w", err)
			return result, result.Error
		}
		result.Files = files
		result.CompletedStages = append(result.CompletedStages, StageOutputs)

		// S5: History
		if o.runStore != nil {
			if err := o.runStore.Save(ctx, grid, config.StrategyHash); err != nil {
				result.Error = fmt.Errorf("S5 failed: %w", err)
				return result, result.Error
			}
			result.CompletedStages = append(result.CompletedStages, StageHistory)
		}
	}

	// Mark success
	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
	}).Info("Pipeline run completed successfully")

	return result, nil
}

// RunSingle replays the report under one configuration, without sweeping or
// writing outputs
func (o *Orchestrator) RunSingle(ctx context.Context, reportPath string, params contracts.ExitParams, mc risk.MonteCarloConfig, sampleSize int) (*SingleResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	trades, stats, err := o.reader.ReadFile(reportPath)
	if err != nil {
		return nil, err
	}

	corpus, err := backtest.LoadCorpus(ctx, trades, o.ticks, o.logger)
	if err != nil {
		return nil, err
	}

	ev := backtest.Evaluate(corpus, params, sampleSize)
	out := &SingleResult{
		ReportStats: stats,
		Corpus:      corpus,
		Evaluation:  ev,
	}

	// an empty series yields undefined percentiles
	out.MonteCarlo, err = risk.NewMonteCarlo(mc).MaxDrawdown(ctx, ev.Series)
	if err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"params":    params.String(),
		"trades":    ev.Result.Trades,
		"skipped":   ev.Result.Skipped,
		"unusable":  ev.Result.Unusable,
		"average_r": ev.Result.Metrics.AverageR,
	}).Info("Single configuration replayed")

	return out, nil
}
