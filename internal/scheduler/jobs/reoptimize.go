package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/exitlab/internal/brain"
	"github.com/wonny/exitlab/pkg/logger"
)

// ReoptimizeJob re-runs the grid pipeline over the latest report and, when a
// new best config was written, reloads the live controller
type ReoptimizeJob struct {
	orchestrator *brain.Orchestrator
	config       brain.RunConfig
	reload       *ReloadParamsJob // optional
	schedule     string
	logger       *logger.Logger
}

// NewReoptimizeJob creates a new re-optimisation job; reload may be nil
func NewReoptimizeJob(orchestrator *brain.Orchestrator, config brain.RunConfig, reload *ReloadParamsJob, schedule string, log *logger.Logger) *ReoptimizeJob {
	return &ReoptimizeJob{
		orchestrator: orchestrator,
		config:       config,
		reload:       reload,
		schedule:     schedule,
		logger:       log,
	}
}

// Name returns the job name
func (j *ReoptimizeJob) Name() string {
	return "reoptimize"
}

// Schedule returns the cron schedule
func (j *ReoptimizeJob) Schedule() string {
	return j.schedule
}

// Run executes the grid pipeline
func (j *ReoptimizeJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled re-optimisation")

	result, err := j.orchestrator.Run(ctx, j.config)
	if err != nil {
		return fmt.Errorf("grid pipeline: %w", err)
	}

	if result.Files.BestConfig == "" {
		j.logger.WithField("run_id", result.RunID).Warn("No best config produced, live parameters kept")
		return nil
	}

	if j.reload != nil {
		return j.reload.Run(ctx)
	}
	return nil
}
