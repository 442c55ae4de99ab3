package jobs

import (
	"context"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/pkg/logger"
)

// ReloadParamsJob re-reads the best-config artifact and swaps the live
// controller when the parameters changed
type ReloadParamsJob struct {
	path     string
	opts     live.Options
	monitor  *live.Monitor
	schedule string
	logger   *logger.Logger
}

// NewReloadParamsJob creates a new params reload job
func NewReloadParamsJob(path string, opts live.Options, monitor *live.Monitor, schedule string, log *logger.Logger) *ReloadParamsJob {
	return &ReloadParamsJob{
		path:     path,
		opts:     opts,
		monitor:  monitor,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *ReloadParamsJob) Name() string {
	return "reload_params"
}

// Schedule returns the cron schedule
func (j *ReloadParamsJob) Schedule() string {
	return j.schedule
}

// Run executes the reload. A missing or corrupt artifact disables the
// controller, it never fails the job.
func (j *ReloadParamsJob) Run(ctx context.Context) error {
	next := live.Load(j.path, j.opts, j.logger)
	current := j.monitor.Controller()

	if sameParams(current, next) {
		j.logger.Debug("Exit parameters unchanged")
		return nil
	}

	j.monitor.SetController(next)
	return nil
}

func sameParams(a, b contracts.ParamsSource) bool {
	pa, okA := a.Params()
	pb, okB := b.Params()
	if okA != okB {
		return false
	}
	return !okA || pa.String() == pb.String()
}
