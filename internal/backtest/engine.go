package backtest

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/risk"
	"github.com/wonny/exitlab/pkg/logger"
)

// Engine runs grid sweeps over a trade corpus
// ⭐ SSOT: 그리드 서치 실행은 여기서만
type Engine struct {
	config  Config
	metrics *observability.Metrics
	logger  *logger.Logger
}

// Config holds grid run configuration
type Config struct {
	TopK          int
	Workers       int
	ReasonsSample int
	ProgressEvery int
	MonteCarlo    risk.MonteCarloConfig
}

// DefaultConfig returns top-20, one worker per CPU, five sampled reasons
func DefaultConfig() Config {
	return Config{
		TopK:          20,
		Workers:       runtime.NumCPU(),
		ReasonsSample: 5,
		ProgressEvery: 200,
		MonteCarlo:    risk.DefaultMonteCarloConfig(),
	}
}

// Result holds a finished grid run
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Combos         int
	Trades         int
	SkippedNoTicks int

	// Ranked holds every evaluated configuration, best first
	Ranked []contracts.GridResult
	Top    []contracts.GridResult

	// Best is nil when no configuration produced a single trade
	Best        *contracts.GridResult
	BestSeries  []float64
	BestReasons []contracts.ExitReason
	MonteCarlo  contracts.MaxDDPercentiles
}

// Evaluation is the complete outcome of one configuration over the corpus
type Evaluation struct {
	Result  contracts.GridResult
	Series  []float64
	Reasons []contracts.ExitReason
}

// NewEngine creates a new grid engine; metrics may be nil
func NewEngine(config Config, metrics *observability.Metrics, log *logger.Logger) *Engine {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.TopK < 1 {
		config.TopK = 20
	}
	return &Engine{
		config:  config,
		metrics: metrics,
		logger:  log.Component("grid"),
	}
}

// Evaluate replays every trade of the corpus under params
func Evaluate(corpus *Corpus, params contracts.ExitParams, sampleSize int) Evaluation {
	ev := Evaluation{
		Series:  make([]float64, 0, len(corpus.Cases)),
		Reasons: make([]contracts.ExitReason, 0, len(corpus.Cases)),
	}
	unusable := 0
	for _, c := range corpus.Cases {
		res, ok := Simulate(c.Trade, c.Ticks, params)
		if !ok {
			unusable++
			continue
		}
		ev.Series = append(ev.Series, res.RTotal)
		ev.Reasons = append(ev.Reasons, res.Reason)
	}

	sample := ev.Reasons
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	ev.Result = contracts.GridResult{
		Params:        params,
		Trades:        len(ev.Series),
		Skipped:       len(corpus.Missing),
		Unusable:      unusable,
		Metrics:       risk.ComputeMetrics(ev.Series),
		ReasonsSample: append([]contracts.ExitReason(nil), sample...),
	}
	return ev
}

type comboJob struct {
	index  int
	params contracts.ExitParams
}

// Run sweeps every evaluable configuration of space, ranks the results and
// re-simulates the best one for its full R series and Monte Carlo estimate.
func (e *Engine) Run(ctx context.Context, corpus *Corpus, space Space) (*Result, error) {
	result := &Result{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now(),
		Trades:         corpus.Trades(),
		SkippedNoTicks: len(corpus.Missing),
	}

	log := e.logger.WithField("run_id", result.RunID)
	log.WithFields(map[string]interface{}{
		"raw_combos": space.Size(),
		"trades":     result.Trades,
		"workers":    e.config.Workers,
	}).Info("Starting grid search")

	jobs := make(chan comboJob, e.config.Workers*2)
	results := make(chan contracts.GridResult, e.config.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < e.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				start := time.Now()
				ev := Evaluate(corpus, job.params, e.config.ReasonsSample)
				ev.Result.Index = job.index
				e.metrics.ObserveCombo(time.Since(start), ev.Result.Skipped, ev.Result.Unusable)
				results <- ev.Result
			}
		}()
	}

	// producer: lazy enumeration straight into the pool
	go func() {
		defer close(jobs)
		idx := 0
		for params := range space.Enumerate() {
			select {
			case <-ctx.Done():
				return
			case jobs <- comboJob{index: idx, params: params}:
			}
			idx++
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ranked := make([]contracts.GridResult, 0, space.Size())
	for r := range results {
		ranked = append(ranked, r)
		if e.config.ProgressEvery > 0 && len(ranked)%e.config.ProgressEvery == 0 {
			log.WithField("evaluated", len(ranked)).Debug("Grid progress")
		}
	}

	if err := ctx.Err(); err != nil {
		e.metrics.ObserveRun("canceled", 0, 0)
		return nil, fmt.Errorf("grid search canceled: %w", err)
	}

	Rank(ranked)
	result.Ranked = ranked
	result.Combos = len(ranked)
	result.Top = ranked[:min(e.config.TopK, len(ranked))]

	if len(ranked) > 0 && ranked[0].Metrics.Defined() {
		best := ranked[0]
		result.Best = &best

		ev := Evaluate(corpus, best.Params, e.config.ReasonsSample)
		result.BestSeries = ev.Series
		result.BestReasons = ev.Reasons
		e.observeExits(corpus, best.Params)

		mc, err := risk.NewMonteCarlo(e.config.MonteCarlo).MaxDrawdown(ctx, ev.Series)
		if err != nil {
			return nil, fmt.Errorf("monte carlo: %w", err)
		}
		result.MonteCarlo = mc
	} else {
		log.Warn("No configuration produced a replayable trade")
	}

	result.FinishedAt = time.Now()

	fields := map[string]interface{}{
		"combos":           result.Combos,
		"skipped_no_ticks": result.SkippedNoTicks,
		"duration":         result.FinishedAt.Sub(result.StartedAt).String(),
	}
	if result.Best != nil {
		fields["best_avg_r"] = result.Best.Metrics.AverageR
		fields["best_params"] = result.Best.Params.String()
		fields["mc_p95"] = result.MonteCarlo.P95
		e.metrics.ObserveRun("ok", result.Best.Metrics.AverageR, result.MonteCarlo.P95)
	} else {
		e.metrics.ObserveRun("empty", 0, 0)
	}
	log.WithFields(fields).Info("Grid search completed")

	return result, nil
}

func (e *Engine) observeExits(corpus *Corpus, params contracts.ExitParams) {
	if e.metrics == nil {
		return
	}
	for _, c := range corpus.Cases {
		if res, ok := Simulate(c.Trade, c.Ticks, params); ok {
			e.metrics.ObserveExit(string(res.Reason), string(c.Trade.Direction))
		}
	}
}

// Rank orders results by average R descending. Ties keep enumeration order
// and configurations without trades sort last.
func Rank(results []contracts.GridResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Metrics.AverageR, results[j].Metrics.AverageR
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		default:
			return a > b
		}
	})
}
