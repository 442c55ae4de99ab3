package risk

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/wonny/exitlab/internal/contracts"
)

// MonteCarloConfig configures the permutation drawdown estimate
type MonteCarloConfig struct {
	Runs    int   `json:"runs" yaml:"runs"`
	Seed    int64 `json:"seed" yaml:"seed"`
	Workers int   `json:"workers" yaml:"workers"`
}

// DefaultMonteCarloConfig returns 1500 runs with seed 42
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Runs:    1500,
		Seed:    42,
		Workers: runtime.NumCPU(),
	}
}

// MonteCarlo estimates sequence-order drawdown risk by reshuffling an R series
type MonteCarlo struct {
	config MonteCarloConfig
}

// NewMonteCarlo creates an estimator
func NewMonteCarlo(config MonteCarloConfig) *MonteCarlo {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &MonteCarlo{config: config}
}

// MonteCarloMaxDD is the sequential convenience form of MonteCarlo.MaxDrawdown
func MonteCarloMaxDD(rs []float64, runs int, seed int64) contracts.MaxDDPercentiles {
	res, _ := NewMonteCarlo(MonteCarloConfig{Runs: runs, Seed: seed, Workers: 1}).
		MaxDrawdown(context.Background(), rs)
	return res
}

// MaxDrawdown permutes rs Runs times (without replacement), computes the max
// drawdown of each permutation and reports p50/p95/p99.
//
// Run i draws from its own generator seeded from (Seed, i), so the output is
// identical for a fixed seed regardless of the worker count.
func (mc *MonteCarlo) MaxDrawdown(ctx context.Context, rs []float64) (contracts.MaxDDPercentiles, error) {
	runs := mc.config.Runs
	if len(rs) == 0 || runs <= 0 {
		nan := math.NaN()
		return contracts.MaxDDPercentiles{P50: nan, P95: nan, P99: nan}, nil
	}

	type runResult struct {
		idx int
		dd  float64
	}

	jobs := make(chan int, runs)
	results := make(chan runResult, runs)

	var wg sync.WaitGroup
	for w := 0; w < mc.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]float64, len(rs))
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				copy(buf, rs)
				rng := rand.New(rand.NewSource(subSeed(mc.config.Seed, i)))
				rng.Shuffle(len(buf), func(a, b int) { buf[a], buf[b] = buf[b], buf[a] })
				results <- runResult{idx: i, dd: MaxDrawdown(buf)}
			}
		}()
	}

	for i := 0; i < runs; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	dds := make([]float64, runs)
	for r := range results {
		dds[r.idx] = r.dd
	}

	if err := ctx.Err(); err != nil {
		return contracts.MaxDDPercentiles{}, err
	}

	sort.Float64s(dds)
	return contracts.MaxDDPercentiles{
		P50:  Percentile(dds, 50),
		P95:  Percentile(dds, 95),
		P99:  Percentile(dds, 99),
		Runs: runs,
	}, nil
}

// subSeed derives the seed of run i (splitmix64 finalizer)
func subSeed(seed int64, i int) int64 {
	z := uint64(seed) + uint64(i+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
