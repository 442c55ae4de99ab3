package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStore keeps a history of grid runs in exits.grid_runs
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a run history store
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// RunSummary is one row of run history
type RunSummary struct {
	RunID         string          `json:"run_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	StrategyHash  string          `json:"strategy_hash"`
	Combos        int             `json:"combos"`
	Trades        int             `json:"trades"`
	BestParams    json.RawMessage `json:"best_params"`
	BestAvgR      *float64        `json:"best_avg_r"`
	MonteCarloP95 *float64        `json:"mc_p95"`
}

// Save records a finished run
func (s *RunStore) Save(ctx context.Context, res *Result, strategyHash string) error {
	params := []byte("{}")
	var avgR, p95 *float64
	if res.Best != nil {
		raw, err := json.Marshal(res.Best.Params)
		if err != nil {
			return fmt.Errorf("marshal best params: %w", err)
		}
		params = raw
		avgR = finite(res.Best.Metrics.AverageR)
		p95 = finite(res.MonteCarlo.P95)
	}

	query := `
		INSERT INTO exits.grid_runs
			(run_id, started_at, finished_at, strategy_hash, combos, trades, best_params, best_avg_r, mc_p95)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		res.RunID, res.StartedAt, res.FinishedAt, strategyHash,
		res.Combos, res.Trades, params, avgR, p95,
	)
	if err != nil {
		return fmt.Errorf("save grid run %s: %w", res.RunID, err)
	}
	return nil
}

// Latest returns the most recent runs, newest first
func (s *RunStore) Latest(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT run_id::text, started_at, finished_at, strategy_hash, combos, trades, best_params, best_avg_r, mc_p95
		FROM exits.grid_runs
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunSummary, error) {
		var r RunSummary
		err := row.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.StrategyHash,
			&r.Combos, &r.Trades, &r.BestParams, &r.BestAvgR, &r.MonteCarloP95)
		return r, err
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
