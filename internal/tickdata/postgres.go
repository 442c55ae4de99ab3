package tickdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/exitlab/internal/contracts"
)

// PostgresSource serves ticks from market.ticks
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a tick source backed by market.ticks
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Ticks returns the ticks of symbol in [from, to] ordered by time
func (s *PostgresSource) Ticks(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Tick, error) {
	query := `
		SELECT ts, bid, ask
		FROM market.ticks
		WHERE symbol = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts
	`

	rows, err := s.pool.Query(ctx, query, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}

	ticks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.Tick, error) {
		var t contracts.Tick
		err := row.Scan(&t.Time, &t.Bid, &t.Ask)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ticks: %w", err)
	}
	return ticks, nil
}

// Import bulk-loads ticks for one symbol with COPY
func (s *PostgresSource) Import(ctx context.Context, symbol string, ticks []contracts.Tick) (int64, error) {
	if len(ticks) == 0 {
		return 0, nil
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"market", "ticks"},
		[]string{"symbol", "ts", "bid", "ask"},
		pgx.CopyFromSlice(len(ticks), func(i int) ([]any, error) {
			t := ticks[i]
			if !contracts.ValidPrice(t.Bid) || !contracts.ValidPrice(t.Ask) {
				return nil, fmt.Errorf("tick %d at %s has no valid quote", i, t.Time.Format(time.RFC3339))
			}
			return []any{symbol, t.Time.UTC(), t.Bid, t.Ask}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy ticks: %w", err)
	}
	return n, nil
}

// ImportDir loads every month file of symbol found in dir
func (s *PostgresSource) ImportDir(ctx context.Context, dir, symbol string) (int64, error) {
	files, err := monthFiles(dir, symbol)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, path := range files {
		ticks, err := ReadFile(path)
		if err != nil {
			return total, err
		}
		n, err := s.Import(ctx, symbol, validOnly(ticks))
		total += n
		if err != nil {
			return total, fmt.Errorf("import %s: %w", path, err)
		}
	}
	return total, nil
}

func validOnly(ticks []contracts.Tick) []contracts.Tick {
	out := ticks[:0:0]
	for _, t := range ticks {
		if contracts.ValidPrice(t.Bid) && contracts.ValidPrice(t.Ask) {
			out = append(out, t)
		}
	}
	return out
}
