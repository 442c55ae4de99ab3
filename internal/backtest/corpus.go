package backtest

import (
	"context"
	"fmt"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/pkg/logger"
)

// Case is one trade with the ticks of its window
type Case struct {
	Trade contracts.Trade
	Ticks []contracts.Tick
}

// Corpus is the immutable replay input of a run. Ticks are loaded once per
// trade and shared read-only by every configuration.
type Corpus struct {
	Cases   []Case
	Missing []contracts.Trade // no ticks in [open, window end]
}

// Trades is the number of report trades considered
func (c *Corpus) Trades() int {
	return len(c.Cases) + len(c.Missing)
}

// LoadCorpus fetches the window ticks of every trade. A trade with an empty
// window is kept in Missing and counted as skipped by every configuration;
// a source error aborts the load.
func LoadCorpus(ctx context.Context, trades []contracts.Trade, src contracts.TickSource, log *logger.Logger) (*Corpus, error) {
	corpus := &Corpus{Cases: make([]Case, 0, len(trades))}

	for _, tr := range trades {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ticks, err := src.Ticks(ctx, tr.Symbol, tr.OpenTime, tr.WindowEnd)
		if err != nil {
			return nil, fmt.Errorf("load ticks for trade %s (%s): %w", tr.ID, tr.Symbol, err)
		}
		if len(ticks) == 0 {
			corpus.Missing = append(corpus.Missing, tr)
			continue
		}
		corpus.Cases = append(corpus.Cases, Case{Trade: tr, Ticks: ticks})
	}

	log.WithFields(map[string]interface{}{
		"trades":        corpus.Trades(),
		"with_ticks":    len(corpus.Cases),
		"missing_ticks": len(corpus.Missing),
	}).Info("Trade corpus loaded")

	return corpus, nil
}
