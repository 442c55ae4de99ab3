package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/exitlab/internal/artifact"
	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/brain"
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/report"
	"github.com/wonny/exitlab/internal/strategyconfig"
	"github.com/wonny/exitlab/internal/tickdata"
	"github.com/wonny/exitlab/pkg/config"
	"github.com/wonny/exitlab/pkg/database"
	"github.com/wonny/exitlab/pkg/logger"
)

const snapshotFile = "strategy_snapshot.json"

// app is the composition root shared by the commands
// ⭐ SSOT: 설정/로거/전략/DB 조립은 여기서만
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	strategy     *strategyconfig.Config
	strategyYAML []byte
	strategyHash string
	db           *database.DB
}

// loadApp loads env config, applies global flags, and reads the strategy.
// The database is opened when DB_ENABLED=true; requireDB makes it mandatory.
func loadApp(ctx context.Context, requireDB bool) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataRoot != "" {
		cfg.SetDataRoot(dataRoot)
	}
	if outputDir != "" {
		cfg.Paths.OutputDir = outputDir
	}
	if strategyFile != "" {
		cfg.Paths.StrategyFile = strategyFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy
	strategy, yamlData, err := strategyconfig.Load(cfg.Paths.StrategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy: %w", err)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		strategy:     strategy,
		strategyYAML: yamlData,
		strategyHash: hash,
	}

	log.WithFields(map[string]interface{}{
		"strategy_id":   strategy.Meta.StrategyID,
		"strategy_hash": hash[:12],
		"data_root":     cfg.Paths.DataRoot,
		"env":           cfg.Env,
	}).Debug("Configuration loaded")

	// 4. Connect to database
	if requireDB && !cfg.Database.Enabled {
		return nil, fmt.Errorf("this command needs the database: set DB_ENABLED=true and DATABASE_URL")
	}
	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		log.Info("Connected to database")
	}

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// tickDir resolves the tick corpus directory against the data root
func (a *app) tickDir() string {
	if filepath.IsAbs(a.strategy.Replay.TickDir) {
		return a.strategy.Replay.TickDir
	}
	return filepath.Join(a.cfg.Paths.DataRoot, a.strategy.Replay.TickDir)
}

// tickSource picks the corpus backend named by the strategy
func (a *app) tickSource() (contracts.TickSource, error) {
	switch a.strategy.Replay.TickSource {
	case strategyconfig.TickSourcePostgres:
		if a.db == nil {
			return nil, fmt.Errorf("tick_source %q needs DB_ENABLED=true", strategyconfig.TickSourcePostgres)
		}
		return tickdata.NewPostgresSource(a.db.Pool), nil
	default:
		return tickdata.NewCSVSource(a.tickDir(), a.log)
	}
}

// orchestrator assembles the grid pipeline; run history is kept when the DB is open
func (a *app) orchestrator(metrics *observability.Metrics) (*brain.Orchestrator, error) {
	ticks, err := a.tickSource()
	if err != nil {
		return nil, err
	}

	return brain.NewOrchestrator(
		report.NewReader(report.Options{FallbackHorizon: a.strategy.Replay.FallbackHorizon()}, a.log),
		ticks,
		backtest.NewEngine(a.strategy.EngineConfig(), metrics, a.log),
		artifact.NewWriter(a.cfg.Paths.OutputDir, nil, a.log),
		a.runStore(),
		a.log,
	), nil
}

// runStore is nil without a database
func (a *app) runStore() *backtest.RunStore {
	if a.db == nil {
		return nil
	}
	return backtest.NewRunStore(a.db.Pool)
}

// saveSnapshot writes the strategy of a run next to its outputs
func (a *app) saveSnapshot(runID string) (string, error) {
	snap, err := strategyconfig.NewDecisionSnapshot(a.strategy, a.strategyYAML)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(struct {
		RunID string `json:"run_id"`
		*strategyconfig.DecisionSnapshot
	}{runID, snap}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(a.cfg.Paths.OutputDir, snapshotFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// runConfig is the grid run the strategy describes
func (a *app) runConfig(dryRun bool) brain.RunConfig {
	return brain.RunConfig{
		ReportPath:   a.cfg.ReportPath(),
		Space:        a.strategy.Grid.Space,
		StrategyHash: a.strategyHash,
		DryRun:       dryRun,
	}
}
