package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/exitlab/internal/api"
	"github.com/wonny/exitlab/internal/api/handlers"
	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/realtime/cache"
	"github.com/wonny/exitlab/internal/realtime/feed"
	"github.com/wonny/exitlab/internal/scheduler"
	"github.com/wonny/exitlab/internal/scheduler/jobs"
	"github.com/wonny/exitlab/pkg/httputil"
	"github.com/wonny/exitlab/pkg/redis"
)

// liveCmd represents the live command
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "실시간 청산 관리 서버 시작",
	Long: `best_config.txt의 파라미터로 열린 포지션의 손절/목표가를 관리합니다.

이 명령어는:
- 시세 피드(websocket) 구독 후 포지션별 조정 제안 계산
- 조정 결과를 webhook(터미널 브리지)으로 전송 (미설정 시 로그만)
- 파라미터 재로드, 주간 재최적화, 캐시 정리 스케줄 실행
- REST API 제공

Endpoints:
  GET    /health
  GET    /metrics
  GET    /api/params
  GET    /api/positions
  POST   /api/positions
  GET    /api/positions/{id}
  DELETE /api/positions/{id}
  POST   /api/positions/{id}/price
  GET    /api/adjustments
  GET    /api/prices
  GET    /api/runs
  GET    /api/jobs
  POST   /api/jobs/{name}/run

Example:
  go run ./cmd/exitlab live
  go run ./cmd/exitlab live --port 8090 --symbols EURUSD,USDJPY`,
	RunE: runLive,
}

var (
	livePort     string
	liveSymbols  []string
	livePriceTTL time.Duration
	liveNoCron   bool
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&livePort, "port", "", "API port (default: PORT)")
	liveCmd.Flags().StringSliceVar(&liveSymbols, "symbols", nil, "feed symbols (default: symbols with configured digits)")
	liveCmd.Flags().DurationVar(&livePriceTTL, "price-ttl", 30*time.Second, "age after which a cached quote is stale")
	liveCmd.Flags().BoolVar(&liveNoCron, "no-scheduler", false, "do not run scheduled jobs")
}

func runLive(cmd *cobra.Command, args []string) error {
	fmt.Println("=== exitlab Live Exit Manager ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Load config, strategy and database
	a, err := loadApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if livePort != "" {
		a.cfg.Port = livePort
	}
	log := a.log

	// 2. Metrics and price cache
	var metrics *observability.Metrics
	if a.cfg.MetricsEnabled {
		metrics = observability.NewMetrics("exitlab")
	}
	priceCache := cache.NewPriceCache(livePriceTTL, log)

	// 3. Aux state store (Redis when enabled)
	rdb, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	var store live.StateStore = live.NewMemoryStateStore()
	if rdb.Enabled() {
		store = live.NewRedisStateStore(rdb)
		log.Info("Live state kept in Redis")
	}

	// 4. Controller, sessions and sink
	opts, err := a.strategy.LiveOptions()
	if err != nil {
		return err
	}
	sessions, err := a.strategy.Sessions()
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	controller := live.Load(a.cfg.Paths.BestConfig, opts, log)

	var sink live.Sink
	if a.cfg.Webhook.URL != "" {
		// the monitor waits for delivery, so keep retries short
		client := httputil.NewWithTimeout(log, a.cfg.Webhook.Timeout).WithRetry(1, 200*time.Millisecond)
		if a.cfg.Webhook.RatePerSecond > 0 {
			client = client.WithRateLimit(a.cfg.Webhook.RatePerSecond)
		}
		if a.cfg.Webhook.Token != "" {
			client = client.WithHeader("Authorization", "Bearer "+a.cfg.Webhook.Token)
		}
		sink = live.NewWebhookSink(client, a.cfg.Webhook.URL, log)
	}

	monitor := live.NewMonitor(controller, store, sessions, sink, metrics, log)

	// 5. Price feed
	var feedClient *feed.Client
	if a.cfg.Feed.URL != "" {
		feedClient = feed.NewClient(a.cfg.Feed, priceCache, metrics, log)
		if err := feedClient.Subscribe(feedSymbols(a.strategy.Live.SymbolDigits)...); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		if err := feedClient.Start(ctx); err != nil {
			return fmt.Errorf("start feed: %w", err)
		}
		defer feedClient.Stop()

		go func() {
			if err := monitor.Run(ctx, feedClient.Ticks()); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Live monitor stopped")
			}
		}()
	} else {
		PrintWarning("FEED_URL is not set: prices arrive only through POST /api/positions/{id}/price")
	}

	// 6. Scheduler
	var sched *scheduler.Scheduler
	if !liveNoCron {
		sched, err = buildScheduler(a, monitor, opts, priceCache)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 7. API server
	h := api.Handlers{
		Health: handlers.NewHealthHandler(a.db, monitor),
		Live:   handlers.NewLiveHandler(monitor, priceCache, log),
		Runs:   handlers.NewRunsHandler(a.runStore(), sched, log),
	}
	router := api.NewRouter(h, metrics, api.RateLimit{Rate: a.cfg.APIRateLimit, Burst: a.cfg.APIBurst}, log)
	server := api.New(a.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	params := "none (controller disabled)"
	if p, ok := controller.Params(); ok {
		params = p.String()
	}
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	PrintKeyValue("params", params, 10)
	PrintKeyValue("trail", string(controller.TrailMode()), 10)
	if feedClient != nil {
		PrintKeyValue("symbols", strings.Join(feedClient.Symbols(), ","), 10)
	}
	if sched != nil {
		PrintKeyValue("jobs", strings.Join(sched.GetAllJobs(), ","), 10)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// buildScheduler registers the parameter reload, re-optimisation and cache jobs
func buildScheduler(a *app, monitor *live.Monitor, opts live.Options, priceCache *cache.PriceCache) (*scheduler.Scheduler, error) {
	loc, err := a.strategy.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	sched := scheduler.New(a.log, loc)

	reload := jobs.NewReloadParamsJob(a.cfg.Paths.BestConfig, opts, monitor, a.strategy.Schedule.ReloadParams, a.log)
	if a.strategy.Schedule.ReloadParams != "" {
		if err := sched.AddJob(reload); err != nil {
			return nil, err
		}
	}

	if a.strategy.Schedule.Reoptimize != "" {
		orch, err := a.orchestrator(nil)
		if err != nil {
			// live trading does not depend on the corpus
			a.log.WithError(err).Warn("Re-optimisation disabled")
		} else {
			job := jobs.NewReoptimizeJob(orch, a.runConfig(false), reload, a.strategy.Schedule.Reoptimize, a.log)
			if err := sched.AddJob(job); err != nil {
				return nil, err
			}
		}
	}

	if err := sched.AddJob(jobs.NewCacheCleanupJob(priceCache, 10*livePriceTTL, a.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

// feedSymbols returns --symbols, or every symbol with configured digits
func feedSymbols(digits map[string]int) []string {
	if len(liveSymbols) > 0 {
		out := make([]string, len(liveSymbols))
		for i, s := range liveSymbols {
			out[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		return out
	}
	out := make([]string, 0, len(digits))
	for s := range digits {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
