package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/exitlab/internal/brain"
	"github.com/wonny/exitlab/internal/strategyconfig"
)

// gridCmd represents the grid command
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "청산 규칙 그리드 서치",
	Long: `리포트의 모든 거래를 과거 틱으로 재생하여 청산 규칙 조합을 평가합니다.

Pipeline:
  S1: Report   - ReportHistory CSV 파싱
  S2: Corpus   - 거래별 틱 윈도우 로드
  S3: Grid     - 조합 평가, 순위, 최적 조합 Monte Carlo
  S4: Outputs  - 결과 테이블, best_config.txt, 차트 데이터
  S5: History  - 실행 기록 저장 (DB 사용 시)

Example:
  go run ./cmd/exitlab grid
  go run ./cmd/exitlab grid --report ReportHistory.csv --top 10
  go run ./cmd/exitlab grid --tick-source postgres --dry-run`,
	RunE: runGrid,
}

var (
	gridReport     string
	gridDryRun     bool
	gridWorkers    int
	gridTop        int
	gridTickSource string
)

func init() {
	rootCmd.AddCommand(gridCmd)

	gridCmd.Flags().StringVar(&gridReport, "report", "", "report CSV (default: EXITLAB_REPORT under the data root)")
	gridCmd.Flags().BoolVar(&gridDryRun, "dry-run", false, "evaluate without writing outputs or history")
	gridCmd.Flags().IntVar(&gridWorkers, "workers", 0, "grid workers (default: strategy setting)")
	gridCmd.Flags().IntVar(&gridTop, "top", 0, "top-K size (default: strategy setting)")
	gridCmd.Flags().StringVar(&gridTickSource, "tick-source", "", "csv or postgres (default: strategy setting)")
}

func runGrid(cmd *cobra.Command, args []string) error {
	fmt.Println("=== exitlab Grid Search ===")
	ctx := context.Background()

	// 1. Load config, strategy and database
	a, err := loadApp(ctx, gridTickSource == strategyconfig.TickSourcePostgres)
	if err != nil {
		return err
	}
	defer a.close()

	// 2. Apply flag overrides
	if gridReport != "" {
		a.cfg.Paths.ReportFile = gridReport
	}
	if gridWorkers > 0 {
		a.strategy.Grid.Workers = gridWorkers
	}
	if gridTop > 0 {
		a.strategy.Grid.TopK = gridTop
	}
	if gridTickSource != "" {
		a.strategy.Replay.TickSource = gridTickSource
	}
	if err := strategyconfig.Validate(a.strategy); err != nil {
		return err
	}

	// 3. Build pipeline
	orch, err := a.orchestrator(nil)
	if err != nil {
		return err
	}

	runCfg := a.runConfig(gridDryRun)
	fmt.Printf("📄 Report: %s\n", runCfg.ReportPath)
	fmt.Printf("🔢 Combos: %d evaluable of %d\n", runCfg.Space.Count(), runCfg.Space.Size())
	if gridDryRun {
		PrintInfo("Dry run: outputs and history are skipped")
	}

	// 4. Run
	result, err := orch.Run(ctx, runCfg)
	if err != nil {
		fmt.Printf("\n❌ Pipeline failed after %d stages\n", len(result.CompletedStages))
		return err
	}

	printGridResult(result, a.strategy.Grid.TopK)

	// 5. Snapshot (재현성)
	if !gridDryRun {
		path, err := a.saveSnapshot(result.RunID)
		if err != nil {
			return err
		}
		PrintKeyValue("snapshot", path, 16)
	}
	return nil
}

func printGridResult(result *brain.RunResult, topK int) {
	grid := result.Grid

	PrintHeader("Grid Results")
	PrintKeyValue("run_id", result.RunID, 16)
	PrintKeyValue("stages", strings.Join(result.CompletedStages, " → "), 16)
	PrintKeyValue("report rows", fmt.Sprintf("%d (kept %d, dropped %d)", result.ReportStats.Rows, result.ReportStats.Kept, result.ReportStats.Dropped), 16)
	PrintKeyValue("trades", fmt.Sprintf("%d (no ticks %d)", grid.Trades, grid.SkippedNoTicks), 16)
	PrintKeyValue("combos", fmt.Sprintf("%d", grid.Combos), 16)
	PrintKeyValue("duration", result.Duration.Round(time.Millisecond).String(), 16)

	if grid.Best == nil {
		PrintWarning("No configuration produced a trade. Check the tick corpus covers the report.")
		return
	}

	fmt.Println()
	fmt.Printf("🏆 Top %d\n", min(topK, len(grid.Top)))
	widths := []int{4, 9, 9, 8, 9, 5, 60}
	PrintTableHeader([]string{"#", "avg_R", "PF", "win", "maxDD_R", "n", "params"}, widths)
	for i, r := range grid.Top {
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			formatR(r.Metrics.AverageR),
			formatR(r.Metrics.ProfitFactor),
			formatR(r.Metrics.WinRate),
			formatR(r.Metrics.MaxDrawdownR),
			fmt.Sprintf("%d", r.Trades),
			r.Params.String(),
		}, widths)
	}

	fmt.Println()
	fmt.Println("⭐ Best configuration")
	printParams(grid.Best.Params)
	fmt.Println()
	printMetrics(grid.Best.Metrics, grid.MonteCarlo)
	PrintKeyValue("exit reasons", strings.Join(reasonCounts(grid.BestReasons), " "), 16)

	if result.Files.Results != "" {
		fmt.Println()
		PrintSuccess("Outputs written")
		PrintKeyValue("results", result.Files.Results, 16)
		PrintKeyValue("top", result.Files.Top, 16)
		PrintKeyValue("best config", result.Files.BestConfig, 16)
	}
	PrintDoubleSeparator()
}
