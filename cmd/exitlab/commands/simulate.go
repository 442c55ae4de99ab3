package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/exitlab/internal/artifact"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "단일 청산 규칙 재생",
	Long: `하나의 청산 파라미터 조합으로 리포트 전체를 재생합니다.
결과 파일은 쓰지 않고 지표와 Monte Carlo MaxDD만 출력합니다.

Example:
  go run ./cmd/exitlab simulate
  go run ./cmd/exitlab simulate --params '{"tp_r": 2.0, "be_trigger_r": 1.0}'`,
	RunE: runSimulate,
}

var (
	simulateParams string
	simulateReport string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateParams, "params", `{"trailing_start_r":1.5,"trailing_gap_r":0.7}`, "exit params JSON")
	simulateCmd.Flags().StringVar(&simulateReport, "report", "", "report CSV (default: EXITLAB_REPORT under the data root)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== exitlab Single Run ===")
	ctx := context.Background()

	// 1. Parse params
	params, err := artifact.ParseParams([]byte(simulateParams))
	if err != nil {
		return fmt.Errorf("parse --params: %w", err)
	}

	// 2. Load config and strategy
	a, err := loadApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if simulateReport != "" {
		a.cfg.Paths.ReportFile = simulateReport
	}

	// 3. Replay
	orch, err := a.orchestrator(nil)
	if err != nil {
		return err
	}

	mc := a.strategy.EngineConfig().MonteCarlo
	res, err := orch.RunSingle(ctx, a.cfg.ReportPath(), params, mc, a.strategy.Grid.ReasonsSample)
	if err != nil {
		return err
	}

	// 4. Report
	ev := res.Evaluation.Result
	PrintHeader("Single Run")
	printParams(params)
	fmt.Println()
	PrintKeyValue("trades", fmt.Sprintf("%d (no ticks %d, unusable %d)", ev.Trades, ev.Skipped, ev.Unusable), 16)
	printMetrics(ev.Metrics, res.MonteCarlo)
	PrintKeyValue("exit reasons", strings.Join(reasonCounts(res.Evaluation.Reasons), " "), 16)
	PrintDoubleSeparator()

	if ev.Trades == 0 {
		PrintWarning("No trade could be replayed; metrics are undefined.")
	}
	return nil
}
