package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "그리드 실행 기록 조회",
	Long: `저장된 그리드 실행 요약을 최신순으로 출력합니다. DB_ENABLED=true가 필요합니다.

Example:
  go run ./cmd/exitlab runs
  go run ./cmd/exitlab runs --limit 5`,
	RunE: runRuns,
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	runs, err := a.runStore().Latest(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	PrintHeader(fmt.Sprintf("Grid Runs (%d)", len(runs)))
	if len(runs) == 0 {
		PrintInfo("No runs recorded yet")
		return nil
	}

	widths := []int{36, 19, 7, 7, 9, 9, 12}
	PrintTableHeader([]string{"run_id", "finished", "combos", "trades", "best_R", "mc_p95", "strategy"}, widths)
	for _, r := range runs {
		hash := r.StrategyHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		PrintTableRow([]string{
			r.RunID,
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", r.Combos),
			fmt.Sprintf("%d", r.Trades),
			formatOpt(r.BestAvgR),
			formatOpt(r.MonteCarloP95),
			hash,
		}, widths)
	}
	return nil
}
