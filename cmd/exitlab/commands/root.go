package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	dataRoot     string
	outputDir    string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "exitlab",
	Short: "exitlab - FX 청산 규칙 최적화",
	Long: `exitlab Unified CLI

이미 진입한 포지션의 청산 규칙(손절 이동, 본전 이동, 분할 청산,
목표가, 트레일링 스탑)을 과거 틱으로 평가하고, 선택된 규칙을
실시간 포지션에 적용합니다.

Usage:
  go run ./cmd/exitlab [command]

Examples:
  go run ./cmd/exitlab grid
  go run ./cmd/exitlab simulate --params '{"tp_r": 2.0}'
  go run ./cmd/exitlab live
  go run ./cmd/exitlab convert --in signals.csv --out ReportHistory.csv`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (default: EXITLAB_STRATEGY or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "directory holding the report and ticks/ (default: EXITLAB_DATA_ROOT)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "output directory (default: EXITLAB_OUTPUT_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
