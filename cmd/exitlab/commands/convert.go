package commands

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/exitlab/internal/report"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "시그널 CSV → 리포트 CSV 변환",
	Long: `진입 시그널 CSV(Time, symbol, direction, entry, sl, tp)를
ReportHistory 형식으로 변환합니다. 청산 시각은 진입 + duration이며
청산가는 손절가로 채워집니다.

Example:
  go run ./cmd/exitlab convert --in signals.csv --out ReportHistory.csv
  go run ./cmd/exitlab convert --in signals.csv --out report.csv --duration 48h`,
	RunE: runConvert,
}

var (
	convertIn            string
	convertOut           string
	convertDuration      time.Duration
	convertFirstPosition int64
)

func init() {
	rootCmd.AddCommand(convertCmd)

	defaults := report.DefaultConvertOptions()
	convertCmd.Flags().StringVar(&convertIn, "in", "", "signals CSV (required)")
	convertCmd.Flags().StringVar(&convertOut, "out", "ReportHistory.csv", "report CSV to write")
	convertCmd.Flags().DurationVar(&convertDuration, "duration", defaults.Duration, "synthetic holding time")
	convertCmd.Flags().Int64Var(&convertFirstPosition, "first-position", defaults.FirstPosition, "first Position id")
	_ = convertCmd.MarkFlagRequired("in")
}

func runConvert(cmd *cobra.Command, args []string) error {
	fmt.Println("=== exitlab Signal Converter ===")

	in, err := os.Open(convertIn)
	if err != nil {
		return fmt.Errorf("open signals: %w", err)
	}
	defer in.Close()

	signals, err := report.ReadSignals(in)
	if err != nil {
		return fmt.Errorf("read signals: %w", err)
	}

	opts := report.DefaultConvertOptions()
	opts.Duration = convertDuration
	opts.FirstPosition = convertFirstPosition

	out, err := os.Create(convertOut)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	w := bufio.NewWriter(out)
	if err := report.WriteReport(w, signals, opts); err != nil {
		out.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	PrintSuccess(fmt.Sprintf("%d signals → %s", len(signals), convertOut))
	return nil
}
