package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/exitlab/internal/tickdata"
)

// importTicksCmd represents the import-ticks command
var importTicksCmd = &cobra.Command{
	Use:   "import-ticks",
	Short: "틱 CSV를 PostgreSQL로 적재",
	Long: `Ticks_<SYMBOL>_<YYYY>_<MM>.csv 월별 파일을 ticks 테이블로 COPY합니다.
유효하지 않은 호가 행은 건너뜁니다. DB_ENABLED=true가 필요합니다.

Example:
  go run ./cmd/exitlab import-ticks --symbol EURUSD
  go run ./cmd/exitlab import-ticks --symbol XAUUSD --dir /data/ticks`,
	RunE: runImportTicks,
}

var (
	importSymbols []string
	importDir     string
)

func init() {
	rootCmd.AddCommand(importTicksCmd)

	importTicksCmd.Flags().StringSliceVar(&importSymbols, "symbol", nil, "symbols to import (required)")
	importTicksCmd.Flags().StringVar(&importDir, "dir", "", "tick directory (default: strategy tick_dir under the data root)")
	_ = importTicksCmd.MarkFlagRequired("symbol")
}

func runImportTicks(cmd *cobra.Command, args []string) error {
	fmt.Println("=== exitlab Tick Import ===")
	ctx := context.Background()

	a, err := loadApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	dir := importDir
	if dir == "" {
		dir = a.tickDir()
	}
	src := tickdata.NewPostgresSource(a.db.Pool)

	var total int64
	for _, symbol := range importSymbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		start := time.Now()

		n, err := src.ImportDir(ctx, dir, symbol)
		total += n
		if err != nil {
			fmt.Printf("❌ %s: %v\n", symbol, err)
			return err
		}
		fmt.Printf("✅ %s: %d ticks (%s)\n", symbol, n, time.Since(start).Round(time.Millisecond))
	}

	PrintSuccess(fmt.Sprintf("Imported %d ticks from %s", total, dir))
	return nil
}
