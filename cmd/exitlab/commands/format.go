package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/exitlab/internal/artifact"
	"github.com/wonny/exitlab/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// formatR renders an R value; undefined values print as "n/a"
func formatR(v float64) string {
	s := artifact.FormatFloat(v)
	if s == "" {
		return "n/a"
	}
	if s == "inf" || s == "-inf" {
		return s
	}
	return fmt.Sprintf("%.4f", v)
}

// formatOpt renders an optional threshold
func formatOpt(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

// printParams prints one exit configuration
func printParams(p contracts.ExitParams) {
	for i, v := range p.Values() {
		PrintKeyValue(contracts.ExitParamKeys[i], formatOpt(v), 16)
	}
}

// printMetrics prints grid metrics and the Monte Carlo summary
func printMetrics(m contracts.Metrics, mc contracts.MaxDDPercentiles) {
	PrintKeyValue("average_R", formatR(m.AverageR), 16)
	PrintKeyValue("profit_factor", formatR(m.ProfitFactor), 16)
	PrintKeyValue("win_rate", formatR(m.WinRate), 16)
	PrintKeyValue("max_drawdown_R", formatR(m.MaxDrawdownR), 16)
	PrintKeyValue("mc_maxdd_p50", formatR(mc.P50), 16)
	PrintKeyValue("mc_maxdd_p95", formatR(mc.P95), 16)
	PrintKeyValue("mc_maxdd_p99", formatR(mc.P99), 16)
}

// reasonCounts tallies exit reasons in first-seen order
func reasonCounts(reasons []contracts.ExitReason) []string {
	counts := make(map[contracts.ExitReason]int)
	var order []contracts.ExitReason
	for _, r := range reasons {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	out := make([]string, len(order))
	for i, r := range order {
		out[i] = fmt.Sprintf("%s=%d", r, counts[r])
	}
	return out
}
