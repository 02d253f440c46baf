package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// RenderMarkdown renders the run summary and trade log as a Markdown report.
func RenderMarkdown(summary types.Summary, trades []types.Trade) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", summary.ID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", summary.Timestamp.Format(time.RFC3339)))

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", summary.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", summary.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", 100*summary.TotalReturn))
	sb.WriteString(fmt.Sprintf("| CAGR | %.2f%% |\n", 100*summary.CAGR))
	sb.WriteString(fmt.Sprintf("| Sharpe (annualized) | %.2f |\n", summary.SharpeAnnual))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", 100*summary.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", summary.TradingDays))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", summary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", 100*summary.WinRate))
	sb.WriteString("\n")

	sb.WriteString("## Exit Reasons\n\n")

	if len(summary.ExitReasons) > 0 {
		sb.WriteString("| Reason | Trades |\n")
		sb.WriteString("|--------|--------|\n")

		for _, reason := range types.AllExitReasons {
			if count, ok := summary.ExitReasons[reason]; ok {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", reason, count))
			}
		}
	} else {
		sb.WriteString("No trades closed.\n")
	}

	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")

	if len(trades) > 0 {
		sb.WriteString("| Symbol | Entry | Entry Price | Exit | Exit Price | Return | Days | Reason |\n")
		sb.WriteString("|--------|-------|-------------|------|------------|--------|------|--------|\n")

		for _, t := range trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %s | %.4f | %.2f%% | %d | %s |\n",
				t.Symbol,
				t.EntryDate.Format("2006-01-02"),
				t.EntryPrice,
				t.ExitDate.Format("2006-01-02"),
				t.ExitPrice,
				100*t.ReturnPct,
				t.DaysHeld,
				t.ExitReason,
			))
		}
	} else {
		sb.WriteString("No trades closed.\n")
	}

	sb.WriteString("\n")

	return sb.String()
}

// WriteMarkdown renders the report and writes it to path.
func WriteMarkdown(path string, summary types.Summary, trades []types.Trade) error {
	if err := os.WriteFile(path, []byte(RenderMarkdown(summary, trades)), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeReportWriteFailed, "failed to write markdown report", err)
	}

	return nil
}
