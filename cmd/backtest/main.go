package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/aleynatasdemir/QuantTrade/internal/backtest"
	"github.com/aleynatasdemir/QuantTrade/internal/feed"
	"github.com/aleynatasdemir/QuantTrade/internal/indicator"
	"github.com/aleynatasdemir/QuantTrade/internal/ledger"
	"github.com/aleynatasdemir/QuantTrade/internal/logger"
	"github.com/aleynatasdemir/QuantTrade/internal/report"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// runAction loads the feeds, runs the simulation, and writes all artifacts
// into the output directory.
func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	cfg := backtest.DefaultConfig()

	if configPath := cmd.String("config"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		cfg, err = backtest.ParseConfig(data)
		if err != nil {
			return err
		}
	}

	if start := cmd.Timestamp("start"); !start.IsZero() {
		cfg.StartTime = optional.Some(start)
	}

	if end := cmd.Timestamp("end"); !end.IsZero() {
		cfg.EndTime = optional.Some(end)
	}

	feeds, err := feed.NewDuckDBFeed(log)
	if err != nil {
		return err
	}
	defer feeds.Close()

	if err := feeds.Initialize(cmd.String("prices"), cmd.String("scores")); err != nil {
		return err
	}

	indicators := indicator.NewEngine(cfg.Indicator)
	if err := indicators.Compute(feeds); err != nil {
		return err
	}

	book, err := ledger.NewLedger(log)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.Initialize(); err != nil {
		return err
	}

	sim, err := backtest.NewSimulator(cfg, feeds, feeds, indicators, book, log)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onDay := backtest.OnDayCallback(func(current int, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total))
			bar.Describe("Simulating")
		}

		bar.Add(1)
	})

	if err := sim.Run(optional.Some(onDay)); err != nil {
		return err
	}

	trades, err := book.Trades()
	if err != nil {
		return err
	}

	equity, err := book.EquityCurve()
	if err != nil {
		return err
	}

	summary, err := report.Compute(cfg, trades, equity)
	if err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := types.WriteSummary(filepath.Join(outputDir, "summary.yaml"), summary); err != nil {
		return err
	}

	if err := report.WriteMarkdown(filepath.Join(outputDir, "report.md"), summary, trades); err != nil {
		return err
	}

	if err := book.Export(outputDir); err != nil {
		return err
	}

	printSummary(summary)

	return nil
}

func printSummary(summary types.Summary) {
	returnStyle := goodStyle
	if summary.TotalReturn < 0 {
		returnStyle = badStyle
	}

	fmt.Println(titleStyle.Render("Backtest complete"))
	fmt.Printf("  Final equity:  %.2f\n", summary.FinalEquity)
	fmt.Printf("  Total return:  %s\n", returnStyle.Render(fmt.Sprintf("%.2f%%", 100*summary.TotalReturn)))
	fmt.Printf("  CAGR:          %.2f%%\n", 100*summary.CAGR)
	fmt.Printf("  Sharpe:        %.2f\n", summary.SharpeAnnual)
	fmt.Printf("  Max drawdown:  %.2f%%\n", 100*summary.MaxDrawdown)
	fmt.Printf("  Trades:        %d (win rate %.2f%%)\n", summary.TotalTrades, 100*summary.WinRate)
}

// schemaAction prints the JSON schema of the config file format.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	cfg := backtest.DefaultConfig()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Slot-based daily portfolio backtest over price and model-score feeds",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest and write summary, report, and parquet exports",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "prices",
						Aliases:  []string{"p"},
						Usage:    "Path to the daily bars feed (CSV or Parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "scores",
						Aliases:  []string{"s"},
						Usage:    "Path to the model score feed (CSV or Parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML config; defaults apply when omitted",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory for run artifacts",
						Value:   "output",
					},
					&cli.TimestampFlag{
						Name:  "start",
						Usage: "First simulated day in `YYYY-MM-DD` format",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
					&cli.TimestampFlag{
						Name:  "end",
						Usage: "Last simulated day in `YYYY-MM-DD` format",
						Config: cli.TimestampConfig{
							Layouts: []string{"2006-01-02"},
						},
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the config file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
