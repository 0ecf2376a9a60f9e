package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/tickerpulse/internal/aggregate"
	"github.com/mkarlsen/tickerpulse/internal/config"
	"github.com/mkarlsen/tickerpulse/internal/database"
	"github.com/mkarlsen/tickerpulse/internal/llm"
	"github.com/mkarlsen/tickerpulse/internal/pipeline"
	"github.com/mkarlsen/tickerpulse/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tickerpulse",
	Short:   "Stock sentiment from forums and news",
	Long:    "TickerPulse ingests stock chatter from forums and news feeds, scores each item's sentiment with an LLM, and serves per-ticker summaries over a local API and dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tickersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tickerpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/tickerpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
		} else {
			if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Created config: %s\n", target)
			fmt.Println("Edit it to configure sources, API keys, and the summarizer.")
		}

		loaded, err := config.Load(target)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		added, err := db.SeedTickers(cfg.Tickers.Defaults)
		if err != nil {
			return fmt.Errorf("seeding tickers: %w", err)
		}
		fmt.Printf("Tracking %d default tickers (%d new).\n", len(cfg.Tickers.Defaults), added)
		return nil
	},
}

// --- run command ---

var (
	runTickers []string
	dryRun     bool
	runEvery   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest sources and refresh sentiment summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tickers, err := resolveTickers(db, runTickers)
		if err != nil {
			return err
		}

		runner := pipeline.FromConfig(cfg, db)

		if dryRun {
			for _, line := range runner.DryRun(tickers) {
				fmt.Println(line)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runOnce(ctx, runner, tickers); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nInterrupted.")
				return nil
			}
			return err
		}

		if runEvery <= 0 {
			fmt.Println("\nRun complete! Start 'tickerpulse serve' to browse the results.")
			return nil
		}

		fmt.Printf("\nRe-running every %s. Press Ctrl+C to stop.\n", runEvery)
		tick := time.NewTicker(runEvery)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nInterrupted.")
				return nil
			case <-tick.C:
				if err := runOnce(ctx, runner, tickers); err != nil {
					if errors.Is(err, context.Canceled) {
						fmt.Println("\nInterrupted.")
						return nil
					}
					return err
				}
			}
		}
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "Tickers to process (default: the active tracked set)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without fetching or writing")
	runCmd.Flags().DurationVar(&runEvery, "every", 0, "Repeat the run on this interval (e.g. 30m)")
}

func runOnce(ctx context.Context, runner *pipeline.Runner, tickers []string) error {
	start := time.Now()
	result, err := runner.Run(ctx, tickers)
	if err != nil {
		return err
	}

	totals := result.Totals()
	fmt.Printf("\nRun finished in %s:\n", time.Since(start).Round(time.Second))
	fmt.Printf("  Tickers processed: %d\n", len(result.Tickers))
	fmt.Printf("  New records: %d\n", totals.Created)
	fmt.Printf("  Duplicates skipped: %d\n", totals.Skipped)
	fmt.Printf("  Items failed: %d\n", totals.Failed)
	if totals.SourceErrors > 0 {
		fmt.Printf("  Source errors: %d\n", totals.SourceErrors)
	}
	return nil
}

// resolveTickers uses the --tickers flag when given, otherwise the active
// tracked set.
func resolveTickers(db *database.DB, flag []string) ([]string, error) {
	if len(flag) > 0 {
		return flag, nil
	}

	tracked, err := db.GetActiveTickers()
	if err != nil {
		return nil, fmt.Errorf("loading tracked tickers: %w", err)
	}
	if len(tracked) == 0 {
		return nil, fmt.Errorf("no active tickers; run 'tickerpulse init', add one with 'tickerpulse tickers add', or pass --tickers")
	}

	symbols := make([]string, 0, len(tracked))
	for _, t := range tracked {
		symbols = append(symbols, t.Symbol)
	}
	return symbols, nil
}

// --- aggregate command ---

var aggTickers []string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute sentiment summaries from stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tickers, err := resolveTickers(db, aggTickers)
		if err != nil {
			return err
		}

		summ := cfg.Summarizer
		provider := llm.CreateProvider(summ.Provider, summ.Model, summ.APIKeyEnv, summ.OllamaURL, summ.OllamaModel)
		provider = llm.NewRateLimited(provider, summ.RequestsPerMinute)
		agg := aggregate.New(db, provider)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Recomputing summaries for %d tickers:\n", len(tickers))
		for _, ticker := range tickers {
			if err := ctx.Err(); err != nil {
				fmt.Println("\nInterrupted.")
				return nil
			}
			summary, err := agg.Recompute(ctx, ticker)
			if err != nil {
				fmt.Printf("  %s: %v\n", strings.ToUpper(ticker), err)
				continue
			}
			fmt.Printf("  %s: %s (%d records)\n", summary.Ticker, summary.OverallSentiment, summary.Total)
		}
		return nil
	},
}

func init() {
	aggregateCmd.Flags().StringSliceVar(&aggTickers, "tickers", nil, "Tickers to recompute (default: the active tracked set)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", database.GetToday())

		summ := cfg.Summarizer
		provider := llm.CreateProvider(summ.Provider, summ.Model, summ.APIKeyEnv, summ.OllamaURL, summ.OllamaModel)
		state := "not configured"
		if provider != nil && provider.IsConfigured() {
			state = "configured"
		} else if summ.APIKeyEnv != "" {
			state = fmt.Sprintf("not configured (set %s)", summ.APIKeyEnv)
		}
		fmt.Println("Summarizer:")
		fmt.Printf("  Provider: %s (%s)\n", summ.Provider, summ.Model)
		fmt.Printf("  State: %s\n", state)

		runner := pipeline.FromConfig(cfg, db)
		fmt.Println("\nSources:")
		if len(runner.Sources()) == 0 {
			fmt.Println("  none enabled")
		}
		for _, src := range runner.Sources() {
			fmt.Printf("  %s (%s)\n", src.Name(), src.Kind())
		}

		fmt.Println("\nStore:")
		fmt.Printf("  Records: %d (%d forum, %d news)\n", stats.TotalRecords, stats.ForumRecords, stats.NewsRecords)
		fmt.Printf("  Tickers with data: %d\n", stats.DistinctTickers)
		fmt.Printf("  Summaries: %d\n", stats.Summaries)
		fmt.Printf("  Tracked tickers: %d (%d active)\n", stats.TrackedTickers, stats.ActiveTickers)
		if stats.LatestDate != "" {
			fmt.Printf("  Latest record date: %s\n", stats.LatestDate)
		}
		return nil
	},
}

// --- tickers command ---

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Manage tracked tickers",
}

var tickersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tracked, err := db.GetAllTickers()
		if err != nil {
			return err
		}
		if len(tracked) == 0 {
			fmt.Println("No tracked tickers. Add one with: tickerpulse tickers add AAPL")
			return nil
		}

		fmt.Println("Tracked tickers:")
		for _, t := range tracked {
			icon := " "
			if t.IsActive {
				icon = "*"
			}
			fmt.Printf("  %s %s\n", icon, t.Symbol)
		}
		fmt.Println("\n* = active; inactive tickers are skipped by 'tickerpulse run'")
		return nil
	},
}

var tickersAddCmd = &cobra.Command{
	Use:   "add [symbol]",
	Short: "Track a new ticker symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		id, err := db.InsertTicker(symbol)
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("%s is already tracked.\n", symbol)
			return nil
		}
		fmt.Printf("Now tracking %s.\n", symbol)
		return nil
	},
}

var tickersRemoveCmd = &cobra.Command{
	Use:   "remove [symbol]",
	Short: "Stop tracking a ticker symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		existing, err := db.GetTicker(symbol)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%s is not tracked", symbol)
		}

		if err := db.DeleteTicker(symbol); err != nil {
			return err
		}
		fmt.Printf("Stopped tracking %s.\n", symbol)
		return nil
	},
}

var tickersToggleCmd = &cobra.Command{
	Use:   "toggle [symbol]",
	Short: "Toggle a ticker's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := strings.ToUpper(strings.TrimSpace(args[0]))
		existing, err := db.GetTicker(symbol)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%s is not tracked", symbol)
		}

		if err := db.ToggleTicker(symbol); err != nil {
			return err
		}
		newState := "inactive"
		if !existing.IsActive {
			newState = "active"
		}
		fmt.Printf("%s is now %s.\n", symbol, newState)
		return nil
	},
}

func init() {
	tickersCmd.AddCommand(tickersListCmd)
	tickersCmd.AddCommand(tickersAddCmd)
	tickersCmd.AddCommand(tickersRemoveCmd)
	tickersCmd.AddCommand(tickersToggleCmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "tickerpulse.db")
	return database.Open(dbPath)
}
