package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"adscroll/internal/browser"
	"adscroll/internal/catalog"
	"adscroll/internal/config"
	"adscroll/internal/diagnose"
	"adscroll/internal/harvest"
	"adscroll/internal/listing"
	"adscroll/internal/page"
	"adscroll/internal/page/htmlpage"
	"adscroll/internal/page/rodpage"
	"adscroll/internal/storage"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath  string
	city        string
	category    string
	outputFile  string
	format      string
	scrollPause time.Duration
	scrollStep  int
	maxScrolls  int
	maxStall    int
	waitTimeout time.Duration
	showUI      bool
	proxyURL    string
	fromFile    string
	sqlitePath  string
	postgresDSN string
	snapshotDir string
	verbose     bool
)

func main() {
	defaults := harvest.DefaultOptions()

	var rootCmd = &cobra.Command{
		Use:     "adscroll [URL]",
		Short:   "Harvest classified ads from an infinite-scroll feed",
		Version: version,
		Long: `adscroll opens a divar.ir listing feed in a headless browser, keeps
scrolling (and pressing "load more") until no new ads appear, and saves every
ad it saw exactly once, in the order it appeared.

Without a URL or --category an interactive menu picks the feed.`,
		Example: `  # Pick a feed from the menu and save to output.json
  adscroll

  # Rent apartments in Babolsar as CSV
  adscroll -c rent-apartment -o ads.csv

  # Any feed URL, also stored in SQLite
  adscroll --sqlite ads.db https://divar.ir/s/tehran/buy-villa

  # Replay a saved page without a browser
  adscroll --from-file feed.html -f markdown -o ads.md`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultFile, "Config file (json5); a .local sibling overrides it")
	rootCmd.Flags().StringVarP(&category, "category", "c", "", "Feed slug, e.g. rent-apartment (see 'adscroll categories')")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", storage.DefaultPath, "Output file path (format inferred from extension if -f not specified)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "", "Output format (json, csv, markdown, sqlite)")
	rootCmd.Flags().DurationVar(&scrollPause, "scroll-pause", defaults.ScrollPause, "Wait after each scroll")
	rootCmd.Flags().IntVar(&scrollStep, "scroll-step", defaults.ScrollStep, "Pixels scrolled per cycle")
	rootCmd.Flags().IntVar(&maxScrolls, "max-scrolls", defaults.MaxScrolls, "Upper bound on scroll cycles")
	rootCmd.Flags().IntVar(&maxStall, "max-stall", defaults.MaxStallRounds, "Consecutive empty cycles before stopping")
	rootCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", defaults.WaitTimeout, "How long to wait for the feed container")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", os.Getenv("ADSCROLL_PROXY"), "Proxy URL used to retry when the feed cannot be opened directly, defaults to ADSCROLL_PROXY env var")
	rootCmd.Flags().StringVar(&fromFile, "from-file", "", "Harvest a saved HTML page instead of launching a browser")
	rootCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Also store results in this SQLite database")
	rootCmd.Flags().StringVar(&postgresDSN, "postgres", "", "Also store results in PostgreSQL (connection string)")
	rootCmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "Save a Markdown snapshot here when the feed never renders")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "categories",
		Short: "List the known feeds and their URLs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			t := catalog.Table(city)
			t.SetOutputMirror(os.Stdout)
			t.Render()
		},
	})
	rootCmd.PersistentFlags().StringVar(&city, "city", catalog.DefaultCity, "City segment of the feed URL")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger(verbose)
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	opts, err := cfg.HarvestOptions()
	if err != nil {
		return err
	}
	outFormat, err := cfg.OutputFormat()
	if err != nil {
		return err
	}

	target, err := resolveTarget(args, cfg)
	if err != nil {
		return err
	}
	logger.Info("target", slog.String("url", target))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := harvest.New(opts, logger)

	var result *listing.ResultSet
	var stats harvest.Stats
	if cfg.FromFile != "" {
		result, stats, err = harvestFile(ctx, h, cfg.FromFile, target)
	} else {
		result, stats, err = harvestLive(ctx, logger, h, cfg, opts.WaitTimeout, target)
	}

	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}
	if interrupted && result == nil {
		return err
	}
	if interrupted {
		logger.Warn("interrupted, saving what was collected", slog.Int("total", result.Len()))
	}
	logger.Info("harvest finished",
		slog.String("reason", string(stats.Reason)),
		slog.Int("scrolls", stats.Scrolls),
		slog.Int("load_more_clicks", stats.LoadMoreClicks))

	if err := persist(logger, cfg, outFormat, target, result); err != nil {
		return err
	}

	fmt.Printf("Scraping completed. Total ads saved: %d\n", result.Len())
	return nil
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("city", func() { cfg.City = city })
	set("category", func() { cfg.Category = category })
	set("output", func() { cfg.Output = outputFile })
	set("format", func() { cfg.Format = format })
	set("scroll-pause", func() { cfg.ScrollPause = scrollPause.String() })
	set("scroll-step", func() { cfg.ScrollStep = scrollStep })
	set("max-scrolls", func() { cfg.MaxScrolls = maxScrolls })
	set("max-stall", func() { cfg.MaxStall = maxStall })
	set("wait-timeout", func() { cfg.WaitTimeout = waitTimeout.String() })
	set("showui", func() { cfg.ShowUI = showUI })
	set("proxy", func() { cfg.Proxy = proxyURL })
	set("from-file", func() { cfg.FromFile = fromFile })
	set("sqlite", func() { cfg.SQLite = sqlitePath })
	set("postgres", func() { cfg.Postgres = postgresDSN })
	set("snapshot-dir", func() { cfg.SnapshotDir = snapshotDir })
}

// resolveTarget picks the feed URL: an explicit argument, then --category,
// then the saved file's name in replay mode, then the interactive menu.
func resolveTarget(args []string, cfg config.Config) (string, error) {
	category := strings.TrimSpace(cfg.Category)
	switch {
	case len(args) == 1:
		return normalizeURL(args[0]), nil
	case category != "":
		if !catalog.Lookup(category) {
			return "", fmt.Errorf("unknown category: %s (see 'adscroll categories')", category)
		}
		return catalog.URL(cfg.City, category), nil
	case cfg.FromFile != "":
		abs, err := filepath.Abs(cfg.FromFile)
		if err != nil {
			return "", err
		}
		return "file://" + filepath.ToSlash(abs), nil
	}

	slug, err := catalog.Prompt(os.Stdin, os.Stderr, cfg.City)
	if err != nil {
		return "", err
	}
	return catalog.URL(cfg.City, slug), nil
}

func harvestFile(ctx context.Context, h *harvest.Harvester, path, target string) (*listing.ResultSet, harvest.Stats, error) {
	p, err := htmlpage.FromFile(path)
	if err != nil {
		return nil, harvest.Stats{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return h.Run(ctx, p, target)
}

// harvestLive runs against a real browser. If the feed cannot be opened and a
// proxy is configured, it tries once more through the proxy. The browser is
// closed before returning, so persistence never holds it open.
func harvestLive(ctx context.Context, logger *slog.Logger, h *harvest.Harvester, cfg config.Config, waitTimeout time.Duration, target string) (*listing.ResultSet, harvest.Stats, error) {
	result, stats, err := harvestWithBrowser(ctx, logger, h, cfg, "", waitTimeout, target)
	if err == nil || result != nil || cfg.Proxy == "" || ctx.Err() != nil {
		return result, stats, err
	}

	logger.Warn("first attempt failed, retrying with proxy",
		slog.String("error", err.Error()),
		slog.String("proxy", cfg.Proxy))
	result, stats, err = harvestWithBrowser(ctx, logger, h, cfg, cfg.Proxy, waitTimeout, target)
	if err != nil && result == nil {
		return nil, stats, fmt.Errorf("failed to harvest (even with proxy): %w", err)
	}
	return result, stats, err
}

func harvestWithBrowser(ctx context.Context, logger *slog.Logger, h *harvest.Harvester, cfg config.Config, proxy string, waitTimeout time.Duration, target string) (*listing.ResultSet, harvest.Stats, error) {
	b, err := browser.New(browser.Config{
		Headless:  !cfg.ShowUI,
		ProxyURL:  proxy,
		UserAgent: cfg.UserAgent,
		Bin:       cfg.ChromeBin,
	})
	if err != nil {
		return nil, harvest.Stats{}, err
	}
	if b.GetProxyURL() != "" {
		logger.Info("browser started", slog.String("proxy", b.GetProxyURL()))
	} else {
		logger.Debug("browser started")
	}
	defer func() {
		logger.Debug("closing browser")
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", slog.String("error", err.Error()))
		}
	}()

	rp, err := b.NewPage()
	if err != nil {
		return nil, harvest.Stats{}, fmt.Errorf("failed to create page: %w", err)
	}
	// script and query round trips share the container wait budget
	p := rodpage.New(rp, waitTimeout+10*time.Second, waitTimeout)

	result, stats, err := h.Run(ctx, p, target)
	if errors.Is(err, harvest.ErrContainerMissing) && cfg.SnapshotDir != "" {
		snapshot(logger, p, cfg.SnapshotDir, target)
	}
	return result, stats, err
}

func snapshot(logger *slog.Logger, p page.Page, dir, target string) {
	path, err := diagnose.Snapshot(p, dir, target, time.Now())
	if err != nil {
		logger.Warn("failed to save snapshot", slog.String("error", err.Error()))
		return
	}
	logger.Info("page snapshot saved", slog.String("path", path))
}

// persist writes the main output first, then the optional database sinks.
func persist(logger *slog.Logger, cfg config.Config, outFormat storage.Format, source string, result *listing.ResultSet) error {
	if err := storage.Write(cfg.Output, outFormat, source, result); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	logger.Info("output written", slog.String("path", cfg.Output), slog.String("format", string(outFormat)))

	// the harvest context may already be canceled; saving must still finish
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if cfg.SQLite != "" {
		store, err := storage.OpenSQLite(cfg.SQLite)
		if err != nil {
			return err
		}
		n, err := store.Save(ctx, source, result)
		store.Close()
		if err != nil {
			return fmt.Errorf("failed to save to sqlite: %w", err)
		}
		logger.Info("saved to sqlite", slog.String("path", cfg.SQLite), slog.Int("rows", n))
	}

	if cfg.Postgres != "" {
		store, err := storage.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		n, err := store.Save(ctx, source, result)
		store.Close()
		if err != nil {
			return fmt.Errorf("failed to save to postgres: %w", err)
		}
		logger.Info("saved to postgres", slog.Int("rows", n))
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// normalizeURL adds https:// when the argument has no scheme.
func normalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return rawURL
	}
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "file://") {
		return "https://" + rawURL
	}
	return rawURL
}
