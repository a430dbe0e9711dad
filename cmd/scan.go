package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pcameron/webscan/internal/analyzer"
	"github.com/pcameron/webscan/internal/clock/system"
	"github.com/pcameron/webscan/internal/config"
	"github.com/pcameron/webscan/internal/extractor"
	"github.com/pcameron/webscan/internal/history"
	"github.com/pcameron/webscan/internal/id/uuid"
	"github.com/pcameron/webscan/internal/logging"
	"github.com/pcameron/webscan/internal/scanner"
	"github.com/pcameron/webscan/internal/status"
	"github.com/pcameron/webscan/internal/storage"
)

// Detector defaults: signals that a page is a JS shell needing a
// headless render.
var (
	detectorKeywords = []string{
		"enable javascript",
		"javascript is required",
		"loading...",
	}
	detectorSelectors = []string{"body"}
)

type scanFlags struct {
	depth         int
	maxPages      int
	concurrency   int
	output        string
	allowExternal bool
	noScreenshots bool
	noGrammar     bool
	noLinks       bool
	ocr           bool
	statusAddr    string
}

// newScanCmd creates and configures the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a website starting from the given root URL",
		Long: `Crawls the site breadth-first from the root URL, bounded by depth
and page limits, then runs the extraction and analysis pipeline over
every fetched page. Output is written to a timestamped directory under
the configured output root.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.depth, "depth", 0, "maximum link depth from the root (overrides config)")
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "maximum number of pages to fetch (overrides config)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "number of concurrent page workers (overrides config)")
	cmd.Flags().StringVar(&flags.output, "output", "", "output directory root (overrides config)")
	cmd.Flags().BoolVar(&flags.allowExternal, "allow-external", false, "probe external link targets")
	cmd.Flags().BoolVar(&flags.noScreenshots, "no-screenshots", false, "disable screenshot capture")
	cmd.Flags().BoolVar(&flags.noGrammar, "no-grammar", false, "disable the grammar analyzer")
	cmd.Flags().BoolVar(&flags.noLinks, "no-links", false, "disable the link analyzer")
	cmd.Flags().BoolVar(&flags.ocr, "ocr", false, "enable OCR over screenshots")
	cmd.Flags().StringVar(&flags.statusAddr, "status-addr", "", "serve status endpoints on this address")

	return cmd
}

func runScan(cmd *cobra.Command, rootURL string, flags *scanFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlags(&cfg, cmd, flags)

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx := cmd.Context()

	job := scanner.CrawlJob{
		RootURL:       rootURL,
		MaxDepth:      cfg.Scan.MaxDepth,
		MaxPages:      cfg.Scan.MaxPages,
		Concurrency:   cfg.Scan.Concurrency,
		AllowExternal: cfg.Scan.AllowExternal,
		PageTimeout:   cfg.PageTimeout(),
		MaxRetries:    cfg.HTTP.MaxRetries,
		UserAgent:     cfg.Scan.UserAgent,
		RespectRobots: cfg.Scan.RespectRobots,
	}

	clk := system.New()
	store, err := storage.NewStore(cfg.Storage.OutputDir, rootURL, clk, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	renderer := buildRenderer(cfg, logger)
	if renderer != nil {
		defer func() {
			if cerr := renderer.Close(context.WithoutCancel(ctx)); cerr != nil {
				logger.Warn("close renderer", zap.Error(cerr))
			}
		}()
	}

	fetcher, err := buildFetcher(cfg, job, renderer, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	dispatcher := scanner.NewDispatcher(
		buildExtractors(cfg, store, renderer),
		buildAnalyzers(cfg, job, logger),
		logger,
	)

	engine, err := scanner.NewEngine(job, fetcher, dispatcher, store, clk, uuid.NewGenerator(), logger)
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		statusSrv := status.NewServer(cfg.Status.Addr, logger)
		statusSrv.Start()
		started := clk.Now()
		engine.SetProgressFunc(func(pagesDone int) {
			statusSrv.Update(status.Snapshot{
				RootURL:   rootURL,
				Started:   started,
				PagesDone: pagesDone,
				Running:   true,
			})
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if serr := statusSrv.Shutdown(shutdownCtx); serr != nil {
				logger.Warn("shutdown status server", zap.Error(serr))
			}
		}()
	}

	meta, _, runErr := engine.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run scan: %w", runErr)
	}

	if cfg.History.Enabled {
		if herr := recordHistory(ctx, cfg, meta); herr != nil {
			logger.Warn("record scan history", zap.Error(herr))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scan %s %s: %d pages fetched, %d failed. Output: %s\n",
		meta.ScanID, meta.Status,
		meta.Counters.FetchedOK, meta.Counters.FetchedFailed,
		store.ScanDir(),
	)
	return nil
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cfg *config.Config, cmd *cobra.Command, flags *scanFlags) {
	if cmd.Flags().Changed("depth") {
		cfg.Scan.MaxDepth = flags.depth
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.Scan.MaxPages = flags.maxPages
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scan.Concurrency = flags.concurrency
	}
	if cmd.Flags().Changed("output") {
		cfg.Storage.OutputDir = flags.output
	}
	if cmd.Flags().Changed("allow-external") {
		cfg.Scan.AllowExternal = flags.allowExternal
		cfg.Analyzers.CheckExternal = flags.allowExternal
	}
	if flags.noScreenshots {
		cfg.Analyzers.Screenshots = false
	}
	if flags.noGrammar {
		cfg.Analyzers.Grammar = false
	}
	if flags.noLinks {
		cfg.Analyzers.Links = false
	}
	if flags.ocr {
		cfg.Analyzers.OCR = true
	}
	if cmd.Flags().Changed("status-addr") {
		cfg.Status.Enabled = true
		cfg.Status.Addr = flags.statusAddr
	}
}

// buildRenderer starts the headless browser when enabled. A browser
// that fails to start downgrades the scan to plain fetches instead of
// aborting it.
func buildRenderer(cfg config.Config, logger *zap.Logger) scanner.Renderer {
	if !cfg.Headless.Enabled {
		return nil
	}
	renderer, err := scanner.NewChromedpRenderer(scanner.RendererConfig{
		MaxConcurrency: cfg.Headless.MaxParallel,
		Timeout:        cfg.NavTimeout(),
		DomainQPS:      cfg.Headless.DomainQPS,
		UserAgent:      cfg.Scan.UserAgent,
		ViewportWidth:  cfg.Headless.ViewportWidth,
		ViewportHeight: cfg.Headless.ViewportHeight,
		FullPage:       cfg.Headless.FullPage,
	}, logger)
	if err != nil {
		logger.Warn("headless browser unavailable; continuing without rendering", zap.Error(err))
		return nil
	}
	return renderer
}

func buildFetcher(cfg config.Config, job scanner.CrawlJob, renderer scanner.Renderer, logger *zap.Logger) (scanner.Fetcher, error) {
	var detector scanner.Detector
	if renderer != nil {
		detector = scanner.NewHeuristicDetector(cfg.Headless.MinHTMLBytes, detectorSelectors, detectorKeywords)
	}
	return scanner.NewCollyFetcher(
		scanner.FetcherConfig{
			UserAgent:    job.UserAgent,
			Timeout:      job.PageTimeout,
			Concurrency:  job.Concurrency,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			DomainDelay:  cfg.DomainDelay(),
		},
		scanner.NewExponentialRetryPolicy(job.MaxRetries),
		scanner.NewRobotsEnforcer(job.RespectRobots, job.UserAgent, logger),
		renderer,
		detector,
		logger,
	)
}

func buildExtractors(cfg config.Config, store *storage.Store, renderer scanner.Renderer) []scanner.Extractor {
	extractors := []scanner.Extractor{
		extractor.NewHTML(store.HTMLDir()),
		extractor.NewText(store.TextDir()),
	}
	if cfg.Analyzers.Screenshots && renderer != nil {
		extractors = append(extractors, extractor.NewScreenshot(store.ScreenshotsDir(), renderer))
	}
	return extractors
}

func buildAnalyzers(cfg config.Config, job scanner.CrawlJob, logger *zap.Logger) []scanner.Analyzer {
	var analyzers []scanner.Analyzer
	if cfg.Analyzers.Links {
		analyzers = append(analyzers, analyzer.NewLinks(analyzer.LinksConfig{
			UserAgent:     job.UserAgent,
			Timeout:       job.PageTimeout,
			Parallelism:   int64(job.Concurrency) * 2,
			CheckExternal: cfg.Analyzers.CheckExternal,
			RootURL:       job.RootURL,
		}, logger))
	}
	if cfg.Analyzers.Grammar {
		analyzers = append(analyzers, analyzer.NewGrammar())
	}
	if cfg.Analyzers.OCR {
		analyzers = append(analyzers, analyzer.NewOCR(cfg.Analyzers.OCRBinary, logger))
	}
	return analyzers
}

func recordHistory(ctx context.Context, cfg config.Config, meta scanner.CrawlMetadata) error {
	store, err := history.NewStore(ctx, history.StoreConfig{
		DSN:      cfg.History.DSN,
		Table:    cfg.History.Table,
		MaxConns: cfg.History.MaxConns,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordScan(context.WithoutCancel(ctx), meta)
}
