package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/awhitfield/invoice-cataloger/internal/cache"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/deduction"
	"github.com/awhitfield/invoice-cataloger/internal/export"
	"github.com/awhitfield/invoice-cataloger/internal/extract"
	"github.com/awhitfield/invoice-cataloger/internal/failures"
	"github.com/awhitfield/invoice-cataloger/internal/llm"
	"github.com/awhitfield/invoice-cataloger/internal/pipeline"
	"github.com/awhitfield/invoice-cataloger/internal/record"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
	"github.com/awhitfield/invoice-cataloger/internal/rules"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir       = flag.String("dir", "", "directory of source documents to catalog (required)")
		out       = flag.String("out", "", "output XLSX path (default: <dir parent>/catalog.xlsx)")
		csvOut    = flag.String("csv", "", "also write the catalog as CSV to this path")
		rulesPath = flag.String("rules", "", "YAML rule table overriding the built-in categorizer rules")
		force     = flag.Bool("force", false, "reprocess files even when already cached, overwriting entries")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "catalog.xlsx")
	}

	cfg := common.LoadConfig()
	logger := common.NewJSONLogger("invoice-cataloger", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	window, err := record.ParseWindow(cfg.FinancialYear)
	if err != nil {
		logger.Error("financial year invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stores
	var store cache.Store
	var tracker *failures.Tracker
	if cfg.Cache.Path != "" {
		sqlStore, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			logger.Error("open catalog db", "path", cfg.Cache.Path, "error", err)
			os.Exit(1)
		}
		store = sqlStore

		tracker, err = failures.OpenSQLiteTracker(cfg.Cache.Path, cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger)
		if err != nil {
			logger.Error("open failures db", "path", cfg.Cache.Path, "error", err)
			os.Exit(1)
		}
	} else {
		store = cache.NewMemoryStore()
		tracker = failures.NewMemoryTracker(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger)
	}
	defer store.Close()
	defer tracker.Close()

	// stage components
	exec := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		Jitter:         cfg.Retry.Jitter,
		BreakerEnabled: true,
	}, logger)

	registry := extract.NewRegistry(cfg.Extraction, exec, logger)
	structurer := llm.NewClient(cfg.LLM, exec, logger)

	table, err := rules.LoadTable(*rulesPath)
	if err != nil {
		logger.Error("load rules", "path", *rulesPath, "error", err)
		os.Exit(1)
	}
	categorizer, err := rules.NewCategorizer(table)
	if err != nil {
		logger.Error("build categorizer", "error", err)
		os.Exit(1)
	}
	calculator := deduction.NewCalculator(cfg.Pipeline.BusinessUsePercent)

	proc := pipeline.NewProcessor(registry, structurer, categorizer, calculator, store, tracker, window, logger)
	batch := pipeline.NewBatch(proc, logger,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithFileTimeout(cfg.Pipeline.FileTimeout),
	)

	docs, err := pipeline.Discover(*dir)
	if err != nil {
		logger.Error("discover files", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		logger.Warn("no supported files found", "dir", *dir)
	}
	logger.Info("run.start",
		"dir", *dir,
		"files", len(docs),
		"financial_year", cfg.FinancialYear,
		"workers", cfg.Pipeline.Workers,
		"force", *force,
	)

	summary := batch.Run(ctx, docs, *force, nil)

	for _, path := range summary.ExhaustedPaths {
		logger.Warn("run.exhausted_file", "path", path)
	}

	// exports
	svc := export.NewService(store, tracker, logger)

	xlsxBytes, err := svc.CatalogXLSX(ctx)
	if err != nil {
		logger.Error("export xlsx", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("write xlsx", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("run.exported", "path", *out)

	if *csvOut != "" {
		csvBytes, err := svc.CatalogCSV(ctx)
		if err != nil {
			logger.Error("export csv", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*csvOut, csvBytes, 0o644); err != nil {
			logger.Error("write csv", "path", *csvOut, "error", err)
			os.Exit(1)
		}
		logger.Info("run.exported", "path", *csvOut)
	}

	logger.Info("run.done",
		"cataloged", summary.Cataloged,
		"cached_skip", summary.CachedSkip,
		"retry_wait", summary.RetryWait,
		"failed", summary.Failed,
		"exhausted", summary.Exhausted,
	)

	if summary.Failed > 0 || summary.Exhausted > 0 {
		os.Exit(1)
	}
}
