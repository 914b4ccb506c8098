package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/freight-audit/internal/app"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/export"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem     = flag.Bool("inmem", false, "use in-memory SQLite database")
		pdfPath   = flag.String("pdf", "", "invoice PDF (required)")
		csvPath   = flag.String("csv", "", "cost report CSV (required)")
		rateCard  = flag.String("tariffs", "", "rate card CSV to load before rating (optional)")
		provider  = flag.String("provider", "", "carrier for -tariffs when the file has no proveedor column")
		persist   = flag.Bool("persist", false, "save overcharged lines to the scales table")
		noArchive = flag.Bool("no-archive", false, "skip object storage")
		out       = flag.String("out", "", "output file: .csv or .xlsx (optional)")
	)
	flag.Parse()

	if *pdfPath == "" || *csvPath == "" {
		printError("Error: --pdf and --csv are required\n")
		os.Exit(1)
	}
	if *inmem && *rateCard == "" {
		printError("Error: --tariffs is required with --inmem\n")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.LogLevel)
	ctx := common.WithRequestID(context.Background(), "batch")

	services, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem, NoArchive: *noArchive}, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	if *rateCard != "" {
		if err := loadRateCard(ctx, services, *rateCard, *provider); err != nil {
			logger.Error("failed to load rate card", "file", *rateCard, "error", err)
			os.Exit(1)
		}
	}

	up, err := readUpload(*pdfPath, *csvPath)
	if err != nil {
		logger.Error("failed to read inputs", "error", err)
		os.Exit(1)
	}

	res, err := services.Processor.Run(ctx, up, *persist)
	if err != nil {
		if res != nil && res.Intake != nil {
			_ = json.NewEncoder(os.Stdout).Encode(res.Intake.Reconciliation)
		}
		logger.Error("audit failed", "error", err)
		if errors.Is(err, common.ErrTotalsMismatch) || errors.Is(err, common.ErrComparisonIndeterminate) {
			os.Exit(3)
		}
		os.Exit(1)
	}

	if *out != "" {
		if err := writeOutput(ctx, services, *out, res); err != nil {
			logger.Error("failed to write output", "file", *out, "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Audit complete!\n")
	fmt.Printf("- Period: %d\n", res.Intake.Period)
	fmt.Printf("- Lines rated: %d\n", res.Summary.Total)
	for status, n := range res.Summary.ByStatus {
		fmt.Printf("  - %s: %d\n", status, n)
	}
	fmt.Printf("- Overcharge total: %s\n", res.Summary.OverchargeTotal.StringFixed(2))
	if *persist {
		fmt.Printf("- Saved: %t\n", res.Saved)
	}
	if *out != "" {
		fmt.Printf("- Output: %s\n", *out)
	}
}

func loadRateCard(ctx context.Context, services *app.Services, path, provider string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rules, err := tariff.ParseRulesCSV(f, provider)
	if err != nil {
		return err
	}
	byProvider := make(map[string][]entity.TariffRule)
	for _, r := range rules {
		byProvider[r.Provider] = append(byProvider[r.Provider], r)
	}
	for p, rs := range byProvider {
		if err := services.DB.Store.ReplaceTariffs(ctx, p, rs); err != nil {
			return err
		}
	}
	return nil
}

func readUpload(pdfPath, csvPath string) (pipeline.Upload, error) {
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return pipeline.Upload{}, err
	}
	csv, err := os.ReadFile(csvPath)
	if err != nil {
		return pipeline.Upload{}, err
	}
	return pipeline.Upload{
		PDFName: filepath.Base(pdfPath),
		PDF:     pdf,
		CSVName: filepath.Base(csvPath),
		CSV:     csv,
	}, nil
}

// writeOutput exports the saved scales when persisting, else the in-memory results.
func writeOutput(ctx context.Context, services *app.Services, path string, res *pipeline.RunResult) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if res.Saved {
		data, _, err := services.Exporter.Export(ctx, res.Intake.Period, ext)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	if ext != "csv" {
		return common.NewAppError("INVALID_FORMAT", "unsaved results can only be written as csv", common.ErrInvalidInput)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteRatedCSV(f, res.Rated); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
