package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/app"
	"github.com/joseph-ayodele/freight-audit/internal/extract"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 || len(os.Args) > 3 {
		logger.Error("usage", "cmd", "pdftotal <invoice.pdf> [report.csv]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	total, err := app.NewTotalExtractor(logger).ExtractTotal(ctx, os.Args[1])
	if err != nil {
		logger.Error("total extraction failed", "file", os.Args[1], "error", err)
		os.Exit(1)
	}
	if total == nil {
		logger.Warn("no TOTAL line found", "file", os.Args[1], "duration_ms", time.Since(start).Milliseconds())
		os.Exit(3)
	}
	logger.Info("pdf total", "file", os.Args[1], "total", total.StringFixed(2), "duration_ms", time.Since(start).Milliseconds())

	if len(os.Args) == 3 {
		report, err := extract.ReadReport(os.Args[2], logger)
		if err != nil {
			logger.Error("read report", "file", os.Args[2], "error", err)
			os.Exit(1)
		}
		logger.Info("csv total",
			"file", os.Args[2],
			"total", report.Total.StringFixed(2),
			"rows", len(report.Rows),
			"period", report.Period,
			"match", report.Total.Equal(*total),
		)
	}
}
