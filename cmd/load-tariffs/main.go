package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/freight-audit/internal/app"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

func main() {
	var (
		file     = flag.String("file", "", "rate card CSV (required)")
		provider = flag.String("provider", "", "carrier whose rate card is replaced (required)")
		dryRun   = flag.Bool("dry-run", false, "parse and validate only")
	)
	flag.Parse()
	if *file == "" || *provider == "" {
		fmt.Fprintln(os.Stderr, "Error: --file and --provider are required")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.LogLevel)

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open rate card", "file", *file, "error", err)
		os.Exit(1)
	}
	rules, err := tariff.ParseRulesCSV(f, *provider)
	_ = f.Close()
	if err != nil {
		logger.Error("parse rate card", "file", *file, "error", err)
		os.Exit(1)
	}
	if err := tariff.Validate(rules); err != nil {
		logger.Error("invalid rate card", "file", *file, "error", err)
		os.Exit(1)
	}
	if *dryRun {
		logger.Info("rate card ok", "provider", *provider, "rules", len(rules))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := app.OpenStore(ctx, cfg, false, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Cleanup()

	if err := db.Store.ReplaceTariffs(ctx, *provider, rules); err != nil {
		logger.Error("replace tariffs", "provider", *provider, "error", err)
		os.Exit(1)
	}
	logger.Info("rate card replaced", "provider", *provider, "rules", len(rules))
}
