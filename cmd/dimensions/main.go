package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/freight-audit/internal/app"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/dimensions"
	"github.com/joseph-ayodele/freight-audit/internal/rating"
)

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		logger.Error("usage: dimensions <product name>")
		os.Exit(2)
	}
	product := strings.Join(os.Args[1:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = common.WithRequestID(ctx, "cli")

	resolver, closeGen, err := app.NewResolver(ctx, cfg, logger)
	defer func() { _ = closeGen() }()
	if err != nil {
		logger.Error("failed to wire resolver", "error", err)
		os.Exit(2)
	}

	start := time.Now()
	est, err := resolver.Resolve(ctx, product)
	if err != nil {
		logger.Error("resolve failed", "product", product, "error", err)
		os.Exit(1)
	}
	if est == nil {
		logger.Warn("no search results", "product", product, "query", dimensions.Query(product))
		os.Exit(3)
	}

	vol := rating.VolumetricWeight(est.Width, est.Length, est.Height, cfg.Rating.VolumetricDivisor)
	logger.Info("dimensions resolved",
		"product", product,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"volumetric_kg", vol.StringFixed(2),
		"billable_kg", rating.BillableWeight(rating.PhysicalWeight(est.Weight), vol).StringFixed(2),
		"divisor", strconv.Itoa(cfg.Rating.VolumetricDivisor),
	)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(est)
}
