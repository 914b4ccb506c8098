package repository

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
)

// Gateway reports bulk loads as plain success/failure and logs the detail.
type Gateway struct {
	invoices InvoiceStore
	scales   ScaleStore
	logger   *slog.Logger
}

func NewGateway(invoices InvoiceStore, scales ScaleStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{invoices: invoices, scales: scales, logger: logger}
}

// LoadInvoiceRows converts and inserts raw report rows in one transaction.
// Keys are lower-cased; unnamed and unknown columns are dropped with a warning.
func (g *Gateway) LoadInvoiceRows(ctx context.Context, rows []map[string]string) bool {
	_, ok := g.LoadInvoiceRowsWithIDs(ctx, rows)
	return ok
}

// LoadInvoiceRowsWithIDs is LoadInvoiceRows that also returns the new row ids.
func (g *Gateway) LoadInvoiceRowsWithIDs(ctx context.Context, rows []map[string]string) ([]int64, bool) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	items := make([]entity.LineItem, 0, len(rows))
	dropped := make(map[string]struct{})
	for i, raw := range rows {
		row := make(map[string]string, len(raw))
		for k, v := range raw {
			key := strings.ToLower(strings.TrimSpace(k))
			if key == "" {
				dropped["<unnamed>"] = struct{}{}
				continue
			}
			row[key] = v
		}
		item, unknown, err := entity.LineItemFromRow(row)
		if err != nil {
			g.logger.Error("gateway.invoices.row_invalid", "req_id", rid, "row", i+1, "error", err)
			return nil, false
		}
		for _, k := range unknown {
			dropped[k] = struct{}{}
		}
		items = append(items, item)
	}
	if len(dropped) > 0 {
		cols := make([]string, 0, len(dropped))
		for k := range dropped {
			cols = append(cols, k)
		}
		sort.Strings(cols)
		g.logger.Warn("gateway.invoices.columns_dropped", "req_id", rid, "columns", cols)
	}
	if len(items) == 0 {
		return nil, true
	}

	ids, err := g.invoices.InsertInvoices(ctx, items)
	if err != nil {
		g.logger.Error("gateway.invoices.load_failed", "req_id", rid, "rows", len(items), "error", err)
		return nil, false
	}
	metrics.InvoiceRowsLoaded.Add(float64(len(ids)))
	g.logger.Info("gateway.invoices.loaded",
		"req_id", rid, "rows", len(ids), "elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ids, true
}

// SaveScales persists the projection of rated items that carry a real tariff.
// An empty input is a successful no-op.
func (g *Gateway) SaveScales(ctx context.Context, rated []entity.RatedItem) bool {
	rid := common.RequestIDFromContext(ctx)
	if len(rated) == 0 {
		return true
	}

	scales := make([]entity.Scale, 0, len(rated))
	for _, r := range rated {
		sc, ok := r.ToScale()
		if !ok {
			g.logger.Warn("gateway.scales.skip_unrated", "req_id", rid, "invoice_id", r.Item.ID, "status", r.Status)
			continue
		}
		if sc.InvoiceID <= 0 {
			g.logger.Error("gateway.scales.missing_invoice_id", "req_id", rid, "track_code", r.Item.TrackCode)
			return false
		}
		scales = append(scales, sc)
	}
	if len(scales) == 0 {
		return true
	}

	if _, err := g.scales.InsertScales(ctx, scales); err != nil {
		g.logger.Error("gateway.scales.save_failed", "req_id", rid, "rows", len(scales), "error", err)
		return false
	}
	g.logger.Info("gateway.scales.saved", "req_id", rid, "rows", len(scales))
	return true
}
