package rating

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/dimensions"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

// Engine re-rates line items against a rate card.
type Engine struct {
	resolver    dimensions.Service
	logger      *slog.Logger
	workers     int
	itemTimeout time.Duration
	divisor     int
}

type Option func(*Engine)

// WithWorkers bounds how many items are resolved concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithItemTimeout caps the time spent resolving one item. Zero means no cap.
func WithItemTimeout(d time.Duration) Option {
	return func(e *Engine) { e.itemTimeout = d }
}

// WithDivisor overrides the volumetric divisor.
func WithDivisor(d int) Option {
	return func(e *Engine) {
		if d > 0 {
			e.divisor = d
		}
	}
}

func NewEngine(resolver dimensions.Service, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		resolver: resolver,
		logger:   logger,
		workers:  1,
		divisor:  constants.DefaultVolumetricDivisor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rate returns one RatedItem per input item, in input order. Item-level
// failures are reported through the item's Status; the error is non-nil only
// when ctx ends before every item was attempted.
func (e *Engine) Rate(ctx context.Context, items []entity.LineItem, table *tariff.Table) ([]entity.RatedItem, error) {
	if table == nil {
		table = tariff.NewTable(nil)
	}
	rid := common.RequestIDFromContext(ctx)
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	e.logger.Info("rating.run.start",
		"req_id", rid,
		"period", common.PeriodFromContext(ctx),
		"items", len(items),
		"rules", table.Len(),
		"workers", e.workers,
	)

	out := make([]entity.RatedItem, len(items))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = e.rateItem(ctx, items[i], table)
			metrics.RatedItems.WithLabelValues(string(out[i].Status)).Inc()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.logger.Warn("rating.run.canceled", "req_id", rid, "error", err)
		return nil, err
	}

	s := Summarize(out)
	e.logger.Info("rating.run.done",
		"req_id", rid,
		"items", s.Total,
		"overcharged", s.ByStatus[constants.RatingOvercharged],
		"tariff_missing", s.ByStatus[constants.RatingTariffMissing],
		"unresolved", s.ByStatus[constants.RatingDimensionsUnresolved],
		"overcharge_total", s.OverchargeTotal.StringFixed(2),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (e *Engine) rateItem(ctx context.Context, item entity.LineItem, table *tariff.Table) entity.RatedItem {
	res := entity.RatedItem{Item: item}
	rid := common.RequestIDFromContext(ctx)

	ictx, cancel := common.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	est, err := e.resolver.Resolve(ictx, item.Name)
	if err != nil || est == nil {
		res.Status = constants.RatingDimensionsUnresolved
		if err != nil {
			res.Error = err.Error()
		}
		e.logger.Warn("rating.item.unresolved",
			"req_id", rid, "invoice_id", item.ID, "product", item.Name, "error", err,
		)
		return res
	}
	res.Dimensions = est

	res.VolumetricWeight = VolumetricWeight(est.Width, est.Length, est.Height, e.divisor)
	res.BillableWeight = BillableWeight(PhysicalWeight(est.Weight), res.VolumetricWeight)

	rule, ok := table.Lookup(item.Carrier, item.Scope, item.ServiceType, res.BillableWeight)
	if !ok {
		res.Status = constants.RatingTariffMissing
		res.Error = common.ErrLookupMiss.Error()
		e.logger.Warn("rating.item.tariff_missing",
			"req_id", rid,
			"invoice_id", item.ID,
			"carrier", item.Carrier,
			"scope", item.Scope,
			"service", item.ServiceType,
			"billable_weight", res.BillableWeight.StringFixed(2),
		)
		return res
	}

	realTariff := rule.Tariff
	variance := item.Tariff.Sub(realTariff)
	res.RealTariff = &realTariff
	res.Variance = &variance
	if realTariff.LessThan(item.Tariff) {
		res.Status = constants.RatingOvercharged
	} else {
		res.Status = constants.RatingWithinTariff
	}

	e.logger.Debug("rating.item.rated",
		"req_id", rid,
		"invoice_id", item.ID,
		"status", res.Status,
		"paid", item.Tariff.StringFixed(2),
		"real", realTariff.StringFixed(2),
	)
	return res
}

// Overcharges keeps the items whose real tariff is strictly below the paid one.
func Overcharges(results []entity.RatedItem) []entity.RatedItem {
	var out []entity.RatedItem
	for _, r := range results {
		if r.Status == constants.RatingOvercharged {
			out = append(out, r)
		}
	}
	return out
}

// Summary aggregates a rating run.
type Summary struct {
	Total           int                            `json:"total"`
	ByStatus        map[constants.RatingStatus]int `json:"by_status"`
	OverchargeTotal decimal.Decimal                `json:"overcharge_total"`
}

func Summarize(results []entity.RatedItem) Summary {
	s := Summary{Total: len(results), ByStatus: make(map[constants.RatingStatus]int)}
	for _, r := range results {
		s.ByStatus[r.Status]++
		if r.Status == constants.RatingOvercharged && r.Variance != nil {
			s.OverchargeTotal = s.OverchargeTotal.Add(*r.Variance)
		}
	}
	return s
}
