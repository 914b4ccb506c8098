package dimensions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/llm"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
	"github.com/joseph-ayodele/freight-audit/internal/search"
)

// Service resolves product dimensions. A nil estimate with a nil error means
// the search returned nothing usable.
type Service interface {
	Resolve(ctx context.Context, product string) (*entity.DimensionEstimate, error)
}

// Config controls the resolver's calls out.
type Config struct {
	Depth             string        // search depth, default "advanced"
	SearchTimeout     time.Duration // per search call
	GenerateTimeout   time.Duration // per model call
	RequestsPerSecond float64       // <= 0 disables pacing
	Burst             int
}

// Resolver implements Service with one search plus one model call per product.
// Successful estimates are cached by normalized product name.
type Resolver struct {
	searcher  search.Searcher
	generator llm.Generator
	cfg       Config
	limiter   *rate.Limiter
	group     singleflight.Group
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]*entity.DimensionEstimate
}

func NewResolver(searcher search.Searcher, generator llm.Generator, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Depth == "" {
		cfg.Depth = constants.DefaultSearchDepth
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		searcher:  searcher,
		generator: generator,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		logger:    logger,
		cache:     make(map[string]*entity.DimensionEstimate),
	}
}

// Query is the search phrase sent for product.
func Query(product string) string {
	return fmt.Sprintf("dimensions (height, width, length, weight) for product %q", product)
}

// Source names the services an estimate came from, e.g. "Tavily + Gemini".
func (r *Resolver) Source() string {
	return r.searcher.Name() + " + " + r.generator.Name()
}

func (r *Resolver) Resolve(ctx context.Context, product string) (*entity.DimensionEstimate, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, common.NewAppError("INVALID_PRODUCT", "product name is empty", common.ErrInvalidInput)
	}
	key := strings.ToLower(product)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		metrics.DimensionCacheHits.Inc()
		return copyEstimate(cached), nil
	}

	// The shared lookup outlives any single caller; each caller stops waiting
	// when its own ctx ends.
	ch := r.group.DoChan(key, func() (any, error) {
		sctx, cancel := r.sharedContext(ctx)
		defer cancel()
		est, err := r.resolve(sctx, product)
		if err == nil && est != nil {
			r.mu.Lock()
			r.cache[key] = est
			r.mu.Unlock()
		}
		return est, err
	})
	select {
	case <-ctx.Done():
		return nil, common.ExternalFailure("DIMENSIONS", ctx.Err())
	case res := <-ch:
		if res.Shared {
			r.logger.Debug("dimensions.resolve.shared", "product", product)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return copyEstimate(res.Val.(*entity.DimensionEstimate)), nil
	}
}

// sharedContext keeps ctx's values but not its deadline or cancellation. It
// is bounded by the sum of the per-call timeouts when those are set.
func (r *Resolver) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return common.WithTimeout(context.WithoutCancel(ctx), r.cfg.SearchTimeout+r.cfg.GenerateTimeout)
}

func (r *Resolver) resolve(ctx context.Context, product string) (_ *entity.DimensionEstimate, err error) {
	ctx, span := otel.Tracer("dimensions").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("product", product),
		attribute.String("search.depth", r.cfg.Depth),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	snippets, err := r.search(ctx, product)
	if err != nil {
		r.logger.Warn("dimensions.resolve.search_failed",
			"req_id", rid, "product", product, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if strings.TrimSpace(snippets) == "" {
		r.logger.Info("dimensions.resolve.empty_context", "req_id", rid, "product", product)
		span.SetAttributes(attribute.Bool("context.empty", true))
		return nil, nil
	}

	raw, err := r.generate(ctx, llm.BuildDimensionsPrompt(product, snippets))
	if err != nil {
		r.logger.Warn("dimensions.resolve.generate_failed",
			"req_id", rid, "product", product, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	fields, notes, err := llm.ParseDimensions(raw)
	if err != nil {
		r.logger.Warn("dimensions.resolve.parse_failed",
			"req_id", rid, "product", product, "error", err, "raw_len", len(raw),
		)
		return nil, common.ParseFailuref("model output for %q: %v", product, err)
	}
	if len(notes) > 0 {
		r.logger.Debug("dimensions.resolve.normalized", "req_id", rid, "product", product, "notes", notes)
	}

	ref := fields.Source
	if ref == "" {
		ref = constants.UnknownReference
	}
	est := &entity.DimensionEstimate{
		Height:    fields.Height,
		Width:     fields.Width,
		Length:    fields.Length,
		Weight:    fields.Weight,
		Source:    r.Source(),
		Reference: ref,
	}

	r.logger.Info("dimensions.resolve.ok",
		"req_id", rid,
		"product", product,
		"height", est.Height, "width", est.Width, "length", est.Length, "weight", est.Weight,
		"reference", est.Reference,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return est, nil
}

func (r *Resolver) search(ctx context.Context, product string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", common.ExternalFailure("SEARCH", err)
	}
	cctx, cancel := common.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := r.searcher.Search(cctx, Query(product), r.cfg.Depth)
	metrics.ObserveExternal("search", start, err)
	if err != nil {
		return "", asExternal("SEARCH", err)
	}
	return search.JoinSnippets(results), nil
}

func (r *Resolver) generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", common.ExternalFailure("LLM", err)
	}
	cctx, cancel := common.WithTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	start := time.Now()
	raw, err := r.generator.Generate(cctx, prompt)
	metrics.ObserveExternal("llm", start, err)
	if err != nil {
		return "", asExternal("LLM", err)
	}
	return raw, nil
}

// asExternal makes sure collaborator errors (including deadline hits) carry ErrExternalService.
func asExternal(service string, err error) error {
	if errors.Is(err, common.ErrExternalService) {
		return err
	}
	return common.ExternalFailure(service, err)
}

func copyEstimate(e *entity.DimensionEstimate) *entity.DimensionEstimate {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
