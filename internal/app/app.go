// Package app wires configuration into the services shared by the commands.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/dimensions"
	"github.com/joseph-ayodele/freight-audit/internal/export"
	"github.com/joseph-ayodele/freight-audit/internal/extract"
	"github.com/joseph-ayodele/freight-audit/internal/llm/provider"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
	"github.com/joseph-ayodele/freight-audit/internal/rating"
	"github.com/joseph-ayodele/freight-audit/internal/repository"
	"github.com/joseph-ayodele/freight-audit/internal/search/tavily"
	"github.com/joseph-ayodele/freight-audit/internal/storage"
)

// Options select the optional subsystems.
type Options struct {
	InMemory  bool // SQLite in memory instead of DB_URL
	NoArchive bool // skip object storage
}

// DBResult is an open store plus its health probe.
type DBResult struct {
	Store   repository.Store
	Pinger  repository.Pinger
	Cleanup func()
}

// OpenStore opens Postgres from cfg, or an in-memory SQLite store when inmem is set.
func OpenStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*DBResult, error) {
	if inmem {
		s, err := repository.OpenSQLite(ctx, repository.InMemoryDSN, logger)
		if err != nil {
			return nil, err
		}
		return &DBResult{Store: s, Pinger: s, Cleanup: func() {
			if err := s.Close(); err != nil {
				logger.Warn("close sqlite", "error", err)
			}
		}}, nil
	}

	if cfg.Database.DSN == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "DB_URL is required", common.ErrInvalidInput)
	}
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError("DB_OPEN", "open database", errors.Join(common.ErrDatabase, err))
	}
	if err := repository.HealthCheck(ctx, pool, cfg.Database.HealthTimeout, logger); err != nil {
		repository.Close(pool, logger)
		return nil, common.NewAppError("DB_PING", "ping database", errors.Join(common.ErrDatabase, err))
	}
	return &DBResult{
		Store:   repository.NewPostgresStore(pool, logger),
		Pinger:  pool,
		Cleanup: func() { repository.Close(pool, logger) },
	}, nil
}

// NewResolver builds the search + model dimension resolver.
func NewResolver(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*dimensions.Resolver, func() error, error) {
	if err := cfg.ValidateResolution(); err != nil {
		return nil, func() error { return nil }, err
	}
	generator, closeGen, err := provider.New(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, closeGen, err
	}
	searcher := tavily.NewClient(tavily.Config{
		APIKey:     cfg.Search.APIKey,
		BaseURL:    cfg.Search.BaseURL,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.Search.Timeout,
	}, logger)
	resolver := dimensions.NewResolver(searcher, generator, dimensions.Config{
		Depth:             cfg.Search.Depth,
		SearchTimeout:     cfg.Search.Timeout,
		GenerateTimeout:   cfg.LLM.Timeout,
		RequestsPerSecond: cfg.Rating.RequestsPerSecond,
		Burst:             cfg.Rating.Burst,
	}, logger)
	return resolver, closeGen, nil
}

// NewArchiver opens the configured object store.
func NewArchiver(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*storage.Archiver, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.ValidateStorage(); err != nil {
		return nil, noop, err
	}
	if cfg.Storage.Backend == "local" {
		return storage.NewArchiver(storage.NewLocalStore(cfg.Storage.LocalDir), cfg.Storage.Bucket, logger), noop, nil
	}
	gcs, err := storage.NewGCSStore(ctx, logger)
	if err != nil {
		return nil, noop, common.ExternalFailure("STORAGE", err)
	}
	return storage.NewArchiver(gcs, cfg.Storage.Bucket, logger), gcs.Close, nil
}

// NewTotalExtractor reads PDFs in Go first and falls back to pdftotext.
func NewTotalExtractor(logger *slog.Logger) *extract.TotalExtractor {
	pages := extract.NewFallbackExtractor(logger,
		extract.NewPDFReader(logger),
		extract.NewPdftotextReader("", nil),
	)
	return extract.NewTotalExtractor(pages, logger)
}

// Services is the fully wired audit stack.
type Services struct {
	DB        *DBResult
	Processor *pipeline.Processor
	Exporter  *export.Service
	closers   []func() error
	logger    *slog.Logger
}

// Build wires the processor and exporter. Call Close when done.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (_ *Services, err error) {
	s := &Services{logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.DB, err = OpenStore(ctx, cfg, opts.InMemory, logger); err != nil {
		return nil, err
	}

	resolver, closeGen, err := NewResolver(ctx, cfg, logger)
	s.closers = append(s.closers, closeGen)
	if err != nil {
		return nil, err
	}
	engine := rating.NewEngine(resolver, logger,
		rating.WithWorkers(cfg.Rating.Workers),
		rating.WithItemTimeout(cfg.Rating.ItemTimeout),
		rating.WithDivisor(cfg.Rating.VolumetricDivisor),
	)

	deps := pipeline.Deps{
		Totals:   NewTotalExtractor(logger),
		Loader:   repository.NewGateway(s.DB.Store, s.DB.Store, logger),
		Invoices: s.DB.Store,
		Tariffs:  s.DB.Store,
		Rater:    engine,
	}
	if !opts.NoArchive {
		archiver, closeStore, err := NewArchiver(ctx, cfg, logger)
		s.closers = append(s.closers, closeStore)
		if err != nil {
			return nil, err
		}
		deps.Archiver = archiver
	}

	s.Processor = pipeline.NewProcessor(deps, logger)
	s.Exporter = export.NewService(s.DB.Store, logger)
	return s, nil
}

// Health pings the database within timeout.
func (s *Services) Health(timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return repository.HealthCheck(ctx, s.DB.Pinger, timeout, s.logger)
	}
}

// Close releases every opened resource, newest first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close", "error", err)
		}
	}
	s.closers = nil
	if s.DB != nil && s.DB.Cleanup != nil {
		s.DB.Cleanup()
		s.DB = nil
	}
}
