package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/freight-audit/internal/app"
	"github.com/joseph-ayodele/freight-audit/internal/async"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/ingest"
	"github.com/joseph-ayodele/freight-audit/internal/server"
)

func main() {
	inmem := flag.Bool("inmem", false, "use in-memory SQLite database instead of DB_URL")
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.LogLevel)

	if !*inmem {
		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", "error", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.Build(ctx, cfg, app.Options{InMemory: *inmem}, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	health := services.Health(cfg.Database.HealthTimeout)

	// gRPC health
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := server.NewHealthServer()
	server.SetServing(healthServer, health(ctx) == nil)

	api := server.NewAPI(services.Processor, services.Exporter, services.DB.Store, health, server.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("freight-audit listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	var queue *async.ProcessorQueue
	if cfg.Inbox.Dir != "" {
		if queue, err = startInbox(ctx, cfg.Inbox, services, logger); err != nil {
			logger.Error("failed to start inbox", "dir", cfg.Inbox.Dir, "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	server.SetServing(healthServer, false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

// startInbox watches dir and feeds completed pairs to a worker queue.
func startInbox(ctx context.Context, cfg common.InboxConfig, services *app.Services, logger *slog.Logger) (*async.ProcessorQueue, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	inbox := ingest.NewInbox(services.Processor, cfg.Persist, logger)
	queue := async.NewProcessorQueue(async.HandlerFunc(func(ctx context.Context, job async.Job) error {
		return inbox.Process(common.WithRequestID(ctx, job.TraceID), job.Pair)
	}), logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.QueueSize),
		async.WithProcessTimeout(cfg.ProcessTimeout),
	)

	pairs, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Dir},
		InitialScan: true,
		Debounce:    cfg.Debounce,
	}, logger)
	if err != nil {
		queue.Shutdown(context.Background())
		return nil, err
	}
	go func() {
		for p := range pairs {
			if err := queue.Enqueue(ctx, async.Job{Pair: p, TraceID: uuid.NewString()}); err != nil {
				logger.Warn("inbox.enqueue_failed", "pair", p.Key, "error", err)
			}
		}
	}()
	go func() {
		for err := range errs {
			logger.Warn("inbox.watch_error", "error", err)
		}
	}()
	logger.Info("inbox watching", "dir", cfg.Dir, "workers", cfg.Workers, "persist", cfg.Persist)
	return queue, nil
}
