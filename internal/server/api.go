package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
)

type Processor interface {
	Intake(ctx context.Context, up pipeline.Upload) (*pipeline.IntakeResult, error)
	RatePeriod(ctx context.Context, period int) ([]entity.RatedItem, error)
	SaveResults(ctx context.Context, rated []entity.RatedItem) bool
}

type Exporter interface {
	Export(ctx context.Context, period int, format string) ([]byte, string, error)
}

type TariffLoader interface {
	ReplaceTariffs(ctx context.Context, provider string, rules []entity.TariffRule) error
}

// HealthFunc reports whether backing services are reachable.
type HealthFunc func(ctx context.Context) error

type Config struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration // 0 disables
}

// API is the HTTP surface of the audit service.
type API struct {
	proc     Processor
	exporter Exporter
	tariffs  TariffLoader
	health   HealthFunc
	cfg      Config
	logger   *slog.Logger
}

func NewAPI(proc Processor, exporter Exporter, tariffs TariffLoader, health HealthFunc, cfg Config, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if health == nil {
		health = func(context.Context) error { return nil }
	}
	return &API{proc: proc, exporter: exporter, tariffs: tariffs, health: health, cfg: cfg, logger: logger}
}

// Router wires routes and middleware.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestContext)
	r.Use(a.accessLog)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if a.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(a.cfg.RequestTimeout))
		}
		r.Post("/intake", a.handleIntake)
		r.Post("/periods/{period}/ratings", a.handleRate)
		r.Get("/periods/{period}/export", a.handleExport)
		r.Put("/tariffs/{provider}", a.handleReplaceTariffs)
	})
	return r
}

func (a *API) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("http.request",
			"req_id", common.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.health(r.Context()); err != nil {
		a.logger.Warn("http.health.failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	body := errorBody{Error: err.Error()}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("http.request.failed", "req_id", common.RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
