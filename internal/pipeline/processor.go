package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/extract"
	"github.com/joseph-ayodele/freight-audit/internal/metrics"
	"github.com/joseph-ayodele/freight-audit/internal/rating"
	"github.com/joseph-ayodele/freight-audit/internal/reconcile"
	"github.com/joseph-ayodele/freight-audit/internal/repository"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

type TotalExtractor interface {
	ExtractTotal(ctx context.Context, path string) (*decimal.Decimal, error)
}

type Archiver interface {
	Archive(ctx context.Context, kind constants.DocumentKind, name string, data []byte) bool
}

type Loader interface {
	LoadInvoiceRowsWithIDs(ctx context.Context, rows []map[string]string) ([]int64, bool)
	SaveScales(ctx context.Context, rated []entity.RatedItem) bool
}

type Rater interface {
	Rate(ctx context.Context, items []entity.LineItem, table *tariff.Table) ([]entity.RatedItem, error)
}

// Deps are the collaborators of a Processor. Archiver may be nil.
type Deps struct {
	Totals   TotalExtractor
	Archiver Archiver
	Loader   Loader
	Invoices repository.InvoiceStore
	Tariffs  repository.TariffStore
	Rater    Rater
	TempDir  string // "" uses os.TempDir()
}

// Processor runs reconcile -> load -> rate -> save.
type Processor struct {
	deps   Deps
	logger *slog.Logger
}

func NewProcessor(deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{deps: deps, logger: logger}
}

// CheckResult is the outcome of comparing a PDF total with its report.
type CheckResult struct {
	Reconciliation entity.ReconciliationResult `json:"reconciliation"`
	Report         *extract.Report             `json:"-"`
}

// CheckTotals extracts both totals and compares them. Errors are returned only
// for unreadable inputs; a missing PDF total is an INDETERMINATE outcome.
func (p *Processor) CheckTotals(ctx context.Context, pdfPath, csvPath string) (*CheckResult, error) {
	rid := common.RequestIDFromContext(ctx)

	pdfTotal, err := p.deps.Totals.ExtractTotal(ctx, pdfPath)
	if err != nil {
		p.logger.Error("processor.check.pdf_failed", "req_id", rid, "error", err)
		return nil, err
	}
	report, err := extract.ReadReport(csvPath, p.logger)
	if err != nil {
		p.logger.Error("processor.check.csv_failed", "req_id", rid, "error", err)
		return nil, err
	}

	res := reconcile.Reconcile(pdfTotal, &report.Total)
	metrics.ReconcileOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	p.logger.Info("processor.check.done",
		"req_id", rid,
		"period", report.Period,
		"outcome", res.Outcome,
		"pdf_total", fmtTotal(pdfTotal),
		"csv_total", report.Total.StringFixed(2),
	)
	return &CheckResult{Reconciliation: res, Report: report}, nil
}

// Upload is one invoice PDF with its cost report.
type Upload struct {
	PDFName string
	PDF     []byte
	CSVName string
	CSV     []byte
}

type IntakeResult struct {
	Reconciliation entity.ReconciliationResult `json:"reconciliation"`
	Period         int                         `json:"period,omitempty"`
	Rows           int                         `json:"rows"`
	InvoiceIDs     []int64                     `json:"invoice_ids,omitempty"`
	Archived       bool                        `json:"archived"`
}

// Intake stages the upload in a temp dir, reconciles it and, only on a match,
// archives both documents and loads the report rows. The temp dir is removed
// on every path. A mismatch returns the result together with ErrTotalsMismatch;
// an indeterminate comparison returns ErrComparisonIndeterminate.
func (p *Processor) Intake(ctx context.Context, up Upload) (*IntakeResult, error) {
	rid := common.RequestIDFromContext(ctx)
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	if len(up.PDF) == 0 || len(up.CSV) == 0 {
		return nil, common.NewAppError("INVALID_UPLOAD", "both a PDF and a CSV are required", common.ErrInvalidInput)
	}

	dir, err := os.MkdirTemp(p.deps.TempDir, "intake-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("processor.intake.cleanup_failed", "req_id", rid, "dir", dir, "error", err)
		}
	}()

	pdfPath := filepath.Join(dir, "invoice.pdf")
	csvPath := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(pdfPath, up.PDF, 0o600); err != nil {
		return nil, fmt.Errorf("stage pdf: %w", err)
	}
	if err := os.WriteFile(csvPath, up.CSV, 0o600); err != nil {
		return nil, fmt.Errorf("stage csv: %w", err)
	}

	check, err := p.CheckTotals(ctx, pdfPath, csvPath)
	if err != nil {
		return nil, err
	}
	res := &IntakeResult{Reconciliation: check.Reconciliation, Period: check.Report.Period}

	switch check.Reconciliation.Outcome {
	case constants.ReconcileMatch:
	case constants.ReconcileMismatch:
		p.logger.Warn("processor.intake.blocked", "req_id", rid, "outcome", check.Reconciliation.Outcome)
		return res, common.ErrTotalsMismatch
	default:
		p.logger.Warn("processor.intake.blocked", "req_id", rid, "outcome", check.Reconciliation.Outcome)
		return res, common.ErrComparisonIndeterminate
	}

	if a := p.deps.Archiver; a != nil {
		if !a.Archive(ctx, constants.DocumentInvoicePDF, nameOr(up.PDFName, "invoice.pdf"), up.PDF) ||
			!a.Archive(ctx, constants.DocumentReportCSV, nameOr(up.CSVName, "report.csv"), up.CSV) {
			return res, common.ExternalFailure("STORAGE", errors.New("archive upload"))
		}
		res.Archived = true
	}

	ids, ok := p.deps.Loader.LoadInvoiceRowsWithIDs(ctx, check.Report.Rows)
	if !ok {
		return res, common.NewAppError("LOAD_FAILED", "invoice rows were not loaded", common.ErrDatabase)
	}
	res.InvoiceIDs = ids
	res.Rows = len(ids)

	p.logger.Info("processor.intake.ok",
		"req_id", rid,
		"period", res.Period,
		"rows", res.Rows,
		"archived", res.Archived,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// RatePeriod rates every persisted invoice of period against the stored
// rate cards, keeping only rules whose validity window covers the period.
func (p *Processor) RatePeriod(ctx context.Context, period int) ([]entity.RatedItem, error) {
	rid := common.RequestIDFromContext(ctx)
	ctx = common.WithPeriod(common.WithRequestID(ctx, rid), period)

	items, err := p.deps.Invoices.ListInvoicesByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.NewAppError("NO_INVOICES", fmt.Sprintf("no invoices for period %d", period), common.ErrNotFound)
	}
	rules, err := p.deps.Tariffs.ListTariffs(ctx)
	if err != nil {
		return nil, err
	}
	table := tariff.ForPeriod(rules, period)
	if table.Len() == 0 {
		p.logger.Warn("processor.rate.empty_rate_card", "req_id", rid, "period", period, "stored_rules", len(rules))
	}

	return p.deps.Rater.Rate(ctx, items, table)
}

// SaveResults persists the overcharged subset of rated.
func (p *Processor) SaveResults(ctx context.Context, rated []entity.RatedItem) bool {
	return p.deps.Loader.SaveScales(ctx, rating.Overcharges(rated))
}

// RunResult is the outcome of Run.
type RunResult struct {
	Intake  *IntakeResult      `json:"intake"`
	Rated   []entity.RatedItem `json:"rated,omitempty"`
	Saved   bool               `json:"saved"`
	Summary *rating.Summary    `json:"summary,omitempty"`
}

// Run chains Intake, RatePeriod and, when persist is set, SaveResults.
func (p *Processor) Run(ctx context.Context, up Upload, persist bool) (*RunResult, error) {
	intake, err := p.Intake(ctx, up)
	out := &RunResult{Intake: intake}
	if err != nil {
		return out, err
	}
	rated, err := p.RatePeriod(ctx, intake.Period)
	if err != nil {
		return out, err
	}
	out.Rated = rated
	s := rating.Summarize(rated)
	out.Summary = &s
	if persist {
		out.Saved = p.SaveResults(ctx, rated)
		if !out.Saved {
			return out, common.NewAppError("SAVE_FAILED", "rated results were not saved", common.ErrDatabase)
		}
	}
	return out, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func fmtTotal(d *decimal.Decimal) string {
	if d == nil {
		return "absent"
	}
	return d.StringFixed(2)
}
