package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/extract"
	"github.com/joseph-ayodele/freight-audit/internal/rating"
	"github.com/joseph-ayodele/freight-audit/internal/repository"
)

type stubPages struct{ pages []string }

func (s stubPages) Pages(context.Context, string) ([]string, error) { return s.pages, nil }

type stubResolver struct{ est *entity.DimensionEstimate }

func (s stubResolver) Resolve(context.Context, string) (*entity.DimensionEstimate, error) {
	if s.est == nil {
		return nil, nil
	}
	c := *s.est
	return &c, nil
}

type recordingArchiver struct {
	keys []string
	fail bool
}

func (a *recordingArchiver) Archive(_ context.Context, kind constants.DocumentKind, name string, _ []byte) bool {
	if a.fail {
		return false
	}
	a.keys = append(a.keys, constants.StoragePrefixes[kind]+name)
	return true
}

const reportCSV = "periodo,proveedor,track_code,ambito,tipo_servicio,name,tarifa\n" +
	"202401,Andreani,TRK-1,2,24hs,Lampara LED,5600.00\n"

type fixture struct {
	proc     *Processor
	store    *repository.SQLiteStore
	archiver *recordingArchiver
	tempDir  string
}

func newFixture(t *testing.T, pdfTotalLine string) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := repository.OpenSQLite(ctx, repository.InMemoryDSN, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ReplaceTariffs(ctx, "Andreani", []entity.TariffRule{
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(4800)},
	}))

	pages := stubPages{pages: []string{"Factura A\nCliente: ACME", "Subtotal 4.628,10\n" + pdfTotalLine}}
	engine := rating.NewEngine(stubResolver{est: &entity.DimensionEstimate{Height: 10, Width: 10, Length: 10, Weight: 2}}, nil, rating.WithWorkers(2))
	archiver := &recordingArchiver{}
	tempDir := t.TempDir()

	proc := NewProcessor(Deps{
		Totals:   extract.NewTotalExtractor(pages, nil),
		Archiver: archiver,
		Loader:   repository.NewGateway(store, store, nil),
		Invoices: store,
		Tariffs:  store,
		Rater:    engine,
		TempDir:  tempDir,
	}, nil)
	return &fixture{proc: proc, store: store, archiver: archiver, tempDir: tempDir}
}

func upload() Upload {
	return Upload{PDFName: "inv.pdf", PDF: []byte("%PDF-1.4"), CSVName: "rep.csv", CSV: []byte(reportCSV)}
}

func assertTempClean(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must be removed")
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	ctx := context.Background()

	out, err := f.proc.Run(ctx, upload(), true)
	require.NoError(t, err)

	assert.Equal(t, constants.ReconcileMatch, out.Intake.Reconciliation.Outcome)
	assert.Equal(t, 202401, out.Intake.Period)
	assert.Equal(t, 1, out.Intake.Rows)
	assert.True(t, out.Intake.Archived)
	assert.Equal(t, []string{"facturas/inv.pdf", "csv/rep.csv"}, f.archiver.keys)

	require.Len(t, out.Rated, 1)
	r := out.Rated[0]
	assert.Equal(t, constants.RatingOvercharged, r.Status)
	assert.Equal(t, "4800.00", r.RealTariff.StringFixed(2))
	assert.Equal(t, "800.00", r.Variance.StringFixed(2))
	assert.True(t, out.Saved)

	report, err := f.store.ListScaleReport(ctx, 202401)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "800.00", report[0].Variance().StringFixed(2))

	assertTempClean(t, f.tempDir)
}

func TestIntake_MismatchBlocksDownstream(t *testing.T) {
	f := newFixture(t, "TOTAL $5.700,00")
	ctx := context.Background()

	res, err := f.proc.Intake(ctx, upload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTotalsMismatch))
	assert.Equal(t, constants.ReconcileMismatch, res.Reconciliation.Outcome)
	assert.Empty(t, f.archiver.keys)

	items, err := f.store.ListInvoicesByPeriod(ctx, 202401)
	require.NoError(t, err)
	assert.Empty(t, items)
	assertTempClean(t, f.tempDir)
}

func TestIntake_IndeterminateWithoutPDFTotal(t *testing.T) {
	f := newFixture(t, "Gracias por su compra")

	res, err := f.proc.Intake(context.Background(), upload())
	assert.True(t, errors.Is(err, common.ErrComparisonIndeterminate))
	assert.Equal(t, constants.ReconcileIndeterminate, res.Reconciliation.Outcome)
	assert.Nil(t, res.Reconciliation.PDFTotal)
	assertTempClean(t, f.tempDir)
}

func TestIntake_BadReportAbortsAndCleansUp(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	up := upload()
	up.CSV = []byte("periodo,proveedor\n202401,Andreani\n")

	_, err := f.proc.Intake(context.Background(), up)
	assert.True(t, errors.Is(err, common.ErrParseFailure))
	assertTempClean(t, f.tempDir)
}

func TestIntake_ArchiveFailure(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	f.archiver.fail = true

	_, err := f.proc.Intake(context.Background(), upload())
	assert.True(t, errors.Is(err, common.ErrExternalService))

	items, err := f.store.ListInvoicesByPeriod(context.Background(), 202401)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIntake_RequiresBothFiles(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	_, err := f.proc.Intake(context.Background(), Upload{PDF: []byte("x")})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestRatePeriod_NoInvoices(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	_, err := f.proc.RatePeriod(context.Background(), 199901)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestRatePeriod_UsesRulesValidForPeriod(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	ctx := context.Background()
	_, err := f.proc.Intake(ctx, upload())
	require.NoError(t, err)

	h2end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	h1start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	card := func(from, to *time.Time, amount int64) entity.TariffRule {
		return entity.TariffRule{ValidFrom: from, ValidTo: to, Scope: 2, ServiceType: "24hs",
			RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(amount)}
	}

	// the expired 2023 card must not rate a 202401 invoice
	require.NoError(t, f.store.ReplaceTariffs(ctx, "Andreani", []entity.TariffRule{card(nil, &h2end, 3000)}))
	rated, err := f.proc.RatePeriod(ctx, 202401)
	require.NoError(t, err)
	assert.Equal(t, constants.RatingTariffMissing, rated[0].Status)

	// two windows for the same range are accepted; the one covering 202401 applies
	require.NoError(t, f.store.ReplaceTariffs(ctx, "Andreani", []entity.TariffRule{
		card(nil, &h2end, 3000),
		card(&h1start, nil, 5000),
	}))
	rated, err = f.proc.RatePeriod(ctx, 202401)
	require.NoError(t, err)
	assert.Equal(t, constants.RatingOvercharged, rated[0].Status)
	assert.Equal(t, "5000.00", rated[0].RealTariff.StringFixed(2))
}

func TestRatePeriod_OtherCarrierCardNotBorrowed(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	ctx := context.Background()
	_, err := f.proc.Intake(ctx, upload())
	require.NoError(t, err)

	require.NoError(t, f.store.ReplaceTariffs(ctx, "OCA", []entity.TariffRule{
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(100)},
	}))
	require.NoError(t, f.store.ReplaceTariffs(ctx, "Andreani", nil))

	rated, err := f.proc.RatePeriod(ctx, 202401)
	require.NoError(t, err)
	assert.Equal(t, constants.RatingTariffMissing, rated[0].Status)
}

func TestSaveResults_OnlyOvercharges(t *testing.T) {
	f := newFixture(t, "TOTAL $5.600,00")
	ctx := context.Background()

	_, err := f.proc.Intake(ctx, upload())
	require.NoError(t, err)
	rated, err := f.proc.RatePeriod(ctx, 202401)
	require.NoError(t, err)

	// flip the only item to an undercharge; nothing should be written
	rated[0].Status = constants.RatingWithinTariff
	require.True(t, f.proc.SaveResults(ctx, rated))

	report, err := f.store.ListScaleReport(ctx, 202401)
	require.NoError(t, err)
	assert.Empty(t, report)
}
