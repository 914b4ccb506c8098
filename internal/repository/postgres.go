package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

const (
	insertInvoiceQuery = `
INSERT INTO invoices (periodo, proveedor, track_code, ambito, tipo_servicio, name,
	main_category, sub_category, category,
	alto, ancho, largo, peso_aforado, peso_fisico, peso_facturable, tarifa)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id`

	listInvoicesByPeriodQuery = `
SELECT id, periodo, proveedor, track_code, ambito, tipo_servicio, name,
	main_category, sub_category, category,
	alto::text, ancho::text, largo::text, peso_aforado::text, peso_fisico::text, peso_facturable::text,
	tarifa::text
FROM invoices
WHERE periodo = $1
ORDER BY id`

	insertScaleQuery = `
INSERT INTO scales (invoice_id, alto, ancho, largo, peso_aforado, peso_fisico, peso_facturable, tarifa_real)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

	listScaleReportQuery = `
SELECT s.id, s.invoice_id, s.alto::text, s.ancho::text, s.largo::text,
	s.peso_aforado::text, s.peso_fisico::text, s.peso_facturable::text, s.tarifa_real::text,
	i.name, i.track_code, i.tarifa::text
FROM scales s
JOIN invoices i ON i.id = s.invoice_id
WHERE i.periodo = $1
ORDER BY s.id`

	listTariffsQuery = `
SELECT proveedor, fecha_inicio, fecha_fin, ambito, tipo_de_servicio,
	rango_desde::text, rango_hasta::text, tarifa::text
FROM tarifario
ORDER BY id`

	deleteTariffsQuery = `DELETE FROM tarifario WHERE lower(proveedor) = lower($1)`

	insertTariffQuery = `
INSERT INTO tarifario (proveedor, fecha_inicio, fecha_fin, ambito, tipo_de_servicio, rango_desde, rango_hasta, tarifa)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// PostgresStore implements Store on pgx.
type PostgresStore struct {
	pool   PgxPool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool PgxPool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func startSpan(ctx context.Context, op, table string, rows int) (context.Context, trace.Span) {
	return otel.Tracer("repository").Start(ctx, op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", table),
		attribute.Int("db.rows", rows),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// inTx runs fn in a transaction, rolling back on any error.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("repository.tx.rollback_failed", "error", rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) InsertInvoices(ctx context.Context, items []entity.LineItem) (_ []int64, err error) {
	ctx, span := startSpan(ctx, "InsertInvoices", "invoices", len(items))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	ids := make([]int64, len(items))
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		for i, it := range items {
			if err := tx.QueryRow(ctx, insertInvoiceQuery,
				it.Period, it.Carrier, it.TrackCode, it.Scope, it.ServiceType, it.Name,
				it.MainCategory, it.SubCategory, it.Category,
				nullableMoneyArg(it.Height), nullableMoneyArg(it.Width), nullableMoneyArg(it.Length),
				nullableMoneyArg(it.VolumetricWeight), nullableMoneyArg(it.PhysicalWeight), nullableMoneyArg(it.BillableWeight),
				moneyArg(it.Tariff),
			).Scan(&ids[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("repository.invoices.insert_failed", "rows", len(items), "error", err)
		return nil, dbError("INSERT_INVOICES", err)
	}
	s.logger.Info("repository.invoices.inserted", "rows", len(items), "elapsed_ms", time.Since(start).Milliseconds())
	return ids, nil
}

func (s *PostgresStore) ListInvoicesByPeriod(ctx context.Context, period int) ([]entity.LineItem, error) {
	rows, err := s.pool.Query(ctx, listInvoicesByPeriodQuery, period)
	if err != nil {
		return nil, dbError("LIST_INVOICES", err)
	}
	defer rows.Close()

	var out []entity.LineItem
	for rows.Next() {
		var (
			it                          entity.LineItem
			alto, ancho, largo          *string
			aforado, fisico, facturable *string
			tarifa                      string
		)
		if err := rows.Scan(&it.ID, &it.Period, &it.Carrier, &it.TrackCode, &it.Scope, &it.ServiceType, &it.Name,
			&it.MainCategory, &it.SubCategory, &it.Category,
			&alto, &ancho, &largo, &aforado, &fisico, &facturable, &tarifa); err != nil {
			return nil, dbError("LIST_INVOICES", err)
		}
		if err := fillInvoiceMoney(&it, tarifa, alto, ancho, largo, aforado, fisico, facturable); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("LIST_INVOICES", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertScales(ctx context.Context, scales []entity.Scale) (_ []int64, err error) {
	ctx, span := startSpan(ctx, "InsertScales", "scales", len(scales))
	defer func() { endSpan(span, err) }()

	ids := make([]int64, len(scales))
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		for i, sc := range scales {
			if err := tx.QueryRow(ctx, insertScaleQuery,
				sc.InvoiceID,
				moneyArg(sc.Height), moneyArg(sc.Width), moneyArg(sc.Length),
				moneyArg(sc.VolumetricWeight), moneyArg(sc.PhysicalWeight), moneyArg(sc.BillableWeight),
				moneyArg(sc.RealTariff),
			).Scan(&ids[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("repository.scales.insert_failed", "rows", len(scales), "error", err)
		return nil, dbError("INSERT_SCALES", err)
	}
	s.logger.Info("repository.scales.inserted", "rows", len(scales))
	return ids, nil
}

func (s *PostgresStore) ListScaleReport(ctx context.Context, period int) ([]entity.ScaleReportRow, error) {
	rows, err := s.pool.Query(ctx, listScaleReportQuery, period)
	if err != nil {
		return nil, dbError("LIST_SCALES", err)
	}
	defer rows.Close()

	var out []entity.ScaleReportRow
	for rows.Next() {
		var (
			r    entity.ScaleReportRow
			vals [8]string
		)
		if err := rows.Scan(&r.ID, &r.InvoiceID, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6],
			&r.ProductName, &r.TrackCode, &vals[7]); err != nil {
			return nil, dbError("LIST_SCALES", err)
		}
		if err := fillScaleReport(&r, vals); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("LIST_SCALES", err)
	}
	return out, nil
}

func (s *PostgresStore) ListTariffs(ctx context.Context) ([]entity.TariffRule, error) {
	rows, err := s.pool.Query(ctx, listTariffsQuery)
	if err != nil {
		return nil, dbError("LIST_TARIFFS", err)
	}
	defer rows.Close()

	var out []entity.TariffRule
	for rows.Next() {
		var (
			r                entity.TariffRule
			from, to, amount string
		)
		if err := rows.Scan(&r.Provider, &r.ValidFrom, &r.ValidTo, &r.Scope, &r.ServiceType, &from, &to, &amount); err != nil {
			return nil, dbError("LIST_TARIFFS", err)
		}
		if err := fillTariffMoney(&r, from, to, amount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("LIST_TARIFFS", err)
	}
	return out, nil
}

func (s *PostgresStore) ReplaceTariffs(ctx context.Context, provider string, rules []entity.TariffRule) (err error) {
	provider = strings.TrimSpace(provider)
	rules, err = prepareTariffs(provider, rules)
	if err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "ReplaceTariffs", "tarifario", len(rules))
	defer func() { endSpan(span, err) }()

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteTariffsQuery, provider); err != nil {
			return err
		}
		for _, r := range rules {
			if _, err := tx.Exec(ctx, insertTariffQuery,
				r.Provider, r.ValidFrom, r.ValidTo, r.Scope, r.ServiceType,
				moneyArg(r.RangeFrom), moneyArg(r.RangeTo), moneyArg(r.Tariff),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("repository.tariffs.replace_failed", "provider", provider, "error", err)
		return dbError("REPLACE_TARIFFS", err)
	}
	s.logger.Info("repository.tariffs.replaced", "provider", provider, "rules", len(rules))
	return nil
}

// prepareTariffs stamps the provider on every rule and validates the card.
// Provider names are matched case-insensitively, the same way lookups match them.
func prepareTariffs(provider string, rules []entity.TariffRule) ([]entity.TariffRule, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, common.NewAppError("INVALID_PROVIDER", "provider is required", common.ErrInvalidInput)
	}
	out := make([]entity.TariffRule, len(rules))
	for i, r := range rules {
		r.Provider = provider
		out[i] = r
	}
	if err := tariff.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}
