package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

// InMemoryDSN is a private in-memory database that lives as long as the handle.
const InMemoryDSN = "file::memory:?_pragma=foreign_keys(1)"

const dateLayout = "2006-01-02"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		periodo INTEGER NOT NULL,
		proveedor TEXT NOT NULL,
		track_code TEXT NOT NULL,
		ambito INTEGER NOT NULL DEFAULT 0,
		tipo_servicio TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		main_category TEXT NOT NULL DEFAULT '',
		sub_category TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		alto TEXT, ancho TEXT, largo TEXT,
		peso_aforado TEXT, peso_fisico TEXT, peso_facturable TEXT,
		tarifa TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS invoices_periodo_idx ON invoices (periodo)`,
	`CREATE TABLE IF NOT EXISTS scales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices (id),
		alto TEXT NOT NULL, ancho TEXT NOT NULL, largo TEXT NOT NULL,
		peso_aforado TEXT NOT NULL, peso_fisico TEXT NOT NULL, peso_facturable TEXT NOT NULL,
		tarifa_real TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tarifario (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proveedor TEXT NOT NULL,
		fecha_inicio TEXT,
		fecha_fin TEXT,
		ambito INTEGER NOT NULL,
		tipo_de_servicio TEXT NOT NULL,
		rango_desde TEXT NOT NULL,
		rango_hasta TEXT NOT NULL,
		tarifa TEXT NOT NULL
	)`,
}

// SQLiteStore implements Store on modernc.org/sqlite for local and test runs.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens dsn (InMemoryDSN for a throwaway database) and creates the tables when absent.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		dsn = InMemoryDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dbError("OPEN_SQLITE", err)
	}
	// One connection: every handle to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, dbError("SQLITE_SCHEMA", err)
		}
	}
	logger.Info("repository.sqlite.opened", "dsn", dsn)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Warn("repository.tx.rollback_failed", "error", rbErr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertInvoices(ctx context.Context, items []entity.LineItem) ([]int64, error) {
	ids := make([]int64, len(items))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, it := range items {
			res, err := tx.ExecContext(ctx, `
INSERT INTO invoices (periodo, proveedor, track_code, ambito, tipo_servicio, name,
	main_category, sub_category, category,
	alto, ancho, largo, peso_aforado, peso_fisico, peso_facturable, tarifa)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				it.Period, it.Carrier, it.TrackCode, it.Scope, it.ServiceType, it.Name,
				it.MainCategory, it.SubCategory, it.Category,
				nullableMoneyArg(it.Height), nullableMoneyArg(it.Width), nullableMoneyArg(it.Length),
				nullableMoneyArg(it.VolumetricWeight), nullableMoneyArg(it.PhysicalWeight), nullableMoneyArg(it.BillableWeight),
				moneyArg(it.Tariff),
			)
			if err != nil {
				return err
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("repository.invoices.insert_failed", "rows", len(items), "error", err)
		return nil, dbError("INSERT_INVOICES", err)
	}
	s.logger.Info("repository.invoices.inserted", "rows", len(items))
	return ids, nil
}

func (s *SQLiteStore) ListInvoicesByPeriod(ctx context.Context, period int) ([]entity.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, periodo, proveedor, track_code, ambito, tipo_servicio, name,
	main_category, sub_category, category,
	alto, ancho, largo, peso_aforado, peso_fisico, peso_facturable, tarifa
FROM invoices
WHERE periodo = ?
ORDER BY id`, period)
	if err != nil {
		return nil, dbError("LIST_INVOICES", err)
	}
	defer rows.Close()

	var out []entity.LineItem
	for rows.Next() {
		var (
			it                          entity.LineItem
			alto, ancho, largo          sql.NullString
			aforado, fisico, facturable sql.NullString
			tarifa                      string
		)
		if err := rows.Scan(&it.ID, &it.Period, &it.Carrier, &it.TrackCode, &it.Scope, &it.ServiceType, &it.Name,
			&it.MainCategory, &it.SubCategory, &it.Category,
			&alto, &ancho, &largo, &aforado, &fisico, &facturable, &tarifa); err != nil {
			return nil, dbError("LIST_INVOICES", err)
		}
		if err := fillInvoiceMoney(&it, tarifa,
			nullString(alto), nullString(ancho), nullString(largo),
			nullString(aforado), nullString(fisico), nullString(facturable)); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("LIST_INVOICES", err)
	}
	return out, nil
}

func (s *SQLiteStore) InsertScales(ctx context.Context, scales []entity.Scale) ([]int64, error) {
	ids := make([]int64, len(scales))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, sc := range scales {
			res, err := tx.ExecContext(ctx, `
INSERT INTO scales (invoice_id, alto, ancho, largo, peso_aforado, peso_fisico, peso_facturable, tarifa_real)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sc.InvoiceID,
				moneyArg(sc.Height), moneyArg(sc.Width), moneyArg(sc.Length),
				moneyArg(sc.VolumetricWeight), moneyArg(sc.PhysicalWeight), moneyArg(sc.BillableWeight),
				moneyArg(sc.RealTariff),
			)
			if err != nil {
				return err
			}
			if ids[i], err = res.LastInsertId(); err != nil {
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

func (s *SQLiteStore) ListScaleReport(ctx context.Context, period int) ([]entity.ScaleReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.invoice_id, s.alto, s.ancho, s.largo,
	s.peso_aforado, s.peso_fisico, s.peso_facturable, s.tarifa_real,
	i.name, i.track_code, i.tarifa
FROM scales s
JOIN invoices i ON i.id = s.invoice_id
WHERE i.periodo = ?
ORDER BY s.id`, period)
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

func (s *SQLiteStore) ListTariffs(ctx context.Context) ([]entity.TariffRule, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT proveedor, fecha_inicio, fecha_fin, ambito, tipo_de_servicio, rango_desde, rango_hasta, tarifa
FROM tarifario
ORDER BY id`)
	if err != nil {
		return nil, dbError("LIST_TARIFFS", err)
	}
	defer rows.Close()

	var out []entity.TariffRule
	for rows.Next() {
		var (
			r              entity.TariffRule
			validFrom, to  sql.NullString
			lo, hi, amount string
		)
		if err := rows.Scan(&r.Provider, &validFrom, &to, &r.Scope, &r.ServiceType, &lo, &hi, &amount); err != nil {
			return nil, dbError("LIST_TARIFFS", err)
		}
		if r.ValidFrom, err = parseDate(validFrom); err != nil {
			return nil, dbError("LIST_TARIFFS", err)
		}
		if r.ValidTo, err = parseDate(to); err != nil {
			return nil, dbError("LIST_TARIFFS", err)
		}
		if err := fillTariffMoney(&r, lo, hi, amount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("LIST_TARIFFS", err)
	}
	return out, nil
}

func (s *SQLiteStore) ReplaceTariffs(ctx context.Context, provider string, rules []entity.TariffRule) error {
	provider = strings.TrimSpace(provider)
	rules, err := prepareTariffs(provider, rules)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tarifario WHERE lower(proveedor) = lower(?)`, provider); err != nil {
			return err
		}
		for _, r := range rules {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO tarifario (proveedor, fecha_inicio, fecha_fin, ambito, tipo_de_servicio, rango_desde, rango_hasta, tarifa)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Provider, dateArg(r.ValidFrom), dateArg(r.ValidTo), r.Scope, r.ServiceType,
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

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
