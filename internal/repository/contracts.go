package repository

import (
	"context"

	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

type InvoiceStore interface {
	// InsertInvoices writes all items in one transaction and returns their ids in input order.
	InsertInvoices(ctx context.Context, items []entity.LineItem) ([]int64, error)
	ListInvoicesByPeriod(ctx context.Context, period int) ([]entity.LineItem, error)
}

type ScaleStore interface {
	// InsertScales writes all scales in one transaction and returns their ids in input order.
	InsertScales(ctx context.Context, scales []entity.Scale) ([]int64, error)
	ListScaleReport(ctx context.Context, period int) ([]entity.ScaleReportRow, error)
}

type TariffStore interface {
	ListTariffs(ctx context.Context) ([]entity.TariffRule, error)
	// ReplaceTariffs swaps the provider's whole rate card after validating it.
	ReplaceTariffs(ctx context.Context, provider string, rules []entity.TariffRule) error
}

// Store is everything the pipeline persists.
type Store interface {
	InvoiceStore
	ScaleStore
	TariffStore
}
