package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
)

// RatedItem is a line item after the rating engine ran over it.
// RealTariff and Variance are nil unless a tariff rule matched.
type RatedItem struct {
	Item             LineItem               `json:"item"`
	Dimensions       *DimensionEstimate     `json:"dimensions,omitempty"`
	VolumetricWeight decimal.Decimal        `json:"peso_aforado"`
	BillableWeight   decimal.Decimal        `json:"peso_facturable"`
	RealTariff       *decimal.Decimal       `json:"tarifa_real,omitempty"`
	Variance         *decimal.Decimal       `json:"diferencia,omitempty"`
	Status           constants.RatingStatus `json:"status"`
	Error            string                 `json:"error,omitempty"`
}

// Scale is the persisted projection of an overcharged item (`scales`).
type Scale struct {
	ID               int64           `json:"id"`
	InvoiceID        int64           `json:"invoice_id"`
	Height           decimal.Decimal `json:"alto"`
	Width            decimal.Decimal `json:"ancho"`
	Length           decimal.Decimal `json:"largo"`
	VolumetricWeight decimal.Decimal `json:"peso_aforado"`
	PhysicalWeight   decimal.Decimal `json:"peso_fisico"`
	BillableWeight   decimal.Decimal `json:"peso_facturable"`
	RealTariff       decimal.Decimal `json:"tarifa_real"`
}

// ScaleReportRow joins a scale with its invoice for export.
type ScaleReportRow struct {
	Scale
	ProductName string          `json:"nombre_producto"`
	TrackCode   string          `json:"track_code"`
	PaidTariff  decimal.Decimal `json:"tarifa_proveedor"`
}

// Variance is paid - real.
func (r ScaleReportRow) Variance() decimal.Decimal {
	return r.PaidTariff.Sub(r.RealTariff)
}

// ToScale projects an overcharged item; ok is false when no tariff matched.
func (r RatedItem) ToScale() (Scale, bool) {
	if r.RealTariff == nil {
		return Scale{}, false
	}
	s := Scale{
		InvoiceID:        r.Item.ID,
		VolumetricWeight: r.VolumetricWeight.Round(2),
		BillableWeight:   r.BillableWeight.Round(2),
		RealTariff:       r.RealTariff.Round(2),
	}
	if d := r.Dimensions; d != nil {
		s.Height = decimal.NewFromFloat(d.Height).Round(2)
		s.Width = decimal.NewFromFloat(d.Width).Round(2)
		s.Length = decimal.NewFromFloat(d.Length).Round(2)
		s.PhysicalWeight = decimal.NewFromFloat(d.Weight).Round(2)
	}
	return s, true
}
