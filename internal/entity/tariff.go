package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TariffRule is one row of a carrier rate card (`tarifario`). The weight
// range is inclusive on both ends.
type TariffRule struct {
	Provider    string          `json:"proveedor"`
	ValidFrom   *time.Time      `json:"fecha_inicio,omitempty"`
	ValidTo     *time.Time      `json:"fecha_fin,omitempty"`
	Scope       int             `json:"ambito"`
	ServiceType string          `json:"tipo_de_servicio"`
	RangeFrom   decimal.Decimal `json:"rango_desde"`
	RangeTo     decimal.Decimal `json:"rango_hasta"`
	Tariff      decimal.Decimal `json:"tarifa"`
}

// Covers reports whether weight falls within [RangeFrom, RangeTo].
func (r TariffRule) Covers(weight decimal.Decimal) bool {
	return r.RangeFrom.LessThanOrEqual(weight) && r.RangeTo.GreaterThanOrEqual(weight)
}

// ActiveOn reports whether day falls within the rule's validity window.
// Dates compare by calendar day; a nil bound is open.
func (r TariffRule) ActiveOn(day time.Time) bool {
	d := truncateDay(day)
	if r.ValidFrom != nil && d.Before(truncateDay(*r.ValidFrom)) {
		return false
	}
	if r.ValidTo != nil && d.After(truncateDay(*r.ValidTo)) {
		return false
	}
	return true
}

// ValidityOverlaps reports whether the two rules' validity windows share at
// least one day.
func (r TariffRule) ValidityOverlaps(o TariffRule) bool {
	if r.ValidTo != nil && o.ValidFrom != nil && truncateDay(*r.ValidTo).Before(truncateDay(*o.ValidFrom)) {
		return false
	}
	if o.ValidTo != nil && r.ValidFrom != nil && truncateDay(*o.ValidTo).Before(truncateDay(*r.ValidFrom)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
