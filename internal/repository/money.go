package repository

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

// moneyArg sends money as text so both backends keep exact values.
func moneyArg(d decimal.Decimal) string { return d.String() }

func nullableMoneyArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseMoney(col, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: column %s value %q: %v", common.ErrDatabase, col, s, err)
	}
	return d, nil
}

func parseNullableMoney(col string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseMoney(col, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func dbError(op string, err error) error {
	return common.NewAppError("DB_"+op, err.Error(), fmt.Errorf("%w: %w", common.ErrDatabase, err))
}

func fillInvoiceMoney(it *entity.LineItem, tarifa string, alto, ancho, largo, aforado, fisico, facturable *string) error {
	var err error
	if it.Tariff, err = parseMoney("tarifa", tarifa); err != nil {
		return err
	}
	optional := []struct {
		col string
		src *string
		dst **decimal.Decimal
	}{
		{"alto", alto, &it.Height},
		{"ancho", ancho, &it.Width},
		{"largo", largo, &it.Length},
		{"peso_aforado", aforado, &it.VolumetricWeight},
		{"peso_fisico", fisico, &it.PhysicalWeight},
		{"peso_facturable", facturable, &it.BillableWeight},
	}
	for _, o := range optional {
		if *o.dst, err = parseNullableMoney(o.col, o.src); err != nil {
			return err
		}
	}
	return nil
}

// fillScaleReport expects alto, ancho, largo, peso_aforado, peso_fisico,
// peso_facturable, tarifa_real, tarifa in that order.
func fillScaleReport(r *entity.ScaleReportRow, vals [8]string) error {
	cols := []struct {
		col string
		dst *decimal.Decimal
	}{
		{"alto", &r.Height},
		{"ancho", &r.Width},
		{"largo", &r.Length},
		{"peso_aforado", &r.VolumetricWeight},
		{"peso_fisico", &r.PhysicalWeight},
		{"peso_facturable", &r.BillableWeight},
		{"tarifa_real", &r.RealTariff},
		{"tarifa", &r.PaidTariff},
	}
	for i, c := range cols {
		d, err := parseMoney(c.col, vals[i])
		if err != nil {
			return err
		}
		*c.dst = d
	}
	return nil
}

func fillTariffMoney(r *entity.TariffRule, from, to, amount string) error {
	var err error
	if r.RangeFrom, err = parseMoney("rango_desde", from); err != nil {
		return err
	}
	if r.RangeTo, err = parseMoney("rango_hasta", to); err != nil {
		return err
	}
	r.Tariff, err = parseMoney("tarifa", amount)
	return err
}
