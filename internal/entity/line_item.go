package entity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/utils"
)

// LineItem is one shipment record of a report period (a row of `invoices`).
type LineItem struct {
	ID           int64           `json:"id"`
	Period       int             `json:"periodo"`
	Carrier      string          `json:"proveedor"`
	TrackCode    string          `json:"track_code"`
	Scope        int             `json:"ambito"`
	ServiceType  string          `json:"tipo_servicio"`
	Name         string          `json:"name"`
	MainCategory string          `json:"main_category,omitempty"`
	SubCategory  string          `json:"sub_category,omitempty"`
	Category     string          `json:"category,omitempty"`
	Tariff       decimal.Decimal `json:"tarifa"`

	// Optional measurements carried by some reports.
	Height           *decimal.Decimal `json:"alto,omitempty"`
	Width            *decimal.Decimal `json:"ancho,omitempty"`
	Length           *decimal.Decimal `json:"largo,omitempty"`
	VolumetricWeight *decimal.Decimal `json:"peso_aforado,omitempty"`
	PhysicalWeight   *decimal.Decimal `json:"peso_fisico,omitempty"`
	BillableWeight   *decimal.Decimal `json:"peso_facturable,omitempty"`
}

// InvoiceColumns are the accepted report columns, in table order.
var InvoiceColumns = []string{
	"periodo", "proveedor", "track_code", "ambito", "tipo_servicio", "name",
	"main_category", "sub_category", "category",
	"alto", "ancho", "largo", "peso_aforado", "peso_fisico", "peso_facturable",
	"tarifa",
}

var invoiceColumnSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(InvoiceColumns))
	for _, c := range InvoiceColumns {
		m[c] = struct{}{}
	}
	return m
}()

// LineItemFromRow maps a lower-cased report row onto a LineItem. Columns that
// do not belong to the invoices table are returned (sorted) so the caller can
// warn about them; they never fail the row.
func LineItemFromRow(row map[string]string) (LineItem, []string, error) {
	var unknown []string
	for k := range row {
		if _, ok := invoiceColumnSet[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	v := common.NewValidator()
	get := func(k string) string { return strings.TrimSpace(row[k]) }
	for _, k := range []string{"periodo", "proveedor", "track_code", "tarifa"} {
		v.Field(k, get(k), common.Required)
	}
	if v.HasErrors() {
		return LineItem{}, unknown, fmt.Errorf("%w: %s", common.ErrParseFailure, v.ErrorMessage())
	}

	period, err := strconv.Atoi(get("periodo"))
	if err != nil {
		return LineItem{}, unknown, common.ParseFailuref("periodo %q is not an integer", get("periodo"))
	}
	tariff, err := utils.ParseMoney(get("tarifa"))
	if err != nil {
		return LineItem{}, unknown, common.ParseFailuref("tarifa %q: %v", get("tarifa"), err)
	}

	item := LineItem{
		Period:       period,
		Carrier:      get("proveedor"),
		TrackCode:    get("track_code"),
		ServiceType:  get("tipo_servicio"),
		Name:         get("name"),
		MainCategory: get("main_category"),
		SubCategory:  get("sub_category"),
		Category:     get("category"),
		Tariff:       tariff,
	}
	if s := get("ambito"); s != "" {
		if item.Scope, err = strconv.Atoi(s); err != nil {
			return LineItem{}, unknown, common.ParseFailuref("ambito %q is not an integer", s)
		}
	}

	optional := []struct {
		col string
		dst **decimal.Decimal
	}{
		{"alto", &item.Height},
		{"ancho", &item.Width},
		{"largo", &item.Length},
		{"peso_aforado", &item.VolumetricWeight},
		{"peso_fisico", &item.PhysicalWeight},
		{"peso_facturable", &item.BillableWeight},
	}
	for _, o := range optional {
		s := get(o.col)
		if s == "" {
			continue
		}
		d, err := utils.ParseMoney(s)
		if err != nil {
			return LineItem{}, unknown, common.ParseFailuref("%s %q: %v", o.col, s, err)
		}
		*o.dst = &d
	}
	return item, unknown, nil
}
