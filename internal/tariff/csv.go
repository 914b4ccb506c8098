package tariff

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/utils"
)

const dateLayout = "2006-01-02"

var rateCardColumns = []string{"ambito", "tipo_de_servicio", "rango_desde", "rango_hasta", "tarifa"}

// ParseRulesCSV reads a rate card with the `tarifario` columns. proveedor,
// fecha_inicio and fecha_fin (YYYY-MM-DD) are optional; defaultProvider is
// used when the proveedor column is absent or blank.
func ParseRulesCSV(r io.Reader, defaultProvider string) ([]entity.TariffRule, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, common.ParseFailuref("read rate card header: %v", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range rateCardColumns {
		if _, ok := col[c]; !ok {
			return nil, common.ParseFailuref("rate card is missing column %q", c)
		}
	}

	var rules []entity.TariffRule
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.ParseFailuref("rate card line %d: %v", line, err)
		}
		get := func(c string) string {
			if i, ok := col[c]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		rule := entity.TariffRule{Provider: get("proveedor"), ServiceType: get("tipo_de_servicio")}
		if rule.Provider == "" {
			rule.Provider = defaultProvider
		}
		if rule.Scope, err = strconv.Atoi(get("ambito")); err != nil {
			return nil, common.ParseFailuref("rate card line %d: ambito %q", line, get("ambito"))
		}
		for _, f := range []struct {
			c   string
			dst *decimal.Decimal
		}{{"rango_desde", &rule.RangeFrom}, {"rango_hasta", &rule.RangeTo}, {"tarifa", &rule.Tariff}} {
			d, err := utils.ParseMoney(get(f.c))
			if err != nil {
				return nil, common.ParseFailuref("rate card line %d: %s %q", line, f.c, get(f.c))
			}
			*f.dst = d
		}
		for _, f := range []struct {
			c   string
			dst **time.Time
		}{{"fecha_inicio", &rule.ValidFrom}, {"fecha_fin", &rule.ValidTo}} {
			s := get(f.c)
			if s == "" {
				continue
			}
			d, err := time.Parse(dateLayout, s)
			if err != nil {
				return nil, common.ParseFailuref("rate card line %d: %s %q", line, f.c, s)
			}
			*f.dst = &d
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
