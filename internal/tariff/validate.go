package tariff

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

// Validate rejects a rate card in which two rules of the same
// (provider, scope, service) group share an interior weight value while their
// validity windows intersect. Ranges that only touch at an endpoint are
// accepted; the lower range wins there. Inverted ranges and negative amounts
// are rejected as well.
func Validate(rules []entity.TariffRule) error {
	v := common.NewValidator()

	groups := make(map[key][]int)
	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		v.Field(field+".tipo_de_servicio", r.ServiceType, common.Required)
		v.Field(field+".rango_desde", r.RangeFrom, common.NonNegative)
		v.Field(field+".tarifa", r.Tariff, common.NonNegative)
		if r.RangeFrom.GreaterThan(r.RangeTo) {
			v.Add(field, r.RangeFrom.String()+"-"+r.RangeTo.String(), "rango_desde is greater than rango_hasta")
		}
		if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
			v.Add(field, r.ValidFrom.Format(dateLayout)+"-"+r.ValidTo.Format(dateLayout), "fecha_inicio is after fecha_fin")
		}
		k := keyOf(r.Provider, r.Scope, r.ServiceType)
		groups[k] = append(groups[k], i)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].provider != keys[j].provider {
			return keys[i].provider < keys[j].provider
		}
		if keys[i].scope != keys[j].scope {
			return keys[i].scope < keys[j].scope
		}
		return keys[i].service < keys[j].service
	})

	for _, k := range keys {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool { return rules[idx[a]].RangeFrom.LessThan(rules[idx[b]].RangeFrom) })
		for a := 0; a < len(idx); a++ {
			lo := rules[idx[a]]
			for b := a + 1; b < len(idx); b++ {
				hi := rules[idx[b]]
				if !rangesOverlap(lo, hi) || !lo.ValidityOverlaps(hi) {
					continue
				}
				v.Add(
					fmt.Sprintf("proveedor=%s ambito=%d tipo_de_servicio=%s", lo.Provider, k.scope, k.service),
					fmt.Sprintf("[%s, %s] and [%s, %s]", lo.RangeFrom, lo.RangeTo, hi.RangeFrom, hi.RangeTo),
					"weight ranges overlap",
				)
			}
		}
	}
	return v.Error()
}

// rangesOverlap reports whether a and b share a weight other than a common
// endpoint. Identical ranges always overlap, point ranges included.
func rangesOverlap(a, b entity.TariffRule) bool {
	if a.RangeFrom.Equal(b.RangeFrom) && a.RangeTo.Equal(b.RangeTo) {
		return true
	}
	return a.RangeFrom.LessThan(b.RangeTo) && b.RangeFrom.LessThan(a.RangeTo)
}
