package tariff

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

type key struct {
	provider string
	scope    int
	service  string
}

func keyOf(provider string, scope int, service string) key {
	return key{provider: normalizeProvider(provider), scope: scope, service: service}
}

// Provider names are compared case-insensitively, ignoring surrounding
// whitespace, so "Andreani" in a report matches "ANDREANI " in a card.
func normalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Table answers rate-card lookups. It is read-only after construction and
// safe for concurrent use.
type Table struct {
	rules   []entity.TariffRule
	byGroup map[key][]int
}

// NewTable indexes rules by (provider, scope, service). Within a group rules
// are ordered by rango_desde, so on a shared endpoint the lower range wins.
func NewTable(rules []entity.TariffRule) *Table {
	t := &Table{
		rules:   append([]entity.TariffRule(nil), rules...),
		byGroup: make(map[key][]int),
	}
	for i, r := range t.rules {
		k := keyOf(r.Provider, r.Scope, r.ServiceType)
		t.byGroup[k] = append(t.byGroup[k], i)
	}
	for _, idx := range t.byGroup {
		sort.SliceStable(idx, func(a, b int) bool {
			return t.rules[idx[a]].RangeFrom.LessThan(t.rules[idx[b]].RangeFrom)
		})
	}
	return t
}

// Lookup returns the lowest rule of the provider's card whose scope and
// service match exactly and whose inclusive range covers weight. A provider
// without a card never borrows another provider's rules.
func (t *Table) Lookup(provider string, scope int, service string, weight decimal.Decimal) (entity.TariffRule, bool) {
	for _, i := range t.byGroup[keyOf(provider, scope, service)] {
		if t.rules[i].Covers(weight) {
			return t.rules[i], true
		}
	}
	return entity.TariffRule{}, false
}

// Len is the number of rules in the table.
func (t *Table) Len() int { return len(t.rules) }

// Rules returns a copy of the rules in input order.
func (t *Table) Rules() []entity.TariffRule {
	return append([]entity.TariffRule(nil), t.rules...)
}

// PeriodStart turns a YYYYMM period into the first day of that month (UTC).
// It reports false for values that are not a calendar month.
func PeriodStart(period int) (time.Time, bool) {
	year, month := period/100, period%100
	if year < 1000 || year > 9999 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// ActiveAt keeps the rules whose validity window contains day. A missing
// fecha_inicio or fecha_fin leaves that side of the window open.
func ActiveAt(rules []entity.TariffRule, day time.Time) []entity.TariffRule {
	out := make([]entity.TariffRule, 0, len(rules))
	for _, r := range rules {
		if r.ActiveOn(day) {
			out = append(out, r)
		}
	}
	return out
}

// ForPeriod builds the table that applies to a report period. Periods that
// are not YYYYMM months are rated against every rule regardless of dates.
func ForPeriod(rules []entity.TariffRule, period int) *Table {
	if day, ok := PeriodStart(period); ok {
		rules = ActiveAt(rules, day)
	}
	return NewTable(rules)
}
