package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), InMemoryDSN, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_InvoiceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items := sampleItems()
	h := decimal.RequireFromString("12.50")
	items[0].Height = &h
	other := items[1]
	other.Period = 202402
	items = append(items, other)

	ids, err := s.InsertInvoices(ctx, items)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	got, err := s.ListInvoicesByPeriod(ctx, 202401)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range got {
		assert.Equal(t, ids[i], got[i].ID)
		assert.Equal(t, items[i].TrackCode, got[i].TrackCode)
		assert.Equal(t, items[i].Tariff.StringFixed(2), got[i].Tariff.StringFixed(2))
	}
	require.NotNil(t, got[0].Height)
	assert.Equal(t, "12.50", got[0].Height.StringFixed(2))
	assert.Nil(t, got[1].Height)

	require.NoError(t, s.Ping(ctx))
}

func TestSQLiteStore_ScalesJoinInvoices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ids, err := s.InsertInvoices(ctx, sampleItems()[:1])
	require.NoError(t, err)

	_, err = s.InsertScales(ctx, []entity.Scale{{
		InvoiceID:        ids[0],
		Height:           decimal.NewFromInt(10),
		Width:            decimal.NewFromInt(10),
		Length:           decimal.NewFromInt(10),
		VolumetricWeight: decimal.RequireFromString("0.25"),
		PhysicalWeight:   decimal.NewFromInt(2),
		BillableWeight:   decimal.NewFromInt(2),
		RealTariff:       decimal.NewFromInt(1000),
	}})
	require.NoError(t, err)

	report, err := s.ListScaleReport(ctx, 202401)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "Lamp", report[0].ProductName)
	assert.Equal(t, "800.00", report[0].Variance().StringFixed(2))

	empty, err := s.ListScaleReport(ctx, 209912)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_InsertScales_ForeignKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertScales(context.Background(), []entity.Scale{{InvoiceID: 999, RealTariff: decimal.NewFromInt(1)}})
	assert.Error(t, err)
}

func TestSQLiteStore_ReplaceTariffs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := []entity.TariffRule{
		{ValidFrom: &from, Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(900)},
	}
	require.NoError(t, s.ReplaceTariffs(ctx, "Andreani", first))

	second := []entity.TariffRule{
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(1000)},
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.NewFromInt(5), RangeTo: decimal.NewFromInt(10), Tariff: decimal.NewFromInt(1800)},
	}
	require.NoError(t, s.ReplaceTariffs(ctx, "Andreani", second))
	require.NoError(t, s.ReplaceTariffs(ctx, "OCA", first))

	rules, err := s.ListTariffs(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "Andreani", rules[0].Provider)
	assert.True(t, rules[0].Tariff.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "OCA", rules[2].Provider)
	require.NotNil(t, rules[2].ValidFrom)
	assert.True(t, rules[2].ValidFrom.Equal(from))
}

func TestSQLiteStore_SharedEndpointCard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTariffs(ctx, "Andreani", []entity.TariffRule{
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(5), Tariff: decimal.NewFromInt(1000)},
		{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.NewFromInt(5), RangeTo: decimal.NewFromInt(10), Tariff: decimal.NewFromInt(1800)},
	}))
	rules, err := s.ListTariffs(ctx)
	require.NoError(t, err)
	table := tariff.NewTable(rules)

	tests := []struct {
		weight string
		want   string
	}{
		{"4.5", "1000"},
		{"5", "1000"},
		{"5.0025", "1800"},
		{"10", "1800"},
		{"10.01", ""},
	}
	for _, tt := range tests {
		got, ok := table.Lookup("Andreani", 2, "24hs", decimal.RequireFromString(tt.weight))
		if tt.want == "" {
			assert.False(t, ok, "weight %s", tt.weight)
			continue
		}
		require.True(t, ok, "weight %s", tt.weight)
		assert.True(t, got.Tariff.Equal(decimal.RequireFromString(tt.want)), "weight %s got %s", tt.weight, got.Tariff)
	}
}

func TestSQLiteStore_CardsStayPerProvider(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	card := func(amount int64) []entity.TariffRule {
		return []entity.TariffRule{
			{Scope: 2, ServiceType: "24hs", RangeFrom: decimal.Zero, RangeTo: decimal.NewFromInt(10), Tariff: decimal.NewFromInt(amount)},
		}
	}
	require.NoError(t, s.ReplaceTariffs(ctx, "A", card(1000)))
	require.NoError(t, s.ReplaceTariffs(ctx, "B", card(2000)))

	rules, err := s.ListTariffs(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	table := tariff.NewTable(rules)

	a, ok := table.Lookup("A", 2, "24hs", decimal.NewFromInt(3))
	require.True(t, ok)
	assert.True(t, a.Tariff.Equal(decimal.NewFromInt(1000)))
	b, ok := table.Lookup("B", 2, "24hs", decimal.NewFromInt(3))
	require.True(t, ok)
	assert.True(t, b.Tariff.Equal(decimal.NewFromInt(2000)))
	_, ok = table.Lookup("C", 2, "24hs", decimal.NewFromInt(3))
	assert.False(t, ok)

	// replacing with a different spelling swaps the same card
	require.NoError(t, s.ReplaceTariffs(ctx, " b ", card(2500)))
	rules, err = s.ListTariffs(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	b, ok = tariff.NewTable(rules).Lookup("B", 2, "24hs", decimal.NewFromInt(3))
	require.True(t, ok)
	assert.True(t, b.Tariff.Equal(decimal.NewFromInt(2500)))
}
