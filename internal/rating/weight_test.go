package rating

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestVolumetricWeight(t *testing.T) {
	tests := []struct {
		name    string
		w, l, h float64
		divisor int
		want    string
	}{
		{"standard", 40, 30, 20, 4000, "6"},
		{"custom divisor", 40, 30, 20, 5000, "4.8"},
		{"default divisor", 10, 10, 10, 0, "0.25"},
		{"missing dimension", 40, 0, 20, 4000, "0"},
		{"negative", -1, 30, 20, 4000, "0"},
		{"nan", math.NaN(), 30, 20, 4000, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VolumetricWeight(tt.w, tt.l, tt.h, tt.divisor)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("VolumetricWeight() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBillableWeight_IsMax(t *testing.T) {
	tests := []struct{ physical, volumetric, want string }{
		{"2", "6", "6"},
		{"7.5", "6", "7.5"},
		{"0", "0", "0"},
	}
	for _, tt := range tests {
		p := decimal.RequireFromString(tt.physical)
		v := decimal.RequireFromString(tt.volumetric)
		got := BillableWeight(p, v)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("BillableWeight(%s, %s) = %s, want %s", p, v, got, tt.want)
		}
		if got.LessThan(p) {
			t.Errorf("billable %s below physical %s", got, p)
		}
	}
}

func TestPhysicalWeight(t *testing.T) {
	if !PhysicalWeight(1.25).Equal(decimal.RequireFromString("1.25")) {
		t.Error("expected 1.25")
	}
	if !PhysicalWeight(math.Inf(1)).IsZero() {
		t.Error("expected zero for Inf")
	}
}
