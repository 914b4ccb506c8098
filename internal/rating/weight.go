package rating

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
)

// VolumetricWeight is (width × length × height) / divisor, in kg for cm inputs.
// Any missing, negative or non-finite dimension gives zero.
func VolumetricWeight(width, length, height float64, divisor int) decimal.Decimal {
	if divisor <= 0 {
		divisor = constants.DefaultVolumetricDivisor
	}
	w, okW := measure(width)
	l, okL := measure(length)
	h, okH := measure(height)
	if !okW || !okL || !okH {
		return decimal.Zero
	}
	return w.Mul(l).Mul(h).Div(decimal.NewFromInt(int64(divisor)))
}

// BillableWeight is max(physical, volumetric).
func BillableWeight(physical, volumetric decimal.Decimal) decimal.Decimal {
	return decimal.Max(physical, volumetric)
}

// PhysicalWeight converts a model-reported weight, zero when unusable.
func PhysicalWeight(kg float64) decimal.Decimal {
	d, ok := measure(kg)
	if !ok {
		return decimal.Zero
	}
	return d
}

func measure(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}
