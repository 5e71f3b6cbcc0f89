package decision

import (
	"math"

	"github.com/shopspring/decimal"
)

// CL pools use a geometric price grid: price = 1.0001^tick. Ranges must
// align to multiples of the pool's tick spacing.
const tickBase = 1.0001

var lnTickBase = math.Log(tickBase)

// Allowed tick magnitude, matching the usual CL pool bounds.
const maxTick = 887272

// priceToTickRaw converts a price to its unaligned tick, rounded toward
// negative infinity.
func priceToTickRaw(price decimal.Decimal) float64 {
	f, _ := price.Float64()
	return math.Log(f) / lnTickBase
}

// LowerTickFor returns the largest spacing-aligned tick whose price does not
// exceed the given price. Rounding is outward (down) so the realized lower
// bound is never above the requested one.
func LowerTickFor(price decimal.Decimal, spacing int64) int64 {
	tick := int64(math.Floor(priceToTickRaw(price)))
	return clampTick(floorDiv(tick, spacing) * spacing)
}

// UpperTickFor returns the smallest spacing-aligned tick whose price is not
// below the given price. Rounding is outward (up).
func UpperTickFor(price decimal.Decimal, spacing int64) int64 {
	tick := int64(math.Ceil(priceToTickRaw(price)))
	return clampTick(ceilDiv(tick, spacing) * spacing)
}

// TickToPrice converts a tick back to its grid price.
func TickToPrice(tick int64) decimal.Decimal {
	return decimal.NewFromFloat(math.Pow(tickBase, float64(tick)))
}

func clampTick(tick int64) int64 {
	if tick > maxTick {
		return maxTick
	}
	if tick < -maxTick {
		return -maxTick
	}
	return tick
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}
