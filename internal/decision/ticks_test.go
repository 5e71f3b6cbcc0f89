package decision

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLowerTickFor_RoundsDown(t *testing.T) {
	price := decimal.NewFromFloat(1.80)

	tick := LowerTickFor(price, 100)
	if tick%100 != 0 {
		t.Fatalf("tick %d not aligned to spacing 100", tick)
	}
	if TickToPrice(tick).GreaterThan(price) {
		t.Errorf("lower tick price %s exceeds requested %s", TickToPrice(tick), price)
	}
}

func TestUpperTickFor_RoundsUp(t *testing.T) {
	price := decimal.NewFromFloat(2.20)

	tick := UpperTickFor(price, 100)
	if tick%100 != 0 {
		t.Fatalf("tick %d not aligned to spacing 100", tick)
	}
	if TickToPrice(tick).LessThan(price) {
		t.Errorf("upper tick price %s below requested %s", TickToPrice(tick), price)
	}
}

func TestTickAlignment_NegativeTicks(t *testing.T) {
	// Prices below 1 map to negative ticks; alignment must still round
	// toward negative infinity, not toward zero.
	price := decimal.NewFromFloat(0.90)

	tick := LowerTickFor(price, 100)
	if tick >= 0 {
		t.Fatalf("expected negative tick for price 0.90, got %d", tick)
	}
	if tick%100 != 0 {
		t.Fatalf("tick %d not aligned to spacing 100", tick)
	}
	if TickToPrice(tick).GreaterThan(price) {
		t.Errorf("lower tick price %s exceeds requested %s", TickToPrice(tick), price)
	}
}

func TestTickClamp(t *testing.T) {
	huge := decimal.RequireFromString("1e40")
	if tick := UpperTickFor(huge, 100); tick != maxTick {
		t.Errorf("expected clamp to %d, got %d", maxTick, tick)
	}
}
