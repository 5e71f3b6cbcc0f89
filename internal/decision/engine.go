// Package decision holds the pure rebalance decision function.
// It performs no I/O and keeps no state, so identical inputs always
// produce identical outputs.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
)

// Action is the outcome of one evaluation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionRebalance Action = "rebalance"
	ActionNone      Action = "none"
)

// Input is everything the engine needs to decide. Band and threshold are
// percentages (10 means 10%); both are validated as positive at config
// load time, never here.
type Input struct {
	Price          decimal.Decimal
	PositionExists bool
	Range          domain.PriceRange // current position range, valid when PositionExists
	BandPct        decimal.Decimal
	ThresholdPct   decimal.Decimal
	TickSpacing    int64
}

// Decision is the evaluated action plus the target range when the action
// is create or rebalance.
type Decision struct {
	Action      Action
	TargetRange domain.PriceRange
	LowerTick   int64
	UpperTick   int64
	Reason      string
}

// Engine evaluates rebalance decisions.
type Engine struct{}

// NewEngine creates a new decision engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Decide maps the current market state to an action.
//
// No position           → create, band-wide range centered on price.
// Price within trigger  → none. The trigger bounds widen the position range
//                         by the threshold, so "out of band" alone does not
//                         rebalance; the price must clear the margin too.
// Otherwise             → rebalance, range recentered on price.
//
// Boundary prices are in-band (inclusive bounds) to avoid flapping.
func (e *Engine) Decide(in Input) Decision {
	if !in.PositionExists {
		lower, upper := e.targetTicks(in.Price, in.BandPct, in.TickSpacing)
		return Decision{
			Action:      ActionCreate,
			TargetRange: domain.PriceRange{Lower: TickToPrice(lower), Upper: TickToPrice(upper)},
			LowerTick:   lower,
			UpperTick:   upper,
			Reason:      "no open position",
		}
	}

	trigger := in.Range.Widen(in.ThresholdPct)
	if trigger.Contains(in.Price) {
		return Decision{
			Action: ActionNone,
			Reason: fmt.Sprintf("price %s within trigger bounds [%s, %s]",
				in.Price, trigger.Lower, trigger.Upper),
		}
	}

	lower, upper := e.targetTicks(in.Price, in.BandPct, in.TickSpacing)
	return Decision{
		Action:      ActionRebalance,
		TargetRange: domain.PriceRange{Lower: TickToPrice(lower), Upper: TickToPrice(upper)},
		LowerTick:   lower,
		UpperTick:   upper,
		Reason: fmt.Sprintf("price %s outside trigger bounds [%s, %s]",
			in.Price, trigger.Lower, trigger.Upper),
	}
}

// targetTicks computes the spacing-aligned ticks for price·[1-band, 1+band].
// Ticks round outward, never inward, so the realized range is at least as
// wide as requested.
func (e *Engine) targetTicks(price, bandPct decimal.Decimal, spacing int64) (int64, int64) {
	one := decimal.NewFromInt(1)
	f := bandPct.Div(decimal.NewFromInt(100))
	lowerPrice := price.Mul(one.Sub(f))
	upperPrice := price.Mul(one.Add(f))
	return LowerTickFor(lowerPrice, spacing), UpperTickFor(upperPrice, spacing)
}
