package domain

import "github.com/shopspring/decimal"

// PoolConfig identifies the concentrated-liquidity pool under management.
// Set once at position creation; only changed by manual operator action.
type PoolConfig struct {
	ID           uint64          `json:"id"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	TickSpacing  int64           `json:"tickSpacing"`
	SpreadFactor decimal.Decimal `json:"spreadFactor"`
}

// PositionConfig is the locally persisted view of the open position.
// ID is empty when no position exists. Mutated only by the lifecycle
// manager after a successful create/rebalance/withdraw.
type PositionConfig struct {
	ID             string          `json:"id"`
	BandPercentage decimal.Decimal `json:"bandPercentage"`
}

// Exists reports whether the config claims an open position. Chain state
// remains the ground truth; the monitor re-reads before any decision.
func (p PositionConfig) Exists() bool {
	return p.ID != ""
}

// PriceRange is a price interval [Lower, Upper], bounds inclusive.
type PriceRange struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// Contains reports whether p lies within the range, inclusive at both ends.
func (r PriceRange) Contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(r.Lower) && p.LessThanOrEqual(r.Upper)
}

// Widen expands the range by pct percent beyond each edge. Used to build the
// rebalance trigger bounds which sit outside the position band.
func (r PriceRange) Widen(pct decimal.Decimal) PriceRange {
	f := pct.Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	return PriceRange{
		Lower: r.Lower.Mul(one.Sub(f)),
		Upper: r.Upper.Mul(one.Add(f)),
	}
}

// PoolInfo is the fetched pool state at one block height.
type PoolInfo struct {
	PoolID      uint64
	SpotPrice   decimal.Decimal
	CurrentTick int64
}

// PositionInfo is the fetched on-chain position state.
// A nil *PositionInfo signals "no open position".
type PositionInfo struct {
	PositionID string
	LowerTick  int64
	UpperTick  int64
	Liquidity  decimal.Decimal
}
