package lifecycle

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/decision"
	"cl-rebalancer/internal/domain"
)

// Status is a read-only view of the configured position against live
// chain state.
type Status struct {
	Environment string
	PoolID      uint64
	SpotPrice   decimal.Decimal
	CurrentTick int64

	// PositionID is the configured id; Position is what the chain
	// actually reports for it, nil when absent.
	PositionID string
	Position   *domain.PositionInfo
	Range      *domain.PriceRange
	InRange    bool
}

// Status reads the current pool and position state. It never mutates
// anything and takes no workflow lock.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	cfg := m.cfg.Config()

	snap, err := m.monitor.Snapshot(ctx, cfg.Pool.ID, cfg.Position.ID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Environment: cfg.Environment,
		PoolID:      cfg.Pool.ID,
		SpotPrice:   snap.Pool.SpotPrice,
		CurrentTick: snap.Pool.CurrentTick,
		PositionID:  cfg.Position.ID,
		Position:    snap.Position,
	}
	if snap.Position != nil {
		r := domain.PriceRange{
			Lower: decision.TickToPrice(snap.Position.LowerTick),
			Upper: decision.TickToPrice(snap.Position.UpperTick),
		}
		st.Range = &r
		st.InRange = r.Contains(snap.Pool.SpotPrice)
	}
	return st, nil
}

// spendable keeps a fee reserve back for the pool chain's native denom.
func spendable(a domain.TokenAmount) domain.TokenAmount {
	if a.Raw == nil || a.Token.Denom != "uosmo" {
		return a
	}
	v := new(big.Int).Sub(a.Raw, gasReserve)
	if v.Sign() < 0 {
		v.SetInt64(0)
	}
	return domain.NewTokenAmount(a.Token, v)
}
