// Package monitor reads live pool and position state before any
// decision is made. Chain state is the ground truth for position
// existence; the locally stored id is only a lookup hint.
package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cl-rebalancer/internal/domain"
)

// PoolReader reads pool and position state from the pool chain.
type PoolReader interface {
	GetPoolInfo(ctx context.Context, poolID uint64) (*domain.PoolInfo, error)
	GetPositionInfo(ctx context.Context, positionID string) (*domain.PositionInfo, error)
}

// BalanceReader reads spendable balances on the pool chain.
type BalanceReader interface {
	GetBalances(ctx context.Context, address string) ([]domain.TokenAmount, error)
	GetBalance(ctx context.Context, address, denom string) (domain.TokenAmount, error)
}

// ReadError reports a failed chain read. The monitor fails closed: no
// decision is derived from partial or stale state.
type ReadError struct {
	Resource string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Resource, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Snapshot is one coherent read of the world. Position is nil when the
// chain reports no open position, whatever the config claims.
type Snapshot struct {
	Pool     *domain.PoolInfo
	Position *domain.PositionInfo
}

// Monitor takes snapshots of pool and position state.
type Monitor struct {
	pools    PoolReader
	balances BalanceReader
	logger   *zap.Logger
}

// New creates a Monitor. balances may be nil when only price snapshots
// are needed.
func New(pools PoolReader, balances BalanceReader, logger *zap.Logger) *Monitor {
	return &Monitor{pools: pools, balances: balances, logger: logger}
}

// Snapshot reads the pool and, when positionID is non-empty, the
// position. Either read failing fails the whole snapshot.
func (m *Monitor) Snapshot(ctx context.Context, poolID uint64, positionID string) (*Snapshot, error) {
	pool, err := m.pools.GetPoolInfo(ctx, poolID)
	if err != nil {
		return nil, &ReadError{Resource: fmt.Sprintf("pool %d", poolID), Err: err}
	}

	snap := &Snapshot{Pool: pool}
	if positionID == "" {
		return snap, nil
	}

	pos, err := m.pools.GetPositionInfo(ctx, positionID)
	if err != nil {
		return nil, &ReadError{Resource: "position " + positionID, Err: err}
	}
	if pos == nil {
		m.logger.Warn("configured position not found on chain",
			zap.String("position_id", positionID),
			zap.Uint64("pool_id", poolID))
	}
	snap.Position = pos
	return snap, nil
}

// Funds reads the spendable balance for each denom at address.
func (m *Monitor) Funds(ctx context.Context, address string, denoms ...string) (map[string]domain.TokenAmount, error) {
	out := make(map[string]domain.TokenAmount, len(denoms))
	for _, denom := range denoms {
		amount, err := m.balances.GetBalance(ctx, address, denom)
		if err != nil {
			return nil, &ReadError{Resource: fmt.Sprintf("balance %s for %s", denom, address), Err: err}
		}
		out[denom] = amount
	}
	return out, nil
}
