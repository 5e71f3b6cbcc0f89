// Package reporting turns ledger queries into operator-facing reports.
package reporting

import (
	"context"
	"time"

	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/storage"
)

// Generator produces reports from the transaction ledger.
type Generator struct {
	store storage.TransactionStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.TransactionStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// TransactionsReport is a page of ledger records, newest first.
type TransactionsReport struct {
	GeneratedAt time.Time
	Records     []*domain.TransactionRecord
}

// Transactions lists records of one type, or all types when txType is
// empty.
func (g *Generator) Transactions(ctx context.Context, txType domain.TxType, q storage.Query) (*TransactionsReport, error) {
	var (
		recs []*domain.TransactionRecord
		err  error
	)
	if txType == "" {
		recs, err = g.store.QueryRecent(ctx, q)
	} else {
		recs, err = g.store.QueryByType(ctx, txType, q)
	}
	if err != nil {
		return nil, err
	}
	return &TransactionsReport{GeneratedAt: g.now(), Records: recs}, nil
}

// ProfitReport is the per-token net flow over a date range.
type ProfitReport struct {
	GeneratedAt time.Time
	Range       storage.DateRange
	Flows       []storage.TokenNetFlow
}

// Profit aggregates inflows, outflows and gas per token over the range.
func (g *Generator) Profit(ctx context.Context, dr storage.DateRange) (*ProfitReport, error) {
	flows, err := g.store.AggregateProfitability(ctx, dr)
	if err != nil {
		return nil, err
	}
	return &ProfitReport{GeneratedAt: g.now(), Range: dr, Flows: flows}, nil
}

// VolumeReport is the traded notional grouped by type and token.
type VolumeReport struct {
	GeneratedAt time.Time
	Range       storage.DateRange
	Volumes     []storage.TypeVolume
}

// Volume aggregates transaction notional over the range.
func (g *Generator) Volume(ctx context.Context, dr storage.DateRange) (*VolumeReport, error) {
	vols, err := g.store.AggregateVolume(ctx, dr)
	if err != nil {
		return nil, err
	}
	return &VolumeReport{GeneratedAt: g.now(), Range: dr, Volumes: vols}, nil
}

// StatsReport is the ledger-wide record counts.
type StatsReport struct {
	GeneratedAt time.Time
	Range       storage.DateRange
	Stats       storage.LedgerStats
}

// Stats summarizes record counts over the range.
func (g *Generator) Stats(ctx context.Context, dr storage.DateRange) (*StatsReport, error) {
	stats, err := g.store.Stats(ctx, dr)
	if err != nil {
		return nil, err
	}
	return &StatsReport{GeneratedAt: g.now(), Range: dr, Stats: *stats}, nil
}
