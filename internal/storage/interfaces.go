// Package storage defines the transaction ledger contract. The ledger is
// the durable, append-only record of executed on-chain actions, distinct
// from the chains themselves; all reporting runs over it so reports are
// reproducible offline.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
)

// DateRange bounds a query window. Zero values mean unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the range (inclusive).
func (r DateRange) Contains(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}

// Query selects ledger rows for the read operations.
type Query struct {
	// Address filters on destination address when non-empty.
	Address string
	// Limit caps the number of rows; 0 means no cap.
	Limit int
	// Offset skips rows after ordering (timestamp descending).
	Offset int
	Range  DateRange
}

// TokenNetFlow is the per-token profitability aggregate: outputs received,
// inputs spent and gas paid, netted over the window. Only successful
// records contribute.
type TokenNetFlow struct {
	TokenName string
	Inflow    decimal.Decimal
	Outflow   decimal.Decimal
	GasSpent  decimal.Decimal
	Net       decimal.Decimal
}

// TypeVolume sums notional amounts per transaction type and token.
type TypeVolume struct {
	Type      domain.TxType
	TokenName string
	Count     int64
	Volume    decimal.Decimal
}

// LedgerStats is a summary of the ledger over a window.
type LedgerStats struct {
	Total      int64
	Successful int64
	Failed     int64
	ByType     map[domain.TxType]int64
	First      time.Time
	Last       time.Time
}

// TransactionStore is the append-only ledger.
type TransactionStore interface {
	// Record appends one record and fills in its assigned ID and, if unset,
	// its timestamp. A record with a non-zero ID is rejected with ErrImmutable.
	Record(ctx context.Context, r *domain.TransactionRecord) error

	// QueryByType retrieves records of one type, newest first.
	QueryByType(ctx context.Context, t domain.TxType, q Query) ([]*domain.TransactionRecord, error)

	// QueryRecent retrieves records of all types, newest first.
	QueryRecent(ctx context.Context, q Query) ([]*domain.TransactionRecord, error)

	// AggregateProfitability nets input/output/gas amounts per token over
	// the window, from the persisted ledger only.
	AggregateProfitability(ctx context.Context, r DateRange) ([]TokenNetFlow, error)

	// AggregateVolume sums notional amounts by transaction type and token.
	AggregateVolume(ctx context.Context, r DateRange) ([]TypeVolume, error)

	// Stats summarizes record counts and the covered time span.
	Stats(ctx context.Context, r DateRange) (*LedgerStats, error)
}
