// Package memory provides an in-memory ledger used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*domain.TransactionRecord
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{nextID: 1}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

// Record appends one record, assigning its ID and timestamp.
func (s *TransactionStore) Record(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || !domain.ValidTxType(r.Type) || r.ChainID == "" {
		return storage.ErrInvalidInput
	}
	if r.ID != 0 {
		return storage.ErrImmutable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	cp := *r
	s.rows = append(s.rows, &cp)
	return nil
}

// QueryByType retrieves records of one type, newest first.
func (s *TransactionStore) QueryByType(_ context.Context, t domain.TxType, q storage.Query) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(q, func(r *domain.TransactionRecord) bool {
		return r.Type == t
	}), nil
}

// QueryRecent retrieves records of all types, newest first.
func (s *TransactionStore) QueryRecent(_ context.Context, q storage.Query) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(q, func(*domain.TransactionRecord) bool { return true }), nil
}

// filter applies the query under a held read lock.
func (s *TransactionStore) filter(q storage.Query, keep func(*domain.TransactionRecord) bool) []*domain.TransactionRecord {
	var result []*domain.TransactionRecord
	for _, r := range s.rows {
		if !keep(r) {
			continue
		}
		if q.Address != "" && r.DestinationAddress != q.Address {
			continue
		}
		if !q.Range.Contains(r.Timestamp) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID > result[j].ID
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if q.Offset > 0 {
		if q.Offset >= len(result) {
			return nil
		}
		result = result[q.Offset:]
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

// AggregateProfitability nets input/output/gas per token over the window.
func (s *TransactionStore) AggregateProfitability(_ context.Context, dr storage.DateRange) ([]storage.TokenNetFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make(map[string]*storage.TokenNetFlow)
	get := func(name string) *storage.TokenNetFlow {
		f, ok := flows[name]
		if !ok {
			f = &storage.TokenNetFlow{TokenName: name}
			flows[name] = f
		}
		return f
	}

	for _, r := range s.rows {
		if !r.Successful || !dr.Contains(r.Timestamp) {
			continue
		}
		if r.InputTokenName != "" {
			get(r.InputTokenName).Outflow = get(r.InputTokenName).Outflow.Add(r.InputAmount)
		}
		if r.SecondInputTokenName != "" {
			get(r.SecondInputTokenName).Outflow = get(r.SecondInputTokenName).Outflow.Add(r.SecondInputAmount)
		}
		if r.OutputTokenName != "" {
			get(r.OutputTokenName).Inflow = get(r.OutputTokenName).Inflow.Add(r.OutputAmount)
		}
		if r.SecondOutputTokenName != "" {
			get(r.SecondOutputTokenName).Inflow = get(r.SecondOutputTokenName).Inflow.Add(r.SecondOutputAmount)
		}
		if r.GasFeeTokenName != "" {
			get(r.GasFeeTokenName).GasSpent = get(r.GasFeeTokenName).GasSpent.Add(r.GasFeeAmount)
		}
	}

	result := make([]storage.TokenNetFlow, 0, len(flows))
	for _, f := range flows {
		f.Net = f.Inflow.Sub(f.Outflow).Sub(f.GasSpent)
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TokenName < result[j].TokenName })
	return result, nil
}

// AggregateVolume sums notional amounts by type and token. The notional of
// a record is its input side; records with no inputs (reward collection)
// contribute their outputs instead.
func (s *TransactionStore) AggregateVolume(_ context.Context, dr storage.DateRange) ([]storage.TypeVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		t     domain.TxType
		token string
	}
	vols := make(map[key]*storage.TypeVolume)
	add := func(t domain.TxType, token string, amount decimal.Decimal) {
		if token == "" {
			return
		}
		k := key{t, token}
		v, ok := vols[k]
		if !ok {
			v = &storage.TypeVolume{Type: t, TokenName: token}
			vols[k] = v
		}
		v.Count++
		v.Volume = v.Volume.Add(amount)
	}

	for _, r := range s.rows {
		if !r.Successful || !dr.Contains(r.Timestamp) {
			continue
		}
		if r.InputTokenName != "" || r.SecondInputTokenName != "" {
			add(r.Type, r.InputTokenName, r.InputAmount)
			add(r.Type, r.SecondInputTokenName, r.SecondInputAmount)
		} else {
			add(r.Type, r.OutputTokenName, r.OutputAmount)
			add(r.Type, r.SecondOutputTokenName, r.SecondOutputAmount)
		}
	}

	result := make([]storage.TypeVolume, 0, len(vols))
	for _, v := range vols {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].TokenName < result[j].TokenName
	})
	return result, nil
}

// Stats summarizes counts and time span over the window.
func (s *TransactionStore) Stats(_ context.Context, dr storage.DateRange) (*storage.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.LedgerStats{ByType: make(map[domain.TxType]int64)}
	for _, r := range s.rows {
		if !dr.Contains(r.Timestamp) {
			continue
		}
		stats.Total++
		if r.Successful {
			stats.Successful++
		} else {
			stats.Failed++
		}
		stats.ByType[r.Type]++
		if stats.First.IsZero() || r.Timestamp.Before(stats.First) {
			stats.First = r.Timestamp
		}
		if r.Timestamp.After(stats.Last) {
			stats.Last = r.Timestamp
		}
	}
	return stats, nil
}
