package clickhouse

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/storage"
)

// TransactionStore implements storage.TransactionStore using ClickHouse.
// MergeTree has no sequences, so IDs continue from the current maximum
// observed at construction; a single writer owns the ledger handle for
// the lifetime of a command, so this does not race across processes.
type TransactionStore struct {
	conn   *Conn
	lastID atomic.Int64
}

// NewTransactionStore creates a new TransactionStore, seeding the ID
// counter from the existing table contents.
func NewTransactionStore(ctx context.Context, conn *Conn) (*TransactionStore, error) {
	s := &TransactionStore{conn: conn}

	var maxID int64
	if err := conn.QueryRow(ctx, `SELECT coalesce(max(id), 0) FROM transactions`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("seed transaction id counter: %w", err)
	}
	s.lastID.Store(maxID)
	return s, nil
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const selectColumns = `
	id, ts, transaction_type, chain_id, tx_hash, successful,
	input_token_name, input_amount, second_input_token_name, second_input_amount,
	output_token_name, output_amount, second_output_token_name, second_output_amount,
	gas_fee_amount, gas_fee_token_name, destination_address, error
`

// Record appends one record.
func (s *TransactionStore) Record(ctx context.Context, r *domain.TransactionRecord) error {
	if r == nil || !domain.ValidTxType(r.Type) || r.ChainID == "" {
		return storage.ErrInvalidInput
	}
	if r.ID != 0 {
		return storage.ErrImmutable
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	id := s.lastID.Add(1)

	query := `
		INSERT INTO transactions (
			id, ts, transaction_type, chain_id, tx_hash, successful,
			input_token_name, input_amount, second_input_token_name, second_input_amount,
			output_token_name, output_amount, second_output_token_name, second_output_amount,
			gas_fee_amount, gas_fee_token_name, destination_address, error
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)
	`

	err := s.conn.Exec(ctx, query,
		id, r.Timestamp, string(r.Type), r.ChainID, r.TxHash, r.Successful,
		r.InputTokenName, r.InputAmount, r.SecondInputTokenName, r.SecondInputAmount,
		r.OutputTokenName, r.OutputAmount, r.SecondOutputTokenName, r.SecondOutputAmount,
		r.GasFeeAmount, r.GasFeeTokenName, r.DestinationAddress, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
	r.ID = id
	return nil
}

// QueryByType retrieves records of one type, newest first.
func (s *TransactionStore) QueryByType(ctx context.Context, t domain.TxType, q storage.Query) ([]*domain.TransactionRecord, error) {
	return s.query(ctx, string(t), q)
}

// QueryRecent retrieves records of all types, newest first.
func (s *TransactionStore) QueryRecent(ctx context.Context, q storage.Query) ([]*domain.TransactionRecord, error) {
	return s.query(ctx, "", q)
}

func (s *TransactionStore) query(ctx context.Context, txType string, q storage.Query) ([]*domain.TransactionRecord, error) {
	where, args := buildWindow(q.Range, true)
	if txType != "" {
		where += " AND transaction_type = ?"
		args = append(args, txType)
	}
	if q.Address != "" {
		where += " AND destination_address = ?"
		args = append(args, q.Address)
	}

	query := `SELECT ` + selectColumns + ` FROM transactions ` + where + ` ORDER BY ts DESC, id DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	} else if q.Offset > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", int64(1)<<40, q.Offset)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.TransactionRecord
	for rows.Next() {
		var r domain.TransactionRecord
		var txType string
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &txType, &r.ChainID, &r.TxHash, &r.Successful,
			&r.InputTokenName, &r.InputAmount, &r.SecondInputTokenName, &r.SecondInputAmount,
			&r.OutputTokenName, &r.OutputAmount, &r.SecondOutputTokenName, &r.SecondOutputAmount,
			&r.GasFeeAmount, &r.GasFeeTokenName, &r.DestinationAddress, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		r.Type = domain.TxType(txType)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

// AggregateProfitability nets input/output/gas amounts per token in SQL.
func (s *TransactionStore) AggregateProfitability(ctx context.Context, dr storage.DateRange) ([]storage.TokenNetFlow, error) {
	where, args := buildWindow(dr, false)
	// The window clause appears once per arm of the union.
	allArgs := append(append(append(append(append([]interface{}{}, args...), args...), args...), args...), args...)

	query := `
		SELECT token, SUM(inflow), SUM(outflow), SUM(gas),
		       SUM(inflow) - SUM(outflow) - SUM(gas)
		FROM (
			SELECT input_token_name AS token, toDecimal128(0, 18) AS inflow, input_amount AS outflow, toDecimal128(0, 18) AS gas
			FROM transactions ` + where + ` AND input_token_name != ''
			UNION ALL
			SELECT second_input_token_name, toDecimal128(0, 18), second_input_amount, toDecimal128(0, 18)
			FROM transactions ` + where + ` AND second_input_token_name != ''
			UNION ALL
			SELECT output_token_name, output_amount, toDecimal128(0, 18), toDecimal128(0, 18)
			FROM transactions ` + where + ` AND output_token_name != ''
			UNION ALL
			SELECT second_output_token_name, second_output_amount, toDecimal128(0, 18), toDecimal128(0, 18)
			FROM transactions ` + where + ` AND second_output_token_name != ''
			UNION ALL
			SELECT gas_fee_token_name, toDecimal128(0, 18), toDecimal128(0, 18), gas_fee_amount
			FROM transactions ` + where + ` AND gas_fee_token_name != ''
		)
		GROUP BY token
		ORDER BY token
	`

	rows, err := s.conn.Query(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("aggregate profitability: %w", err)
	}
	defer rows.Close()

	var result []storage.TokenNetFlow
	for rows.Next() {
		var f storage.TokenNetFlow
		if err := rows.Scan(&f.TokenName, &f.Inflow, &f.Outflow, &f.GasSpent, &f.Net); err != nil {
			return nil, fmt.Errorf("scan token net flow: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token net flows: %w", err)
	}
	return result, nil
}

// AggregateVolume sums notional amounts by transaction type and token.
func (s *TransactionStore) AggregateVolume(ctx context.Context, dr storage.DateRange) ([]storage.TypeVolume, error) {
	where, args := buildWindow(dr, false)
	allArgs := append(append(append(append([]interface{}{}, args...), args...), args...), args...)

	query := `
		SELECT transaction_type, token, COUNT(*), SUM(amount)
		FROM (
			SELECT transaction_type, input_token_name AS token, input_amount AS amount
			FROM transactions ` + where + ` AND input_token_name != ''
			UNION ALL
			SELECT transaction_type, second_input_token_name, second_input_amount
			FROM transactions ` + where + ` AND second_input_token_name != ''
			UNION ALL
			SELECT transaction_type, output_token_name, output_amount
			FROM transactions ` + where + `
			  AND input_token_name = '' AND second_input_token_name = '' AND output_token_name != ''
			UNION ALL
			SELECT transaction_type, second_output_token_name, second_output_amount
			FROM transactions ` + where + `
			  AND input_token_name = '' AND second_input_token_name = '' AND second_output_token_name != ''
		)
		GROUP BY transaction_type, token
		ORDER BY transaction_type, token
	`

	rows, err := s.conn.Query(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("aggregate volume: %w", err)
	}
	defer rows.Close()

	var result []storage.TypeVolume
	for rows.Next() {
		var v storage.TypeVolume
		var txType string
		var count uint64
		if err := rows.Scan(&txType, &v.TokenName, &count, &v.Volume); err != nil {
			return nil, fmt.Errorf("scan type volume: %w", err)
		}
		v.Type = domain.TxType(txType)
		v.Count = int64(count)
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type volumes: %w", err)
	}
	return result, nil
}

// Stats summarizes record counts and the covered time span.
func (s *TransactionStore) Stats(ctx context.Context, dr storage.DateRange) (*storage.LedgerStats, error) {
	where, args := buildWindow(dr, true)
	stats := &storage.LedgerStats{ByType: make(map[domain.TxType]int64)}

	summary := `
		SELECT count(), countIf(successful), countIf(NOT successful), min(ts), max(ts)
		FROM transactions ` + where
	var total, ok, failed uint64
	var first, last time.Time
	if err := s.conn.QueryRow(ctx, summary, args...).Scan(&total, &ok, &failed, &first, &last); err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	stats.Total = int64(total)
	stats.Successful = int64(ok)
	stats.Failed = int64(failed)
	if total > 0 {
		stats.First = first
		stats.Last = last
	}

	byType := `
		SELECT transaction_type, count()
		FROM transactions ` + where + `
		GROUP BY transaction_type
	`
	rows, err := s.conn.Query(ctx, byType, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger stats by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txType string
		var count uint64
		if err := rows.Scan(&txType, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByType[domain.TxType(txType)] = int64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}

// buildWindow renders the shared WHERE clause for a date window.
// With includeFailed=false only successful rows qualify, matching the
// aggregation contract.
func buildWindow(dr storage.DateRange, includeFailed bool) (string, []interface{}) {
	where := "WHERE 1 = 1"
	var args []interface{}
	if !includeFailed {
		where = "WHERE successful"
	}
	if !dr.Start.IsZero() {
		where += " AND ts >= ?"
		args = append(args, dr.Start)
	}
	if !dr.End.IsZero() {
		where += " AND ts <= ?"
		args = append(args, dr.End)
	}
	return where, args
}
