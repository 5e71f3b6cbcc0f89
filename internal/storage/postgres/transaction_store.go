package postgres

import (
	"context"
	"fmt"
	"time"

	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const selectColumns = `
	id, ts, transaction_type, chain_id, tx_hash, successful,
	input_token_name, input_amount, second_input_token_name, second_input_amount,
	output_token_name, output_amount, second_output_token_name, second_output_amount,
	gas_fee_amount, gas_fee_token_name, destination_address, error
`

// Record appends one record, assigning its ID from the sequence.
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

	query := `
		INSERT INTO transactions (
			ts, transaction_type, chain_id, tx_hash, successful,
			input_token_name, input_amount, second_input_token_name, second_input_amount,
			output_token_name, output_amount, second_output_token_name, second_output_amount,
			gas_fee_amount, gas_fee_token_name, destination_address, error
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17
		) RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		r.Timestamp, r.Type, r.ChainID, r.TxHash, r.Successful,
		r.InputTokenName, r.InputAmount, r.SecondInputTokenName, r.SecondInputAmount,
		r.OutputTokenName, r.OutputAmount, r.SecondOutputTokenName, r.SecondOutputAmount,
		r.GasFeeAmount, r.GasFeeTokenName, r.DestinationAddress, r.Error,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
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
	query := `
		SELECT ` + selectColumns + `
		FROM transactions
		WHERE ($1 = '' OR transaction_type = $1)
		  AND ($2 = '' OR destination_address = $2)
		  AND ($3::timestamptz IS NULL OR ts >= $3)
		  AND ($4::timestamptz IS NULL OR ts <= $4)
		ORDER BY ts DESC, id DESC
		LIMIT $5 OFFSET $6
	`

	limit := int64(q.Limit)
	if limit <= 0 {
		// LIMIT ALL is not parameterizable; an effectively-unbounded cap is.
		limit = int64(1) << 40
	}

	rows, err := s.pool.Query(ctx, query,
		txType, q.Address, nullableTime(q.Range.Start), nullableTime(q.Range.End), limit, q.Offset)
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
	query := `
		WITH windowed AS (
			SELECT * FROM transactions
			WHERE successful
			  AND ($1::timestamptz IS NULL OR ts >= $1)
			  AND ($2::timestamptz IS NULL OR ts <= $2)
		),
		flows AS (
			SELECT input_token_name AS token, 0::numeric AS inflow, input_amount AS outflow, 0::numeric AS gas
			FROM windowed WHERE input_token_name <> ''
			UNION ALL
			SELECT second_input_token_name, 0, second_input_amount, 0
			FROM windowed WHERE second_input_token_name <> ''
			UNION ALL
			SELECT output_token_name, output_amount, 0, 0
			FROM windowed WHERE output_token_name <> ''
			UNION ALL
			SELECT second_output_token_name, second_output_amount, 0, 0
			FROM windowed WHERE second_output_token_name <> ''
			UNION ALL
			SELECT gas_fee_token_name, 0, 0, gas_fee_amount
			FROM windowed WHERE gas_fee_token_name <> ''
		)
		SELECT token, SUM(inflow), SUM(outflow), SUM(gas),
		       SUM(inflow) - SUM(outflow) - SUM(gas)
		FROM flows
		GROUP BY token
		ORDER BY token
	`

	rows, err := s.pool.Query(ctx, query, nullableTime(dr.Start), nullableTime(dr.End))
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
// Inputs are the notional side; records without inputs contribute outputs.
func (s *TransactionStore) AggregateVolume(ctx context.Context, dr storage.DateRange) ([]storage.TypeVolume, error) {
	query := `
		WITH windowed AS (
			SELECT * FROM transactions
			WHERE successful
			  AND ($1::timestamptz IS NULL OR ts >= $1)
			  AND ($2::timestamptz IS NULL OR ts <= $2)
		),
		notional AS (
			SELECT transaction_type, input_token_name AS token, input_amount AS amount
			FROM windowed WHERE input_token_name <> ''
			UNION ALL
			SELECT transaction_type, second_input_token_name, second_input_amount
			FROM windowed WHERE second_input_token_name <> ''
			UNION ALL
			SELECT transaction_type, output_token_name, output_amount
			FROM windowed
			WHERE input_token_name = '' AND second_input_token_name = '' AND output_token_name <> ''
			UNION ALL
			SELECT transaction_type, second_output_token_name, second_output_amount
			FROM windowed
			WHERE input_token_name = '' AND second_input_token_name = '' AND second_output_token_name <> ''
		)
		SELECT transaction_type, token, COUNT(*), SUM(amount)
		FROM notional
		GROUP BY transaction_type, token
		ORDER BY transaction_type, token
	`

	rows, err := s.pool.Query(ctx, query, nullableTime(dr.Start), nullableTime(dr.End))
	if err != nil {
		return nil, fmt.Errorf("aggregate volume: %w", err)
	}
	defer rows.Close()

	var result []storage.TypeVolume
	for rows.Next() {
		var v storage.TypeVolume
		var txType string
		if err := rows.Scan(&txType, &v.TokenName, &v.Count, &v.Volume); err != nil {
			return nil, fmt.Errorf("scan type volume: %w", err)
		}
		v.Type = domain.TxType(txType)
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type volumes: %w", err)
	}
	return result, nil
}

// Stats summarizes record counts and the covered time span.
func (s *TransactionStore) Stats(ctx context.Context, dr storage.DateRange) (*storage.LedgerStats, error) {
	stats := &storage.LedgerStats{ByType: make(map[domain.TxType]int64)}

	summary := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE successful),
		       COUNT(*) FILTER (WHERE NOT successful),
		       MIN(ts), MAX(ts)
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR ts >= $1)
		  AND ($2::timestamptz IS NULL OR ts <= $2)
	`
	var first, last *time.Time
	err := s.pool.QueryRow(ctx, summary, nullableTime(dr.Start), nullableTime(dr.End)).
		Scan(&stats.Total, &stats.Successful, &stats.Failed, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	if first != nil {
		stats.First = *first
	}
	if last != nil {
		stats.Last = *last
	}

	byType := `
		SELECT transaction_type, COUNT(*)
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR ts >= $1)
		  AND ($2::timestamptz IS NULL OR ts <= $2)
		GROUP BY transaction_type
	`
	rows, err := s.pool.Query(ctx, byType, nullableTime(dr.Start), nullableTime(dr.End))
	if err != nil {
		return nil, fmt.Errorf("ledger stats by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txType string
		var count int64
		if err := rows.Scan(&txType, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByType[domain.TxType(txType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}

// nullableTime maps the zero time to NULL so the SQL window conditions
// collapse to true.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
