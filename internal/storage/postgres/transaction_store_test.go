package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/storage"
	"cl-rebalancer/internal/storage/postgres"
)

func testRecord(t domain.TxType, ts time.Time) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		Timestamp:  ts,
		Type:       t,
		ChainID:    domain.ChainOsmosis,
		TxHash:     "9AC51B9D2C6E47F2",
		Successful: true,
	}
}

func TestTransactionStore_RecordAndQueryRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransactionStore(pool)
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	withdraw := testRecord(domain.TxTypePositionWithdraw, base)
	withdraw.OutputTokenName = "OSMO"
	withdraw.OutputAmount = decimal.RequireFromString("125.5")
	withdraw.GasFeeTokenName = "OSMO"
	withdraw.GasFeeAmount = decimal.RequireFromString("0.004")

	create := testRecord(domain.TxTypePositionCreate, base.Add(time.Minute))
	create.InputTokenName = "OSMO"
	create.InputAmount = decimal.RequireFromString("60")
	create.SecondInputTokenName = "USDC"
	create.SecondInputAmount = decimal.RequireFromString("30")

	require.NoError(t, store.Record(ctx, withdraw))
	require.NoError(t, store.Record(ctx, create))
	assert.NotZero(t, withdraw.ID)
	assert.NotZero(t, create.ID)

	got, err := store.QueryRecent(ctx, storage.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, domain.TxTypePositionCreate, got[0].Type)
	assert.True(t, got[0].InputAmount.Equal(decimal.RequireFromString("60")),
		"input amount round-trip: got %s", got[0].InputAmount)
	assert.Equal(t, "USDC", got[0].SecondInputTokenName)
	assert.Equal(t, domain.TxTypePositionWithdraw, got[1].Type)
	assert.True(t, got[1].GasFeeAmount.Equal(decimal.RequireFromString("0.004")))
}

func TestTransactionStore_RejectsExistingID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransactionStore(pool)

	r := testRecord(domain.TxTypeBridgeTransfer, time.Now().UTC())
	require.NoError(t, store.Record(ctx, r))

	err := store.Record(ctx, r)
	assert.ErrorIs(t, err, storage.ErrImmutable)
}

func TestTransactionStore_QueryByTypeAndDateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransactionStore(pool)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	early := testRecord(domain.TxTypeBridgeTransfer, base)
	early.DestinationAddress = "7nYB6dEKQXVbjMZDTnGbcxqxmmyEfraorSBgGGSHHy4w"
	late := testRecord(domain.TxTypeBridgeTransfer, base.AddDate(0, 0, 10))
	late.DestinationAddress = "7nYB6dEKQXVbjMZDTnGbcxqxmmyEfraorSBgGGSHHy4w"
	other := testRecord(domain.TxTypePositionCreate, base.AddDate(0, 0, 5))

	for _, r := range []*domain.TransactionRecord{early, late, other} {
		require.NoError(t, store.Record(ctx, r))
	}

	got, err := store.QueryByType(ctx, domain.TxTypeBridgeTransfer, storage.Query{
		Address: "7nYB6dEKQXVbjMZDTnGbcxqxmmyEfraorSBgGGSHHy4w",
		Range:   storage.DateRange{Start: base.AddDate(0, 0, 1)},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.ID, got[0].ID)
}

func TestTransactionStore_Aggregates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransactionStore(pool)
	now := time.Now().UTC()

	withdraw := testRecord(domain.TxTypePositionWithdraw, now)
	withdraw.OutputTokenName = "OSMO"
	withdraw.OutputAmount = decimal.RequireFromString("100")
	withdraw.GasFeeTokenName = "OSMO"
	withdraw.GasFeeAmount = decimal.RequireFromString("0.5")

	create := testRecord(domain.TxTypePositionCreate, now.Add(time.Second))
	create.InputTokenName = "OSMO"
	create.InputAmount = decimal.RequireFromString("40")

	failed := testRecord(domain.TxTypePositionCreate, now.Add(2*time.Second))
	failed.Successful = false
	failed.InputTokenName = "OSMO"
	failed.InputAmount = decimal.RequireFromString("999")

	for _, r := range []*domain.TransactionRecord{withdraw, create, failed} {
		require.NoError(t, store.Record(ctx, r))
	}

	flows, err := store.AggregateProfitability(ctx, storage.DateRange{})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "OSMO", flows[0].TokenName)
	assert.True(t, flows[0].Net.Equal(decimal.RequireFromString("59.5")),
		"net: got %s", flows[0].Net)

	vols, err := store.AggregateVolume(ctx, storage.DateRange{})
	require.NoError(t, err)
	require.Len(t, vols, 2) // create inputs + withdraw outputs
	for _, v := range vols {
		switch v.Type {
		case domain.TxTypePositionCreate:
			assert.True(t, v.Volume.Equal(decimal.RequireFromString("40")))
		case domain.TxTypePositionWithdraw:
			assert.True(t, v.Volume.Equal(decimal.RequireFromString("100")))
		default:
			t.Errorf("unexpected volume row type %s", v.Type)
		}
	}

	stats, err := store.Stats(ctx, storage.DateRange{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Successful)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 2, stats.ByType[domain.TxTypePositionCreate])
}
