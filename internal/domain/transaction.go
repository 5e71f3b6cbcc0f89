package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType tags a ledger record with the kind of on-chain action it captures.
type TxType string

// Closed set of transaction types the ledger accepts.
const (
	TxTypePositionCreate   TxType = "position-create"
	TxTypePositionWithdraw TxType = "position-withdraw"
	TxTypeBridgeTransfer   TxType = "bridge-transfer"
	TxTypeCollectRewards   TxType = "rebalance-collect-rewards"
	TxTypeTokenSwap        TxType = "token-swap"
)

// ValidTxType reports whether t belongs to the closed set.
func ValidTxType(t TxType) bool {
	switch t {
	case TxTypePositionCreate, TxTypePositionWithdraw, TxTypeBridgeTransfer,
		TxTypeCollectRewards, TxTypeTokenSwap:
		return true
	}
	return false
}

// TransactionRecord is one append-only ledger row. Records are never
// mutated after insert; they are the audit trail of record for every
// state-changing on-chain call, successful or not.
type TransactionRecord struct {
	ID         int64
	Timestamp  time.Time
	Type       TxType
	ChainID    string
	TxHash     string
	Successful bool

	// Up to two assets on each side for dual-asset operations.
	InputTokenName        string
	InputAmount           decimal.Decimal
	SecondInputTokenName  string
	SecondInputAmount     decimal.Decimal
	OutputTokenName       string
	OutputAmount          decimal.Decimal
	SecondOutputTokenName string
	SecondOutputAmount    decimal.Decimal

	GasFeeAmount    decimal.Decimal
	GasFeeTokenName string

	// DestinationAddress is set for bridge transfers.
	DestinationAddress string

	Error string
}

// SetInputs fills the input columns from up to two token amounts.
func (r *TransactionRecord) SetInputs(amounts ...TokenAmount) {
	if len(amounts) > 0 {
		r.InputTokenName = amounts[0].Token.Symbol
		r.InputAmount = amounts[0].Display()
	}
	if len(amounts) > 1 {
		r.SecondInputTokenName = amounts[1].Token.Symbol
		r.SecondInputAmount = amounts[1].Display()
	}
}

// SetOutputs fills the output columns from up to two token amounts.
func (r *TransactionRecord) SetOutputs(amounts ...TokenAmount) {
	if len(amounts) > 0 {
		r.OutputTokenName = amounts[0].Token.Symbol
		r.OutputAmount = amounts[0].Display()
	}
	if len(amounts) > 1 {
		r.SecondOutputTokenName = amounts[1].Token.Symbol
		r.SecondOutputAmount = amounts[1].Display()
	}
}

// SetGasFee fills the gas columns.
func (r *TransactionRecord) SetGasFee(fee TokenAmount) {
	r.GasFeeTokenName = fee.Token.Symbol
	r.GasFeeAmount = fee.Display()
}

// BridgeStatus is the polled state of a cross-chain transfer.
type BridgeStatus string

const (
	BridgeStatusPending   BridgeStatus = "pending"
	BridgeStatusCompleted BridgeStatus = "completed"
	BridgeStatusFailed    BridgeStatus = "failed"
)

// Terminal reports whether the status will not change on further polling.
func (s BridgeStatus) Terminal() bool {
	return s == BridgeStatusCompleted || s == BridgeStatusFailed
}

// BridgeTransfer tracks one asynchronous cross-chain transfer.
type BridgeTransfer struct {
	TransferID  string
	Source      TokenAmount
	DestChainID string
	DestAddress string
	TxHash      string
	Status      BridgeStatus
}
