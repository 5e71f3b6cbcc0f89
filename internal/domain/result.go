package domain

import "github.com/shopspring/decimal"

// RebalanceAction is the terminal action of one rebalance invocation.
type RebalanceAction string

const (
	ActionNone       RebalanceAction = "none"
	ActionCreated    RebalanceAction = "created"
	ActionRebalanced RebalanceAction = "rebalanced"
)

// RebalanceResult summarizes one invocation of the lifecycle manager.
// It is always fully populated: on a mid-workflow error the result still
// carries the best-known position id alongside the error.
type RebalanceResult struct {
	PoolID     uint64
	PositionID string
	Action     RebalanceAction
	Message    string
	Err        error
}

// WithdrawReceipt is the parsed outcome of a position withdrawal.
type WithdrawReceipt struct {
	TxHash  string
	Amounts []TokenAmount // principal returned, token0 then token1
	GasFee  TokenAmount
}

// RewardsReceipt is the parsed outcome of a spread-reward collection.
type RewardsReceipt struct {
	TxHash  string
	Rewards []TokenAmount
	GasFee  TokenAmount
}

// CreateRequest describes the position to open.
type CreateRequest struct {
	PoolID    uint64
	LowerTick int64
	UpperTick int64
	Amount0   TokenAmount
	Amount1   TokenAmount
}

// CreateReceipt is the parsed outcome of a position creation: the realized
// position id, ticks and liquidity from on-chain event data.
type CreateReceipt struct {
	TxHash     string
	PositionID string
	LowerTick  int64
	UpperTick  int64
	Liquidity  decimal.Decimal
	Amounts    []TokenAmount // actually deposited
	GasFee     TokenAmount
}
