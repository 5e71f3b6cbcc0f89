// Package lifecycle orchestrates the position workflow: decide, then
// withdraw, bridge and recreate, recording every issued transaction.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cl-rebalancer/internal/bridge"
	"cl-rebalancer/internal/config"
	"cl-rebalancer/internal/decision"
	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/monitor"
	"cl-rebalancer/internal/storage"
)

// ErrWorkflowBusy is returned when a workflow is already holding the
// single-writer lock for this position.
var ErrWorkflowBusy = errors.New("lifecycle: a workflow is already running")

// State names one phase of the workflow. States are logged, not
// persisted; the config file and the ledger carry the durable truth.
type State string

const (
	StateIdle        State = "idle"
	StateWithdrawing State = "withdrawing"
	StateBridging    State = "bridging"
	StateCreating    State = "creating"
	StateFailed      State = "failed"
)

// gasReserve is kept back on the pool chain so the account can always
// pay fees, in uosmo.
var gasReserve = big.NewInt(1_000_000)

// ConfigStore persists position configuration between runs.
type ConfigStore interface {
	Config() *config.Config
	UpdatePosition(id string, band decimal.Decimal) error
	ClearPosition() error
}

// ChainMonitor reads live chain state.
type ChainMonitor interface {
	Snapshot(ctx context.Context, poolID uint64, positionID string) (*monitor.Snapshot, error)
	Funds(ctx context.Context, address string, denoms ...string) (map[string]domain.TokenAmount, error)
}

// PositionTrader issues state-changing pool-chain transactions.
type PositionTrader interface {
	Sender() string
	WithdrawPosition(ctx context.Context, positionID string) (*domain.WithdrawReceipt, error)
	CollectRewards(ctx context.Context, positionID string) (*domain.RewardsReceipt, error)
	CreatePosition(ctx context.Context, req domain.CreateRequest) (*domain.CreateReceipt, error)
}

// Bridger moves assets from the alt chain to the pool chain.
type Bridger interface {
	Transfer(ctx context.Context, req bridge.TransferRequest) (*domain.BridgeTransfer, error)
}

// AltChainReader reads balances on the alt chain.
type AltChainReader interface {
	GetTokenBalance(ctx context.Context, owner, mint string) (domain.TokenAmount, error)
}

// Manager runs the position workflow under a single-writer lock.
type Manager struct {
	cfg     ConfigStore
	monitor ChainMonitor
	engine  *decision.Engine
	trader  PositionTrader
	bridger Bridger
	alt     AltChainReader
	ledger  storage.TransactionStore
	logger  *zap.Logger

	// altAddress is the operator account on the alt chain, and
	// bridgeMints maps pool-chain denoms to their alt-chain mints for
	// assets the bridge can carry.
	altAddress  string
	bridgeMints map[string]string

	mu    sync.Mutex
	state State
}

// Options carries the non-service knobs for a Manager.
type Options struct {
	AltAddress  string
	BridgeMints map[string]string
}

// NewManager wires a Manager.
func NewManager(
	cfg ConfigStore,
	mon ChainMonitor,
	engine *decision.Engine,
	trader PositionTrader,
	bridger Bridger,
	alt AltChainReader,
	ledger storage.TransactionStore,
	logger *zap.Logger,
	opts Options,
) *Manager {
	return &Manager{
		cfg:         cfg,
		monitor:     mon,
		engine:      engine,
		trader:      trader,
		bridger:     bridger,
		alt:         alt,
		ledger:      ledger,
		logger:      logger,
		altAddress:  opts.AltAddress,
		bridgeMints: opts.BridgeMints,
		state:       StateIdle,
	}
}

func (m *Manager) setState(s State) {
	m.state = s
	m.logger.Info("workflow state", zap.String("state", string(s)))
}

// record writes one ledger row. A persistence failure is surfaced as
// its own error; the on-chain action already happened and losing its
// record is worse than a failed workflow.
func (m *Manager) record(ctx context.Context, rec *domain.TransactionRecord) error {
	if err := m.ledger.Record(ctx, rec); err != nil {
		m.logger.Error("ledger write failed",
			zap.String("type", string(rec.Type)),
			zap.String("tx_hash", rec.TxHash),
			zap.Error(err))
		return fmt.Errorf("persist %s record for tx %s: %w", rec.Type, rec.TxHash, err)
	}
	return nil
}

// recordBroadcastFailure writes the failed row for a BroadcastError.
// Submission errors never reach here; nothing was broadcast for them.
func (m *Manager) recordBroadcastFailure(ctx context.Context, txType domain.TxType, chainID string, err error) error {
	var bErr *domain.BroadcastError
	if !errors.As(err, &bErr) {
		return nil
	}
	rec := &domain.TransactionRecord{
		Type:    txType,
		ChainID: chainID,
		TxHash:  bErr.TxHash,
		Error:   bErr.Err.Error(),
	}
	return m.record(ctx, rec)
}

// Run executes one full rebalance check. It is safe to call on a
// schedule; when no action is needed it only reads.
func (m *Manager) Run(ctx context.Context) (*domain.RebalanceResult, error) {
	if !m.mu.TryLock() {
		return nil, ErrWorkflowBusy
	}
	defer m.mu.Unlock()
	m.setState(StateIdle)

	cfg := m.cfg.Config()
	poolChain, _ := cfg.ChainIDs()
	result := &domain.RebalanceResult{PoolID: cfg.Pool.ID, PositionID: cfg.Position.ID}

	snap, err := m.monitor.Snapshot(ctx, cfg.Pool.ID, cfg.Position.ID)
	if err != nil {
		result.Err = err
		return result, err
	}

	input := decision.Input{
		Price:          snap.Pool.SpotPrice,
		PositionExists: snap.Position != nil,
		BandPct:        cfg.Position.BandPercentage,
		ThresholdPct:   cfg.RebalanceThresholdPercent,
		TickSpacing:    cfg.Pool.TickSpacing,
	}
	if snap.Position != nil {
		input.Range = domain.PriceRange{
			Lower: decision.TickToPrice(snap.Position.LowerTick),
			Upper: decision.TickToPrice(snap.Position.UpperTick),
		}
	}
	d := m.engine.Decide(input)
	m.logger.Info("decision",
		zap.String("action", string(d.Action)),
		zap.String("price", snap.Pool.SpotPrice.String()),
		zap.String("reason", d.Reason))

	switch d.Action {
	case decision.ActionNone:
		result.Action = domain.ActionNone
		result.Message = d.Reason
		return result, nil

	case decision.ActionRebalance:
		if err := m.withdraw(ctx, cfg, poolChain, snap.Position.PositionID); err != nil {
			m.setState(StateFailed)
			result.Err = err
			return result, err
		}
		result.PositionID = ""
		if err := m.createAt(ctx, cfg, poolChain, d, result); err != nil {
			m.setState(StateFailed)
			result.Err = err
			return result, err
		}
		result.Action = domain.ActionRebalanced
		m.setState(StateIdle)
		return result, nil

	case decision.ActionCreate:
		if err := m.createAt(ctx, cfg, poolChain, d, result); err != nil {
			m.setState(StateFailed)
			result.Err = err
			return result, err
		}
		result.Action = domain.ActionCreated
		m.setState(StateIdle)
		return result, nil
	}

	return result, fmt.Errorf("unknown decision action %q", d.Action)
}

// Withdraw closes the current position without recreating it.
func (m *Manager) Withdraw(ctx context.Context) (*domain.RebalanceResult, error) {
	if !m.mu.TryLock() {
		return nil, ErrWorkflowBusy
	}
	defer m.mu.Unlock()

	cfg := m.cfg.Config()
	poolChain, _ := cfg.ChainIDs()
	result := &domain.RebalanceResult{PoolID: cfg.Pool.ID, PositionID: cfg.Position.ID}

	snap, err := m.monitor.Snapshot(ctx, cfg.Pool.ID, cfg.Position.ID)
	if err != nil {
		result.Err = err
		return result, err
	}
	if snap.Position == nil {
		// Chain says nothing is open. Clear a stale id if present.
		if cfg.Position.Exists() {
			if err := m.cfg.ClearPosition(); err != nil {
				result.Err = err
				return result, err
			}
		}
		result.Action = domain.ActionNone
		result.PositionID = ""
		result.Message = "no open position"
		return result, nil
	}

	if err := m.withdraw(ctx, cfg, poolChain, snap.Position.PositionID); err != nil {
		m.setState(StateFailed)
		result.Err = err
		return result, err
	}
	result.Action = domain.ActionNone
	result.PositionID = ""
	result.Message = "position withdrawn"
	m.setState(StateIdle)
	return result, nil
}

// withdraw collects rewards, closes the position and clears the stored
// position id. After it returns nil the config is in the pre-bridge
// state: no position id, band preserved.
func (m *Manager) withdraw(ctx context.Context, cfg *config.Config, poolChain, positionID string) error {
	m.setState(StateWithdrawing)

	rewards, err := m.trader.CollectRewards(ctx, positionID)
	if err != nil {
		if recErr := m.recordBroadcastFailure(ctx, domain.TxTypeCollectRewards, poolChain, err); recErr != nil {
			return errors.Join(err, recErr)
		}
		return err
	}
	rewardsRec := &domain.TransactionRecord{
		Type:       domain.TxTypeCollectRewards,
		ChainID:    poolChain,
		TxHash:     rewards.TxHash,
		Successful: true,
	}
	rewardsRec.SetOutputs(rewards.Rewards...)
	rewardsRec.SetGasFee(rewards.GasFee)
	if err := m.record(ctx, rewardsRec); err != nil {
		return err
	}

	receipt, err := m.trader.WithdrawPosition(ctx, positionID)
	if err != nil {
		if recErr := m.recordBroadcastFailure(ctx, domain.TxTypePositionWithdraw, poolChain, err); recErr != nil {
			return errors.Join(err, recErr)
		}
		return err
	}
	rec := &domain.TransactionRecord{
		Type:       domain.TxTypePositionWithdraw,
		ChainID:    poolChain,
		TxHash:     receipt.TxHash,
		Successful: true,
	}
	rec.SetOutputs(receipt.Amounts...)
	rec.SetGasFee(receipt.GasFee)
	if err := m.record(ctx, rec); err != nil {
		return err
	}

	if err := m.cfg.ClearPosition(); err != nil {
		return fmt.Errorf("clear position after withdraw: %w", err)
	}
	m.logger.Info("position withdrawn",
		zap.String("position_id", positionID),
		zap.String("tx_hash", receipt.TxHash))
	return nil
}

// createAt funds the account and opens a position at the decided ticks,
// then persists the realized id and band.
func (m *Manager) createAt(ctx context.Context, cfg *config.Config, poolChain string, d decision.Decision, result *domain.RebalanceResult) error {
	amount0, amount1, err := m.fund(ctx, cfg, poolChain)
	if err != nil {
		return err
	}

	m.setState(StateCreating)
	receipt, err := m.trader.CreatePosition(ctx, domain.CreateRequest{
		PoolID:    cfg.Pool.ID,
		LowerTick: d.LowerTick,
		UpperTick: d.UpperTick,
		Amount0:   amount0,
		Amount1:   amount1,
	})
	if err != nil {
		if recErr := m.recordBroadcastFailure(ctx, domain.TxTypePositionCreate, poolChain, err); recErr != nil {
			return errors.Join(err, recErr)
		}
		return err
	}

	rec := &domain.TransactionRecord{
		Type:       domain.TxTypePositionCreate,
		ChainID:    poolChain,
		TxHash:     receipt.TxHash,
		Successful: true,
	}
	rec.SetInputs(receipt.Amounts...)
	rec.SetGasFee(receipt.GasFee)
	if err := m.record(ctx, rec); err != nil {
		return err
	}

	if err := m.cfg.UpdatePosition(receipt.PositionID, cfg.Position.BandPercentage); err != nil {
		return fmt.Errorf("persist new position %s: %w", receipt.PositionID, err)
	}
	result.PositionID = receipt.PositionID
	result.Message = fmt.Sprintf("position %s open at ticks [%d, %d]",
		receipt.PositionID, receipt.LowerTick, receipt.UpperTick)
	m.logger.Info("position created",
		zap.String("position_id", receipt.PositionID),
		zap.Int64("lower_tick", receipt.LowerTick),
		zap.Int64("upper_tick", receipt.UpperTick))
	return nil
}

// fund determines the deposit amounts for a new position, bridging an
// asset from the alt chain when its pool-chain balance is empty.
func (m *Manager) fund(ctx context.Context, cfg *config.Config, poolChain string) (domain.TokenAmount, domain.TokenAmount, error) {
	var zero domain.TokenAmount
	sender := m.trader.Sender()

	funds, err := m.monitor.Funds(ctx, sender, cfg.Pool.Token0, cfg.Pool.Token1)
	if err != nil {
		return zero, zero, err
	}

	for _, denom := range []string{cfg.Pool.Token0, cfg.Pool.Token1} {
		if !funds[denom].IsZero() {
			continue
		}
		mint, ok := m.bridgeMints[denom]
		if !ok {
			continue
		}
		bridged, err := m.bridgeIn(ctx, cfg, mint)
		if err != nil {
			return zero, zero, err
		}
		if bridged {
			// Re-read the landed balance.
			refreshed, err := m.monitor.Funds(ctx, sender, denom)
			if err != nil {
				return zero, zero, err
			}
			funds[denom] = refreshed[denom]
		}
	}

	amount0 := spendable(funds[cfg.Pool.Token0])
	amount1 := spendable(funds[cfg.Pool.Token1])
	if amount0.IsZero() && amount1.IsZero() {
		return zero, zero, fmt.Errorf("no funds on %s to open a position in pool %d", poolChain, cfg.Pool.ID)
	}
	return amount0, amount1, nil
}

// bridgeIn moves the full alt-chain balance of mint to the pool chain.
// It reports whether a transfer completed. The transfer is recorded
// whatever its outcome; a timeout halts the workflow with the transfer
// still pending and must not be retried blindly.
func (m *Manager) bridgeIn(ctx context.Context, cfg *config.Config, mint string) (bool, error) {
	m.setState(StateBridging)
	poolChain, altChain := cfg.ChainIDs()

	balance, err := m.alt.GetTokenBalance(ctx, m.altAddress, mint)
	if err != nil {
		return false, &monitor.ReadError{Resource: fmt.Sprintf("alt balance %s", mint), Err: err}
	}
	if balance.IsZero() {
		m.logger.Info("nothing to bridge", zap.String("mint", mint))
		return false, nil
	}

	transfer, err := m.bridger.Transfer(ctx, bridge.TransferRequest{
		SourceChainID: altChain,
		DestChainID:   poolChain,
		DestAddress:   m.trader.Sender(),
		Amount:        balance,
	})
	if transfer != nil {
		rec := &domain.TransactionRecord{
			Type:               domain.TxTypeBridgeTransfer,
			ChainID:            altChain,
			TxHash:             transfer.TxHash,
			Successful:         err == nil,
			DestinationAddress: transfer.DestAddress,
		}
		rec.SetInputs(transfer.Source)
		if err != nil {
			rec.Error = err.Error()
		}
		if recErr := m.record(ctx, rec); recErr != nil {
			return false, errors.Join(err, recErr)
		}
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
