// Package bridge moves assets between the two chains through an
// asynchronous transfer provider and waits for a terminal outcome.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cl-rebalancer/internal/domain"
)

// Sentinel outcomes of a bridge wait. A timeout means the transfer may
// still land later; it must never be resubmitted and never treated as
// failed.
var (
	ErrTimeout        = errors.New("bridge: transfer did not reach a terminal status within the wait budget")
	ErrTransferFailed = errors.New("bridge: transfer failed")
)

// Default coordinator settings. Bridge finality is minutes, not
// seconds, so the poll interval is coarse.
const (
	DefaultPollInterval = 15 * time.Second
	DefaultWaitBudget   = 20 * time.Minute
)

// TransferRequest describes one cross-chain transfer.
type TransferRequest struct {
	SourceChainID string
	DestChainID   string
	DestAddress   string
	Amount        domain.TokenAmount
}

// Client talks to the bridge provider.
type Client interface {
	// SubmitTransfer initiates a transfer and returns its provider id
	// and source-chain tx hash.
	SubmitTransfer(ctx context.Context, req TransferRequest) (*domain.BridgeTransfer, error)
	// TransferStatus polls the provider for the current status.
	TransferStatus(ctx context.Context, transferID string) (domain.BridgeStatus, error)
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPollInterval sets the status poll interval.
func WithPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.pollInterval = d
	}
}

// WithWaitBudget sets the total time allowed for a transfer to reach a
// terminal status.
func WithWaitBudget(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.waitBudget = d
	}
}

// Coordinator submits a transfer exactly once and polls it to a
// terminal status within a wait budget.
type Coordinator struct {
	client       Client
	pollInterval time.Duration
	waitBudget   time.Duration
	logger       *zap.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(client Client, logger *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		client:       client,
		pollInterval: DefaultPollInterval,
		waitBudget:   DefaultWaitBudget,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transfer submits the request and waits for completion. The returned
// BridgeTransfer is non-nil whenever submission succeeded, so callers
// can record the tx hash regardless of the outcome:
//
//   - completed: nil error
//   - failed:    ErrTransferFailed
//   - timeout or cancelled mid-poll: ErrTimeout, status left pending
//
// Submission failures return a SubmissionError and a nil transfer;
// nothing was broadcast and a retry is safe.
func (c *Coordinator) Transfer(ctx context.Context, req TransferRequest) (*domain.BridgeTransfer, error) {
	transfer, err := c.client.SubmitTransfer(ctx, req)
	if err != nil {
		var subErr *domain.SubmissionError
		if errors.As(err, &subErr) {
			return nil, err
		}
		return nil, &domain.SubmissionError{Op: "bridge-transfer", ChainID: req.SourceChainID, Err: err}
	}

	c.logger.Info("bridge transfer submitted",
		zap.String("transfer_id", transfer.TransferID),
		zap.String("tx_hash", transfer.TxHash),
		zap.String("dest_chain", req.DestChainID),
		zap.String("amount", req.Amount.String()))

	deadline := time.NewTimer(c.waitBudget)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The transfer is in flight and its fate unknown. That is
			// a timeout, not a failure.
			transfer.Status = domain.BridgeStatusPending
			return transfer, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-deadline.C:
			transfer.Status = domain.BridgeStatusPending
			return transfer, ErrTimeout
		case <-ticker.C:
		}

		status, err := c.client.TransferStatus(ctx, transfer.TransferID)
		if err != nil {
			// Transient poll errors burn budget, nothing else.
			c.logger.Warn("bridge status poll failed",
				zap.String("transfer_id", transfer.TransferID),
				zap.Error(err))
			continue
		}

		transfer.Status = status
		if !status.Terminal() {
			continue
		}
		if status == domain.BridgeStatusFailed {
			return transfer, fmt.Errorf("%w: transfer %s", ErrTransferFailed, transfer.TransferID)
		}
		c.logger.Info("bridge transfer completed",
			zap.String("transfer_id", transfer.TransferID))
		return transfer, nil
	}
}
