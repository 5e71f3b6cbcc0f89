package bridge

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"cl-rebalancer/internal/domain"
)

type fakeClient struct {
	submits   atomic.Int64
	submitErr error
	statuses  []domain.BridgeStatus
	errPolls  int // first N polls fail
	polls     atomic.Int64
}

func (f *fakeClient) SubmitTransfer(ctx context.Context, req TransferRequest) (*domain.BridgeTransfer, error) {
	f.submits.Add(1)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.BridgeTransfer{
		TransferID:  "tr-01",
		Source:      req.Amount,
		DestChainID: req.DestChainID,
		DestAddress: req.DestAddress,
		TxHash:      "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb",
		Status:      domain.BridgeStatusPending,
	}, nil
}

func (f *fakeClient) TransferStatus(ctx context.Context, transferID string) (domain.BridgeStatus, error) {
	n := f.polls.Add(1)
	if int(n) <= f.errPolls {
		return "", errors.New("gateway 502")
	}
	n -= int64(f.errPolls)
	if int(n) > len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[n-1], nil
}

func testRequest() TransferRequest {
	token, _ := domain.LookupToken("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	return TransferRequest{
		SourceChainID: domain.ChainSolana,
		DestChainID:   domain.ChainOsmosis,
		DestAddress:   "osmo1qy352eufqy352eufqy352eufqy35qqqz4zsjs",
		Amount:        domain.NewTokenAmount(token, big.NewInt(30000000)),
	}
}

func fastCoordinator(c Client, budget time.Duration) *Coordinator {
	return NewCoordinator(c, zap.NewNop(),
		WithPollInterval(time.Millisecond),
		WithWaitBudget(budget))
}

func TestTransferCompletesAfterPolls(t *testing.T) {
	f := &fakeClient{statuses: []domain.BridgeStatus{
		domain.BridgeStatusPending,
		domain.BridgeStatusPending,
		domain.BridgeStatusCompleted,
	}}

	transfer, err := fastCoordinator(f, time.Second).Transfer(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if transfer.Status != domain.BridgeStatusCompleted {
		t.Errorf("status = %s, want completed", transfer.Status)
	}
	if got := f.submits.Load(); got != 1 {
		t.Errorf("submit called %d times, must be exactly once", got)
	}
	if got := f.polls.Load(); got != 3 {
		t.Errorf("status polled %d times, want 3", got)
	}
}

func TestTransferFailed(t *testing.T) {
	f := &fakeClient{statuses: []domain.BridgeStatus{domain.BridgeStatusFailed}}

	transfer, err := fastCoordinator(f, time.Second).Transfer(context.Background(), testRequest())
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("failure must be distinct from timeout")
	}
	if transfer == nil || transfer.TxHash == "" {
		t.Error("failed transfer must still carry its tx hash for the ledger")
	}
}

func TestTransferTimeout(t *testing.T) {
	f := &fakeClient{statuses: []domain.BridgeStatus{domain.BridgeStatusPending}}

	transfer, err := fastCoordinator(f, 20*time.Millisecond).Transfer(context.Background(), testRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if errors.Is(err, ErrTransferFailed) {
		t.Error("timeout must be distinct from failure")
	}
	if transfer == nil {
		t.Fatal("timed-out transfer must be returned for the ledger")
	}
	if transfer.Status != domain.BridgeStatusPending {
		t.Errorf("status = %s, timeout leaves the transfer pending", transfer.Status)
	}
	if got := f.submits.Load(); got != 1 {
		t.Errorf("submit called %d times after timeout, must never resubmit", got)
	}
}

func TestTransferContextCancelIsTimeout(t *testing.T) {
	f := &fakeClient{statuses: []domain.BridgeStatus{domain.BridgeStatusPending}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	transfer, err := fastCoordinator(f, time.Minute).Transfer(ctx, testRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation mid-poll must surface as ErrTimeout, got %v", err)
	}
	if transfer == nil {
		t.Fatal("transfer must be returned for the ledger")
	}
}

func TestTransferPollErrorsAreTransient(t *testing.T) {
	f := &fakeClient{
		statuses: []domain.BridgeStatus{domain.BridgeStatusCompleted},
		errPolls: 3,
	}

	transfer, err := fastCoordinator(f, time.Second).Transfer(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("poll errors must not abort the wait: %v", err)
	}
	if transfer.Status != domain.BridgeStatusCompleted {
		t.Errorf("status = %s, want completed", transfer.Status)
	}
}

func TestSubmitFailureIsSubmissionError(t *testing.T) {
	f := &fakeClient{submitErr: errors.New("insufficient balance")}

	transfer, err := fastCoordinator(f, time.Second).Transfer(context.Background(), testRequest())
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if transfer != nil {
		t.Error("no transfer exists when submission failed")
	}
}
