package domain

import "fmt"

// SubmissionError reports a state-changing call that failed before it
// reached the chain. No transaction exists, so no ledger record is
// written for it and a retry is always safe.
type SubmissionError struct {
	Op      string
	ChainID string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s on %s: submit failed: %v", e.Op, e.ChainID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// BroadcastError reports a transaction that was accepted by the chain
// and then failed during execution. A ledger record with the tx hash
// must exist for every BroadcastError.
type BroadcastError struct {
	Op      string
	ChainID string
	TxHash  string
	Err     error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("%s on %s: tx %s failed: %v", e.Op, e.ChainID, e.TxHash, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }
