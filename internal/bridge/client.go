package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cl-rebalancer/internal/domain"
)

// DefaultHTTPTimeout bounds each provider API call.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPClient implements Client against the provider's REST API.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a provider client for the given base endpoint.
func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

var _ Client = (*HTTPClient)(nil)

type submitTransferResponse struct {
	TransferID string `json:"transferId"`
	TxHash     string `json:"txHash"`
	Error      string `json:"error"`
}

// SubmitTransfer initiates a transfer. Any failure here is a
// SubmissionError: nothing reached the source chain.
func (c *HTTPClient) SubmitTransfer(ctx context.Context, req TransferRequest) (*domain.BridgeTransfer, error) {
	const op = "bridge-transfer"
	body, err := json.Marshal(map[string]interface{}{
		"sourceChain": req.SourceChainID,
		"destChain":   req.DestChainID,
		"destAddress": req.DestAddress,
		"denom":       req.Amount.Token.Denom,
		"amount":      req.Amount.Raw.String(),
	})
	if err != nil {
		return nil, &domain.SubmissionError{Op: op, ChainID: req.SourceChainID, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.SubmissionError{Op: op, ChainID: req.SourceChainID, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &domain.SubmissionError{Op: op, ChainID: req.SourceChainID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.SubmissionError{Op: op, ChainID: req.SourceChainID, Err: fmt.Errorf("read response: %w", err)}
	}

	var sub submitTransferResponse
	if err := json.Unmarshal(respBody, &sub); err != nil || sub.TransferID == "" || resp.StatusCode != http.StatusOK {
		msg := sub.Error
		if msg == "" {
			msg = string(respBody)
		}
		return nil, &domain.SubmissionError{
			Op:      op,
			ChainID: req.SourceChainID,
			Err:     fmt.Errorf("provider status %d: %s", resp.StatusCode, msg),
		}
	}

	return &domain.BridgeTransfer{
		TransferID:  sub.TransferID,
		Source:      req.Amount,
		DestChainID: req.DestChainID,
		DestAddress: req.DestAddress,
		TxHash:      sub.TxHash,
		Status:      domain.BridgeStatusPending,
	}, nil
}

// TransferStatus polls the provider for the transfer's current state.
func (c *HTTPClient) TransferStatus(ctx context.Context, transferID string) (domain.BridgeStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/transfers/"+transferID, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("provider status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}

	switch result.Status {
	case "pending", "in_progress", "attested":
		return domain.BridgeStatusPending, nil
	case "completed", "redeemed":
		return domain.BridgeStatusCompleted, nil
	case "failed", "refunded":
		return domain.BridgeStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown transfer status %q", result.Status)
	}
}
