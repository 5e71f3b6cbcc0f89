package osmosis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
)

// Receipt polling knobs. A tx normally lands within two blocks; the
// budget covers a slow proposer round.
const (
	receiptPollInterval = 2 * time.Second
	receiptPollAttempts = 15
)

// TxClient submits pool-chain transactions through the signer gateway
// and confirms them against the LCD.
type TxClient struct {
	gateway string
	chainID string
	lcd     *Client
	client  *http.Client
	sender  string
}

// NewTxClient creates a transaction client. The sender address is the
// gateway's signing account and appears in ledger records.
func NewTxClient(gateway, chainID, sender string, lcd *Client) *TxClient {
	return &TxClient{
		gateway: gateway,
		chainID: chainID,
		lcd:     lcd,
		client:  &http.Client{Timeout: DefaultTimeout},
		sender:  sender,
	}
}

// Sender returns the signing account address.
func (t *TxClient) Sender() string {
	return t.sender
}

type submitResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error"`
}

// submit posts a signing request to the gateway. Any failure here means
// nothing was broadcast, so it surfaces as a SubmissionError.
func (t *TxClient) submit(ctx context.Context, op, path string, body interface{}) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", &domain.SubmissionError{Op: op, ChainID: t.chainID, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.gateway+path, bytes.NewReader(raw))
	if err != nil {
		return "", &domain.SubmissionError{Op: op, ChainID: t.chainID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &domain.SubmissionError{Op: op, ChainID: t.chainID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.SubmissionError{Op: op, ChainID: t.chainID, Err: fmt.Errorf("read response: %w", err)}
	}

	var sub submitResponse
	if err := json.Unmarshal(respBody, &sub); err != nil || sub.TxHash == "" {
		msg := sub.Error
		if msg == "" {
			msg = string(respBody)
		}
		return "", &domain.SubmissionError{
			Op:      op,
			ChainID: t.chainID,
			Err:     fmt.Errorf("gateway status %d: %s", resp.StatusCode, msg),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.SubmissionError{
			Op:      op,
			ChainID: t.chainID,
			Err:     fmt.Errorf("gateway status %d: %s", resp.StatusCode, sub.Error),
		}
	}
	return sub.TxHash, nil
}

// txReceipt is the parsed LCD confirmation for one transaction.
type txReceipt struct {
	TxHash string
	Code   int
	RawLog string
	GasFee domain.TokenAmount
	Events []txEvent
}

type txEvent struct {
	Type       string
	Attributes map[string]string
}

type lcdTxResponse struct {
	TxResponse struct {
		TxHash string `json:"txhash"`
		Code   int    `json:"code"`
		RawLog string `json:"raw_log"`
		Events []struct {
			Type       string `json:"type"`
			Attributes []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"attributes"`
		} `json:"events"`
	} `json:"tx_response"`
	Tx struct {
		AuthInfo struct {
			Fee struct {
				Amount []struct {
					Denom  string `json:"denom"`
					Amount string `json:"amount"`
				} `json:"amount"`
			} `json:"fee"`
		} `json:"auth_info"`
	} `json:"tx"`
}

// awaitReceipt polls the LCD until the tx is indexed. An execution
// failure (code != 0) is a BroadcastError: the tx exists on chain and
// must be recorded. Running out of attempts is also a BroadcastError
// for the same reason; the hash is known and must not be resubmitted.
func (t *TxClient) awaitReceipt(ctx context.Context, op, txHash string) (*txReceipt, error) {
	var lastErr error
	for attempt := 0; attempt < receiptPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &domain.BroadcastError{Op: op, ChainID: t.chainID, TxHash: txHash, Err: ctx.Err()}
			case <-time.After(receiptPollInterval):
			}
		}

		var result lcdTxResponse
		err := t.lcd.get(ctx, "/cosmos/tx/v1beta1/txs/"+txHash, nil, &result)
		if err != nil {
			var nf *errNotFound
			if errors.As(err, &nf) {
				lastErr = err // not indexed yet
				continue
			}
			lastErr = err
			continue
		}

		receipt := &txReceipt{
			TxHash: result.TxResponse.TxHash,
			Code:   result.TxResponse.Code,
			RawLog: result.TxResponse.RawLog,
		}
		for _, f := range result.Tx.AuthInfo.Fee.Amount {
			token, _ := domain.LookupToken(f.Denom)
			fee, err := domain.NewTokenAmountFromString(token, f.Amount)
			if err == nil {
				receipt.GasFee = fee
				break
			}
		}
		for _, ev := range result.TxResponse.Events {
			e := txEvent{Type: ev.Type, Attributes: make(map[string]string, len(ev.Attributes))}
			for _, a := range ev.Attributes {
				e.Attributes[a.Key] = a.Value
			}
			receipt.Events = append(receipt.Events, e)
		}

		if receipt.Code != 0 {
			return receipt, &domain.BroadcastError{
				Op:      op,
				ChainID: t.chainID,
				TxHash:  txHash,
				Err:     fmt.Errorf("code %d: %s", receipt.Code, receipt.RawLog),
			}
		}
		return receipt, nil
	}

	return nil, &domain.BroadcastError{
		Op:      op,
		ChainID: t.chainID,
		TxHash:  txHash,
		Err:     fmt.Errorf("receipt not found after %d attempts: %w", receiptPollAttempts, lastErr),
	}
}

// WithdrawPosition closes a position, returning all its liquidity.
func (t *TxClient) WithdrawPosition(ctx context.Context, positionID string) (*domain.WithdrawReceipt, error) {
	const op = "withdraw-position"
	txHash, err := t.submit(ctx, op, "/v1/tx/withdraw-position", map[string]interface{}{
		"positionId": positionID,
		"sender":     t.sender,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := t.awaitReceipt(ctx, op, txHash)
	if err != nil {
		return nil, err
	}

	out := &domain.WithdrawReceipt{TxHash: receipt.TxHash, GasFee: receipt.GasFee}
	if ev := findEvent(receipt.Events, "withdraw_position"); ev != nil {
		out.Amounts = coinAmounts(ev.Attributes, "amount0", "amount1")
	}
	return out, nil
}

// CollectRewards claims accrued spread rewards and incentives.
func (t *TxClient) CollectRewards(ctx context.Context, positionID string) (*domain.RewardsReceipt, error) {
	const op = "collect-rewards"
	txHash, err := t.submit(ctx, op, "/v1/tx/collect-rewards", map[string]interface{}{
		"positionIds": []string{positionID},
		"sender":      t.sender,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := t.awaitReceipt(ctx, op, txHash)
	if err != nil {
		return nil, err
	}

	out := &domain.RewardsReceipt{TxHash: receipt.TxHash, GasFee: receipt.GasFee}
	for _, evType := range []string{"total_collect_spread_rewards", "total_collect_incentives"} {
		if ev := findEvent(receipt.Events, evType); ev != nil {
			out.Rewards = append(out.Rewards, coinList(ev.Attributes["tokens_out"])...)
		}
	}
	return out, nil
}

// CreatePosition opens a new position and returns the realized id,
// ticks and liquidity from the create_position event.
func (t *TxClient) CreatePosition(ctx context.Context, req domain.CreateRequest) (*domain.CreateReceipt, error) {
	const op = "create-position"
	txHash, err := t.submit(ctx, op, "/v1/tx/create-position", map[string]interface{}{
		"poolId":    req.PoolID,
		"sender":    t.sender,
		"lowerTick": req.LowerTick,
		"upperTick": req.UpperTick,
		"tokensProvided": []map[string]string{
			{"denom": req.Amount0.Token.Denom, "amount": req.Amount0.Raw.String()},
			{"denom": req.Amount1.Token.Denom, "amount": req.Amount1.Raw.String()},
		},
	})
	if err != nil {
		return nil, err
	}

	receipt, err := t.awaitReceipt(ctx, op, txHash)
	if err != nil {
		return nil, err
	}

	out := &domain.CreateReceipt{TxHash: receipt.TxHash, GasFee: receipt.GasFee}
	ev := findEvent(receipt.Events, "create_position")
	if ev == nil {
		return nil, &domain.BroadcastError{
			Op:      op,
			ChainID: t.chainID,
			TxHash:  receipt.TxHash,
			Err:     errors.New("create_position event missing from receipt"),
		}
	}

	out.PositionID = ev.Attributes["position_id"]
	if out.PositionID == "" {
		return nil, &domain.BroadcastError{
			Op:      op,
			ChainID: t.chainID,
			TxHash:  receipt.TxHash,
			Err:     errors.New("position id missing from create_position event"),
		}
	}
	if v, err := strconv.ParseInt(ev.Attributes["lower_tick"], 10, 64); err == nil {
		out.LowerTick = v
	}
	if v, err := strconv.ParseInt(ev.Attributes["upper_tick"], 10, 64); err == nil {
		out.UpperTick = v
	}
	if v, err := decimal.NewFromString(ev.Attributes["liquidity"]); err == nil {
		out.Liquidity = v
	}
	out.Amounts = coinAmounts(ev.Attributes, "amount0", "amount1")
	return out, nil
}

func findEvent(events []txEvent, typ string) *txEvent {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

// coinAmounts parses event attributes of the form "12345denom" for the
// given keys, skipping absent or malformed values.
func coinAmounts(attrs map[string]string, keys ...string) []domain.TokenAmount {
	var out []domain.TokenAmount
	for _, k := range keys {
		if a, ok := parseCoin(attrs[k]); ok {
			out = append(out, a)
		}
	}
	return out
}

// coinList parses a comma-separated coin string, e.g. "15uosmo,3uion".
func coinList(s string) []domain.TokenAmount {
	var out []domain.TokenAmount
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if a, ok := parseCoin(s[start:i]); ok {
				out = append(out, a)
			}
			start = i + 1
		}
	}
	return out
}

// parseCoin splits a cosmos coin string into its numeric prefix and
// denom suffix.
func parseCoin(s string) (domain.TokenAmount, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return domain.TokenAmount{}, false
	}
	token, _ := domain.LookupToken(s[i:])
	amount, err := domain.NewTokenAmountFromString(token, s[:i])
	if err != nil {
		return domain.TokenAmount{}, false
	}
	return amount, true
}
