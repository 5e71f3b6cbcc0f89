// Package osmosis speaks to the pool chain: the LCD REST API for reads
// and a local signer gateway for state-changing transactions.
package osmosis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client is an LCD REST client with retries and exponential backoff.
type Client struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an LCD client for the given base endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// restError is a structured LCD error body.
type restError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *restError) Error() string {
	return fmt.Sprintf("LCD error %d: %s", e.Code, e.Message)
}

// errNotFound marks a 404 from the LCD. Callers translate it into a
// typed absence (nil position, empty balance) instead of a failure.
type errNotFound struct {
	path string
}

func (e *errNotFound) Error() string {
	return fmt.Sprintf("not found: %s", e.path)
}

// get performs a GET with retries and exponential backoff. 404 is
// returned immediately as *errNotFound and never retried.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			if result != nil {
				if err := json.Unmarshal(respBody, result); err != nil {
					return fmt.Errorf("unmarshal response: %w", err)
				}
			}
			return nil
		case http.StatusNotFound:
			return &errNotFound{path: path}
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		default:
			var restErr restError
			if json.Unmarshal(respBody, &restErr) == nil && restErr.Message != "" {
				lastErr = &restErr
			} else {
				lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			}
			continue
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetPoolInfo fetches the concentrated-liquidity pool state.
func (c *Client) GetPoolInfo(ctx context.Context, poolID uint64) (*domain.PoolInfo, error) {
	var result struct {
		Pool struct {
			CurrentTick      string `json:"current_tick"`
			CurrentSqrtPrice string `json:"current_sqrt_price"`
			TickSpacing      string `json:"tick_spacing"`
		} `json:"pool"`
	}
	path := fmt.Sprintf("/osmosis/concentratedliquidity/v1beta1/pools/%d", poolID)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get pool %d: %w", poolID, err)
	}

	tick, err := strconv.ParseInt(result.Pool.CurrentTick, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pool %d: parse current tick %q: %w", poolID, result.Pool.CurrentTick, err)
	}
	sqrtPrice, err := decimal.NewFromString(result.Pool.CurrentSqrtPrice)
	if err != nil {
		return nil, fmt.Errorf("pool %d: parse sqrt price %q: %w", poolID, result.Pool.CurrentSqrtPrice, err)
	}

	return &domain.PoolInfo{
		PoolID:      poolID,
		SpotPrice:   sqrtPrice.Mul(sqrtPrice),
		CurrentTick: tick,
	}, nil
}

// GetPositionInfo fetches one position by id. A missing position is
// reported as (nil, nil): absence is state, not an error.
func (c *Client) GetPositionInfo(ctx context.Context, positionID string) (*domain.PositionInfo, error) {
	var result struct {
		Position struct {
			Position struct {
				PositionID string `json:"position_id"`
				LowerTick  string `json:"lower_tick"`
				UpperTick  string `json:"upper_tick"`
				Liquidity  string `json:"liquidity"`
			} `json:"position"`
		} `json:"position"`
	}
	query := url.Values{"position_id": {positionID}}
	err := c.get(ctx, "/osmosis/concentratedliquidity/v1beta1/position_by_id", query, &result)
	if err != nil {
		var nf *errNotFound
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position %s: %w", positionID, err)
	}
	if result.Position.Position.PositionID == "" {
		return nil, nil
	}

	lower, err := strconv.ParseInt(result.Position.Position.LowerTick, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("position %s: parse lower tick: %w", positionID, err)
	}
	upper, err := strconv.ParseInt(result.Position.Position.UpperTick, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("position %s: parse upper tick: %w", positionID, err)
	}
	liquidity, err := decimal.NewFromString(result.Position.Position.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("position %s: parse liquidity: %w", positionID, err)
	}

	return &domain.PositionInfo{
		PositionID: result.Position.Position.PositionID,
		LowerTick:  lower,
		UpperTick:  upper,
		Liquidity:  liquidity,
	}, nil
}

// GetBalances fetches all bank balances for an address, following
// pagination.next_key until the final page.
func (c *Client) GetBalances(ctx context.Context, address string) ([]domain.TokenAmount, error) {
	var out []domain.TokenAmount
	nextKey := ""

	for {
		var result struct {
			Balances []struct {
				Denom  string `json:"denom"`
				Amount string `json:"amount"`
			} `json:"balances"`
			Pagination struct {
				NextKey string `json:"next_key"`
			} `json:"pagination"`
		}

		query := url.Values{}
		if nextKey != "" {
			query.Set("pagination.key", nextKey)
		}
		path := "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address)
		if err := c.get(ctx, path, query, &result); err != nil {
			return nil, fmt.Errorf("get balances for %s: %w", address, err)
		}

		for _, b := range result.Balances {
			token, _ := domain.LookupToken(b.Denom)
			amount, err := domain.NewTokenAmountFromString(token, b.Amount)
			if err != nil {
				return nil, fmt.Errorf("balances for %s: %w", address, err)
			}
			out = append(out, amount)
		}

		if result.Pagination.NextKey == "" {
			return out, nil
		}
		// next_key arrives base64 encoded and is passed back verbatim.
		if _, err := base64.StdEncoding.DecodeString(result.Pagination.NextKey); err != nil {
			return nil, fmt.Errorf("balances for %s: malformed pagination key: %w", address, err)
		}
		nextKey = result.Pagination.NextKey
	}
}

// GetBalance fetches a single denom balance for an address.
func (c *Client) GetBalance(ctx context.Context, address, denom string) (domain.TokenAmount, error) {
	var result struct {
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	path := "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address) + "/by_denom"
	query := url.Values{"denom": {denom}}
	token, _ := domain.LookupToken(denom)

	if err := c.get(ctx, path, query, &result); err != nil {
		var nf *errNotFound
		if errors.As(err, &nf) {
			return domain.NewTokenAmount(token, nil), nil
		}
		return domain.TokenAmount{}, fmt.Errorf("get balance %s for %s: %w", denom, address, err)
	}
	if result.Balance.Amount == "" {
		return domain.NewTokenAmount(token, nil), nil
	}
	return domain.NewTokenAmountFromString(token, result.Balance.Amount)
}
