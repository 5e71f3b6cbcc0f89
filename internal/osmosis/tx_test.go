package osmosis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"cl-rebalancer/internal/domain"
)

const testSender = "osmo1qy352eufqy352eufqy352eufqy35qqqz4zsjs"

func testTxClient(t *testing.T, gateway, lcd http.Handler) *TxClient {
	t.Helper()
	gwSrv := httptest.NewServer(gateway)
	t.Cleanup(gwSrv.Close)
	lcdSrv := httptest.NewServer(lcd)
	t.Cleanup(lcdSrv.Close)
	c := NewClient(lcdSrv.URL, WithMaxRetries(0), WithRetryDelay(time.Millisecond))
	return NewTxClient(gwSrv.URL, domain.ChainOsmosis, testSender, c)
}

func receiptBody(code int, events string) string {
	return `{
		"tx_response": {
			"txhash": "9AC51B9D2C6E47F2",
			"code": ` + strconv.Itoa(code) + `,
			"raw_log": "out of gas",
			"events": [` + events + `]
		},
		"tx": {"auth_info": {"fee": {"amount": [{"denom": "uosmo", "amount": "4000"}]}}}
	}`
}

func TestWithdrawPositionParsesReceipt(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tx/withdraw-position" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"txHash": "9AC51B9D2C6E47F2"}`))
	})
	lcd := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(receiptBody(0, `{
			"type": "withdraw_position",
			"attributes": [
				{"key": "amount0", "value": "2500000uosmo"},
				{"key": "amount1", "value": "1750000ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"}
			]
		}`)))
	})

	receipt, err := testTxClient(t, gateway, lcd).WithdrawPosition(context.Background(), "4411")
	if err != nil {
		t.Fatalf("WithdrawPosition: %v", err)
	}
	if receipt.TxHash != "9AC51B9D2C6E47F2" {
		t.Errorf("tx hash = %q", receipt.TxHash)
	}
	if len(receipt.Amounts) != 2 {
		t.Fatalf("got %d amounts, want 2", len(receipt.Amounts))
	}
	if receipt.Amounts[0].Token.Symbol != "OSMO" || receipt.Amounts[0].Raw.String() != "2500000" {
		t.Errorf("amount0 = %s", receipt.Amounts[0])
	}
	if receipt.GasFee.Raw.String() != "4000" {
		t.Errorf("gas fee = %s, want 4000uosmo", receipt.GasFee.Raw)
	}
}

func TestSubmitFailureIsSubmissionError(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "insufficient funds for fee"}`, http.StatusBadRequest)
	})
	lcd := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("LCD must not be consulted when submission fails")
	})

	_, err := testTxClient(t, gateway, lcd).WithdrawPosition(context.Background(), "4411")
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	var bErr *domain.BroadcastError
	if errors.As(err, &bErr) {
		t.Error("submission failure must not be a BroadcastError")
	}
}

func TestExecutionFailureIsBroadcastError(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"txHash": "9AC51B9D2C6E47F2"}`))
	})
	lcd := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(receiptBody(11, "")))
	})

	_, err := testTxClient(t, gateway, lcd).WithdrawPosition(context.Background(), "4411")
	var bErr *domain.BroadcastError
	if !errors.As(err, &bErr) {
		t.Fatalf("expected BroadcastError, got %v", err)
	}
	if bErr.TxHash != "9AC51B9D2C6E47F2" {
		t.Errorf("broadcast error hash = %q, must carry the tx hash", bErr.TxHash)
	}
}

func TestCreatePositionRealizedValues(t *testing.T) {
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tx/create-position" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"txHash": "9AC51B9D2C6E47F2"}`))
	})
	lcd := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(receiptBody(0, `{
			"type": "create_position",
			"attributes": [
				{"key": "position_id", "value": "8812345"},
				{"key": "lower_tick", "value": "-200000"},
				{"key": "upper_tick", "value": "200000"},
				{"key": "liquidity", "value": "4377348.12"},
				{"key": "amount0", "value": "60000000uosmo"},
				{"key": "amount1", "value": "30000000ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"}
			]
		}`)))
	})

	osmo, _ := domain.LookupToken("uosmo")
	usdc, _ := domain.LookupToken("ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4")
	amount0, _ := domain.NewTokenAmountFromString(osmo, "60000000")
	amount1, _ := domain.NewTokenAmountFromString(usdc, "30000000")

	receipt, err := testTxClient(t, gateway, lcd).CreatePosition(context.Background(), domain.CreateRequest{
		PoolID:    1263,
		LowerTick: -200000,
		UpperTick: 200000,
		Amount0:   amount0,
		Amount1:   amount1,
	})
	if err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}
	if receipt.PositionID != "8812345" {
		t.Errorf("position id = %q, want realized 8812345", receipt.PositionID)
	}
	if receipt.LowerTick != -200000 || receipt.UpperTick != 200000 {
		t.Errorf("ticks = [%d, %d]", receipt.LowerTick, receipt.UpperTick)
	}
	if len(receipt.Amounts) != 2 {
		t.Errorf("got %d deposit amounts, want 2", len(receipt.Amounts))
	}
}

func TestParseCoinList(t *testing.T) {
	coins := coinList("2500000uosmo,1750000ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4")
	if len(coins) != 2 {
		t.Fatalf("got %d coins, want 2", len(coins))
	}
	if coins[1].Token.Symbol != "USDC" {
		t.Errorf("second coin symbol = %q, want USDC", coins[1].Token.Symbol)
	}
	if len(coinList("")) != 0 {
		t.Error("empty list should parse to no coins")
	}
	if len(coinList("uosmo")) != 0 {
		t.Error("coin without amount should be skipped")
	}
}
