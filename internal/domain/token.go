package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Chain identifiers for the two ledgers the rebalancer touches.
const (
	ChainOsmosis        = "osmosis-1"
	ChainOsmosisTestnet = "osmo-test-5"
	ChainSolana         = "solana-mainnet"
	ChainSolanaTestnet  = "solana-devnet"
)

// Token describes a transferable asset on one chain.
type Token struct {
	ChainID  string // chain the denom lives on
	Denom    string // bank denom, IBC hash or mint address
	Symbol   string // display name
	Decimals int32  // smallest-unit precision
}

// TokenAmount is an immutable amount in a token's smallest unit.
// All arithmetic happens on the raw integer; Display is derived
// only for rendering so precision is never lost.
type TokenAmount struct {
	Token Token
	Raw   *big.Int
}

// NewTokenAmount builds a TokenAmount from a raw smallest-unit value.
// The raw value is copied so callers cannot mutate the amount afterwards.
func NewTokenAmount(t Token, raw *big.Int) TokenAmount {
	v := new(big.Int)
	if raw != nil {
		v.Set(raw)
	}
	return TokenAmount{Token: t, Raw: v}
}

// NewTokenAmountFromString parses a raw smallest-unit decimal string.
func NewTokenAmountFromString(t Token, raw string) (TokenAmount, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return TokenAmount{}, fmt.Errorf("parse token amount %q for %s", raw, t.Denom)
	}
	return TokenAmount{Token: t, Raw: v}, nil
}

// Display converts the raw amount into display units (raw / 10^decimals).
func (a TokenAmount) Display() decimal.Decimal {
	if a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -a.Token.Decimals)
}

// IsZero reports whether the amount is zero or unset.
func (a TokenAmount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

func (a TokenAmount) String() string {
	return fmt.Sprintf("%s %s", a.Display().String(), a.Token.Symbol)
}

// knownTokens is the built-in token metadata registry. The registry is an
// I/O-free adapter; unknown denoms fall back to a zero-decimal placeholder
// so ledger records never drop an asset on the floor.
var knownTokens = map[string]Token{
	"uosmo": {ChainID: ChainOsmosis, Denom: "uosmo", Symbol: "OSMO", Decimals: 6},
	"ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4": {
		ChainID:  ChainOsmosis,
		Denom:    "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4",
		Symbol:   "USDC",
		Decimals: 6,
	},
	"So11111111111111111111111111111111111111112": {
		ChainID:  ChainSolana,
		Denom:    "So11111111111111111111111111111111111111112",
		Symbol:   "SOL",
		Decimals: 9,
	},
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {
		ChainID:  ChainSolana,
		Denom:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Symbol:   "USDC",
		Decimals: 6,
	},
}

// LookupToken resolves token metadata for a denom. The second return value
// reports whether the denom was present in the registry.
func LookupToken(denom string) (Token, bool) {
	t, ok := knownTokens[denom]
	if ok {
		return t, true
	}
	return Token{Denom: denom, Symbol: denom, Decimals: 0}, false
}
