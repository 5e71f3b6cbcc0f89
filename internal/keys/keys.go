// Package keys derives the operator's per-chain addresses from an
// ed25519 seed and validates counterparty addresses before funds move.
package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// EnvVarSeed names the environment variable holding the hex-encoded
// 32-byte ed25519 seed. The seed never appears in the config file.
const EnvVarSeed = "REBALANCER_KEY_SEED"

// EnvVarOsmosisAddress names the environment variable holding the
// pool-chain account the signer gateway controls. The gateway keeps the
// cosmos key; the rebalancer only needs the bech32 address.
const EnvVarOsmosisAddress = "OSMOSIS_ADDRESS"

// Keyring holds the operator key material for both chains.
type Keyring struct {
	priv ed25519.PrivateKey
}

// FromSeedHex builds a Keyring from a hex-encoded 32-byte seed.
func FromSeedHex(seedHex string) (*Keyring, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("keys: decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keys: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keyring{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// FromEnv builds a Keyring from EnvVarSeed.
func FromEnv() (*Keyring, error) {
	seedHex := os.Getenv(EnvVarSeed)
	if seedHex == "" {
		return nil, fmt.Errorf("keys: %s is not set", EnvVarSeed)
	}
	return FromSeedHex(seedHex)
}

// SolanaAddress returns the base58-encoded ed25519 public key.
func (k *Keyring) SolanaAddress() string {
	pub := k.priv.Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

// Sign signs msg with the operator key.
func (k *Keyring) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// OsmosisAddressFromEnv reads and validates the pool-chain sender
// address from EnvVarOsmosisAddress.
func OsmosisAddressFromEnv() (string, error) {
	addr := strings.TrimSpace(os.Getenv(EnvVarOsmosisAddress))
	if addr == "" {
		return "", fmt.Errorf("keys: %s is not set", EnvVarOsmosisAddress)
	}
	if !ValidBech32Address(addr, "osmo") {
		return "", fmt.Errorf("keys: %s is not a valid osmo address", addr)
	}
	return addr, nil
}

// ValidSolanaAddress reports whether addr is a base58-encoded 32-byte
// point on the ed25519 curve. Program-derived addresses are off-curve
// and rejected here; funds sent to one cannot be signed for.
func ValidSolanaAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// ValidBech32Address reports whether addr looks like a bech32 account
// address for the given prefix. Full checksum verification is left to
// the chain; this catches swapped or truncated operator input.
func ValidBech32Address(addr, prefix string) bool {
	if !strings.HasPrefix(addr, prefix+"1") {
		return false
	}
	data := addr[len(prefix)+1:]
	if len(data) < 6 {
		return false
	}
	for _, c := range data {
		// bech32 charset excludes 1, b, i, o.
		if !strings.ContainsRune("qpzry9x8gf2tvdw0s3jn54khce6mua7l", c) {
			return false
		}
	}
	return true
}
