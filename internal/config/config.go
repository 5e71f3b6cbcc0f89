// Package config loads, validates and persists the rebalancer
// configuration file and resolves chain endpoints from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"cl-rebalancer/internal/domain"
)

// Environment names accepted in the config file and REBALANCER_ENV.
const (
	EnvMainnet = "mainnet"
	EnvTestnet = "testnet"
)

// Environment variables recognised as overrides. Endpoint overrides win
// over the built-in defaults for the selected environment.
const (
	EnvVarEnvironment = "REBALANCER_ENV"
	EnvVarOsmosisLCD  = "OSMOSIS_LCD_URL"
	EnvVarOsmosisWS   = "OSMOSIS_WS_URL"
	EnvVarSolanaRPC   = "SOLANA_RPC_URL"
	EnvVarBridgeAPI   = "BRIDGE_API_URL"
	EnvVarSignerURL   = "SIGNER_GATEWAY_URL"
)

// Error reports an invalid or unloadable configuration. It is returned
// from Load and never from the decision path; bad values fail up front.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Endpoints holds the resolved service URLs for one environment.
type Endpoints struct {
	OsmosisLCD string
	OsmosisWS  string
	SolanaRPC  string
	BridgeAPI  string

	// SignerGateway signs and broadcasts pool-chain transactions.
	// It runs alongside the rebalancer and holds no default remote.
	SignerGateway string
}

var defaultEndpoints = map[string]Endpoints{
	EnvMainnet: {
		OsmosisLCD: "https://lcd.osmosis.zone",
		OsmosisWS:  "wss://rpc.osmosis.zone/websocket",
		SolanaRPC:  "https://api.mainnet-beta.solana.com",
		BridgeAPI:  "https://api.wormholescan.io",

		SignerGateway: "http://127.0.0.1:8787",
	},
	EnvTestnet: {
		OsmosisLCD: "https://lcd.testnet.osmosis.zone",
		OsmosisWS:  "wss://rpc.testnet.osmosis.zone/websocket",
		SolanaRPC:  "https://api.devnet.solana.com",
		BridgeAPI:  "https://api.testnet.wormholescan.io",

		SignerGateway: "http://127.0.0.1:8787",
	},
}

// Config is the on-disk configuration plus the resolved endpoints.
// Endpoints are derived at load time and never written back.
type Config struct {
	Environment               string                `json:"environment"`
	RebalanceThresholdPercent decimal.Decimal       `json:"rebalanceThresholdPercent"`
	Pool                      domain.PoolConfig     `json:"pool"`
	Position                  domain.PositionConfig `json:"position"`

	Endpoints Endpoints `json:"-"`
}

// ChainIDs returns the pool and alt chain identifiers for the selected
// environment.
func (c *Config) ChainIDs() (pool, alt string) {
	if c.Environment == EnvTestnet {
		return domain.ChainOsmosisTestnet, domain.ChainSolanaTestnet
	}
	return domain.ChainOsmosis, domain.ChainSolana
}

// Store reads and writes a single configuration file. The file is the
// source of truth for the open position id and must only be mutated by
// the caller holding the workflow lock.
type Store struct {
	path string
	cfg  *Config
}

// NewStore opens the configuration file at path, applies environment
// overrides and validates the result.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the currently loaded configuration.
func (s *Store) Config() *Config {
	return s.cfg
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", s.path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", s.path, err)
	}

	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvVarEnvironment); v != "" {
		cfg.Environment = v
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvMainnet
	}
	cfg.Endpoints = defaultEndpoints[cfg.Environment]
	if v := os.Getenv(EnvVarOsmosisLCD); v != "" {
		cfg.Endpoints.OsmosisLCD = v
	}
	if v := os.Getenv(EnvVarOsmosisWS); v != "" {
		cfg.Endpoints.OsmosisWS = v
	}
	if v := os.Getenv(EnvVarSolanaRPC); v != "" {
		cfg.Endpoints.SolanaRPC = v
	}
	if v := os.Getenv(EnvVarBridgeAPI); v != "" {
		cfg.Endpoints.BridgeAPI = v
	}
	if v := os.Getenv(EnvVarSignerURL); v != "" {
		cfg.Endpoints.SignerGateway = v
	}
}

func validate(cfg *Config) error {
	if cfg.Environment != EnvMainnet && cfg.Environment != EnvTestnet {
		return &Error{Field: "environment", Msg: fmt.Sprintf("unknown environment %q", cfg.Environment)}
	}
	if !cfg.RebalanceThresholdPercent.IsPositive() {
		return &Error{Field: "rebalanceThresholdPercent", Msg: "must be > 0"}
	}
	if cfg.Pool.ID == 0 {
		return &Error{Field: "pool.id", Msg: "required"}
	}
	if cfg.Pool.Token0 == "" {
		return &Error{Field: "pool.token0", Msg: "required"}
	}
	if cfg.Pool.Token1 == "" {
		return &Error{Field: "pool.token1", Msg: "required"}
	}
	if cfg.Pool.Token0 == cfg.Pool.Token1 {
		return &Error{Field: "pool.token1", Msg: "must differ from token0"}
	}
	if cfg.Pool.TickSpacing <= 0 {
		return &Error{Field: "pool.tickSpacing", Msg: "must be > 0"}
	}
	if cfg.Pool.SpreadFactor.IsNegative() {
		return &Error{Field: "pool.spreadFactor", Msg: "must be >= 0"}
	}
	if !cfg.Position.BandPercentage.IsPositive() {
		return &Error{Field: "position.bandPercentage", Msg: "must be > 0"}
	}
	return nil
}

// UpdatePosition records a new open position and persists the file.
func (s *Store) UpdatePosition(id string, band decimal.Decimal) error {
	if id == "" {
		return &Error{Field: "position.id", Msg: "cannot set an empty position id"}
	}
	prev := s.cfg.Position
	s.cfg.Position = domain.PositionConfig{ID: id, BandPercentage: band}
	if err := s.persist(); err != nil {
		s.cfg.Position = prev
		return err
	}
	return nil
}

// ClearPosition removes the open position id and persists the file.
// The band percentage is kept so the next create reuses it.
func (s *Store) ClearPosition() error {
	prev := s.cfg.Position
	s.cfg.Position.ID = ""
	if err := s.persist(); err != nil {
		s.cfg.Position = prev
		return err
	}
	return nil
}

// persist writes the config to a temp file in the same directory and
// renames it over the original, so a crash never leaves a torn file.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("config: replace %s: %w", s.path, err)
	}
	return nil
}
