package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"cl-rebalancer/internal/config"
	"cl-rebalancer/internal/keys"
	"cl-rebalancer/internal/storage/memory"
)

const testConfig = `{
  "environment": "mainnet",
  "rebalanceThresholdPercent": "5",
  "pool": {
    "id": 1263,
    "token0": "uosmo",
    "token1": "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4",
    "tickSpacing": 100,
    "spreadFactor": "0.002"
  },
  "position": {
    "id": "",
    "bandPercentage": "10"
  }
}`

func testStore(t *testing.T) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rebalancer.json")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := config.NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuildManagerReadOnlyNeedsNoKeys(t *testing.T) {
	t.Setenv(keys.EnvVarSeed, "")
	t.Setenv(keys.EnvVarOsmosisAddress, "")

	mgr, err := buildManager(testStore(t), memory.NewTransactionStore(), zap.NewNop(), true)
	if err != nil {
		t.Fatalf("read-only buildManager: %v", err)
	}
	if mgr == nil {
		t.Fatal("expected a manager")
	}
}

func TestBuildManagerRequiresKeysForWrites(t *testing.T) {
	t.Setenv(keys.EnvVarSeed, "")
	t.Setenv(keys.EnvVarOsmosisAddress, "")

	if _, err := buildManager(testStore(t), memory.NewTransactionStore(), zap.NewNop(), false); err == nil {
		t.Fatal("expected an error without key material")
	}
}

func TestDateRangeParsing(t *testing.T) {
	rf := &reportFlags{start: "01-06-2025", end: "30-06-2025"}
	dr, err := rf.dateRange()
	if err != nil {
		t.Fatal(err)
	}
	if dr.Start != time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("start: %v", dr.Start)
	}
	// End is inclusive of the whole named day.
	if !dr.Contains(time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("end day not inclusive: %v", dr.End)
	}
	if dr.Contains(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("range extends past end day")
	}

	rf = &reportFlags{start: "2025-06-01"}
	if _, err := rf.dateRange(); err == nil {
		t.Error("expected an error for a non DD-MM-YYYY date")
	}

	rf = &reportFlags{start: "30-06-2025", end: "01-06-2025"}
	if _, err := rf.dateRange(); err == nil {
		t.Error("expected an error when end precedes start")
	}
}
