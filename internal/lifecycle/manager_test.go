package lifecycle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cl-rebalancer/internal/bridge"
	"cl-rebalancer/internal/config"
	"cl-rebalancer/internal/decision"
	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/monitor"
	"cl-rebalancer/internal/storage"
	"cl-rebalancer/internal/storage/memory"
)

const (
	usdcDenom = "ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4"
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	sender    = "osmo1qy352eufqy352eufqy352eufqy35qqqz4zsjs"
	altOwner  = "7nYB6dEKQXVbjMZDTnGbcxqxmmyEfraorSBgGGSHHy4w"
)

type fakeConfigStore struct {
	cfg     *config.Config
	cleared int
	updated []string
}

func (f *fakeConfigStore) Config() *config.Config { return f.cfg }

func (f *fakeConfigStore) UpdatePosition(id string, band decimal.Decimal) error {
	f.cfg.Position = domain.PositionConfig{ID: id, BandPercentage: band}
	f.updated = append(f.updated, id)
	return nil
}

func (f *fakeConfigStore) ClearPosition() error {
	f.cfg.Position.ID = ""
	f.cleared++
	return nil
}

type fakeMonitor struct {
	snap  *monitor.Snapshot
	funds map[string]*big.Int
}

func (f *fakeMonitor) Snapshot(ctx context.Context, poolID uint64, positionID string) (*monitor.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeMonitor) Funds(ctx context.Context, address string, denoms ...string) (map[string]domain.TokenAmount, error) {
	out := make(map[string]domain.TokenAmount, len(denoms))
	for _, d := range denoms {
		token, _ := domain.LookupToken(d)
		out[d] = domain.NewTokenAmount(token, f.funds[d])
	}
	return out, nil
}

type fakeTrader struct {
	withdrawErr error
	collectErr  error
	createErr   error
	created     []domain.CreateRequest
	withdrawn   []string
}

func (f *fakeTrader) Sender() string { return sender }

func (f *fakeTrader) WithdrawPosition(ctx context.Context, positionID string) (*domain.WithdrawReceipt, error) {
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	f.withdrawn = append(f.withdrawn, positionID)
	osmo, _ := domain.LookupToken("uosmo")
	return &domain.WithdrawReceipt{
		TxHash:  "WITHDRAWHASH",
		Amounts: []domain.TokenAmount{domain.NewTokenAmount(osmo, big.NewInt(60_000_000))},
		GasFee:  domain.NewTokenAmount(osmo, big.NewInt(4000)),
	}, nil
}

func (f *fakeTrader) CollectRewards(ctx context.Context, positionID string) (*domain.RewardsReceipt, error) {
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	osmo, _ := domain.LookupToken("uosmo")
	return &domain.RewardsReceipt{
		TxHash:  "COLLECTHASH",
		Rewards: []domain.TokenAmount{domain.NewTokenAmount(osmo, big.NewInt(150_000))},
		GasFee:  domain.NewTokenAmount(osmo, big.NewInt(4000)),
	}, nil
}

func (f *fakeTrader) CreatePosition(ctx context.Context, req domain.CreateRequest) (*domain.CreateReceipt, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	osmo, _ := domain.LookupToken("uosmo")
	return &domain.CreateReceipt{
		TxHash:     "CREATEHASH",
		PositionID: "8812345",
		LowerTick:  req.LowerTick,
		UpperTick:  req.UpperTick,
		Liquidity:  decimal.NewFromInt(1000),
		Amounts:    []domain.TokenAmount{req.Amount0, req.Amount1},
		GasFee:     domain.NewTokenAmount(osmo, big.NewInt(4000)),
	}, nil
}

type fakeBridger struct {
	err       error
	transfers int
	onArrival func()
}

func (f *fakeBridger) Transfer(ctx context.Context, req bridge.TransferRequest) (*domain.BridgeTransfer, error) {
	f.transfers++
	transfer := &domain.BridgeTransfer{
		TransferID:  "tr-01",
		Source:      req.Amount,
		DestChainID: req.DestChainID,
		DestAddress: req.DestAddress,
		TxHash:      "BRIDGEHASH",
		Status:      domain.BridgeStatusCompleted,
	}
	if f.err != nil {
		transfer.Status = domain.BridgeStatusPending
		return transfer, f.err
	}
	if f.onArrival != nil {
		f.onArrival()
	}
	return transfer, nil
}

type fakeAlt struct {
	balance *big.Int
}

func (f *fakeAlt) GetTokenBalance(ctx context.Context, owner, mint string) (domain.TokenAmount, error) {
	token, _ := domain.LookupToken(mint)
	return domain.NewTokenAmount(token, f.balance), nil
}

func testConfig(positionID string) *config.Config {
	return &config.Config{
		Environment:               config.EnvMainnet,
		RebalanceThresholdPercent: decimal.NewFromInt(5),
		Pool: domain.PoolConfig{
			ID:          1263,
			Token0:      "uosmo",
			Token1:      usdcDenom,
			TickSpacing: 100,
		},
		Position: domain.PositionConfig{
			ID:             positionID,
			BandPercentage: decimal.NewFromInt(10),
		},
	}
}

type fixture struct {
	cfg     *fakeConfigStore
	mon     *fakeMonitor
	trader  *fakeTrader
	bridger *fakeBridger
	alt     *fakeAlt
	ledger  storage.TransactionStore
	mgr     *Manager
}

func newFixture(t *testing.T, cfg *config.Config, snap *monitor.Snapshot) *fixture {
	t.Helper()
	f := &fixture{
		cfg: &fakeConfigStore{cfg: cfg},
		mon: &fakeMonitor{
			snap: snap,
			funds: map[string]*big.Int{
				"uosmo":   big.NewInt(61_000_000),
				usdcDenom: big.NewInt(30_000_000),
			},
		},
		trader:  &fakeTrader{},
		bridger: &fakeBridger{},
		alt:     &fakeAlt{balance: big.NewInt(0)},
		ledger:  memory.NewTransactionStore(),
	}
	f.mgr = NewManager(f.cfg, f.mon, decision.NewEngine(), f.trader, f.bridger, f.alt, f.ledger, zap.NewNop(), Options{
		AltAddress:  altOwner,
		BridgeMints: map[string]string{usdcDenom: usdcMint},
	})
	return f
}

func records(t *testing.T, s storage.TransactionStore) []*domain.TransactionRecord {
	t.Helper()
	recs, err := s.QueryRecent(context.Background(), storage.Query{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func inBandSnapshot() *monitor.Snapshot {
	return &monitor.Snapshot{
		Pool: &domain.PoolInfo{PoolID: 1263, SpotPrice: decimal.NewFromInt(1)},
		Position: &domain.PositionInfo{
			PositionID: "4411",
			LowerTick:  decision.LowerTickFor(decimal.RequireFromString("0.9"), 100),
			UpperTick:  decision.UpperTickFor(decimal.RequireFromString("1.1"), 100),
		},
	}
}

func TestRunNoActionInBand(t *testing.T) {
	f := newFixture(t, testConfig("4411"), inBandSnapshot())

	result, err := f.mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Action != domain.ActionNone {
		t.Errorf("action = %s, want none", result.Action)
	}
	if len(records(t, f.ledger)) != 0 {
		t.Error("no-action run must write no ledger records")
	}
	if len(f.trader.withdrawn)+len(f.trader.created) != 0 {
		t.Error("no-action run must issue no transactions")
	}
}

func TestRunCreatesWhenNoPosition(t *testing.T) {
	snap := &monitor.Snapshot{
		Pool: &domain.PoolInfo{PoolID: 1263, SpotPrice: decimal.NewFromInt(2)},
	}
	f := newFixture(t, testConfig(""), snap)

	result, err := f.mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Action != domain.ActionCreated {
		t.Errorf("action = %s, want created", result.Action)
	}
	if result.PositionID != "8812345" {
		t.Errorf("result position id = %q, want realized id", result.PositionID)
	}
	if f.cfg.cfg.Position.ID != "8812345" {
		t.Errorf("config position id = %q, want persisted realized id", f.cfg.cfg.Position.ID)
	}

	recs := records(t, f.ledger)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 create record", len(recs))
	}
	if recs[0].Type != domain.TxTypePositionCreate || !recs[0].Successful {
		t.Errorf("record = %s successful=%v", recs[0].Type, recs[0].Successful)
	}

	// Gas reserve held back from the native denom.
	if got := f.trader.created[0].Amount0.Raw.String(); got != "60000000" {
		t.Errorf("amount0 = %s, want 60000000 after fee reserve", got)
	}
}

func TestRunRebalancesOutOfBand(t *testing.T) {
	snap := inBandSnapshot()
	snap.Pool.SpotPrice = decimal.RequireFromString("1.20")
	f := newFixture(t, testConfig("4411"), snap)

	result, err := f.mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Action != domain.ActionRebalanced {
		t.Errorf("action = %s, want rebalanced", result.Action)
	}
	if f.trader.withdrawn[0] != "4411" {
		t.Errorf("withdrew %q, want 4411", f.trader.withdrawn[0])
	}

	recs := records(t, f.ledger)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want collect + withdraw + create", len(recs))
	}
	types := map[domain.TxType]bool{}
	for _, r := range recs {
		types[r.Type] = true
		if !r.Successful {
			t.Errorf("record %s marked failed", r.Type)
		}
	}
	for _, want := range []domain.TxType{
		domain.TxTypeCollectRewards,
		domain.TxTypePositionWithdraw,
		domain.TxTypePositionCreate,
	} {
		if !types[want] {
			t.Errorf("missing %s record", want)
		}
	}

	if f.cfg.cleared != 1 {
		t.Errorf("position cleared %d times, want 1", f.cfg.cleared)
	}
	if f.cfg.cfg.Position.ID != "8812345" {
		t.Errorf("config ends with id %q, want new position", f.cfg.cfg.Position.ID)
	}
}

func TestRunBridgesShortfall(t *testing.T) {
	snap := &monitor.Snapshot{
		Pool: &domain.PoolInfo{PoolID: 1263, SpotPrice: decimal.NewFromInt(2)},
	}
	f := newFixture(t, testConfig(""), snap)
	f.mon.funds[usdcDenom] = big.NewInt(0)
	f.alt.balance = big.NewInt(25_000_000)
	f.bridger.onArrival = func() {
		f.mon.funds[usdcDenom] = big.NewInt(25_000_000)
	}

	result, err := f.mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Action != domain.ActionCreated {
		t.Errorf("action = %s, want created", result.Action)
	}
	if f.bridger.transfers != 1 {
		t.Errorf("bridged %d times, want 1", f.bridger.transfers)
	}

	recs := records(t, f.ledger)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want bridge + create", len(recs))
	}
	var bridgeRec *domain.TransactionRecord
	for _, r := range recs {
		if r.Type == domain.TxTypeBridgeTransfer {
			bridgeRec = r
		}
	}
	if bridgeRec == nil {
		t.Fatal("bridge transfer record missing")
	}
	if bridgeRec.DestinationAddress != sender {
		t.Errorf("destination = %q, want pool-chain sender", bridgeRec.DestinationAddress)
	}
	if !bridgeRec.Successful {
		t.Error("completed bridge transfer must be recorded successful")
	}

	if got := f.trader.created[0].Amount1.Raw.String(); got != "25000000" {
		t.Errorf("amount1 = %s, want bridged 25000000", got)
	}
}

func TestRunBridgeTimeoutHaltsPreBridge(t *testing.T) {
	snap := inBandSnapshot()
	snap.Pool.SpotPrice = decimal.RequireFromString("1.20")
	f := newFixture(t, testConfig("4411"), snap)
	f.mon.funds[usdcDenom] = big.NewInt(0)
	f.alt.balance = big.NewInt(25_000_000)
	f.bridger.err = bridge.ErrTimeout

	_, err := f.mgr.Run(context.Background())
	if !errors.Is(err, bridge.ErrTimeout) {
		t.Fatalf("expected bridge timeout, got %v", err)
	}

	// Pre-bridge state: withdrawn, id cleared, no create attempted.
	if f.cfg.cfg.Position.Exists() {
		t.Errorf("config id = %q, want cleared pre-bridge state", f.cfg.cfg.Position.ID)
	}
	if len(f.trader.created) != 0 {
		t.Error("create must not run after a bridge timeout")
	}
	if f.bridger.transfers != 1 {
		t.Errorf("bridge submitted %d times, must never resubmit", f.bridger.transfers)
	}

	recs := records(t, f.ledger)
	var bridgeRec *domain.TransactionRecord
	for _, r := range recs {
		if r.Type == domain.TxTypeBridgeTransfer {
			bridgeRec = r
		}
	}
	if bridgeRec == nil {
		t.Fatal("timed-out transfer must still be recorded")
	}
	if bridgeRec.Successful {
		t.Error("timed-out transfer must not be recorded successful")
	}
}

func TestRunBroadcastFailureRecordsFailedRow(t *testing.T) {
	snap := inBandSnapshot()
	snap.Pool.SpotPrice = decimal.RequireFromString("1.20")
	f := newFixture(t, testConfig("4411"), snap)
	f.trader.withdrawErr = &domain.BroadcastError{
		Op:      "withdraw-position",
		ChainID: domain.ChainOsmosis,
		TxHash:  "FAILEDHASH",
		Err:     errors.New("out of gas"),
	}

	_, err := f.mgr.Run(context.Background())
	var bErr *domain.BroadcastError
	if !errors.As(err, &bErr) {
		t.Fatalf("expected BroadcastError, got %v", err)
	}

	// Config untouched: the position may be partially withdrawn and
	// operators re-run against fresh chain state.
	if f.cfg.cfg.Position.ID != "4411" {
		t.Errorf("config id = %q, must be unchanged on withdraw failure", f.cfg.cfg.Position.ID)
	}

	recs := records(t, f.ledger)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want collect + failed withdraw", len(recs))
	}
	if recs[0].Type != domain.TxTypePositionWithdraw || recs[0].Successful {
		t.Errorf("newest record = %s successful=%v, want failed withdraw", recs[0].Type, recs[0].Successful)
	}
	if recs[0].TxHash != "FAILEDHASH" {
		t.Errorf("failed record hash = %q", recs[0].TxHash)
	}
}

func TestRunSubmissionFailureWritesNoRecord(t *testing.T) {
	snap := inBandSnapshot()
	snap.Pool.SpotPrice = decimal.RequireFromString("1.20")
	f := newFixture(t, testConfig("4411"), snap)
	f.trader.collectErr = &domain.SubmissionError{
		Op:      "collect-rewards",
		ChainID: domain.ChainOsmosis,
		Err:     errors.New("gateway unreachable"),
	}

	_, err := f.mgr.Run(context.Background())
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if len(records(t, f.ledger)) != 0 {
		t.Error("nothing was broadcast, so nothing may be recorded")
	}
}

func TestRunWorkflowBusy(t *testing.T) {
	f := newFixture(t, testConfig("4411"), inBandSnapshot())
	f.mgr.mu.Lock()
	defer f.mgr.mu.Unlock()

	if _, err := f.mgr.Run(context.Background()); !errors.Is(err, ErrWorkflowBusy) {
		t.Fatalf("expected ErrWorkflowBusy, got %v", err)
	}
}

func TestWithdrawCommand(t *testing.T) {
	f := newFixture(t, testConfig("4411"), inBandSnapshot())

	result, err := f.mgr.Withdraw(context.Background())
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if result.PositionID != "" {
		t.Errorf("result position id = %q, want empty", result.PositionID)
	}
	if f.cfg.cfg.Position.Exists() {
		t.Error("config id must be cleared after withdraw")
	}
	if !f.cfg.cfg.Position.BandPercentage.Equal(decimal.NewFromInt(10)) {
		t.Error("band must be preserved for the next create")
	}

	recs := records(t, f.ledger)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want collect + withdraw", len(recs))
	}
	if len(f.trader.created) != 0 {
		t.Error("withdraw command must not create")
	}
}

func TestWithdrawCommandStaleConfig(t *testing.T) {
	snap := &monitor.Snapshot{
		Pool: &domain.PoolInfo{PoolID: 1263, SpotPrice: decimal.NewFromInt(1)},
	}
	f := newFixture(t, testConfig("4411"), snap)

	result, err := f.mgr.Withdraw(context.Background())
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if result.Message != "no open position" {
		t.Errorf("message = %q", result.Message)
	}
	if f.cfg.cleared != 1 {
		t.Error("stale config id must be cleared")
	}
	if len(records(t, f.ledger)) != 0 {
		t.Error("nothing on chain, nothing to record")
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, testConfig("4411"), inBandSnapshot())

	st, err := f.mgr.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.PositionID != "4411" || st.Position == nil {
		t.Fatalf("status = %+v", st)
	}
	if !st.InRange {
		t.Error("price 1.00 in [~0.9, ~1.1] should be in range")
	}
}
