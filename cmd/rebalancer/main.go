// Package main provides the rebalancer CLI:
// - run: one rebalance check/action cycle (or --watch daemon mode)
// - withdraw: force-close the open position
// - status: read-only snapshot of pool and position state
// - report/transactions/profit/volume/stats: ledger queries
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cl-rebalancer/internal/bridge"
	"cl-rebalancer/internal/config"
	"cl-rebalancer/internal/decision"
	"cl-rebalancer/internal/domain"
	"cl-rebalancer/internal/keys"
	"cl-rebalancer/internal/lifecycle"
	"cl-rebalancer/internal/monitor"
	"cl-rebalancer/internal/observability"
	"cl-rebalancer/internal/osmosis"
	"cl-rebalancer/internal/reporting"
	"cl-rebalancer/internal/shutdown"
	"cl-rebalancer/internal/solana"
	"cl-rebalancer/internal/storage"
	chstore "cl-rebalancer/internal/storage/clickhouse"
	"cl-rebalancer/internal/storage/memory"
	"cl-rebalancer/internal/storage/migrations"
	pgstore "cl-rebalancer/internal/storage/postgres"
)

// dateLayout is the DD-MM-YYYY format accepted by --start/--end.
const dateLayout = "02-01-2006"

// defaultBridgeMints maps pool-chain denoms to their alt-chain mints for
// the assets the bridge carries.
var defaultBridgeMints = map[string]string{
	"ibc/498A0751C798A0D9A389AA3691123DADA57DAA4FE165D5C75894505B876BA6E4": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
}

func main() {
	loadEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = cmdRun(args)
	case "withdraw":
		err = cmdWithdraw(args)
	case "status":
		err = cmdStatus(args)
	case "transactions":
		err = cmdTransactions(args)
	case "profit":
		err = cmdProfit(args)
	case "volume":
		err = cmdVolume(args)
	case "stats":
		err = cmdStats(args)
	case "report":
		err = cmdReport(args)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: rebalancer <command> [flags]

Commands:
  run           Execute one rebalance check/action cycle (--watch for daemon mode)
  withdraw      Force-close the open position and clear it from the config
  status        Print a read-only snapshot of pool and position state
  transactions  List ledger records (--type to filter)
  profit        Per-token profitability over the ledger
  volume        Notional volume per transaction type
  stats         Ledger-wide summary
  report        Write all ledger reports to an output directory

Run 'rebalancer <command> -h' for command flags.`)
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath    string
	environment   string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", "config.json", "Path to the rebalancer config file")
	fs.StringVar(&f.environment, "environment", "", "Override environment (mainnet or testnet)")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the transaction ledger")
	fs.StringVar(&f.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the transaction ledger")
	fs.BoolVar(&f.useMemory, "memory", false, "Use an in-memory ledger (records are lost on exit)")
	return f
}

// loadConfig applies the --environment override and opens the config store.
func loadConfig(f *commonFlags) (*config.Store, error) {
	if f.environment != "" {
		os.Setenv(config.EnvVarEnvironment, f.environment)
	}
	return config.NewStore(f.configPath)
}

// openLedger selects the ledger backend from flags. Connection release
// functions are registered with the coordinator.
func openLedger(ctx context.Context, f *commonFlags, coord *shutdown.Coordinator) (storage.TransactionStore, error) {
	switch {
	case f.useMemory:
		return memory.NewTransactionStore(), nil
	case f.postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, f.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		coord.Register("postgres", func() error { pool.Close(); return nil })
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, err
		}
		return pgstore.NewTransactionStore(pool), nil
	case f.clickhouseDSN != "":
		conn, err := chstore.NewConn(ctx, f.clickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		coord.Register("clickhouse", conn.Close)
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return nil, err
		}
		return chstore.NewTransactionStore(ctx, conn)
	default:
		return nil, errors.New("no ledger backend: set --postgres-dsn, --clickhouse-dsn or --memory")
	}
}

// buildManager wires the chain clients, bridge and lifecycle manager.
// Read-only commands skip the operator key material: they never sign,
// so requiring a seed would block snapshots on a bare environment.
func buildManager(store *config.Store, ledger storage.TransactionStore, logger *zap.Logger, readOnly bool) (*lifecycle.Manager, error) {
	cfg := store.Config()
	poolChain, _ := cfg.ChainIDs()

	var altAddress, sender string
	if !readOnly {
		keyring, err := keys.FromEnv()
		if err != nil {
			return nil, err
		}
		altAddress = keyring.SolanaAddress()
		sender, err = keys.OsmosisAddressFromEnv()
		if err != nil {
			return nil, err
		}
	}

	lcd := osmosis.NewClient(cfg.Endpoints.OsmosisLCD)
	trader := osmosis.NewTxClient(cfg.Endpoints.SignerGateway, poolChain, sender, lcd)
	alt := solana.NewHTTPClient(cfg.Endpoints.SolanaRPC)
	bridger := bridge.NewCoordinator(bridge.NewHTTPClient(cfg.Endpoints.BridgeAPI), logger)
	mon := monitor.New(lcd, lcd, logger)

	return lifecycle.NewManager(
		store, mon, decision.NewEngine(), trader, bridger, alt, ledger, logger,
		lifecycle.Options{
			AltAddress:  altAddress,
			BridgeMints: defaultBridgeMints,
		},
	), nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := registerCommon(fs)
	watch := fs.Bool("watch", false, "Keep running and check on a schedule instead of once")
	interval := fs.Duration("interval", 15*time.Minute, "Check interval in watch mode")
	blockEvery := fs.Int64("block-every", 0, "Also check every N pool-chain blocks in watch mode (0 disables)")
	metricsAddr := fs.String("metrics-addr", ":9090", "Prometheus metrics HTTP address in watch mode")
	dryRun := fs.Bool("dry-run", false, "Evaluate the decision and print it without acting")
	fs.Parse(args)

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord := shutdown.NewCoordinator(logger)
	defer coord.Close()

	store, err := loadConfig(common)
	if err != nil {
		return err
	}
	if *dryRun {
		// A dry run never writes, so it needs no database.
		common.useMemory = true
	}
	ledger, err := openLedger(ctx, common, coord)
	if err != nil {
		return err
	}
	mgr, err := buildManager(store, ledger, logger, *dryRun)
	if err != nil {
		return err
	}

	if *dryRun {
		return dryRunOnce(ctx, store, mgr)
	}

	if !*watch {
		result, err := mgr.Run(ctx)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	return watchLoop(ctx, mgr, store, logger, coord, *interval, *blockEvery, *metricsAddr)
}

// dryRunOnce evaluates the decision against live state and prints it
// without touching the chain or the config.
func dryRunOnce(ctx context.Context, store *config.Store, mgr *lifecycle.Manager) error {
	cfg := store.Config()
	st, err := mgr.Status(ctx)
	if err != nil {
		return err
	}

	in := decision.Input{
		Price:          st.SpotPrice,
		PositionExists: st.Position != nil,
		BandPct:        cfg.Position.BandPercentage,
		ThresholdPct:   cfg.RebalanceThresholdPercent,
		TickSpacing:    cfg.Pool.TickSpacing,
	}
	if st.Range != nil {
		in.Range = *st.Range
	}
	d := decision.NewEngine().Decide(in)

	fmt.Printf("Dry run (pool %d, price %s)\n", st.PoolID, st.SpotPrice)
	fmt.Printf("  action: %s\n", d.Action)
	fmt.Printf("  reason: %s\n", d.Reason)
	if d.Action != decision.ActionNone {
		fmt.Printf("  target: [%s, %s] ticks [%d, %d]\n",
			d.TargetRange.Lower, d.TargetRange.Upper, d.LowerTick, d.UpperTick)
	}
	return nil
}

// watchLoop schedules periodic rebalance checks and serves metrics until
// the context is cancelled.
func watchLoop(ctx context.Context, mgr *lifecycle.Manager, store *config.Store, logger *zap.Logger, coord *shutdown.Coordinator, interval time.Duration, blockEvery int64, metricsAddr string) error {
	metrics := observability.NewMetrics("")

	check := func() {
		start := time.Now()
		result, err := mgr.Run(ctx)
		elapsed := time.Since(start).Seconds()

		switch {
		case errors.Is(err, lifecycle.ErrWorkflowBusy):
			metrics.WorkflowBusySkips.Inc()
			logger.Info("check skipped, workflow busy")
		case err != nil:
			action := "unknown"
			if result != nil {
				action = string(result.Action)
			}
			metrics.ObserveRun(action, "error", elapsed)
			logger.Error("rebalance check failed", zap.Error(err))
		default:
			metrics.ObserveRun(string(result.Action), "ok", elapsed)
			logger.Info("rebalance check done",
				zap.String("action", string(result.Action)),
				zap.String("positionID", result.PositionID),
				zap.Float64("seconds", elapsed))
		}

		if st, serr := mgr.Status(ctx); serr == nil {
			price, _ := st.SpotPrice.Float64()
			metrics.ObserveMarket(price, st.CurrentTick, st.InRange)
		}
	}

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := mgr.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	})
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	coord.Register("metrics server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Scheduled checks
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), check); err != nil {
		return fmt.Errorf("schedule checks: %w", err)
	}
	c.Start()
	coord.Register("scheduler", func() error { <-c.Stop().Done(); return nil })

	// Optional block-driven checks
	if blockEvery > 0 {
		watcher, err := osmosis.NewBlockWatcher(ctx, store.Config().Endpoints.OsmosisWS, nil)
		if err != nil {
			return fmt.Errorf("subscribe to new blocks: %w", err)
		}
		coord.Register("block watcher", watcher.Close)
		go func() {
			var lastChecked int64
			for block := range watcher.Blocks() {
				if lastChecked != 0 && block.Height-lastChecked < blockEvery {
					continue
				}
				lastChecked = block.Height
				check()
			}
		}()
	}

	logger.Info("watch mode started", zap.Duration("interval", interval))
	check()

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func cmdWithdraw(args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord := shutdown.NewCoordinator(logger)
	defer coord.Close()

	store, err := loadConfig(common)
	if err != nil {
		return err
	}
	ledger, err := openLedger(ctx, common, coord)
	if err != nil {
		return err
	}
	mgr, err := buildManager(store, ledger, logger, false)
	if err != nil {
		return err
	}

	result, err := mgr.Withdraw(ctx)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := registerCommon(fs)
	asJSON := fs.Bool("json", false, "Print the snapshot as JSON")
	fs.Parse(args)

	logger := zap.NewNop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	coord := shutdown.NewCoordinator(logger)
	defer coord.Close()

	store, err := loadConfig(common)
	if err != nil {
		return err
	}
	// Status never writes to the ledger; an in-memory store avoids
	// requiring a database connection for a read-only snapshot.
	common.useMemory = true
	ledger, err := openLedger(ctx, common, coord)
	if err != nil {
		return err
	}
	mgr, err := buildManager(store, ledger, logger, true)
	if err != nil {
		return err
	}

	st, err := mgr.Status(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("Environment: %s\n", st.Environment)
	fmt.Printf("Pool:        %d\n", st.PoolID)
	fmt.Printf("Spot price:  %s (tick %d)\n", st.SpotPrice, st.CurrentTick)
	switch {
	case st.PositionID == "":
		fmt.Println("Position:    none")
	case st.Position == nil:
		fmt.Printf("Position:    %s (configured but not found on chain)\n", st.PositionID)
	default:
		fmt.Printf("Position:    %s\n", st.PositionID)
		fmt.Printf("Range:       [%s, %s] ticks [%d, %d]\n",
			st.Range.Lower, st.Range.Upper, st.Position.LowerTick, st.Position.UpperTick)
		if st.InRange {
			fmt.Println("In range:    yes")
		} else {
			fmt.Println("In range:    NO")
		}
	}
	return nil
}

// reportFlags are shared by the ledger query commands.
type reportFlags struct {
	start   string
	end     string
	csv     bool
	outPath string
}

func registerReport(fs *flag.FlagSet) *reportFlags {
	f := &reportFlags{}
	fs.StringVar(&f.start, "start", "", "Start date (DD-MM-YYYY, inclusive)")
	fs.StringVar(&f.end, "end", "", "End date (DD-MM-YYYY, inclusive)")
	fs.BoolVar(&f.csv, "csv", false, "Render as CSV instead of text")
	fs.StringVar(&f.outPath, "out", "", "Write output to a file instead of stdout")
	return f
}

func (f *reportFlags) dateRange() (storage.DateRange, error) {
	var dr storage.DateRange
	if f.start != "" {
		t, err := time.Parse(dateLayout, f.start)
		if err != nil {
			return dr, fmt.Errorf("parse --start: expected DD-MM-YYYY, got %q", f.start)
		}
		dr.Start = t
	}
	if f.end != "" {
		t, err := time.Parse(dateLayout, f.end)
		if err != nil {
			return dr, fmt.Errorf("parse --end: expected DD-MM-YYYY, got %q", f.end)
		}
		// Inclusive of the whole end day.
		dr.End = t.Add(24*time.Hour - time.Second)
	}
	if !dr.Start.IsZero() && !dr.End.IsZero() && dr.End.Before(dr.Start) {
		return dr, errors.New("--end is before --start")
	}
	return dr, nil
}

// emit writes the rendered report to --out or stdout.
func emit(f *reportFlags, content string) error {
	if f.outPath == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(f.outPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.outPath, err)
	}
	fmt.Printf("Wrote %s\n", f.outPath)
	return nil
}

// openGenerator opens the ledger and wraps it in a report generator.
func openGenerator(ctx context.Context, common *commonFlags, coord *shutdown.Coordinator) (*reporting.Generator, error) {
	ledger, err := openLedger(ctx, common, coord)
	if err != nil {
		return nil, err
	}
	return reporting.NewGenerator(ledger), nil
}

func cmdTransactions(args []string) error {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	common := registerCommon(fs)
	rf := registerReport(fs)
	txType := fs.String("type", "", "Filter by transaction type (position-create, position-withdraw, bridge-transfer, rebalance-collect-rewards, token-swap)")
	address := fs.String("address", "", "Filter by destination address")
	limit := fs.Int("limit", 50, "Maximum rows (0 for all)")
	offset := fs.Int("offset", 0, "Rows to skip, newest first")
	fs.Parse(args)

	if *txType != "" && !domain.ValidTxType(domain.TxType(*txType)) {
		return fmt.Errorf("unknown transaction type %q", *txType)
	}
	dr, err := rf.dateRange()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	coord := shutdown.NewCoordinator(zap.NewNop())
	defer coord.Close()

	gen, err := openGenerator(ctx, common, coord)
	if err != nil {
		return err
	}

	report, err := gen.Transactions(ctx, domain.TxType(*txType), storage.Query{
		Address: *address,
		Limit:   *limit,
		Offset:  *offset,
		Range:   dr,
	})
	if err != nil {
		return err
	}

	if rf.csv {
		return emit(rf, reporting.RenderTransactionsCSV(report))
	}
	return emit(rf, reporting.RenderTransactionsText(report))
}

func cmdProfit(args []string) error {
	fs := flag.NewFlagSet("profit", flag.ExitOnError)
	common := registerCommon(fs)
	rf := registerReport(fs)
	fs.Parse(args)

	dr, err := rf.dateRange()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	coord := shutdown.NewCoordinator(zap.NewNop())
	defer coord.Close()

	gen, err := openGenerator(ctx, common, coord)
	if err != nil {
		return err
	}

	report, err := gen.Profit(ctx, dr)
	if err != nil {
		return err
	}

	if rf.csv {
		return emit(rf, reporting.RenderProfitCSV(report))
	}
	return emit(rf, reporting.RenderProfitText(report))
}

func cmdVolume(args []string) error {
	fs := flag.NewFlagSet("volume", flag.ExitOnError)
	common := registerCommon(fs)
	rf := registerReport(fs)
	fs.Parse(args)

	dr, err := rf.dateRange()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	coord := shutdown.NewCoordinator(zap.NewNop())
	defer coord.Close()

	gen, err := openGenerator(ctx, common, coord)
	if err != nil {
		return err
	}

	report, err := gen.Volume(ctx, dr)
	if err != nil {
		return err
	}

	if rf.csv {
		return emit(rf, reporting.RenderVolumeCSV(report))
	}
	return emit(rf, reporting.RenderVolumeText(report))
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	common := registerCommon(fs)
	rf := registerReport(fs)
	fs.Parse(args)

	dr, err := rf.dateRange()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	coord := shutdown.NewCoordinator(zap.NewNop())
	defer coord.Close()

	gen, err := openGenerator(ctx, common, coord)
	if err != nil {
		return err
	}

	report, err := gen.Stats(ctx, dr)
	if err != nil {
		return err
	}

	if rf.csv {
		return emit(rf, reporting.RenderStatsCSV(report))
	}
	return emit(rf, reporting.RenderStatsText(report))
}

// cmdReport writes every ledger report as CSV into an output directory.
func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	common := registerCommon(fs)
	rf := registerReport(fs)
	outputDir := fs.String("output-dir", "reports", "Output directory for CSV files")
	fs.Parse(args)

	dr, err := rf.dateRange()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	coord := shutdown.NewCoordinator(zap.NewNop())
	defer coord.Close()

	gen, err := openGenerator(ctx, common, coord)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	transactions, err := gen.Transactions(ctx, "", storage.Query{Range: dr})
	if err != nil {
		return err
	}
	profit, err := gen.Profit(ctx, dr)
	if err != nil {
		return err
	}
	volume, err := gen.Volume(ctx, dr)
	if err != nil {
		return err
	}
	stats, err := gen.Stats(ctx, dr)
	if err != nil {
		return err
	}

	files := map[string]string{
		"transactions.csv": reporting.RenderTransactionsCSV(transactions),
		"profit.csv":       reporting.RenderProfitCSV(profit),
		"volume.csv":       reporting.RenderVolumeCSV(volume),
		"stats.csv":        reporting.RenderStatsCSV(stats),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	fmt.Printf("Reports written to %s/:\n", *outputDir)
	for _, name := range []string{"transactions.csv", "profit.csv", "volume.csv", "stats.csv"} {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}

func printResult(r *domain.RebalanceResult) {
	fmt.Printf("Action:   %s\n", r.Action)
	if r.PositionID != "" {
		fmt.Printf("Position: %s\n", r.PositionID)
	}
	if r.Message != "" {
		fmt.Printf("Detail:   %s\n", r.Message)
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
