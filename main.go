package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/CrystalRanch/Payout-Backend/api"
	"github.com/CrystalRanch/Payout-Backend/db"
	"github.com/CrystalRanch/Payout-Backend/providers/ledger"
	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/services/monitoring/tasks"
	"github.com/CrystalRanch/Payout-Backend/services/notification"
	"github.com/CrystalRanch/Payout-Backend/services/payout"
	redisservice "github.com/CrystalRanch/Payout-Backend/services/redis"
	"github.com/CrystalRanch/Payout-Backend/utils"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
)

var envPath string = "."

func main() {

	config, err := utils.LoadConfig(envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(config)
	logger.Info("starting payout processor", config.Redact())

	dsn := utils.GetDBSource(config, config.DBName)

	conn, err := sql.Open(config.DBDriver, dsn)
	if err != nil {
		logger.Fatalf("Could not open DB: %v", err)
	}

	m, err := migrate.New("file://db/migrations", dsn)
	if err != nil {
		logger.Fatalf("Unable to instantiate the database schema migrator - %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatalf("Unable to migrate up to the latest database schema - %v", err)
	}

	store, err := db.NewStore(conn, dsn, logger)
	if err != nil {
		logger.Fatalf("Could not initialise request store: %v", err)
	}

	ledgerProvider := ledger.NewLedgerProvider(logger)
	notifier := notification.NewTelegramProvider(config, logger)

	// Redis is optional; without it daily payout totals are simply not kept.
	var tracker payout.PayoutTracker
	if config.RedisHost != "" {
		redisService, err := redisservice.NewRedisService(&redisservice.RedisConfig{
			Host:     config.RedisHost,
			Port:     config.RedisPort,
			Password: config.RedisPassword,
		})
		if err != nil {
			logger.Warn("redis unavailable, daily payout totals disabled: ", err)
		} else {
			tracker = redisService
			defer redisService.Close()
		}
	}

	ceiling := mustDecimal(logger, "PAYOUT_CEILING", config.PayoutCeiling)
	floor := mustDecimal(logger, "PAYOUT_FLOOR", config.PayoutFloor)
	buffer := mustDecimal(logger, "BALANCE_BUFFER", config.BalanceBuffer)

	normalizer := payout.NewNormalizer(int32(config.PayoutPrecision), floor, logger)
	filter := payout.NewEligibilityFilter(ceiling)
	guard := payout.NewSolvencyGuard(ledgerProvider, notifier, buffer, config.AlertCooldown(), logger)

	engine, err := payout.NewEngine(
		&payout.Wallet{Address: ledgerProvider.WalletAddress()},
		store,
		ledgerProvider,
		notifier,
		normalizer,
		filter,
		guard,
		tracker,
		payout.EngineConfig{
			MaxRetries:        config.MaxRetries,
			RetryDelay:        config.RetryDelay(),
			InterRequestDelay: config.BatchDelay(),
			TransferCooldown:  config.CooldownAfterTransfer(),
		},
		logger,
	)
	if err != nil {
		logger.Fatalf("Could not construct payout engine: %v", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An unactivated wallet can never transfer; refuse to start.
	if err := engine.VerifyWalletActive(ctx); err != nil {
		logger.Fatalf("Wallet precondition failed: %v", err)
	}

	// Settle anything interrupted mid-transfer before accepting new work.
	if err := engine.Reconcile(ctx); err != nil {
		logger.Fatalf("Startup reconciliation failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	// New-request events from the store collapse into engine triggers.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-store.Events():
				logger.Debug("new withdrawal request event: " + id)
				engine.Trigger()
			}
		}
	}()

	scheduler := tasks.NewTaskScheduler(logger)
	if _, err := scheduler.AddTask("payout-batch-tick", "Payout batch tick", func(context.Context) error {
		engine.Trigger()
		return nil
	}, config.BatchInterval()); err != nil {
		logger.Fatalf("Could not register batch tick: %v", err)
	}
	if err := scheduler.ScheduleTask("payout-batch-tick", config.BatchInterval()); err != nil {
		logger.Fatalf("Could not schedule batch tick: %v", err)
	}

	// Initial sweep for anything pending from before this start.
	engine.Trigger()

	server := api.NewServer(config, logger, store, engine, ledgerProvider)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("ops API stopped: ", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested, draining in-flight work")
	scheduler.Shutdown()
	wg.Wait()
	if err := store.Close(); err != nil {
		logger.Warn("closing request store: ", err)
	}
	if err := conn.Close(); err != nil {
		logger.Warn("closing database: ", err)
	}
	logger.Info("payout processor stopped")
}

func mustDecimal(logger *logging.Logger, name, raw string) decimal.Decimal {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Fatalf("invalid %s value %q: %v", name, raw, err)
	}
	return value
}
