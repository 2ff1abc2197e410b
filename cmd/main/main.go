package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quote-relay/src/config"
	"quote-relay/src/helpers"
	"quote-relay/src/logger"
	"quote-relay/src/relay"
	"quote-relay/src/server"
	"quote-relay/src/storage"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file with credentials")
	flag.Parse()

	// 2. Environment, then config (env overrides YAML)
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not load %s: %v\n", *envPath, err)
	}

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	if limit := helpers.ApplyMemoryLimit(conf.MemoryLimitPercent); limit > 0 {
		appLogger.Info("Soft memory limit set to %d MB", limit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, appLogger); err != nil {
		appLogger.Critical("Relay stopped with error: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

// run wires every component and blocks until ctx is cancelled or one of them fails.
func run(ctx context.Context, conf *config.Config, appLogger *logger.Logger) error {
	// 1. Storage (optional)
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. Transport, upstream and relay
	srv := server.NewFastAPIServer(conf.MConfig, logger.NewLogger(conf.MConfig, "Server"))
	feed, snapshots := setupUpstream(conf, appLogger)
	relayService := relay.NewService(conf.MConfig, logger.NewLogger(conf.MConfig, "Relay"), feed, snapshots, srv)
	srv.SetRelay(relayService)

	// 3. Warm the cache from the last run
	if db != nil {
		warmStore(db, relayService.Store(), appLogger)
	}

	// 4. Lifecycle
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return relayService.Run(gctx) })

	if db != nil {
		persister := storage.NewStatePersister(db, relayService.Store(), flushInterval(conf.MConfig), logger.NewLogger(conf.MConfig, "Persister"))
		g.Go(func() error { return persister.Run(gctx) })
	}

	if err := startServers(gctx, g, srv, relayService, conf, appLogger); err != nil {
		// let the relay and persister wind down before storage closes
		cancel()
		g.Wait()
		return err
	}

	appLogger.Info("Quote relay running (configured: %v)", relayService.Configured())
	return g.Wait()
}
