package main

import (
	"time"

	"quote-relay/src/config"
	"quote-relay/src/data_source/alpaca"
	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/models"
	"quote-relay/src/network"
	"quote-relay/src/quotes"
	"quote-relay/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase initializes the state database. db_type "none" disables persistence.
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	var err error

	switch config.Storage.DBType {
	case "none":
		appLogger.Info("State persistence disabled")
		return nil, nil
	case "postgres":
		db, err = storage.NewPostgresDB(config, logger.NewLogger(config, "PostgresDB"))
	case "redis":
		db, err = storage.NewRedisDB(config, logger.NewLogger(config, "RedisDB"))
	default:
		db, err = storage.NewAsyncSQLiteDB(config, logger.NewLogger(config, "SQLiteDB"))
	}

	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		return nil, err
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupUpstream returns untyped nils when credentials are missing so the relay
// runs unconfigured.
func setupUpstream(conf *config.Config, appLogger *logger.Logger) (interfaces.IUpstreamFeed, interfaces.ISnapshotProvider) {
	if !conf.HasUpstreamCredentials() {
		appLogger.Warning("ALPACA_KEY_ID / ALPACA_SECRET_KEY not set, market data disabled")
		return nil, nil
	}

	var networkManager interfaces.INetworkManager = network.NewNetworkManager(conf.MConfig, logger.NewLogger(conf.MConfig, "NetworkManager"))
	source := alpaca.NewAlpacaSource(&conf.Upstream, networkManager.HTTPClient(), logger.NewLogger(conf.MConfig, "Alpaca"))
	appLogger.Info("Upstream provider: %s (feed %s)", conf.Upstream.Provider, conf.Upstream.Feed)
	return source, source
}

// -----------------------------------------------------------------------------

func warmStore(db interfaces.IDatabase, store *quotes.Store, appLogger *logger.Logger) {
	states, err := db.LoadSymbolStates()
	if err != nil {
		appLogger.Warning("Could not load persisted states: %v", err)
		return
	}
	appLogger.Info("Loaded %d persisted symbol states", store.Load(states))
}

// -----------------------------------------------------------------------------

func flushInterval(config *models.MConfig) time.Duration {
	return time.Duration(config.Storage.FlushIntervalSeconds) * time.Second
}
