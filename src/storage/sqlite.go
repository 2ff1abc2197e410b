package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	// single writer
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS symbol_states (
			symbol TEXT PRIMARY KEY,
			last_price REAL,
			open REAL,
			high REAL,
			low REAL,
			volume REAL,
			previous_close REAL,
			market_state TEXT NOT NULL DEFAULT '',
			last_timestamp INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create symbol_states: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSymbolStates(states []models.MSymbolState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO symbol_states (` + stateColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			last_price = excluded.last_price,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			volume = excluded.volume,
			previous_close = excluded.previous_close,
			market_state = excluded.market_state,
			last_timestamp = excluded.last_timestamp,
			description = excluded.description,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range states {
		args := append(stateArgs(s), now)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to save state for %s: %w", s.Symbol, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadSymbolStates() ([]models.MSymbolState, error) {
	rows, err := d.DB.Query("SELECT " + stateColumns + " FROM symbol_states ORDER BY symbol")
	if err != nil {
		return nil, err
	}
	return scanStates(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
