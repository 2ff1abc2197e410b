package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"

	_ "github.com/lib/pq"
)

var schemaSanitizer = regexp.MustCompile(`[^a-z0-9_]`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB uses the application name as the schema.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres connection string is empty")
	}

	schema := schemaSanitizer.ReplaceAllString(strings.ToLower(cfg.Name), "_")
	if schema == "" {
		schema = "quote_relay"
	}

	return &PostgresDB{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."symbol_states" (
			symbol TEXT PRIMARY KEY,
			last_price DOUBLE PRECISION,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			previous_close DOUBLE PRECISION,
			market_state TEXT NOT NULL DEFAULT '',
			last_timestamp BIGINT NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create symbol_states: %w", err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSymbolStates(states []models.MSymbolState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO "%s"."symbol_states" (%s, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			last_price = EXCLUDED.last_price,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			volume = EXCLUDED.volume,
			previous_close = EXCLUDED.previous_close,
			market_state = EXCLUDED.market_state,
			last_timestamp = EXCLUDED.last_timestamp,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`, d.Schema, stateColumns))
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

func (d *PostgresDB) LoadSymbolStates() ([]models.MSymbolState, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`SELECT %s FROM "%s"."symbol_states" ORDER BY symbol`, stateColumns, d.Schema))
	if err != nil {
		return nil, err
	}
	return scanStates(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
