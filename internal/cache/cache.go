// Package cache persists pending and synced agenda records on the device.
// The store is a single unkeyed collection: Load and Save always move the
// whole record list, there is no partial-record API.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"softone/internal/models"
)

// agendaKey is the single namespace the agenda cache lives under.
const agendaKey = "softone_agendas_pendentes"

// SQLiteCache is the durable local key-value store backing the agenda cache.
type SQLiteCache struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// New opens the cache database at path and runs migrations.
func New(path string, logger *zerolog.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &SQLiteCache{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS local_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// Load returns every cached agenda record. An empty or corrupt store yields
// an empty list: a blob that no longer parses is treated as no cache at all.
func (c *SQLiteCache) Load(ctx context.Context) ([]models.CachedAgendaRecord, error) {
	var blob string
	err := c.db.QueryRowContext(ctx,
		"SELECT value FROM local_kv WHERE key = ?", agendaKey,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return []models.CachedAgendaRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load agenda cache: %w", err)
	}

	var records []models.CachedAgendaRecord
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		c.logger.Warn().Err(err).Msg("agenda cache blob is corrupt, treating as empty")
		return []models.CachedAgendaRecord{}, nil
	}
	if records == nil {
		records = []models.CachedAgendaRecord{}
	}
	return records, nil
}

// Save atomically replaces the whole cached collection.
func (c *SQLiteCache) Save(ctx context.Context, records []models.CachedAgendaRecord) error {
	if records == nil {
		records = []models.CachedAgendaRecord{}
	}
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode agenda cache: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO local_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		agendaKey, string(blob), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save agenda cache: %w", err)
	}
	return nil
}

// PingContext reports whether the underlying database is reachable.
func (c *SQLiteCache) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
