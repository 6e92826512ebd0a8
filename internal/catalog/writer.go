package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of entries to buffer before flushing to the database.
	DefaultBatchSize = 50
)

// Catalog writes run and output records to a SQLite database.
type Catalog struct {
	db        *sql.DB
	path      string
	batch     []Entry
	batchSize int
	mu        sync.Mutex
}

// Open opens or creates the catalog at path and initializes the schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Catalog{
		db:        db,
		path:      path,
		batch:     make([]Entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

// createSchema creates the catalog tables.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			preset TEXT NOT NULL,
			params_hash TEXT NOT NULL,
			params TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS outputs (
			run_id TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			params_hash TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);

		DROP INDEX IF EXISTS output_index;
		CREATE UNIQUE INDEX IF NOT EXISTS output_target_index ON outputs (input, output, params_hash);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// BeginRun registers a new run and returns it with a fresh ID.
func (c *Catalog) BeginRun(preset string, settings Settings) (Run, error) {
	hash, err := ParamsHash(settings)
	if err != nil {
		return Run{}, err
	}
	encoded, err := json.Marshal(settings)
	if err != nil {
		return Run{}, fmt.Errorf("failed to encode settings: %w", err)
	}

	run := Run{
		ID:         uuid.NewString(),
		Preset:     preset,
		ParamsHash: hash,
		Params:     string(encoded),
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}

	_, err = c.db.Exec("INSERT INTO runs (id, preset, params_hash, params, started_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Preset, run.ParamsHash, run.Params, run.StartedAt.Unix())
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// Record adds an entry to the batch. When the batch is full, it is automatically flushed.
// A later entry for the same input, output and settings replaces the earlier one.
func (c *Catalog) Record(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batch = append(c.batch, e)

	if len(c.batch) >= c.batchSize {
		return c.flushLocked()
	}

	return nil
}

// Flush writes any buffered entries to the database.
func (c *Catalog) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

// flushLocked writes buffered entries to the database. Must be called with lock held.
func (c *Catalog) flushLocked() error {
	if len(c.batch) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO outputs
		(run_id, input, output, params_hash, width, height, bytes, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range c.batch {
		if _, err := stmt.Exec(e.RunID, e.Input, e.Output, e.ParamsHash,
			e.Width, e.Height, e.Bytes, e.Elapsed.Milliseconds(), e.Err); err != nil {
			return fmt.Errorf("failed to insert output %s: %w", e.Input, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.batch = c.batch[:0]
	return nil
}

// Close flushes any remaining entries and closes the database.
func (c *Catalog) Close() error {
	if err := c.Flush(); err != nil {
		c.db.Close()
		return err
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
