package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Done reports whether input was already enhanced successfully into output
// with the settings identified by paramsHash, and output still exists.
// Buffered entries are flushed first.
func (c *Catalog) Done(input, output, paramsHash string) (bool, error) {
	if err := c.Flush(); err != nil {
		return false, err
	}

	var count int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM outputs WHERE input=? AND output=? AND params_hash=? AND error=''",
		input, output, paramsHash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query outputs: %w", err)
	}
	if count == 0 {
		return false, nil
	}

	if _, err := os.Stat(output); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check output: %w", err)
	}
	return true, nil
}

// Run reads a run by ID.
func (c *Catalog) Run(id string) (Run, error) {
	var (
		run     Run
		started int64
	)
	err := c.db.QueryRow(
		"SELECT id, preset, params_hash, params, started_at FROM runs WHERE id=?", id,
	).Scan(&run.ID, &run.Preset, &run.ParamsHash, &run.Params, &started)

	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt = time.Unix(started, 0).UTC()
	return run, nil
}

// Outputs lists the entries recorded for a run, ordered by input path.
func (c *Catalog) Outputs(runID string) ([]Entry, error) {
	if err := c.Flush(); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(`SELECT run_id, input, output, params_hash, width, height, bytes, elapsed_ms, error
		FROM outputs WHERE run_id=? ORDER BY input`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outputs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.RunID, &e.Input, &e.Output, &e.ParamsHash,
			&e.Width, &e.Height, &e.Bytes, &ms, &e.Err); err != nil {
			return nil, fmt.Errorf("failed to scan output row: %w", err)
		}
		e.Elapsed = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outputs: %w", err)
	}

	return entries, nil
}
