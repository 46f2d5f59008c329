// Package journal persists an append-only audit log of control-plane
// mutation events to SQLite when enabled. It exists for postmortem
// debugging of a fabric — in-memory state is authoritative, the
// journal is a write-only side channel no other component reads back.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Journal appends mutation events to a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite database at path and ensures
// its schema exists.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: applying %s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS mutation_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at_unix_ns INTEGER NOT NULL,
	method TEXT NOT NULL,
	args_json TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: creating schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one mutation event.
func (j *Journal) Record(recordedAtUnixNS int64, method string, args []any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("journal: marshaling args for %s: %w", method, err)
	}
	_, err = j.db.Exec(
		`INSERT INTO mutation_events (recorded_at_unix_ns, method, args_json) VALUES (?, ?, ?)`,
		recordedAtUnixNS, method, string(argsJSON),
	)
	return err
}
