// Package archive keeps the full action history in sqlite. The in-state
// history is capped at 30 entries; the archive is append-only and survives
// the cap.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/state"
)

// Archive is an append-only store of action records.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path. Use ":memory:"
// for tests.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	// WAL lets the dashboard read while the loop writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	a := &Archive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return a, nil
}

func (a *Archive) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			summary TEXT NOT NULL,
			at INTEGER NOT NULL,
			detail TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_at ON actions(at);
		CREATE INDEX IF NOT EXISTS idx_actions_kind ON actions(kind);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Append inserts one action record. The full record is stored as JSON in
// the detail column so new fields do not need schema migrations.
func (a *Archive) Append(rec state.ActionRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	detail, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}

	_, err = a.db.Exec(
		`INSERT OR REPLACE INTO actions (id, kind, summary, at, detail) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Summary, rec.At.UnixMilli(), string(detail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (a *Archive) Recent(limit int) ([]state.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT detail FROM actions ORDER BY at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	records := []state.ActionRecord{}
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		var rec state.ActionRecord
		if err := json.Unmarshal([]byte(detail), &rec); err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable archive row")
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByKind returns how many records exist per action kind.
func (a *Archive) CountByKind() (map[string]int, error) {
	rows, err := a.db.Query(`SELECT kind, COUNT(*) FROM actions GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
