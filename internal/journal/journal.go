// Package journal records agent activity in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Journal wraps a sql.DB holding the activity log. A nil *Journal is a
// valid no-op recorder, so the agent runs unchanged when the journal is
// disabled or failed to open.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded activity row.
type Entry struct {
	At     time.Time
	Kind   string
	Detail string
}

// Open opens the SQLite database and creates the activity table if it
// does not exist.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", dbPath, err)
	}
	createTable := `CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL
	);`
	if _, err := db.ExecContext(context.Background(), createTable); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to create activity table: %v; also failed to close db: %w", err, cerr)
		}
		return nil, fmt.Errorf("failed to create activity table: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserts one activity row. Insert failures are logged, not
// returned; the journal must never affect loop behavior.
func (j *Journal) Record(kind, detail string) {
	if j == nil {
		return
	}
	_, err := j.db.ExecContext(context.Background(),
		`INSERT INTO activity (at, kind, detail) VALUES (?, ?, ?)`,
		time.Now().Unix(), kind, detail)
	if err != nil {
		log.Printf("[JOURNAL] failed to record activity: %v", err)
	}
}

// RecentActivity returns the newest n entries, newest first.
func (j *Journal) RecentActivity(n int) (entries []Entry, err error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(context.Background(),
		`SELECT at, kind, detail FROM activity ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var at int64
		var e Entry
		if err := rows.Scan(&at, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		e.At = time.Unix(at, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
