// Package history persists delivered alerts to a SQLite audit table.
// The sink is optional: it exists only when a DSN is configured, and a
// recording failure never blocks or fails alert delivery.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/poolwatch/poolwatch/internal/alert"
)

// Sink writes delivered alerts to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a SQLite alert history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS alert_history(
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP)
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Record inserts one delivered alert. The type-specific fields are stored as
// a JSON detail column.
func (s *Sink) Record(ctx context.Context, a alert.Alert) error {
	var detail any
	switch a.Type {
	case alert.TypeFailover:
		detail = a.Failover
	case alert.TypeErrorRate:
		detail = a.ErrorRate
	}
	blob, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_history(id, type, severity, detail, created_at)
		VALUES(?, ?, ?, ?, ?);`,
		a.ID, string(a.Type), string(a.Severity), string(blob), time.Now().UTC())
	return err
}

// Recent returns the most recent n alerts, newest first. Used by tests and
// operator tooling.
func (s *Sink) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, detail, created_at
		FROM alert_history ORDER BY created_at DESC LIMIT ?;`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Entry is one row of the audit table.
type Entry struct {
	ID        string
	Type      string
	Severity  string
	Detail    string
	CreatedAt time.Time
}

// Close releases the database handle.
func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
