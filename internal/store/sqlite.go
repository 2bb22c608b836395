package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const memoryPath = ":memory:"

// SQLiteStore implements ChallengeStore using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// Pre-create the file with restrictive permissions if it doesn't exist
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordChallenge stores c and sets its ID. A zero ReceivedAt is stamped now.
func (s *SQLiteStore) RecordChallenge(c *Challenge) error {
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now()
	}
	res, err := s.db.Exec(`INSERT INTO challenges (token, remote_addr, received_at) VALUES (?, ?, ?)`,
		c.Token, c.RemoteAddr, formatTime(c.ReceivedAt))
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading challenge id: %w", err)
	}
	c.ID = id
	return nil
}

// LatestChallenge returns the most recently received challenge or ErrNotFound.
func (s *SQLiteStore) LatestChallenge() (*Challenge, error) {
	row := s.db.QueryRow(`SELECT id, token, remote_addr, received_at FROM challenges
		ORDER BY received_at DESC, id DESC LIMIT 1`)

	var c Challenge
	var receivedAt string
	if err := row.Scan(&c.ID, &c.Token, &c.RemoteAddr, &receivedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning challenge: %w", err)
	}
	c.ReceivedAt = parseTime(receivedAt)
	return &c, nil
}

// ListChallenges returns challenges newest first. limit <= 0 means no limit.
func (s *SQLiteStore) ListChallenges(limit int) ([]Challenge, error) {
	query := "SELECT id, token, remote_addr, received_at FROM challenges ORDER BY received_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing challenges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Challenge
	for rows.Next() {
		var c Challenge
		var receivedAt string
		if err := rows.Scan(&c.ID, &c.Token, &c.RemoteAddr, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning challenge: %w", err)
		}
		c.ReceivedAt = parseTime(receivedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Cleanup deletes challenges received before the cutoff.
func (s *SQLiteStore) Cleanup(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM challenges WHERE received_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("cleaning challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleaned challenges: %w", err)
	}
	return n, nil
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
