package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal is a local SQLite record of every feedback submission and
// whether it reached the remote store.
type Journal struct {
	conn *sql.DB
}

// OpenJournal opens (creating if needed) the journal database at path and
// applies pending migrations.
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if j.isMigrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := j.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := j.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		log.Debug().Str("name", name).Msg("Applied journal migration")
	}
	return nil
}

func (j *Journal) isMigrationApplied(name string) bool {
	var exists int
	if err := j.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists); err != nil {
		return false
	}
	var applied int
	err := j.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// Append records a new submission as unsynced.
func (j *Journal) Append(ctx context.Context, fb *Feedback) error {
	_, err := j.conn.ExecContext(ctx, `
		INSERT INTO feedback (id, content_type, content_text, verdict, explanation, reporter, video_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.ContentType, fb.ContentText, fb.Verdict, fb.Explanation, fb.Reporter, fb.VideoDate,
		fb.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal insert %s: %w", fb.ID, err)
	}
	return nil
}

// MarkSynced records that id reached the remote store as remoteID.
func (j *Journal) MarkSynced(ctx context.Context, id, remoteID string) error {
	_, err := j.conn.ExecContext(ctx,
		`UPDATE feedback SET synced = 1, remote_id = ?, last_error = '', attempts = attempts + 1 WHERE id = ?`,
		remoteID, id)
	if err != nil {
		return fmt.Errorf("journal mark synced %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed remote attempt for id.
func (j *Journal) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := j.conn.ExecContext(ctx,
		`UPDATE feedback SET last_error = ?, attempts = attempts + 1 WHERE id = ? AND synced = 0`,
		msg, id)
	if err != nil {
		return fmt.Errorf("journal mark failed %s: %w", id, err)
	}
	return nil
}

// Pending returns up to limit unsynced records, oldest first.
func (j *Journal) Pending(ctx context.Context, limit int) ([]PendingFeedback, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.conn.QueryContext(ctx, `
		SELECT id, content_type, content_text, verdict, explanation, reporter, video_date, created_at, attempts, last_error
		FROM feedback WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query pending: %w", err)
	}
	defer rows.Close()

	var pending []PendingFeedback
	for rows.Next() {
		var (
			p         PendingFeedback
			createdAt string
		)
		fb := &p.Feedback
		if err := rows.Scan(&fb.ID, &fb.ContentType, &fb.ContentText, &fb.Verdict, &fb.Explanation,
			&fb.Reporter, &fb.VideoDate, &createdAt, &p.Attempts, &p.LastError); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			fb.CreatedAt = t
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// Counts reports how many records are synced and pending.
func (j *Journal) Counts(ctx context.Context) (synced, pending int, err error) {
	err = j.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(synced), 0), COALESCE(SUM(1 - synced), 0) FROM feedback`).Scan(&synced, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("journal counts: %w", err)
	}
	return synced, pending, nil
}
