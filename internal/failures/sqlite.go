package failures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
)

const failuresSchema = `
CREATE TABLE IF NOT EXISTS failed_files (
	fingerprint     TEXT PRIMARY KEY,
	source_path     TEXT NOT NULL,
	stage           TEXT NOT NULL,
	kind            TEXT NOT NULL,
	message         TEXT NOT NULL,
	attempts        INTEGER NOT NULL,
	state           TEXT NOT NULL,
	first_failed_at TEXT NOT NULL,
	last_failed_at  TEXT NOT NULL,
	next_retry_at   TEXT NOT NULL
);
`

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLiteTracker opens a tracker backed by the sqlite database at path.
// The cache and the tracker can safely share a database file: they own
// disjoint tables.
func OpenSQLiteTracker(path string, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) (*Tracker, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open failures db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(failuresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init failures schema: %w", err)
	}
	return NewTracker(&sqliteStore{db: db}, maxAttempts, baseDelay, logger), nil
}

func (s *sqliteStore) get(ctx context.Context, fingerprint string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_path, stage, kind, message, attempts, state,
		       first_failed_at, last_failed_at, next_retry_at
		FROM failed_files WHERE fingerprint = ?`, fingerprint)

	rec := Record{Fingerprint: fingerprint}
	var stage, kind, state, firstAt, lastAt, nextAt string
	err := row.Scan(&rec.SourcePath, &stage, &kind, &rec.Message, &rec.Attempts, &state,
		&firstAt, &lastAt, &nextAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read failure record: %w", err)
	}

	rec.Stage = constants.Stage(stage)
	rec.Kind = common.ErrorKind(kind)
	rec.State = constants.FailureState(state)
	if rec.FirstFailedAt, err = parseTime(firstAt); err != nil {
		return nil, err
	}
	if rec.LastFailedAt, err = parseTime(lastAt); err != nil {
		return nil, err
	}
	if rec.NextRetryAt, err = parseTime(nextAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *sqliteStore) upsert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_files (fingerprint, source_path, stage, kind, message,
			attempts, state, first_failed_at, last_failed_at, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			source_path = excluded.source_path,
			stage = excluded.stage,
			kind = excluded.kind,
			message = excluded.message,
			attempts = excluded.attempts,
			state = excluded.state,
			first_failed_at = excluded.first_failed_at,
			last_failed_at = excluded.last_failed_at,
			next_retry_at = excluded.next_retry_at`,
		rec.Fingerprint, rec.SourcePath, string(rec.Stage), string(rec.Kind), rec.Message,
		rec.Attempts, string(rec.State),
		formatTime(rec.FirstFailedAt), formatTime(rec.LastFailedAt), formatTime(rec.NextRetryAt))
	if err != nil {
		return fmt.Errorf("write failure record: %w", err)
	}
	return nil
}

func (s *sqliteStore) all(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, source_path, stage, kind, message, attempts, state,
		       first_failed_at, last_failed_at, next_retry_at
		FROM failed_files ORDER BY fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var stage, kind, state, firstAt, lastAt, nextAt string
		if err := rows.Scan(&rec.Fingerprint, &rec.SourcePath, &stage, &kind, &rec.Message,
			&rec.Attempts, &state, &firstAt, &lastAt, &nextAt); err != nil {
			return nil, fmt.Errorf("scan failure record: %w", err)
		}
		rec.Stage = constants.Stage(stage)
		rec.Kind = common.ErrorKind(kind)
		rec.State = constants.FailureState(state)
		if rec.FirstFailedAt, err = parseTime(firstAt); err != nil {
			return nil, err
		}
		if rec.LastFailedAt, err = parseTime(lastAt); err != nil {
			return nil, err
		}
		if rec.NextRetryAt, err = parseTime(nextAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse failure timestamp: %w", err)
	}
	return t, nil
}
