package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/awhitfield/invoice-cataloger/internal/record"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	fingerprint TEXT PRIMARY KEY,
	record_json TEXT NOT NULL,
	written_at  TEXT NOT NULL
);
`

// SQLiteStore persists the catalog in a local sqlite database so runs are
// resumable and the catalog survives the process.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the catalog database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// the driver is in-process; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_json, written_at FROM catalog_entries WHERE fingerprint = ?`, fingerprint)

	var recordJSON, writtenAt string
	if err := row.Scan(&recordJSON, &writtenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return decodeEntry(fingerprint, recordJSON, writtenAt)
}

// Put inserts the entry inside a transaction so the existence check and the
// write are atomic against concurrent writers.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	var existingJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT record_json FROM catalog_entries WHERE fingerprint = ?`, entry.Fingerprint).
		Scan(&existingJSON)
	switch {
	case err == nil:
		var existing record.StructuredRecord
		if jsonErr := json.Unmarshal([]byte(existingJSON), &existing); jsonErr != nil {
			return fmt.Errorf("decode cached record: %w", jsonErr)
		}
		if SameContent(existing, entry.Record) {
			return nil
		}
		return conflictError(entry.Fingerprint)
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return fmt.Errorf("check cache entry: %w", err)
	}

	if err := insertEntry(ctx, tx, entry, false); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ForcePut(ctx context.Context, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, entry, true); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, record_json, written_at FROM catalog_entries ORDER BY fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var fingerprint, recordJSON, writtenAt string
		if err := rows.Scan(&fingerprint, &recordJSON, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entry, err := decodeEntry(fingerprint, recordJSON, writtenAt)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func insertEntry(ctx context.Context, tx *sql.Tx, entry Entry, replace bool) error {
	recordJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	writtenAt := stampWrittenAt(entry.WrittenAt).Format(time.RFC3339Nano)

	stmt := `INSERT INTO catalog_entries (fingerprint, record_json, written_at) VALUES (?, ?, ?)`
	if replace {
		stmt += ` ON CONFLICT(fingerprint) DO UPDATE SET record_json = excluded.record_json, written_at = excluded.written_at`
	}
	if _, err := tx.ExecContext(ctx, stmt, entry.Fingerprint, string(recordJSON), writtenAt); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func decodeEntry(fingerprint, recordJSON, writtenAt string) (*Entry, error) {
	var rec record.StructuredRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, writtenAt)
	if err != nil {
		return nil, fmt.Errorf("parse cache timestamp: %w", err)
	}
	return &Entry{Fingerprint: fingerprint, Record: rec, WrittenAt: ts}, nil
}
