package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provenance (
	serial     INTEGER PRIMARY KEY,
	url        TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	metadata   TEXT,
	created_at TEXT NOT NULL
);`

// SQLiteLog keeps the ledger in a SQLite table keyed by serial.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens or creates the ledger database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, `
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: configure %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

// Records returns every record in serial order.
func (l *SQLiteLog) Records(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT serial, url, file_name, metadata, created_at FROM provenance ORDER BY serial`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Last returns the record with the highest serial.
func (l *SQLiteLog) Last(ctx context.Context) (Record, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT serial, url, file_name, metadata, created_at FROM provenance ORDER BY serial DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Append adds rec at the tail.
func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("ledger: marshal metadata: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(serial) FROM provenance`).Scan(&last); err != nil {
		return fmt.Errorf("ledger: read tail: %w", err)
	}
	if last.Valid && int64(rec.Serial) <= last.Int64 {
		return fmt.Errorf("%w: %d <= %d", ErrNotMonotonic, rec.Serial, last.Int64)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO provenance (serial, url, file_name, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		int64(rec.Serial), rec.URL, rec.FileName, string(meta), rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ledger: insert serial %d: %w", rec.Serial, err)
	}
	return tx.Commit()
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec     Record
		serial  int64
		meta    sql.NullString
		created string
	)
	if err := s.Scan(&serial, &rec.URL, &rec.FileName, &meta, &created); err != nil {
		return Record{}, err
	}
	rec.Serial = uint64(serial)

	if meta.Valid && meta.String != "" && meta.String != "null" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("%w: serial %d metadata: %v", ErrCorrupt, serial, err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Record{}, fmt.Errorf("%w: serial %d created_at: %v", ErrCorrupt, serial, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
