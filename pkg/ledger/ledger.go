package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"gocloud.dev/blob"
)

// ErrNotMonotonic is returned by Append when a record's serial is not greater
// than the last recorded serial.
var ErrNotMonotonic = errors.New("ledger: serial not greater than last record")

// ErrCorrupt is returned when the persisted ledger cannot be trusted, for
// example when its serials are not strictly increasing.
var ErrCorrupt = errors.New("ledger: corrupt")

// ErrNeedsLocalDir is returned by Open for backends that require a local
// directory when the folder has none.
var ErrNeedsLocalDir = errors.New("ledger: backend requires a local directory")

// Record describes one image committed into a folder.
type Record struct {
	Serial    uint64            `json:"serial"`
	URL       string            `json:"url"`
	FileName  string            `json:"file_name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// recordJSON also accepts the keys of logs written by the earlier
// downloader, which stored the serial as a string under Serial_Number and
// the file name under Photo_Name.
type recordJSON struct {
	Serial       json.RawMessage   `json:"serial"`
	LegacySerial json.RawMessage   `json:"Serial_Number"`
	URL          string            `json:"url"`
	FileName     string            `json:"file_name"`
	LegacyName   string            `json:"Photo_Name"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// UnmarshalJSON decodes both the current and the legacy record layout.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	serial := raw.Serial
	if len(serial) == 0 {
		serial = raw.LegacySerial
	}
	n, err := parseSerial(serial)
	if err != nil {
		return err
	}

	name := raw.FileName
	if name == "" {
		name = raw.LegacyName
	}

	*r = Record{
		Serial:    n,
		URL:       raw.URL,
		FileName:  name,
		Metadata:  raw.Metadata,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// parseSerial reads a serial stored either as a JSON number or as a string
// holding one. A missing serial decodes as 0.
func parseSerial(raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("serial %q: %w", text, err)
	}
	return n, nil
}

// Log is an append-only, ordered record store.
//
// Implementations are safe for concurrent use, but callers that allocate
// serials must still serialize allocate-then-append themselves.
type Log interface {
	// Records returns every record in serial order.
	Records(ctx context.Context) ([]Record, error)

	// Last returns the record with the highest serial. ok is false when the
	// ledger is empty.
	Last(ctx context.Context) (rec Record, ok bool, err error)

	// Append adds rec at the tail. It fails with ErrNotMonotonic if
	// rec.Serial is not greater than the current last serial.
	Append(ctx context.Context, rec Record) error

	Close() error
}

// Backend names a ledger implementation.
type Backend string

const (
	JSON   Backend = "json"
	Bolt   Backend = "bolt"
	SQLite Backend = "sqlite"
)

// File names used inside the target folder.
const (
	JSONFile   = "image_log.json"
	BoltFile   = "image_log.db"
	SQLiteFile = "image_log.sqlite"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case JSON, Bolt, SQLite:
		return b, nil
	case "":
		return JSON, nil
	default:
		return "", fmt.Errorf("ledger: unknown backend %q", s)
	}
}

// Open opens the ledger of a folder. bucket is used by the JSON backend;
// dir is the local directory behind it and is required by Bolt and SQLite.
func Open(ctx context.Context, backend Backend, bucket *blob.Bucket, dir string) (Log, error) {
	switch backend {
	case JSON, "":
		return NewJSONLog(bucket, JSONFile), nil
	case Bolt:
		if dir == "" {
			return nil, fmt.Errorf("%w: %s", ErrNeedsLocalDir, backend)
		}
		return OpenBolt(filepath.Join(dir, BoltFile))
	case SQLite:
		if dir == "" {
			return nil, fmt.Errorf("%w: %s", ErrNeedsLocalDir, backend)
		}
		return OpenSQLite(ctx, filepath.Join(dir, SQLiteFile))
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", backend)
	}
}

// NextSerial returns the serial a new session should start from: the last
// recorded serial plus one, or 1 for an empty ledger.
func NextSerial(ctx context.Context, log Log) (uint64, error) {
	last, ok, err := log.Last(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: read tail: %w", err)
	}
	if !ok {
		return 1, nil
	}
	return last.Serial + 1, nil
}

// IsLedgerFile reports whether name is one of the files a ledger backend
// keeps in the folder.
func IsLedgerFile(name string) bool {
	switch name {
	case JSONFile, BoltFile, SQLiteFile,
		SQLiteFile + "-wal", SQLiteFile + "-shm", SQLiteFile + "-journal":
		return true
	}
	return false
}

// checkOrder rejects a persisted ledger whose records are incomplete or whose
// serials do not strictly increase from 1 upwards.
func checkOrder(records []Record) error {
	for i, rec := range records {
		switch {
		case rec.Serial == 0:
			return fmt.Errorf("%w: record %d has no serial", ErrCorrupt, i)
		case rec.URL == "":
			return fmt.Errorf("%w: serial %d has no url", ErrCorrupt, rec.Serial)
		case rec.FileName == "":
			return fmt.Errorf("%w: serial %d has no file name", ErrCorrupt, rec.Serial)
		}
		if i > 0 && rec.Serial <= records[i-1].Serial {
			return fmt.Errorf("%w: serial %d follows %d", ErrCorrupt, records[i].Serial, records[i-1].Serial)
		}
	}
	return nil
}
