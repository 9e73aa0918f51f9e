package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// JSONLog keeps the ledger as a single JSON array object in a bucket. Each
// append rewrites the object; the bucket write is atomic, so readers see
// either the old or the new array.
type JSONLog struct {
	bucket *blob.Bucket
	key    string

	mu sync.Mutex
}

// NewJSONLog returns a ledger stored at key in bucket. The object is created
// on first append.
func NewJSONLog(bucket *blob.Bucket, key string) *JSONLog {
	return &JSONLog{bucket: bucket, key: key}
}

// Records returns every record in serial order.
func (l *JSONLog) Records(ctx context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Last returns the record with the highest serial.
func (l *JSONLog) Last(ctx context.Context) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil || len(records) == 0 {
		return Record{}, false, err
	}
	return records[len(records)-1], true, nil
}

// Append adds rec at the tail.
func (l *JSONLog) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return err
	}
	if n := len(records); n > 0 && rec.Serial <= records[n-1].Serial {
		return fmt.Errorf("%w: %d <= %d", ErrNotMonotonic, rec.Serial, records[n-1].Serial)
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}
	if err := l.bucket.WriteAll(ctx, l.key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("ledger: write %s: %w", l.key, err)
	}
	return nil
}

// Close is a no-op; the bucket belongs to the caller.
func (l *JSONLog) Close() error { return nil }

func (l *JSONLog) load(ctx context.Context) ([]Record, error) {
	data, err := l.bucket.ReadAll(ctx, l.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", l.key, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, l.key, err)
	}
	if err := checkOrder(records); err != nil {
		return nil, err
	}
	return records, nil
}
