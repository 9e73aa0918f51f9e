package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltBucket = "provenance"

// BoltLog keeps the ledger in a bbolt file. Keys are big-endian serials, so
// cursor order is serial order.
type BoltLog struct {
	db *bolt.DB
}

// OpenBolt opens or creates the ledger database at path.
func OpenBolt(path string) (*BoltLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create bucket: %w", err)
	}

	return &BoltLog{db: db}, nil
}

// Records returns every record in serial order.
func (l *BoltLog) Records(ctx context.Context) ([]Record, error) {
	var records []Record
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).ForEach(func(k, v []byte) error {
			rec, err := decodeBolt(k, v)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Last returns the record with the highest serial.
func (l *BoltLog) Last(ctx context.Context) (Record, bool, error) {
	var (
		rec Record
		ok  bool
	)
	err := l.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket([]byte(boltBucket)).Cursor().Last()
		if k == nil {
			return nil
		}
		var err error
		rec, err = decodeBolt(k, v)
		ok = err == nil
		return err
	})
	return rec, ok, err
}

// Append adds rec at the tail.
func (l *BoltLog) Append(ctx context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if k, _ := b.Cursor().Last(); k != nil {
			if last := binary.BigEndian.Uint64(k); rec.Serial <= last {
				return fmt.Errorf("%w: %d <= %d", ErrNotMonotonic, rec.Serial, last)
			}
		}
		return b.Put(serialKey(rec.Serial), value)
	})
}

// Close closes the database file.
func (l *BoltLog) Close() error {
	return l.db.Close()
}

func serialKey(serial uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, serial)
	return k
}

func decodeBolt(k, v []byte) (Record, error) {
	if len(k) != 8 {
		return Record{}, fmt.Errorf("%w: key of length %d", ErrCorrupt, len(k))
	}
	var rec Record
	if err := json.Unmarshal(v, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec.Serial = binary.BigEndian.Uint64(k)
	return rec, nil
}
