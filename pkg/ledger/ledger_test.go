package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// openers returns a fresh ledger per backend, all rooted in one temp dir so
// a second open sees the first one's data.
func openers(t *testing.T) map[Backend]func() Log {
	t.Helper()
	dir := t.TempDir()

	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{NoTempDir: true})
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })

	open := func(b Backend) func() Log {
		return func() Log {
			log, err := Open(context.Background(), b, bucket, dir)
			require.NoError(t, err)
			return log
		}
	}
	return map[Backend]func() Log{
		JSON:   open(JSON),
		Bolt:   open(Bolt),
		SQLite: open(SQLite),
	}
}

func record(serial uint64) Record {
	return Record{
		Serial:    serial,
		URL:       "https://example.com/photo.jpg",
		FileName:  fmt.Sprintf("image_%d.jpg", serial),
		Metadata:  map[string]string{"id": "42"},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLedgerBackends(t *testing.T) {
	for backend, open := range openers(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			log := open()

			_, ok, err := log.Last(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			next, err := NextSerial(ctx, log)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), next)

			for s := uint64(1); s <= 3; s++ {
				require.NoError(t, log.Append(ctx, record(s)))
			}

			records, err := log.Records(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			for i, rec := range records {
				assert.Equal(t, uint64(i+1), rec.Serial)
				assert.Equal(t, "42", rec.Metadata["id"])
				assert.True(t, rec.CreatedAt.Equal(record(1).CreatedAt))
			}

			last, ok, err := log.Last(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, uint64(3), last.Serial)

			err = log.Append(ctx, record(3))
			assert.ErrorIs(t, err, ErrNotMonotonic)
			err = log.Append(ctx, record(2))
			assert.ErrorIs(t, err, ErrNotMonotonic)

			require.NoError(t, log.Close())

			// Reopen: the tail survives the session.
			log = open()
			defer log.Close()
			next, err = NextSerial(ctx, log)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), next)
		})
	}
}

func TestLedgerConcurrentAppendStaysOrdered(t *testing.T) {
	for backend, open := range openers(t) {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			log := open()
			defer log.Close()

			var (
				mu   sync.Mutex
				next uint64 = 1
				wg   sync.WaitGroup
			)
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 5; i++ {
						mu.Lock()
						err := log.Append(ctx, record(next))
						next++
						mu.Unlock()
						assert.NoError(t, err)
					}
				}()
			}
			wg.Wait()

			records, err := log.Records(ctx)
			require.NoError(t, err)
			require.Len(t, records, 20)
			for i := 1; i < len(records); i++ {
				assert.Equal(t, records[i-1].Serial+1, records[i].Serial)
			}
		})
	}
}

func TestJSONLogCorrupt(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	require.NoError(t, bucket.WriteAll(ctx, JSONFile, []byte("{not json"), nil))
	_, err = NewJSONLog(bucket, JSONFile).Records(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, bucket.WriteAll(ctx, JSONFile,
		[]byte(`[{"serial":2,"url":"a","file_name":"a"},{"serial":1,"url":"b","file_name":"b"}]`), nil))
	_, err = NewJSONLog(bucket, JSONFile).Records(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestJSONLogLegacyRecords(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	legacy := `[
    {
        "Serial_Number": "1",
        "URL": "https://farm1.staticflickr.com/1/1_a.jpg",
        "Photo_Name": "image_1.jpg"
    },
    {
        "Serial_Number": 2,
        "URL": "https://farm1.staticflickr.com/1/2_b.jpg",
        "Photo_Name": "image_2.jpg"
    }
]`
	require.NoError(t, bucket.WriteAll(ctx, JSONFile, []byte(legacy), nil))

	log := NewJSONLog(bucket, JSONFile)
	records, err := log.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Serial)
	assert.Equal(t, "https://farm1.staticflickr.com/1/1_a.jpg", records[0].URL)
	assert.Equal(t, "image_1.jpg", records[0].FileName)
	assert.Equal(t, uint64(2), records[1].Serial)

	next, err := NextSerial(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next)

	// Appending keeps the earlier records and their serials.
	require.NoError(t, log.Append(ctx, record(3)))
	err = log.Append(ctx, record(1))
	assert.ErrorIs(t, err, ErrNotMonotonic)

	records, err = NewJSONLog(bucket, JSONFile).Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "image_2.jpg", records[1].FileName)
	assert.Equal(t, uint64(3), records[2].Serial)
}

func TestJSONLogIncompleteRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing serial", `[{"url":"a","file_name":"image_1.jpg"}]`},
		{"zero serial", `[{"serial":0,"url":"a","file_name":"image_1.jpg"}]`},
		{"legacy zero serial", `[{"Serial_Number":"0","URL":"a","Photo_Name":"image_1.jpg"}]`},
		{"bad serial", `[{"Serial_Number":"one","URL":"a","Photo_Name":"image_1.jpg"}]`},
		{"missing url", `[{"serial":1,"file_name":"image_1.jpg"}]`},
		{"missing file name", `[{"serial":1,"url":"a"}]`},
		{"foreign object", `[{"id":7,"title":"cat"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			bucket, err := blob.OpenBucket(ctx, "mem://")
			require.NoError(t, err)
			defer bucket.Close()

			require.NoError(t, bucket.WriteAll(ctx, JSONFile, []byte(tt.data), nil))
			_, err = NextSerial(ctx, NewJSONLog(bucket, JSONFile))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestJSONLogEmptyObject(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	require.NoError(t, bucket.WriteAll(ctx, JSONFile, []byte("  \n"), nil))
	next, err := NextSerial(ctx, NewJSONLog(bucket, JSONFile))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)
}

func TestJSONLogExistingTail(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	require.NoError(t, bucket.WriteAll(ctx, JSONFile,
		[]byte(`[{"serial":4,"url":"a","file_name":"image_4.jpg"},{"serial":5,"url":"b","file_name":"image_5.jpg"}]`), nil))

	next, err := NextSerial(ctx, NewJSONLog(bucket, JSONFile))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), next)
}

func TestOpenNeedsLocalDir(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bucket.Close()

	_, err = Open(ctx, Bolt, bucket, "")
	assert.ErrorIs(t, err, ErrNeedsLocalDir)
	_, err = Open(ctx, SQLite, bucket, "")
	assert.ErrorIs(t, err, ErrNeedsLocalDir)
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{"": JSON, "json": JSON, "bolt": Bolt, "sqlite": SQLite} {
		got, err := ParseBackend(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackend("csv")
	assert.Error(t, err)
}
