// Package storage opens the target folder that images are written into.
//
// A folder is either a local directory or any gocloud bucket URL
// (file://, s3://, gs://, mem://). Every write goes through a *blob.Bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// ErrStorageUnavailable is returned by Open when the folder does not exist or
// cannot be written.
var ErrStorageUnavailable = errors.New("storage: folder unavailable")

// ErrExists is returned by WriteFile when the name is already taken.
var ErrExists = errors.New("storage: file already exists")

// Folder is the destination of one or more runs. Its lock serializes every
// durable commit made into it.
type Folder struct {
	bucket   *blob.Bucket
	dir      string
	location string

	mu sync.Mutex
}

// Open validates location and opens it as a bucket. Plain paths must name an
// existing, writable directory.
func Open(ctx context.Context, location string) (*Folder, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: no folder selected", ErrStorageUnavailable)
	}
	if strings.Contains(location, "://") {
		return openURL(ctx, location)
	}
	return openDir(location)
}

func openDir(path string) (*Folder, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, dir)
	}

	probe, err := os.CreateTemp(dir, ".photofetch-probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not writable: %v", ErrStorageUnavailable, dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{NoTempDir: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &Folder{bucket: bucket, dir: dir, location: dir}, nil
}

func openURL(ctx context.Context, location string) (*Folder, error) {
	bucket, err := blob.OpenBucket(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	ok, err := bucket.IsAccessible(ctx)
	if err != nil || !ok {
		bucket.Close()
		if err == nil {
			err = errors.New("bucket is not accessible")
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var dir string
	if strings.HasPrefix(location, "file://") {
		dir = strings.TrimPrefix(location, "file://")
		if i := strings.IndexByte(dir, '?'); i >= 0 {
			dir = dir[:i]
		}
	}

	return &Folder{bucket: bucket, dir: dir, location: location}, nil
}

// NewFolder wraps an already open bucket. dir is the local directory behind
// it, or empty when there is none.
func NewFolder(bucket *blob.Bucket, dir string) *Folder {
	location := dir
	if location == "" {
		location = "bucket"
	}
	return &Folder{bucket: bucket, dir: dir, location: location}
}

// Bucket returns the underlying bucket.
func (f *Folder) Bucket() *blob.Bucket { return f.bucket }

// Dir returns the local directory, or "" for remote buckets.
func (f *Folder) Dir() string { return f.dir }

// Location returns what the folder was opened from.
func (f *Folder) Location() string { return f.location }

// WithLock runs fn while holding the folder's commit lock.
func (f *Folder) WithLock(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn()
}

// WriteFile stores data under a new name. It never replaces an existing
// object and fails with ErrExists instead. The existence check and the write
// are only atomic for writers holding the folder lock.
func (f *Folder) WriteFile(ctx context.Context, name string, data []byte) error {
	exists, err := f.bucket.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := f.bucket.WriteAll(ctx, name, data, nil); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return nil
}

// Remove deletes name. A missing object is not an error.
func (f *Folder) Remove(ctx context.Context, name string) error {
	if err := f.bucket.Delete(ctx, name); err != nil && !IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present.
func (f *Folder) Exists(ctx context.Context, name string) (bool, error) {
	return f.bucket.Exists(ctx, name)
}

// Close releases the bucket.
func (f *Folder) Close() error {
	return f.bucket.Close()
}

// IsNotExist reports whether err means the object does not exist.
func IsNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
