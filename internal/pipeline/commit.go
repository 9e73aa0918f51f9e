package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ligustah/photofetch/internal/storage"
	"github.com/ligustah/photofetch/pkg/ledger"
)

// serialAllocator hands out serial numbers. It has no lock of its own: it
// is only touched inside the folder's commit section.
type serialAllocator struct {
	next uint64
}

func (a *serialAllocator) Next() uint64 {
	s := a.next
	a.next++
	return s
}

// Release gives back s if nothing was allocated after it.
func (a *serialAllocator) Release(s uint64) {
	if s+1 == a.next {
		a.next = s
	}
}

// AtLeast moves the counter forward to s. It never moves it back.
func (a *serialAllocator) AtLeast(s uint64) {
	if s > a.next {
		a.next = s
	}
}

// maxTakenNames bounds how many serials one commit skips over because their
// file names are already present in the folder.
const maxTakenNames = 100

// commit stores body as the next image of the folder. The serial, the file
// and the ledger record are produced under one lock, in that order.
//
// Other runs may share the folder, so the counter is first raised past the
// ledger tail. A name that already exists is never overwritten: its serial
// is skipped. A failed write releases the serial; a failed append removes
// the file this commit wrote and leaves the serial consumed.
func (r *Run) commit(task Task, body []byte) (ledger.Record, error) {
	// Commits finish even if the run is cancelled halfway through one.
	ctx := context.WithoutCancel(r.ctx)

	var rec ledger.Record
	err := r.folder.WithLock(func() error {
		if r.Cancelled() {
			return ErrCancelled
		}

		next, err := ledger.NextSerial(ctx, r.ledger)
		if err != nil {
			return &CommitError{URL: task.URL, Op: "read", Err: err}
		}
		r.serials.AtLeast(next)

		var serial uint64
		var name string
		for skipped := 0; ; skipped++ {
			serial = r.serials.Next()
			name = r.fileName(serial, task)

			err := r.folder.WriteFile(ctx, name, body)
			if err == nil {
				break
			}
			if errors.Is(err, storage.ErrExists) && skipped < maxTakenNames {
				r.logf("%s already exists, skipping serial %d", name, serial)
				continue
			}
			r.serials.Release(serial)
			return &CommitError{URL: task.URL, Serial: serial, Op: "write", Err: err}
		}

		rec = ledger.Record{
			Serial:    serial,
			URL:       task.URL,
			FileName:  name,
			Metadata:  task.Metadata,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.ledger.Append(ctx, rec); err != nil {
			if rmErr := r.folder.Remove(ctx, name); rmErr != nil {
				r.logf("could not remove %s after failed append: %v", name, rmErr)
			}
			return &CommitError{URL: task.URL, Serial: serial, Op: "append", Err: err}
		}
		return nil
	})
	return rec, err
}

// fileName derives the stored name from the serial and the task's metadata.
func (r *Run) fileName(serial uint64, task Task) string {
	return fmt.Sprintf(r.opts.FilePattern, serial) + "." + extension(task)
}

// extension picks the file extension: the "ext" metadata key, then the URL
// path, then jpg.
func extension(task Task) string {
	if ext := cleanExt(task.Metadata["ext"]); ext != "" {
		return ext
	}
	if u, err := url.Parse(task.URL); err == nil {
		if ext := cleanExt(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	return "jpg"
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 5 {
		return ""
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
