package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	fetchhttp "github.com/ligustah/photofetch/internal/http"
	"github.com/ligustah/photofetch/internal/progress"
	"github.com/ligustah/photofetch/internal/queue"
	"github.com/ligustah/photofetch/pkg/ledger"
)

// Task is one image to fetch. It is not modified after Start.
type Task struct {
	URL      string
	Metadata map[string]string
}

// Fetcher retrieves a payload in a single attempt.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Folder is where payloads are written. WithLock must serialize all commits
// into the same folder. WriteFile must not replace an existing file; it
// fails with an error wrapping storage.ErrExists instead.
type Folder interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	WithLock(fn func() error) error
}

// Options configures a run.
type Options struct {
	// Workers is the number of parallel download workers.
	Workers int

	// MaxRetries is the total number of fetch attempts per task. Values
	// below 1 mean a single attempt.
	MaxRetries int

	// RetryDelay is the constant wait between attempts.
	RetryDelay time.Duration

	// RequestTimeout bounds each attempt. Used when Fetcher is nil.
	RequestTimeout time.Duration

	// UserAgent is sent with each request. Used when Fetcher is nil.
	UserAgent string

	// FilePattern formats the serial into the base file name.
	// Default: "image_%d"
	FilePattern string

	// Fetcher defaults to an HTTP client built from RequestTimeout and
	// UserAgent.
	Fetcher Fetcher

	// Folder and Ledger are required.
	Folder Folder
	Ledger ledger.Log

	// Logf receives diagnostic lines. Nil discards them.
	Logf func(format string, args ...any)
}

// Defaults used when Options leaves a field unset.
const (
	DefaultWorkers        = 5
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultFilePattern    = "image_%d"
)

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.FilePattern == "" {
		o.FilePattern = DefaultFilePattern
	}
	if o.Fetcher == nil {
		httpOpts := fetchhttp.DefaultOptions()
		httpOpts.Timeout = o.RequestTimeout
		httpOpts.MaxIdleConnsPerHost = o.Workers * 2
		if o.UserAgent != "" {
			httpOpts.UserAgent = o.UserAgent
		}
		o.Fetcher = fetchhttp.NewClient(httpOpts)
	}
}

// Run is one pipeline execution. All of its state is shared by reference
// among its workers and nothing else.
type Run struct {
	id   uuid.UUID
	opts Options

	folder  Folder
	ledger  ledger.Log
	fetcher Fetcher
	queue   *queue.Queue[Task]
	events  *progress.Channel
	serials *serialAllocator
	first   uint64
	total   int

	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	stopOnce  sync.Once

	failMu   sync.Mutex
	failures []Failure

	workers sync.WaitGroup
	done    chan struct{}
}

// Start seeds the serial allocator from the folder's ledger, queues tasks and
// launches the worker pool. It returns once the workers are running.
//
// Cancelling ctx has the same effect as calling Cancel.
func Start(ctx context.Context, tasks []Task, opts Options) (*Run, error) {
	if opts.Folder == nil {
		return nil, errors.New("pipeline: folder is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("pipeline: ledger is required")
	}
	opts.applyDefaults()

	first, err := ledger.NextSerial(ctx, opts.Ledger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: seed serial: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:      uuid.New(),
		opts:    opts,
		folder:  opts.Folder,
		ledger:  opts.Ledger,
		fetcher: opts.Fetcher,
		queue:   queue.New[Task](),
		events:  progress.NewChannel(),
		serials: &serialAllocator{next: first},
		first:   first,
		total:   len(tasks),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	for _, task := range tasks {
		// The queue is private and still open here.
		_ = r.queue.Enqueue(task)
	}
	r.queue.Close()

	r.logf("run %s: %d tasks, %d workers, first serial %d", r.id, r.total, opts.Workers, first)

	for i := 0; i < opts.Workers; i++ {
		r.workers.Add(1)
		go r.worker(i)
	}

	workersDone := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(workersDone)
	}()

	go func() {
		select {
		case <-runCtx.Done():
			r.stop()
			<-workersDone
		case <-workersDone:
		}
		cancel()
		close(r.done)
	}()

	return r, nil
}

// ID returns the run's identifier.
func (r *Run) ID() uuid.UUID { return r.id }

// Total returns the number of tasks the run started with.
func (r *Run) Total() int { return r.total }

// FirstSerial returns the serial the run was seeded with.
func (r *Run) FirstSerial() uint64 {
	return r.first
}

// Events returns the run's progress channel.
func (r *Run) Events() *progress.Channel { return r.events }

// DrainAvailable returns the progress events published since the last call.
// It never blocks.
func (r *Run) DrainAvailable() []progress.Event { return r.events.DrainAvailable() }

// Cancel stops the run. Tasks not yet dequeued are reported as failed, no
// commit starts after Cancel returns, and fetches already in flight are left
// to finish or time out. Calling Cancel more than once, or after the run
// finished, is harmless.
func (r *Run) Cancel() {
	r.stop()
	r.cancel()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (r *Run) Cancelled() bool { return r.cancelled.Load() }

// Done is closed once every worker has exited.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until every worker has exited.
func (r *Run) Wait() { <-r.done }

// Failures returns the tasks that ended without a commit so far. The list is
// advisory; it has no effect on how the run completes.
func (r *Run) Failures() []Failure {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// stop flips the cancellation flag, aborts the queue and fails every task
// that never reached a worker.
func (r *Run) stop() {
	r.stopOnce.Do(func() {
		// The flag is set under the folder lock so no commit section can be
		// midway between its check and its write when stop returns.
		r.folder.WithLock(func() error {
			r.cancelled.Store(true)
			return nil
		})

		pending := r.queue.Abort()
		if len(pending) > 0 {
			r.logf("run %s cancelled: %d tasks not started", r.id, len(pending))
		}
		for _, task := range pending {
			r.fail(task, ErrCancelled)
		}
	})
}

func (r *Run) fail(task Task, err error) {
	r.failMu.Lock()
	r.failures = append(r.failures, Failure{URL: task.URL, Err: err})
	r.failMu.Unlock()

	r.events.Publish(progress.FailedEvent(task.URL, err))
}

func (r *Run) logf(format string, args ...any) {
	if r.opts.Logf != nil {
		r.opts.Logf(format, args...)
	}
}
