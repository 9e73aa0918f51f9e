package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Source is anything the reporter can poll for events.
type Source interface {
	DrainAvailable() []Event
}

// Options configures the progress reporter.
type Options struct {
	// Total is the number of tasks enqueued for the run.
	Total int

	// Workers is the number of parallel workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is the polling cadence.
	// Default: 100ms
	UpdateInterval time.Duration

	// SearchTerm and Folder are shown in the header.
	SearchTerm string
	Folder     string
}

// Reporter is the single consumer of a run's events. It polls a Source on a
// fixed cadence and prints the remaining count until every task is accounted
// for.
type Reporter struct {
	opts    Options
	tracker *Tracker

	startTime     time.Time
	lastRemaining int
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 100 * time.Millisecond
	}

	return &Reporter{
		opts:          opts,
		tracker:       NewTracker(opts.Total),
		lastRemaining: -1,
	}
}

// Tracker exposes the counters folded so far.
func (r *Reporter) Tracker() *Tracker {
	return r.tracker
}

// Run polls src until the tracker is done or ctx is cancelled. It returns
// ctx.Err() in the latter case.
func (r *Reporter) Run(ctx context.Context, src Source) error {
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[photofetch] Fetching %d images for %q into %s | Workers: %d\n",
		r.opts.Total, r.opts.SearchTerm, r.opts.Folder, r.opts.Workers)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		r.poll(src)
		if r.tracker.Done() {
			r.printFinalStatus()
			return nil
		}

		select {
		case <-ctx.Done():
			r.poll(src)
			fmt.Fprintln(r.opts.Output)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll drains whatever is available and redraws the status line on change.
func (r *Reporter) poll(src Source) {
	events := src.DrainAvailable()
	if len(events) == 0 && r.lastRemaining >= 0 {
		return
	}
	r.tracker.Apply(events)

	for _, ev := range events {
		if ev.Kind == Failed {
			fmt.Fprintf(r.opts.Output, "\r[photofetch] Failed: %s (%s)\n", ev.URL, ev.Reason)
		}
	}

	remaining := r.tracker.Remaining()
	if remaining == r.lastRemaining {
		return
	}
	r.lastRemaining = remaining
	r.printProgress()
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	t := r.tracker
	fmt.Fprintf(r.opts.Output, "\r[photofetch] Images remaining: %d | %d completed | %d failed | %s    ",
		t.Remaining(),
		t.Completed(),
		t.FailedCount(),
		humanize.IBytes(uint64(t.Bytes())),
	)
}

// printFinalStatus outputs the completion banner.
func (r *Reporter) printFinalStatus() {
	t := r.tracker
	duration := time.Since(r.startTime)

	fmt.Fprintln(r.opts.Output)
	if t.FailedCount() == 0 {
		fmt.Fprintf(r.opts.Output, "[photofetch] Download complete: %d images (%s) in %s\n",
			t.Completed(), humanize.IBytes(uint64(t.Bytes())), formatDuration(duration))
		return
	}
	fmt.Fprintf(r.opts.Output, "[photofetch] Download finished: %d completed, %d failed (%s) in %s\n",
		t.Completed(), t.FailedCount(), humanize.IBytes(uint64(t.Bytes())), formatDuration(duration))
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
