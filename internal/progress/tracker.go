package progress

// Tracker folds drained events into the counters a user sees. It is not
// safe for concurrent use; it belongs to the consumer.
type Tracker struct {
	total     int
	completed int
	failed    []Event
	bytes     int64
}

// NewTracker creates a tracker for a run of total tasks.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// Apply folds events into the counters.
func (t *Tracker) Apply(events []Event) {
	for _, ev := range events {
		switch ev.Kind {
		case Completed:
			t.completed++
			t.bytes += ev.Size
		case Failed:
			t.failed = append(t.failed, ev)
		}
	}
}

// Total returns the number of tasks in the run.
func (t *Tracker) Total() int { return t.total }

// Completed returns the number of Completed events seen.
func (t *Tracker) Completed() int { return t.completed }

// FailedCount returns the number of Failed events seen.
func (t *Tracker) FailedCount() int { return len(t.failed) }

// Failures returns the Failed events seen so far.
func (t *Tracker) Failures() []Event { return t.failed }

// Bytes returns the payload bytes committed so far.
func (t *Tracker) Bytes() int64 { return t.bytes }

// Remaining is the number of tasks without a terminal event.
func (t *Tracker) Remaining() int {
	r := t.total - t.completed - len(t.failed)
	if r < 0 {
		return 0
	}
	return r
}

// Done reports whether every task has produced its terminal event.
func (t *Tracker) Done() bool {
	return t.completed+len(t.failed) >= t.total
}
