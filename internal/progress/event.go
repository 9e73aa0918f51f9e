package progress

import "fmt"

// Kind identifies a terminal task outcome.
type Kind int

const (
	// Completed means the image was written and recorded in the ledger.
	Completed Kind = iota + 1
	// Failed means the task ended without a commit.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is published once per task when it reaches a terminal state.
type Event struct {
	Kind Kind
	URL  string

	// Set for Completed events.
	Serial   uint64
	FileName string
	Size     int64

	// Set for Failed events.
	Reason string
}

// CompletedEvent builds a Completed event.
func CompletedEvent(url string, serial uint64, fileName string, size int64) Event {
	return Event{Kind: Completed, URL: url, Serial: serial, FileName: fileName, Size: size}
}

// FailedEvent builds a Failed event from the last error seen for url.
func FailedEvent(url string, err error) Event {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Event{Kind: Failed, URL: url, Reason: reason}
}
