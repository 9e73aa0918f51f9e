package progress

import "sync"

// Channel collects events from many publishers for a single polling
// consumer. Publish never blocks on the consumer; the backlog is bounded only
// by memory.
type Channel struct {
	mu        sync.Mutex
	pending   []Event
	published int
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Publish appends ev to the backlog.
func (c *Channel) Publish(ev Event) {
	c.mu.Lock()
	c.pending = append(c.pending, ev)
	c.published++
	c.mu.Unlock()
}

// DrainAvailable returns every event published since the previous call, in
// publish order. It never blocks and returns nil when nothing is pending.
func (c *Channel) DrainAvailable() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	out := c.pending
	c.pending = nil
	return out
}

// Published returns the total number of events ever published.
func (c *Channel) Published() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}
