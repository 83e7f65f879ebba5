// Package annotations provides a clean, low-overhead annotation system
// for tracking the evaluator's round-by-round progress and debugging
// information: strata, rounds within a stratum, and the deletion
// cascade of one poll.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern.
const (
	// Poll lifecycle
	PollBegin    = "poll/begin"
	PollComplete = "poll/complete"

	// Stratum lifecycle
	StratumBegin    = "stratum/begin"
	StratumComplete = "stratum/complete"

	// Derivation-count bookkeeping
	IntensionalInsert    = "fact/insert"
	IntensionalResupport = "fact/resupport"
	IntensionalDecrement = "fact/decrement"

	// Deletion epoch
	RemovalQueued   = "removal/queued"
	CascadeSettled  = "cascade/settled"

	// Errors
	ErrorProgramInvalid = "error/program.invalid"
	ErrorRuntime        = "error/runtime"
)

// Event represents a single annotation event during evaluation.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events during one poll.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event

	mu sync.Mutex
}

// NewCollector creates a new annotation collector. A nil handler
// disables collection entirely (Add becomes a no-op), so callers that
// never pass a handler pay no bookkeeping cost.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	return c.handler
}

// Add records a new event. Thread-safe in case callers evaluate rules
// within a round concurrently.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event with timing information.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// Events returns all collected events, in order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset clears the collector for the next poll.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
