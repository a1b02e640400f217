// Package causal implements the per-recipient causal delivery engine: it
// decides whether an incoming message is deliverable now against a vector
// clock, buffers the ones that are not, and re-scans the buffer whenever the
// clock advances.
package causal

import (
	"sort"
	"sync"
	"time"

	"github.com/causalchat/server/internal/vectorclock"
)

// Reason explains why Offer did not deliver a message immediately.
type Reason string

const (
	ReasonWaitingForCausalDependencies Reason = "waiting_for_causal_dependencies"
	ReasonDuplicate                    Reason = "duplicate"
	ReasonBufferOverflow               Reason = "buffer_overflow"
)

// Envelope is the minimal shape the engine needs from a message: an id
// unique within the stream, the sender that stamped it, and the sender's
// clock at send time. Payload carries whatever the caller wants delivered
// back out unchanged (a chat message, a proto frame, ...).
type Envelope struct {
	ID         string
	SenderID   string
	Clock      vectorclock.Snapshot
	ReceivedAt time.Time
	Payload    any
}

// OfferResult is the outcome of Offer.
type OfferResult struct {
	DeliveredNow bool
	Reason       Reason
}

// BufferedInfo describes one buffered entry for observability.
type BufferedInfo struct {
	MessageID  string
	ReceivedAt time.Time
	Attempts   int
	WaitTime   time.Duration
}

// Stats are cumulative counters over the engine's lifetime (reset by Reset).
type Stats struct {
	TotalOffered         int
	DeliveredImmediately int
	BufferedTotal        int
	MaxBufferSize        int
	CurrentBufferSize    int
	TotalDelivered       int
}

type bufferedEntry struct {
	envelope Envelope
	attempts int
}

// Engine is the causal delivery buffer for one participant. It consults a
// vectorclock.Clock for readiness and, when draining, merges each delivered
// message's clock into it before evaluating the next candidate. The Clock's
// own lifecycle (reset, inspection) is independent of the engine's.
type Engine struct {
	mu       sync.Mutex
	clock    *vectorclock.Clock
	capacity int // 0 = unbounded

	buffer    map[string]*bufferedEntry
	delivered map[string]struct{}
	stats     Stats
}

// NewEngine creates an engine bound to clock. capacity <= 0 means unbounded.
func NewEngine(clock *vectorclock.Clock, capacity int) *Engine {
	return &Engine{
		clock:     clock,
		capacity:  capacity,
		buffer:    make(map[string]*bufferedEntry),
		delivered: make(map[string]struct{}),
	}
}

// Offer evaluates env against the clock's current state. If it is causally
// ready, DeliveredNow is true and the caller is responsible for merging
// env.Clock into the clock and handing env to the UI — the engine does not
// merge on this path. Otherwise env is buffered (keyed by ID) unless it is a
// duplicate of a buffered or already-delivered id, or the buffer is at
// capacity.
func (e *Engine) Offer(env Envelope) OfferResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalOffered++

	if _, ok := e.delivered[env.ID]; ok {
		return OfferResult{Reason: ReasonDuplicate}
	}
	if _, ok := e.buffer[env.ID]; ok {
		return OfferResult{Reason: ReasonDuplicate}
	}

	if e.clock.Ready(env.SenderID, env.Clock) {
		e.delivered[env.ID] = struct{}{}
		e.stats.DeliveredImmediately++
		e.stats.TotalDelivered++
		return OfferResult{DeliveredNow: true}
	}

	if e.capacity > 0 && len(e.buffer) >= e.capacity {
		return OfferResult{Reason: ReasonBufferOverflow}
	}

	if env.ReceivedAt.IsZero() {
		env.ReceivedAt = time.Now()
	}
	e.buffer[env.ID] = &bufferedEntry{envelope: env}
	e.stats.BufferedTotal++
	e.stats.CurrentBufferSize = len(e.buffer)
	if e.stats.CurrentBufferSize > e.stats.MaxBufferSize {
		e.stats.MaxBufferSize = e.stats.CurrentBufferSize
	}
	return OfferResult{Reason: ReasonWaitingForCausalDependencies}
}

// Drain performs a single scan of the buffer: entries still not ready have
// their attempt counter incremented, and entries that are now ready are
// delivered in causal/received-at/id order, merging each one's clock into
// the engine's clock before the next is evaluated. It returns the delivered
// subset for this pass; call it repeatedly (or use DrainAll) until it
// returns empty to reach the fixpoint the algorithm guarantees.
func (e *Engine) Drain() []Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ready []*bufferedEntry
	for _, be := range e.buffer {
		if e.clock.Ready(be.envelope.SenderID, be.envelope.Clock) {
			ready = append(ready, be)
		} else {
			be.attempts++
		}
	}

	// Within a single pass every ready entry is pairwise concurrent (if one
	// causally depended on another, the dependent could not also be ready
	// against the same, not-yet-advanced clock), so happens-before never
	// discriminates here; the tie-break falls straight to received-at then id.
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i].envelope, ready[j].envelope
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID < b.ID
	})

	delivered := make([]Envelope, 0, len(ready))
	for _, be := range ready {
		e.clock.Merge(be.envelope.Clock)
		delete(e.buffer, be.envelope.ID)
		e.delivered[be.envelope.ID] = struct{}{}
		delivered = append(delivered, be.envelope)
	}

	e.stats.TotalDelivered += len(delivered)
	e.stats.CurrentBufferSize = len(e.buffer)
	return delivered
}

// DrainAll calls Drain repeatedly until it returns empty and concatenates
// the results, i.e. it runs the buffer to its fixpoint in one call. This is
// bounded by the buffer's size: each pass either delivers at least one entry
// or the loop stops.
func (e *Engine) DrainAll() []Envelope {
	var all []Envelope
	for {
		batch := e.Drain()
		if len(batch) == 0 {
			return all
		}
		all = append(all, batch...)
	}
}

// Buffered enumerates current buffer entries, ordered by message id for
// deterministic observability output.
func (e *Engine) Buffered() []BufferedInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BufferedInfo, 0, len(e.buffer))
	now := time.Now()
	for id, be := range e.buffer {
		out = append(out, BufferedInfo{
			MessageID:  id,
			ReceivedAt: be.envelope.ReceivedAt,
			Attempts:   be.attempts,
			WaitTime:   now.Sub(be.envelope.ReceivedAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// Reset clears the engine's buffer, dedupe set, and stats. It does not
// touch the bound vector clock.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = make(map[string]*bufferedEntry)
	e.delivered = make(map[string]struct{})
	e.stats = Stats{}
}

// Stats returns a copy of the cumulative counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
