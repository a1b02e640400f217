// Package client implements the causal-engine-driven consumer side of the
// wire protocol: the optional, single-threaded cooperative participant that
// dials the hub, runs its own vector clock and causal delivery engine,
// and reconciles its own optimistically-echoed sends against
// the hub's message_delivered acknowledgement. The hub-side Session in
// internal/core never runs this engine; only a consumer like this one does.
package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/causalchat/server/internal/causal"
	"github.com/causalchat/server/internal/vectorclock"
)

// Message is a chat message as seen by the causal-engine-driven consumer,
// independent of its wire encoding.
type Message struct {
	ID         string
	SenderID   string
	SenderName string
	Text       string
	Clock      vectorclock.Snapshot
	Timestamp  time.Time
}

// Client tracks one participant's view of the conversation: its own vector
// clock and a causal delivery engine bound to that clock for everything it
// receives from the hub.
type Client struct {
	name      string
	bufferCap int

	selfID string
	clock  *vectorclock.Clock
	engine *causal.Engine

	// pending holds provisional ids for sends awaiting message_delivered,
	// in send order. The hub processes one session's commands strictly
	// FIFO, so the N-th delivered ack always corresponds to the N-th
	// still-pending send: reconciliation is by order, not by an
	// echoed provisional id, since the wire schema's message_delivered
	// frame carries only the hub-assigned final id.
	pending []string
}

// New constructs a client not yet bound to a participant identity. Call
// HandleInit once the hub's init frame arrives to complete construction.
// bufferCap <= 0 leaves the causal engine's buffer unbounded.
func New(name string, bufferCap int) *Client {
	return &Client{name: name, bufferCap: bufferCap}
}

// HandleInit binds the client to the identity the hub assigned on accept
// and initializes its vector clock and causal engine under that id.
func (c *Client) HandleInit(clientID string) {
	c.selfID = clientID
	c.clock = vectorclock.New(clientID)
	c.engine = causal.NewEngine(c.clock, c.bufferCap)
}

// SelfID returns the bound participant identifier, or "" before HandleInit.
func (c *Client) SelfID() string { return c.selfID }

// Name returns the display name this client will join with.
func (c *Client) Name() string { return c.name }

// Clock exposes the underlying clock for observability (e.g. printing the
// client's current vector alongside delivered messages).
func (c *Client) Clock() *vectorclock.Clock { return c.clock }

// PrepareSend advances the client's own clock for optimistic display and
// returns a provisional message id to show immediately, before the hub's
// message_delivered ack arrives with the final id.
func (c *Client) PrepareSend() (provisionalID string, tick vectorclock.Snapshot) {
	provisionalID = uuid.NewString()
	c.pending = append(c.pending, provisionalID)
	return provisionalID, c.clock.Tick()
}

// ReconcileDelivered pops the oldest pending provisional id, matching it to
// a message_delivered ack that just arrived. ok is false if no send is
// outstanding (a protocol violation from the hub).
func (c *Client) ReconcileDelivered() (provisionalID string, ok bool) {
	if len(c.pending) == 0 {
		return "", false
	}
	provisionalID, c.pending = c.pending[0], c.pending[1:]
	return provisionalID, true
}

// Offer feeds one inbound chat message from the hub through the causal
// engine. The hub's broadcast rule excludes the sender, so msg is always
// from another participant; own sends must never reach Offer. It returns
// every message that becomes deliverable as a result, in causal order:
// msg itself if it was immediately ready, followed by whatever the
// resulting drain cascades releases from the buffer.
func (c *Client) Offer(msg Message) []Message {
	res := c.engine.Offer(causal.Envelope{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		Clock:      msg.Clock,
		ReceivedAt: msg.Timestamp,
		Payload:    msg,
	})
	if !res.DeliveredNow {
		return nil
	}
	c.clock.Merge(msg.Clock)
	delivered := []Message{msg}
	return append(delivered, c.drainAll()...)
}

// OfferHistory replays a batch of history messages through the engine in
// the order the hub sent them, skipping any authored by this client itself
// — it already advanced past its own sends and must not feed them back
// through the engine.
func (c *Client) OfferHistory(messages []Message) []Message {
	var delivered []Message
	for _, m := range messages {
		if m.SenderID == c.selfID {
			continue
		}
		delivered = append(delivered, c.Offer(m)...)
	}
	return delivered
}

// Buffered exposes the causal engine's buffer contents for observability.
func (c *Client) Buffered() []causal.BufferedInfo { return c.engine.Buffered() }

// Stats exposes the causal engine's cumulative counters for observability.
func (c *Client) Stats() causal.Stats { return c.engine.Stats() }

func (c *Client) drainAll() []Message {
	envs := c.engine.DrainAll()
	out := make([]Message, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Payload.(Message))
	}
	return out
}
