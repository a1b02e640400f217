package core

import (
	"time"

	"github.com/causalchat/server/internal/vectorclock"
)

// Session is the hub-side representation of one connected participant. It
// owns the transport's send path, its own server-side vector clock, and
// nothing else: the hub does not buffer on behalf of clients, so unlike
// internal/client, a Session runs no causal delivery engine.
type Session struct {
	ID   string
	Name string

	Commands chan *Command
	Events   chan *Event

	Clock    *vectorclock.Clock
	RoomID   string
	JoinedAt time.Time
	LastPong time.Time
}

// NewSession constructs a session with initialized channels and a vector
// clock seeded with a single {id: 0} entry.
func NewSession(id, name string) *Session {
	if name == "" {
		name = id
	}
	return &Session{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 32),
		Clock:    vectorclock.New(id),
		LastPong: time.Now(),
	}
}
