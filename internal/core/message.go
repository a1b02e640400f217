package core

import (
	"time"

	"github.com/causalchat/server/internal/vectorclock"
)

// Metadata carries simulation hints attached to an inbound chat frame.
type Metadata struct {
	SimulateDelay bool
	DelayMS       int
}

// Message is the domain model for a chat message: constructed by the hub on
// receipt of a chat frame, appended to the room's history window, and
// broadcast to every other room member.
type Message struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Text       string
	SentClock  vectorclock.Snapshot
	WallTime   time.Time
	Metadata   Metadata
}
