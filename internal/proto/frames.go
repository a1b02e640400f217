// Package proto implements the frame codec: self-describing JSON
// records with a type field, tolerant of unknown extra fields, decoded from
// (and encoded to) the wire over a single long-lived channel per
// participant.
package proto

import "encoding/json"

const ProtocolVersion = 1

// Inbound frame types.
const (
	TypeJoin           = "join"
	TypeChat           = "chat"
	TypeTyping         = "typing"
	TypeRequestHistory = "request_history"
	TypeGetUsers       = "get_users"
	TypePing           = "ping"
)

// Outbound frame types.
const (
	TypeInit             = "init"
	TypeJoinSuccess      = "join_success"
	TypeUserList         = "user_list"
	TypeOutboundChat     = "chat"
	TypeSystem           = "system"
	TypeHistory          = "history"
	TypeUserTyping       = "user_typing"
	TypeMessageDelivered = "message_delivered"
	TypePong             = "pong"
)

// Inbound is the generic envelope decoded first; Data is dispatched by Type
// into one of the typed structs below. A frame lacking Type decodes with an
// empty Type, which the transport's inboundToCommand then rejects as an
// unrecognized frame; unrecognized extra fields are tolerated because Data
// is decoded field-by-field into a concrete struct that simply ignores
// anything it does not declare.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinData is the payload of an inbound join frame.
type JoinData struct {
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
}

// MetadataData carries simulation hints on an inbound chat frame.
type MetadataData struct {
	SimulateDelay bool `json:"simulate_delay,omitempty"`
	DelayMS       int  `json:"delay_ms,omitempty"`
}

// ChatData is the payload of an inbound chat frame. VectorClock is accepted
// on the wire but is informational only: the hub's own server-side
// per-session clock is authoritative for sent_clock (see DESIGN.md).
type ChatData struct {
	Text        string        `json:"text"`
	VectorClock []ClockEntry  `json:"vector_clock,omitempty"`
	MessageID   string        `json:"message_id,omitempty"`
	Metadata    *MetadataData `json:"metadata,omitempty"`
}

// TypingData is the payload of an inbound typing frame.
type TypingData struct {
	IsTyping bool `json:"is_typing"`
}

// InitFrame greets a freshly accepted connection.
type InitFrame struct {
	Type        string `json:"type"`
	ClientID    string `json:"client_id"`
	ServerTime  int64  `json:"server_time"`
	DefaultRoom string `json:"default_room"`
}

// ChatFrame is both the outbound chat frame and the shape used inside
// HistoryFrame.Messages.
type ChatFrame struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Username    string       `json:"username"`
	Text        string       `json:"text"`
	VectorClock []ClockEntry `json:"vector_clock"`
	Timestamp   int64        `json:"timestamp"`
	RoomID      string       `json:"room_id"`
	Metadata    MetadataData `json:"metadata"`
}

// UserEntry is one row of a user_list/join_success users array.
type UserEntry struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	JoinedAt    int64        `json:"joined_at"`
	VectorClock []ClockEntry `json:"vector_clock"`
}

// JoinSuccessFrame replies to a joiner once join completes.
type JoinSuccessFrame struct {
	Type         string      `json:"type"`
	Room         string      `json:"room"`
	Users        []UserEntry `json:"users"`
	MessageCount int         `json:"message_count"`
}

// UserListFrame reports current room membership.
type UserListFrame struct {
	Type      string      `json:"type"`
	Users     []UserEntry `json:"users"`
	Timestamp int64       `json:"timestamp"`
}

// SystemFrame is an unstamped notice, never buffered by a causal engine.
type SystemFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
}

// HistoryFrame replies to request_history with the room's recent window.
type HistoryFrame struct {
	Type     string      `json:"type"`
	Messages []ChatFrame `json:"messages"`
	Total    int         `json:"total"`
}

// UserTypingFrame relays a typing indicator.
type UserTypingFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// MessageDeliveredFrame acknowledges the sender's own chat frame.
type MessageDeliveredFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type string `json:"type"`
}
