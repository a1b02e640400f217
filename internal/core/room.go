package core

// DefaultHistoryWindow bounds a room's in-memory recent-history FIFO.
const DefaultHistoryWindow = 50

// Room groups sessions subscribed to the same broadcast domain and retains
// a bounded window of recent messages for late joiners. Room is
// not safe for concurrent use on its own: it is exclusively owned and
// mutated by the Hub's single event loop goroutine.
type Room struct {
	ID            string
	sessions      map[*Session]struct{}
	history       []Message
	historyWindow int
}

// NewRoom constructs an empty room with the given history window size.
func NewRoom(id string, historyWindow int) *Room {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Room{
		ID:            id,
		sessions:      make(map[*Session]struct{}),
		historyWindow: historyWindow,
	}
}

// AddSession inserts a session into the room. Returns true if newly added.
func (r *Room) AddSession(s *Session) bool {
	if _, exists := r.sessions[s]; exists {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// RemoveSession deletes a session from the room. Returns true if removed.
func (r *Room) RemoveSession(s *Session) bool {
	if _, exists := r.sessions[s]; !exists {
		return false
	}
	delete(r.sessions, s)
	return true
}

// Empty reports whether the room has no sessions left.
func (r *Room) Empty() bool {
	return len(r.sessions) == 0
}

// Members returns a snapshot slice of the room's current sessions, ordered
// by join time, for user_list/join_success frames.
func (r *Room) Members() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	sortSessionsByJoinedAt(out)
	return out
}

func sortSessionsByJoinedAt(sessions []*Session) {
	for i := 1; i < len(sessions); i++ {
		for j := i; j > 0 && sessions[j].JoinedAt.Before(sessions[j-1].JoinedAt); j-- {
			sessions[j], sessions[j-1] = sessions[j-1], sessions[j]
		}
	}
}

// AppendHistory appends a message to the room's history, dropping the
// oldest entry once the window is full.
func (r *Room) AppendHistory(m Message) {
	r.history = append(r.history, m)
	if len(r.history) > r.historyWindow {
		r.history = r.history[len(r.history)-r.historyWindow:]
	}
}

// History returns a copy of the room's current history window.
func (r *Room) History() []Message {
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}
