package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// defaultRoomID is the room every session lands in on join when no
	// explicit room_id is given, and the one room guaranteed to exist for
	// the lifetime of the hub.
	defaultRoomID = "main"

	// defaultPingInterval, defaultPingMissLimit, and
	// defaultMaxSimulatedDelay are the fallbacks NewHub applies when the
	// caller passes a zero value, matching config.Default().
	defaultPingInterval      = 30 * time.Second
	defaultPingMissLimit     = 2
	defaultMaxSimulatedDelay = 10 * time.Second

	// settleDelay is how long the hub waits after a leave before
	// re-broadcasting user_list, giving a fast rejoin a chance to land
	// first and avoid a flicker in the member list.
	settleDelay = 150 * time.Millisecond
)

// sessionCommand pairs an inbound command with the session that issued it,
// the shape the hub's single event loop consumes from its inbox.
type sessionCommand struct {
	session *Session
	command *Command
}

// delayedBroadcast is a chat broadcast whose fan-out was deferred by the
// inbound frame's simulate_delay metadata. It re-enters the hub's own
// event loop through the delayed channel so room membership is re-checked,
// exactly as of the delivery instant, without any goroutine but the hub's
// touching room state.
type delayedBroadcast struct {
	roomID    string
	excludeID string
	message   Message
}

// delayedUserList is a settle-then-refresh user_list scheduled after a
// leave.
type delayedUserList struct {
	roomID string
}

// createRoomRequest is a lazily-issued room creation: it is submitted from
// outside the hub's own goroutine (a REST handler) but processed on the
// event loop like anything else touching the room registry.
type createRoomRequest struct {
	roomID string
	resp   chan error
}

// listRoomsRequest asks the event loop for a snapshot of current rooms.
type listRoomsRequest struct {
	resp chan []RoomSummary
}

// RoomSummary is a read-only view of one room for room listing endpoints.
type RoomSummary struct {
	ID          string
	MemberCount int
}

// Hub is the broadcast hub: it accepts sessions, dispatches inbound
// commands by kind, stamps and fans out chat messages, and manages the
// join/leave lifecycle. A single goroutine (Run) owns the room and session
// registries exclusively; every mutation and read of shared state funnels
// through its channels rather than through a per-room mutex, a "share
// memory by communicating" discipline.
type Hub struct {
	log *zerolog.Logger

	historyWindow     int
	pingInterval      time.Duration
	pingMissLimit     int
	maxSimulatedDelay time.Duration

	register   chan *Session
	unregister chan *Session
	inbox      chan sessionCommand
	delayed    chan delayedBroadcast
	settle     chan delayedUserList
	createRoom chan createRoomRequest
	listRooms  chan listRoomsRequest

	rooms    map[string]*Room
	sessions map[*Session]struct{}
}

// NewHub constructs a hub. historyWindow <= 0 uses DefaultHistoryWindow;
// pingInterval <= 0, pingMissLimit <= 0, and maxSimulatedDelay <= 0 each
// fall back to their own default (30s, 2, 10s respectively).
func NewHub(logger *zerolog.Logger, historyWindow int, pingInterval time.Duration, pingMissLimit int, maxSimulatedDelay time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if pingMissLimit <= 0 {
		pingMissLimit = defaultPingMissLimit
	}
	if maxSimulatedDelay <= 0 {
		maxSimulatedDelay = defaultMaxSimulatedDelay
	}
	return &Hub{
		log:               logger,
		historyWindow:     historyWindow,
		pingInterval:      pingInterval,
		pingMissLimit:     pingMissLimit,
		maxSimulatedDelay: maxSimulatedDelay,
		register:          make(chan *Session),
		unregister:        make(chan *Session),
		inbox:             make(chan sessionCommand, 256),
		delayed:           make(chan delayedBroadcast, 256),
		settle:            make(chan delayedUserList, 64),
		createRoom:        make(chan createRoomRequest),
		listRooms:         make(chan listRoomsRequest),
		rooms:             make(map[string]*Room),
		sessions:          make(map[*Session]struct{}),
	}
}

// RegisterSession admits a new session. Safe to call from any goroutine.
func (h *Hub) RegisterSession(s *Session) {
	h.register <- s
}

// UnregisterSession removes a session, running the leave protocol if it was
// joined to a room. Safe to call from any goroutine, including twice.
func (h *Hub) UnregisterSession(s *Session) {
	h.unregister <- s
}

// Submit enqueues an inbound command for processing on the hub's event
// loop. Safe to call from any goroutine.
func (h *Hub) Submit(s *Session, cmd *Command) {
	h.inbox <- sessionCommand{session: s, command: cmd}
}

// CreateRoom lazily registers a new room. It returns an error if the
// room id already exists or ctx is cancelled before the hub processes it.
func (h *Hub) CreateRoom(ctx context.Context, roomID string) error {
	resp := make(chan error, 1)
	select {
	case h.createRoom <- createRoomRequest{roomID: roomID, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListRooms returns a snapshot of every room the hub currently knows about.
func (h *Hub) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	resp := make(chan []RoomSummary, 1)
	select {
	case h.listRooms <- listRoomsRequest{resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rooms := <-resp:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drives the hub's single event loop until ctx is cancelled. It must be
// started exactly once per Hub.
func (h *Hub) Run(ctx context.Context) {
	h.rooms[defaultRoomID] = NewRoom(defaultRoomID, h.historyWindow)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.handleRegister(s)
		case s := <-h.unregister:
			h.handleUnregister(s)
		case sc := <-h.inbox:
			h.dispatch(sc.session, sc.command)
		case db := <-h.delayed:
			h.deliverBroadcast(db.roomID, db.excludeID, db.message)
		case du := <-h.settle:
			if room, ok := h.rooms[du.roomID]; ok {
				h.broadcastUserList(room)
			}
		case req := <-h.createRoom:
			h.handleCreateRoom(req)
		case req := <-h.listRooms:
			req.resp <- h.roomSummaries()
		case <-ticker.C:
			h.sweepStaleSessions()
		}
	}
}

func (h *Hub) handleRegister(s *Session) {
	h.sessions[s] = struct{}{}
	h.emit(s, &Event{
		Kind:        EventInit,
		ClientID:    s.ID,
		ServerTime:  time.Now(),
		DefaultRoom: defaultRoomID,
	})
}

func (h *Hub) handleUnregister(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	h.leaveCurrentRoom(s)
	close(s.Events)
}

func (h *Hub) dispatch(s *Session, cmd *Command) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(s, cmd)
	case CommandChat:
		h.handleChat(s, cmd)
	case CommandTyping:
		h.handleTyping(s, cmd)
	case CommandRequestHistory:
		h.handleRequestHistory(s)
	case CommandGetUsers:
		h.handleGetUsers(s)
	case CommandPing:
		h.handlePing(s)
	}
}

func (h *Hub) handleJoin(s *Session, cmd *Command) {
	if s.RoomID != "" {
		h.emitStateError(s, ErrCodeAlreadyJoined, "already joined a room")
		return
	}

	roomID := cmd.RoomID
	if roomID == "" {
		roomID = defaultRoomID
	}
	room, ok := h.rooms[roomID]
	if !ok {
		h.emitStateError(s, ErrCodeRoomNotFound, "room not found: "+roomID)
		return
	}

	// Seed the joiner's clock from each existing member's own tick count:
	// copy m.clock[m.id] for each member m, leaving the joiner's
	// own entry at 0.
	for member := range room.sessions {
		s.Clock.Seed(member.ID, member.Clock.AtPeer(member.ID))
	}

	if cmd.DisplayName != "" {
		s.Name = cmd.DisplayName
	}
	s.RoomID = roomID
	s.JoinedAt = time.Now()
	room.AddSession(s)

	h.broadcastUserList(room)
	h.broadcastSystem(room, s.Name+" joined", s.ID)

	h.emit(s, &Event{
		Kind:         EventJoinSuccess,
		Room:         roomID,
		Users:        userInfos(room.Members()),
		MessageCount: len(room.history),
	})
}

func (h *Hub) handleChat(s *Session, cmd *Command) {
	room, ok := h.roomOf(s)
	if !ok {
		h.emitStateError(s, ErrCodeNotInRoom, "not in a room")
		return
	}

	snap := s.Clock.Tick()
	msg := Message{
		ID:         uuid.NewString(),
		RoomID:     room.ID,
		SenderID:   s.ID,
		SenderName: s.Name,
		Text:       cmd.Text,
		SentClock:  snap,
		WallTime:   time.Now(),
		Metadata:   cmd.Metadata,
	}
	room.AppendHistory(msg)

	h.emit(s, &Event{
		Kind:      EventMessageDelivered,
		Message:   msg,
		Timestamp: msg.WallTime,
	})

	if cmd.Metadata.SimulateDelay && cmd.Metadata.DelayMS > 0 {
		delay := time.Duration(cmd.Metadata.DelayMS) * time.Millisecond
		if delay > h.maxSimulatedDelay {
			delay = h.maxSimulatedDelay
		}
		db := delayedBroadcast{roomID: room.ID, excludeID: s.ID, message: msg}
		time.AfterFunc(delay, func() {
			select {
			case h.delayed <- db:
			default:
				h.logWarn("dropped delayed broadcast: hub delayed queue full", msg.ID)
			}
		})
		return
	}

	h.deliverBroadcast(room.ID, s.ID, msg)
}

// deliverBroadcast fans msg out to every current member of roomID except
// excludeID, re-resolving membership at the instant of delivery so a
// simulated delay correctly reflects members who joined or left meanwhile.
// Each recipient's server-side clock merges msg.SentClock as it is handed
// the message, so that recipient's later sends are stamped as causally
// after msg.
func (h *Hub) deliverBroadcast(roomID, excludeID string, msg Message) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for member := range room.sessions {
		if member.ID == excludeID {
			continue
		}
		member.Clock.Merge(msg.SentClock)
		h.emit(member, &Event{Kind: EventChat, Message: msg})
	}
}

func (h *Hub) handleTyping(s *Session, cmd *Command) {
	room, ok := h.roomOf(s)
	if !ok {
		h.emitStateError(s, ErrCodeNotInRoom, "not in a room")
		return
	}
	for member := range room.sessions {
		if member == s {
			continue
		}
		h.emit(member, &Event{
			Kind:           EventUserTyping,
			TypingUserID:   s.ID,
			TypingUsername: s.Name,
			IsTyping:       cmd.IsTyping,
		})
	}
}

func (h *Hub) handleRequestHistory(s *Session) {
	room, ok := h.roomOf(s)
	if !ok {
		h.emitStateError(s, ErrCodeNotInRoom, "not in a room")
		return
	}
	history := room.History()
	h.emit(s, &Event{
		Kind:     EventHistory,
		Room:     room.ID,
		Messages: history,
	})
}

func (h *Hub) handleGetUsers(s *Session) {
	room, ok := h.roomOf(s)
	if !ok {
		h.emitStateError(s, ErrCodeNotInRoom, "not in a room")
		return
	}
	h.emit(s, &Event{
		Kind:  EventUserList,
		Room:  room.ID,
		Users: userInfos(room.Members()),
	})
}

func (h *Hub) handlePing(s *Session) {
	s.LastPong = time.Now()
	h.emit(s, &Event{Kind: EventPong})
}

func (h *Hub) leaveCurrentRoom(s *Session) {
	if s.RoomID == "" {
		return
	}
	room, ok := h.rooms[s.RoomID]
	if !ok {
		s.RoomID = ""
		return
	}
	room.RemoveSession(s)
	name, roomID := s.Name, s.RoomID
	s.RoomID = ""

	h.broadcastSystem(room, name+" left", s.ID)

	// A brief settle before the follow-up user_list, scheduled
	// through the settle channel so it never blocks the event loop.
	time.AfterFunc(settleDelay, func() {
		select {
		case h.settle <- delayedUserList{roomID: roomID}:
		default:
		}
	})
}

func (h *Hub) broadcastUserList(room *Room) {
	users := userInfos(room.Members())
	for member := range room.sessions {
		h.emit(member, &Event{Kind: EventUserList, Room: room.ID, Users: users})
	}
}

func (h *Hub) broadcastSystem(room *Room, text, userID string) {
	for member := range room.sessions {
		h.emit(member, &Event{
			Kind:         EventSystem,
			SystemText:   text,
			SystemUserID: userID,
		})
	}
}

func (h *Hub) sweepStaleSessions() {
	deadline := time.Now().Add(-h.pingInterval * time.Duration(h.pingMissLimit))
	for s := range h.sessions {
		if s.LastPong.Before(deadline) {
			h.handleUnregister(s)
		}
	}
}

func (h *Hub) handleCreateRoom(req createRoomRequest) {
	if _, exists := h.rooms[req.roomID]; exists {
		req.resp <- fmt.Errorf("room already exists: %s", req.roomID)
		return
	}
	h.rooms[req.roomID] = NewRoom(req.roomID, h.historyWindow)
	req.resp <- nil
}

func (h *Hub) roomSummaries() []RoomSummary {
	out := make([]RoomSummary, 0, len(h.rooms))
	for id, room := range h.rooms {
		out = append(out, RoomSummary{ID: id, MemberCount: len(room.sessions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) roomOf(s *Session) (*Room, bool) {
	if s.RoomID == "" {
		return nil, false
	}
	room, ok := h.rooms[s.RoomID]
	return room, ok
}

func (h *Hub) emit(s *Session, ev *Event) {
	select {
	case s.Events <- ev:
	default:
		// Slow consumer: drop-session, not drop-message, since
		// dropping a chat frame would violate causal safety downstream.
		h.handleUnregister(s)
	}
}

// emitStateError replies to s alone with a system notice carrying the
// error text, per the state-error contract: logged, no state mutation,
// no dedicated error frame type on the wire.
func (h *Hub) emitStateError(s *Session, code, msg string) {
	h.emit(s, &Event{Kind: EventSystem, SystemText: msg, Error: coreError(code, msg)})
}

func (h *Hub) logWarn(msg, id string) {
	if h.log == nil {
		return
	}
	h.log.Warn().Str("message_id", id).Msg(msg)
}

func userInfos(sessions []*Session) []UserInfo {
	out := make([]UserInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, UserInfo{
			ID:          s.ID,
			Username:    s.Name,
			JoinedAt:    s.JoinedAt,
			VectorClock: s.Clock.Snapshot(),
		})
	}
	return out
}
