package realtime

import (
	"log/slog"
	"sync"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Hub owns in-memory room transport groups and hands out stable handles.
// It is intentionally minimal: room rows and membership live behind Store;
// the Hub only knows which live sessions joined which room.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[v1.RoomID]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[v1.RoomID]*Room),
	}
}

// GetOrCreate returns a stable in-memory room handle.
func (h *Hub) GetOrCreate(roomID v1.RoomID) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[roomID]; ok {
		return r
	}

	r := NewRoom(h.log, roomID)
	h.rooms[roomID] = r
	return r
}

// Get returns the room handle if any live session has joined it.
func (h *Hub) Get(roomID v1.RoomID) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

// Leave removes a session from one room.
func (h *Hub) Leave(roomID v1.RoomID, sessionID string) {
	if r := h.Get(roomID); r != nil {
		r.Leave(sessionID)
	}
}

// LeaveAll removes a session from every room it joined (disconnect path).
func (h *Hub) LeaveAll(sessionID string) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		r.Leave(sessionID)
	}
}

// Broadcast fanouts an envelope to all sessions joined to roomID.
func (h *Hub) Broadcast(roomID v1.RoomID, env v1.Envelope) {
	if r := h.Get(roomID); r != nil {
		r.BroadcastExcept("", env)
	}
}

// BroadcastExcept fanouts an envelope to all sessions joined to roomID except
// the named session (typically the sender's own connection).
func (h *Hub) BroadcastExcept(roomID v1.RoomID, exceptSessionID string, env v1.Envelope) {
	if r := h.Get(roomID); r != nil {
		r.BroadcastExcept(exceptSessionID, env)
	}
}

// Room is an in-memory transport-group + broadcast fanout primitive.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  v1.RoomID

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room handle.
func NewRoom(log *slog.Logger, id v1.RoomID) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client session to the transport group.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	r.log.Info("room.member.join", "room_id", r.ID, "session_id", client.SessionID)
}

// Leave removes a client session from the transport group.
// Unlike client shutdown, leaving a room does not close the client: one
// session can join and leave many rooms over its lifetime.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	_, had := r.members[sessionID]
	delete(r.members, sessionID)
	r.mu.Unlock()

	if had {
		r.log.Info("room.member.leave", "room_id", r.ID, "session_id", sessionID)
	}
}

// Joined reports whether the session is in the transport group.
func (r *Room) Joined(sessionID string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[sessionID]
	return ok
}

// BroadcastExcept fanouts an envelope to all members except one session.
// Non-blocking: if a member queue is full or the client is shutting down,
// the envelope is dropped for that member.
func (r *Room) BroadcastExcept(exceptSessionID string, env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for sid, m := range r.members {
		if sid == exceptSessionID {
			continue
		}
		if !m.TryEnqueue(env) {
			// Drop rather than block the whole room.
			continue
		}
	}
}
