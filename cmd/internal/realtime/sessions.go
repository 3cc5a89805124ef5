package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Sessions is the session registry: it maps a user identity to its current
// live connection. At most one live session per user; a re-registration for
// the same identity replaces the prior connection handle (last writer wins).
//
// Registration also persists the mapping through the Store so other server
// processes could resolve it; the in-memory map is what this process uses.
type Sessions struct {
	log   *slog.Logger
	store Store

	mu        sync.RWMutex
	byUser    map[v1.UserID]*Client
	bySession map[string]v1.UserID
}

// NewSessions constructs a session registry backed by store.
func NewSessions(log *slog.Logger, store Store) *Sessions {
	return &Sessions{
		log:       log,
		store:     store,
		byUser:    make(map[v1.UserID]*Client),
		bySession: make(map[string]v1.UserID),
	}
}

// Register binds userID to client. The user must exist in the store
// (ErrUserNotFound otherwise, and no mapping is created). Resynced reports
// whether an existing persisted mapping was updated in place.
func (s *Sessions) Register(ctx context.Context, userID v1.UserID, client *Client) (mappingID string, resynced bool, err error) {
	if userID == "" || client == nil {
		return "", false, fmt.Errorf("register: missing user id")
	}

	if _, err := s.store.FindUser(ctx, userID); err != nil {
		return "", false, err
	}

	mapping, resynced, err := s.store.UpsertSessionMapping(ctx, userID, client.SessionID)
	if err != nil {
		return "", false, fmt.Errorf("persist session mapping: %w", err)
	}

	s.mu.Lock()
	if prev, ok := s.byUser[userID]; ok && prev != client {
		delete(s.bySession, prev.SessionID)
	}
	s.byUser[userID] = client
	s.bySession[client.SessionID] = userID
	s.mu.Unlock()

	client.BindUser(userID)

	s.log.Info("session.register", "user_id", userID, "session_id", client.SessionID, "resynced", resynced)
	return mapping.ID, resynced, nil
}

// Resolve returns the live client for userID, or nil.
func (s *Sessions) Resolve(userID v1.UserID) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUser[userID]
}

// RemoveBySession removes any session owning sessionID and deletes the
// persisted mapping. Lookup is by connection, not by user: disconnect events
// carry only the connection identity. Returns the owning user, if any.
func (s *Sessions) RemoveBySession(ctx context.Context, sessionID string) (v1.UserID, bool) {
	s.mu.Lock()
	userID, ok := s.bySession[sessionID]
	if ok {
		delete(s.bySession, sessionID)
		if cur, live := s.byUser[userID]; live && cur.SessionID == sessionID {
			delete(s.byUser, userID)
		}
	}
	s.mu.Unlock()

	if err := s.store.DeleteSessionMapping(ctx, sessionID); err != nil {
		s.log.Warn("session.mapping.delete.fail", "session_id", sessionID, "err", err)
	}

	if ok {
		s.log.Info("session.remove", "user_id", userID, "session_id", sessionID)
	}
	return userID, ok
}

// SendToUser resolves userID's live connection and offers env to its send
// queue. Returns false when the user has no live session or the queue is
// full/shutting down.
func (s *Sessions) SendToUser(userID v1.UserID, env v1.Envelope) bool {
	return s.Resolve(userID).TryEnqueue(env)
}

// BroadcastAll offers env to every live session (presence change fan-out).
func (s *Sessions) BroadcastAll(env v1.Envelope) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.byUser))
	for _, c := range s.byUser {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.TryEnqueue(env)
	}
}

// Count returns how many live sessions are registered.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}
