package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// InMemoryStore is a dev/test fallback when no database is configured.
// All state is volatile and process-local.
type InMemoryStore struct {
	mu sync.Mutex

	users       map[v1.UserID]User
	rooms       map[v1.RoomID]*RoomRecord
	memberships map[v1.RoomID][]*Membership
	messages    map[v1.RoomID][]*StoredMessage

	sessByUser map[v1.UserID]*SessionMapping
	sessByConn map[string]v1.UserID

	nextRoomID int64
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:       make(map[v1.UserID]User),
		rooms:       make(map[v1.RoomID]*RoomRecord),
		memberships: make(map[v1.RoomID][]*Membership),
		messages:    make(map[v1.RoomID][]*StoredMessage),
		sessByUser:  make(map[v1.UserID]*SessionMapping),
		sessByConn:  make(map[string]v1.UserID),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// PutUser seeds or replaces a user row. User rows are otherwise owned by the
// REST application; this exists for dev mode and tests.
func (s *InMemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// FindUser returns the user row or ErrUserNotFound.
func (s *InMemoryStore) FindUser(_ context.Context, id v1.UserID) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// CreateRoom creates a room row and returns it.
func (s *InMemoryStore) CreateRoom(_ context.Context, creator v1.UserID, now time.Time) (RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[creator]; !ok {
		return RoomRecord{}, ErrUserNotFound
	}

	s.nextRoomID++
	r := &RoomRecord{
		ID:        v1.RoomID(strconv.FormatInt(s.nextRoomID, 10)),
		CreatorID: creator,
		StartedAt: now,
	}
	s.rooms[r.ID] = r
	return *r, nil
}

// EndRoom stamps the room end time and closes every open membership.
func (s *InMemoryStore) EndRoom(_ context.Context, roomID v1.RoomID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	end := now
	r.EndedAt = &end

	for _, m := range s.memberships[roomID] {
		if m.LeftAt == nil {
			left := now
			m.LeftAt = &left
		}
	}
	return nil
}

// AddMember inserts a membership row if the user is not already a member.
func (s *InMemoryStore) AddMember(_ context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.memberships[roomID] {
		if m.UserID == userID {
			return nil
		}
	}
	s.memberships[roomID] = append(s.memberships[roomID], &Membership{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: now,
	})
	return nil
}

// LeaveRoom stamps the membership leave time.
func (s *InMemoryStore) LeaveRoom(_ context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.memberships[roomID] {
		if m.UserID == userID && m.LeftAt == nil {
			left := now
			m.LeftAt = &left
		}
	}
	return nil
}

// FindMembers returns all membership rows for the room.
func (s *InMemoryStore) FindMembers(_ context.Context, roomID v1.RoomID) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.memberships[roomID]
	out := make([]Membership, 0, len(src))
	for _, m := range src {
		out = append(out, *m)
	}
	return out, nil
}

// CreateMessage appends an unread message and returns the stored row.
func (s *InMemoryStore) CreateMessage(_ context.Context, roomID v1.RoomID, userID v1.UserID, text string) (StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	msg := &StoredMessage{
		ID:        NewID(now),
		RoomID:    roomID,
		UserID:    userID,
		Text:      text,
		Read:      false,
		CreatedAt: now,
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return *msg, nil
}

// CountUnread counts unread messages in the room matching the filter.
func (s *InMemoryStore) CountUnread(_ context.Context, roomID v1.RoomID, f UnreadFilter) (int64, error) {
	if f.AuthoredBy == "" && f.NotAuthoredBy == "" {
		return 0, errors.New("empty unread filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages[roomID] {
		if m.Read {
			continue
		}
		switch {
		case f.AuthoredBy != "" && m.UserID == f.AuthoredBy:
			n++
		case f.NotAuthoredBy != "" && m.UserID != f.NotAuthoredBy:
			n++
		}
	}
	return n, nil
}

// MarkRead flips unread messages not authored by excludeUser to read.
func (s *InMemoryStore) MarkRead(_ context.Context, roomID v1.RoomID, excludeUser v1.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages[roomID] {
		if !m.Read && m.UserID != excludeUser {
			m.Read = true
			n++
		}
	}
	return n, nil
}

// UpsertSessionMapping persists userId <-> connectionID, replacing any prior
// connection for the same user (last writer wins).
func (s *InMemoryStore) UpsertSessionMapping(_ context.Context, userID v1.UserID, connectionID string) (SessionMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessByUser[userID]; ok {
		delete(s.sessByConn, existing.ConnectionID)
		existing.ConnectionID = connectionID
		s.sessByConn[connectionID] = userID
		return *existing, true, nil
	}

	m := &SessionMapping{
		ID:           NewID(time.Now().UTC()),
		UserID:       userID,
		ConnectionID: connectionID,
	}
	s.sessByUser[userID] = m
	s.sessByConn[connectionID] = userID
	return *m, false, nil
}

// DeleteSessionMapping removes the mapping owning connectionID, if any.
func (s *InMemoryStore) DeleteSessionMapping(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessByConn[connectionID]
	if !ok {
		return nil
	}
	delete(s.sessByConn, connectionID)
	if m, ok := s.sessByUser[userID]; ok && m.ConnectionID == connectionID {
		delete(s.sessByUser, userID)
	}
	return nil
}

// FindSessionMapping returns the mapping for userID or ErrSessionNotFound.
func (s *InMemoryStore) FindSessionMapping(_ context.Context, userID v1.UserID) (SessionMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sessByUser[userID]
	if !ok {
		return SessionMapping{}, ErrSessionNotFound
	}
	return *m, nil
}
