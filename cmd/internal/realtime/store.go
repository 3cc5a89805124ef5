// Package realtime contains the presence, call-signaling, and message fan-out
// core behind the websocket gateway.
package realtime

import (
	"context"
	"errors"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Well-known store errors. Handlers convert these into named error events.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session mapping not found")
)

// User is the read-only projection of a user row this core consumes.
type User struct {
	ID        v1.UserID
	Name      string
	AvatarURL string
	PushToken string
}

// RoomRecord is a chat/call room row.
type RoomRecord struct {
	ID        v1.RoomID
	CreatorID v1.UserID
	StartedAt time.Time
	EndedAt   *time.Time
}

// Membership links a user to a room.
type Membership struct {
	RoomID   v1.RoomID
	UserID   v1.UserID
	JoinedAt time.Time
	LeftAt   *time.Time
}

// StoredMessage is the canonical persisted message representation.
type StoredMessage struct {
	ID        string
	RoomID    v1.RoomID
	UserID    v1.UserID
	Text      string
	Read      bool
	CreatedAt time.Time
}

// SessionMapping is the persisted userId <-> connection mapping, kept so other
// server processes could in principle resolve a user's live connection.
type SessionMapping struct {
	ID           string
	UserID       v1.UserID
	ConnectionID string
}

// UnreadFilter selects which unread messages to count. Exactly one field is
// set: AuthoredBy for the private-room shape (messages from the sender),
// NotAuthoredBy for the group shape (messages from anyone but the reader).
type UnreadFilter struct {
	AuthoredBy    v1.UserID
	NotAuthoredBy v1.UserID
}

// Store is the narrow persistence boundary of the realtime core.
//
// The relational schema and the REST query layer are owned elsewhere; this
// interface covers only what the socket handlers need. Implementations:
// in-memory (dev/tests), SQLite (single node), PostgreSQL (production).
type Store interface {
	FindUser(ctx context.Context, id v1.UserID) (User, error)

	CreateRoom(ctx context.Context, creator v1.UserID, now time.Time) (RoomRecord, error)
	EndRoom(ctx context.Context, roomID v1.RoomID, now time.Time) error
	AddMember(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error
	LeaveRoom(ctx context.Context, roomID v1.RoomID, userID v1.UserID, now time.Time) error
	FindMembers(ctx context.Context, roomID v1.RoomID) ([]Membership, error)

	CreateMessage(ctx context.Context, roomID v1.RoomID, userID v1.UserID, text string) (StoredMessage, error)
	CountUnread(ctx context.Context, roomID v1.RoomID, f UnreadFilter) (int64, error)
	// MarkRead flips every unread message in the room not authored by
	// excludeUser to read, returning how many rows changed.
	MarkRead(ctx context.Context, roomID v1.RoomID, excludeUser v1.UserID) (int64, error)

	// UpsertSessionMapping persists userId <-> connectionID. Resynced is true
	// when an existing mapping was updated in place (re-registration).
	UpsertSessionMapping(ctx context.Context, userID v1.UserID, connectionID string) (mapping SessionMapping, resynced bool, err error)
	DeleteSessionMapping(ctx context.Context, connectionID string) error
	FindSessionMapping(ctx context.Context, userID v1.UserID) (SessionMapping, error)

	Close() error
}
