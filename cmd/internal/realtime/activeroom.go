package realtime

import (
	"sync"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// ActiveRooms tracks which room each user is currently viewing. It exists for
// one purpose: suppressing push notifications that would duplicate a live
// delivery the user is already looking at. Volatile, at most one entry per
// user.
type ActiveRooms struct {
	mu     sync.Mutex
	byUser map[v1.UserID]v1.RoomID
}

// NewActiveRooms constructs an empty tracker.
func NewActiveRooms() *ActiveRooms {
	return &ActiveRooms{byUser: make(map[v1.UserID]v1.RoomID)}
}

// Enter sets or overwrites the user's viewed room.
func (a *ActiveRooms) Enter(userID v1.UserID, roomID v1.RoomID) {
	if userID == "" || roomID == "" {
		return
	}
	a.mu.Lock()
	a.byUser[userID] = roomID
	a.mu.Unlock()
}

// Leave clears the mapping only if the stored room matches roomID, so a stale
// leave for a room the user already switched away from cannot clobber the new
// state. An empty roomID clears unconditionally.
func (a *ActiveRooms) Leave(userID v1.UserID, roomID v1.RoomID) {
	if userID == "" {
		return
	}
	a.mu.Lock()
	if cur, ok := a.byUser[userID]; ok && (roomID == "" || cur == roomID) {
		delete(a.byUser, userID)
	}
	a.mu.Unlock()
}

// Clear drops the user's mapping unconditionally (disconnect path).
func (a *ActiveRooms) Clear(userID v1.UserID) {
	a.mu.Lock()
	delete(a.byUser, userID)
	a.mu.Unlock()
}

// IsViewing reports whether the user is currently viewing roomID.
func (a *ActiveRooms) IsViewing(userID v1.UserID, roomID v1.RoomID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byUser[userID] == roomID
}
