package realtime

import "testing"

func TestActiveRoomsConditionalLeave(t *testing.T) {
	t.Parallel()

	a := NewActiveRooms()

	a.Enter("u1", "room-1")
	if !a.IsViewing("u1", "room-1") {
		t.Fatal("user not viewing room-1 after Enter")
	}

	// The user switches rooms; a late leave for the old room must not clear
	// the new state.
	a.Enter("u1", "room-2")
	a.Leave("u1", "room-1")
	if !a.IsViewing("u1", "room-2") {
		t.Fatal("stale leave clobbered the current room")
	}

	// Matching leave clears.
	a.Leave("u1", "room-2")
	if a.IsViewing("u1", "room-2") {
		t.Fatal("user still viewing after matching leave")
	}
}

func TestActiveRoomsEmptyLeaveClearsUnconditionally(t *testing.T) {
	t.Parallel()

	a := NewActiveRooms()
	a.Enter("u1", "room-1")
	a.Leave("u1", "")
	if a.IsViewing("u1", "room-1") {
		t.Fatal("empty-room leave did not clear")
	}
}

func TestActiveRoomsClear(t *testing.T) {
	t.Parallel()

	a := NewActiveRooms()
	a.Enter("u1", "room-1")
	a.Clear("u1")
	if a.IsViewing("u1", "room-1") {
		t.Fatal("Clear left the mapping behind")
	}
}

func TestActiveRoomsIgnoresEmptyIDs(t *testing.T) {
	t.Parallel()

	a := NewActiveRooms()
	a.Enter("", "room-1")
	a.Enter("u1", "")
	if a.IsViewing("u1", "room-1") {
		t.Fatal("empty ids created a mapping")
	}
}
