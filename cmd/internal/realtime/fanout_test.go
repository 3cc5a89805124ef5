package realtime

import (
	"context"
	"testing"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

type fanoutHarness struct {
	hub      *Hub
	sessions *Sessions
	rooms    *ActiveRooms
	store    *InMemoryStore
	push     *recordingPush
	del      *Deliverer
}

func newFanoutHarness(t *testing.T, users ...User) *fanoutHarness {
	t.Helper()

	store := seedStore(users...)
	hub := NewHub(testLogger())
	sessions := NewSessions(testLogger(), store)
	rooms := NewActiveRooms()
	push := &recordingPush{}

	return &fanoutHarness{
		hub:      hub,
		sessions: sessions,
		rooms:    rooms,
		store:    store,
		push:     push,
		del:      NewDeliverer(testLogger(), hub, sessions, rooms, store, push),
	}
}

// join registers a live session for userID, records room membership, and puts
// the session in the room transport group.
func (h *fanoutHarness) join(t *testing.T, userID v1.UserID, sessionID string, roomID v1.RoomID) *Client {
	t.Helper()

	c := registerUser(t, h.sessions, userID, sessionID)
	if err := h.store.AddMember(context.Background(), roomID, userID, time.Now().UTC()); err != nil {
		t.Fatalf("add member: %v", err)
	}
	h.hub.GetOrCreate(roomID).Join(c)
	return c
}

func messagePayload(from v1.UserID, room v1.RoomID, text string, persist bool) v1.RoomMessagePayload {
	return v1.RoomMessagePayload{
		UserID:     from,
		RoomID:     room,
		Message:    text,
		Name:       "Sender",
		IsSaveInDB: persist,
	}
}

func TestDeliverPrivateRoom(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t, User{ID: "alice", Name: "Alice"}, User{ID: "bob", Name: "Bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	bob := h.join(t, "bob", "conn-b", "room-1")
	h.rooms.Enter("bob", "room-1")

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "hello", true)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// Bob sees the live message, then the unread count, then the list update.
	var msg v1.RoomMessageDeliverPayload
	recvPayload(t, bob, v1.TypeRoomMessageDeliver, &msg)
	if msg.Message != "hello" || msg.UserID != "alice" {
		t.Fatalf("deliver payload = %+v", msg)
	}

	var unread v1.UpdateUnreadCountPayload
	recvPayload(t, bob, v1.TypeUpdateUnreadCount, &unread)
	if unread.SenderID != "alice" || unread.RecipientID != "bob" || unread.UnreadCount != 1 {
		t.Fatalf("unread payload = %+v", unread)
	}

	var last v1.LastMessageUpdatePayload
	recvPayload(t, bob, v1.TypeLastMessageUpdate, &last)
	if last.OtherUserID != "alice" || last.FromMe {
		t.Fatalf("recipient last-message payload = %+v", last)
	}

	// Alice must not hear her own message, only the mirrored list update.
	recvPayload(t, alice, v1.TypeLastMessageUpdate, &last)
	if last.OtherUserID != "bob" || !last.FromMe {
		t.Fatalf("sender last-message payload = %+v", last)
	}
	wantNoEnvelope(t, alice)

	// Bob is viewing the room on a live session: no push.
	if h.push.messageCount() != 0 {
		t.Fatalf("pushes = %d, want 0", h.push.messageCount())
	}
}

func TestDeliverUnreadAccumulates(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t, User{ID: "alice"}, User{ID: "bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	bob := h.join(t, "bob", "conn-b", "room-1")
	h.rooms.Enter("bob", "room-1")

	for i := 0; i < 3; i++ {
		if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "m", true)); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	drainClient(alice)

	var lastUnread int64
	for i := 0; i < 3; i++ {
		recvEnvelope(t, bob, v1.TypeRoomMessageDeliver)
		var unread v1.UpdateUnreadCountPayload
		recvPayload(t, bob, v1.TypeUpdateUnreadCount, &unread)
		lastUnread = unread.UnreadCount
		recvEnvelope(t, bob, v1.TypeLastMessageUpdate)
	}
	if lastUnread != 3 {
		t.Fatalf("final unread = %d, want 3", lastUnread)
	}
}

func TestDeliverUnpersistedMessageDoesNotCount(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t, User{ID: "alice"}, User{ID: "bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	bob := h.join(t, "bob", "conn-b", "room-1")
	h.rooms.Enter("bob", "room-1")

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "ephemeral", false)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	recvEnvelope(t, bob, v1.TypeRoomMessageDeliver)
	var unread v1.UpdateUnreadCountPayload
	recvPayload(t, bob, v1.TypeUpdateUnreadCount, &unread)
	if unread.UnreadCount != 0 {
		t.Fatalf("unread = %d, want 0 for unpersisted message", unread.UnreadCount)
	}
}

func TestDeliverPushesOfflineRecipient(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t,
		User{ID: "alice", Name: "Alice"},
		User{ID: "bob", PushToken: "tok-bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	// Bob is a member but has no live session.
	if err := h.store.AddMember(context.Background(), "room-1", "bob", time.Now().UTC()); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "hi", true)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if h.push.messageCount() != 1 {
		t.Fatalf("pushes = %d, want 1", h.push.messageCount())
	}
	got := h.push.messages[0]
	if got.Token != "tok-bob" || got.Note.Title != "Alice" || got.Note.Body != "hi" {
		t.Fatalf("push record = %+v", got)
	}
	if got.Note.Data["roomId"] != "room-1" || got.Note.Data["senderId"] != "alice" {
		t.Fatalf("push data = %+v", got.Note.Data)
	}
}

func TestDeliverPushesLiveRecipientViewingOtherRoom(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t,
		User{ID: "alice"},
		User{ID: "bob", PushToken: "tok-bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	h.join(t, "bob", "conn-b", "room-1")
	h.rooms.Enter("bob", "room-9")

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "hi", true)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// Live but looking elsewhere still gets the push.
	if h.push.messageCount() != 1 {
		t.Fatalf("pushes = %d, want 1", h.push.messageCount())
	}
}

func TestDeliverGroupRoom(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t, User{ID: "alice"}, User{ID: "bob"}, User{ID: "carol"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	bob := h.join(t, "bob", "conn-b", "room-1")
	carol := h.join(t, "carol", "conn-c", "room-1")
	h.rooms.Enter("bob", "room-1")
	h.rooms.Enter("carol", "room-1")

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "hey all", true)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for _, member := range []*Client{bob, carol} {
		recvEnvelope(t, member, v1.TypeRoomMessageDeliver)
		var unread v1.UpdateUnreadCountPayload
		recvPayload(t, member, v1.TypeUpdateUnreadCount, &unread)
		if unread.SenderID != "alice" || unread.RoomID != "room-1" || unread.UnreadCount != 1 {
			t.Fatalf("group unread payload = %+v", unread)
		}
		// Group rooms do not carry last-message updates.
		wantNoEnvelope(t, member)
	}
	wantNoEnvelope(t, alice)
}

func TestMarkReadPrivateRoom(t *testing.T) {
	t.Parallel()

	h := newFanoutHarness(t, User{ID: "alice"}, User{ID: "bob"})
	alice := h.join(t, "alice", "conn-a", "room-1")
	bob := h.join(t, "bob", "conn-b", "room-1")
	h.rooms.Enter("bob", "room-1")

	if err := h.del.Deliver(context.Background(), alice, messagePayload("alice", "room-1", "hello", true)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	drainClient(alice)
	drainClient(bob)

	// Bob reads the room: alice's live session learns, and sees a zeroed
	// unread count for her authored messages.
	if err := h.del.MarkRead(context.Background(), bob, v1.MarkAsReadPayload{RoomID: "room-1", UserID: "bob"}); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	var read v1.MessagesReadPayload
	recvPayload(t, alice, v1.TypeMessagesRead, &read)
	if read.RoomID != "room-1" || read.ReaderID != "bob" {
		t.Fatalf("messagesRead payload = %+v", read)
	}

	var unread v1.UpdateUnreadCountPayload
	recvPayload(t, alice, v1.TypeUpdateUnreadCount, &unread)
	if unread.UnreadCount != 0 || unread.RecipientID != "bob" {
		t.Fatalf("post-read unread payload = %+v", unread)
	}
	wantNoEnvelope(t, bob)

	// The store agrees.
	n, err := h.store.CountUnread(context.Background(), "room-1", UnreadFilter{AuthoredBy: "alice"})
	if err != nil || n != 0 {
		t.Fatalf("CountUnread = (%d, %v), want (0, nil)", n, err)
	}
}
