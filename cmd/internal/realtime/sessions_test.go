package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

func TestSessionsRegisterUnknownUser(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore())
	c := NewClient("conn-1", 8)

	_, _, err := sessions.Register(context.Background(), "ghost", c)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if sessions.Count() != 0 {
		t.Fatalf("count = %d, want 0", sessions.Count())
	}
}

func TestSessionsRegisterFreshAndResync(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore(User{ID: "u1", Name: "Ada"}))

	first := NewClient("conn-1", 8)
	id1, resynced, err := sessions.Register(context.Background(), "u1", first)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if resynced {
		t.Fatal("first register reported resynced")
	}
	if id1 == "" {
		t.Fatal("mapping id is empty")
	}

	// Last writer wins: a second connection for the same user replaces the
	// first, preserving the persisted mapping row.
	second := NewClient("conn-2", 8)
	id2, resynced, err := sessions.Register(context.Background(), "u1", second)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if !resynced {
		t.Fatal("second register did not report resynced")
	}
	if id2 != id1 {
		t.Fatalf("mapping id changed on resync: %q -> %q", id1, id2)
	}

	if got := sessions.Resolve("u1"); got != second {
		t.Fatal("Resolve did not return the latest connection")
	}
	if sessions.Count() != 1 {
		t.Fatalf("count = %d, want 1", sessions.Count())
	}
}

func TestSessionsRemoveBySession(t *testing.T) {
	t.Parallel()

	store := seedStore(User{ID: "u1"})
	sessions := NewSessions(testLogger(), store)
	c := registerUser(t, sessions, "u1", "conn-1")

	userID, ok := sessions.RemoveBySession(context.Background(), c.SessionID)
	if !ok || userID != "u1" {
		t.Fatalf("RemoveBySession = (%q, %v), want (u1, true)", userID, ok)
	}
	if sessions.Resolve("u1") != nil {
		t.Fatal("user still resolvable after removal")
	}
	if _, err := store.FindSessionMapping(context.Background(), "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("persisted mapping err = %v, want ErrSessionNotFound", err)
	}

	// Unknown connections are a quiet no-op.
	if _, ok := sessions.RemoveBySession(context.Background(), "conn-unknown"); ok {
		t.Fatal("unknown session removal reported ok")
	}
}

func TestSessionsStaleRemoveKeepsNewConnection(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore(User{ID: "u1"}))
	registerUser(t, sessions, "u1", "conn-old")
	fresh := registerUser(t, sessions, "u1", "conn-new")

	// The old connection's disconnect arrives after the re-register. It must
	// not evict the new live session.
	if _, ok := sessions.RemoveBySession(context.Background(), "conn-old"); ok {
		t.Fatal("stale session removal reported ok")
	}
	if got := sessions.Resolve("u1"); got != fresh {
		t.Fatal("stale disconnect evicted the fresh connection")
	}
}

func TestSessionsConcurrentRegisterSameUser(t *testing.T) {
	t.Parallel()

	store := seedStore(User{ID: "u1"})
	sessions := NewSessions(testLogger(), store)

	const n = 16
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = NewClient(fmt.Sprintf("conn-%d", i), 8)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for _, c := range clients {
		go func(c *Client) {
			defer wg.Done()
			if _, _, err := sessions.Register(context.Background(), "u1", c); err != nil {
				t.Errorf("register %s: %v", c.SessionID, err)
			}
		}(c)
	}
	wg.Wait()

	// Last writer wins, but only one session may survive the race.
	if got := sessions.Count(); got != 1 {
		t.Fatalf("live sessions = %d, want 1", got)
	}
	winner := sessions.Resolve("u1")
	if winner == nil {
		t.Fatal("no live session resolved")
	}
	var registered bool
	for _, c := range clients {
		if c == winner {
			registered = true
		}
	}
	if !registered {
		t.Fatal("resolved client was never registered")
	}

	// The persisted mapping was updated in place, never duplicated.
	if _, err := store.FindSessionMapping(context.Background(), "u1"); err != nil {
		t.Fatalf("persisted mapping: %v", err)
	}
}

func TestSessionsSendToUser(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore(User{ID: "u1"}))
	c := registerUser(t, sessions, "u1", "conn-1")

	if !sessions.SendToUser("u1", NewEnvelope(v1.TypeError, v1.ErrorPayload{Message: "hi"})) {
		t.Fatal("send to live user failed")
	}
	recvEnvelope(t, c, v1.TypeError)

	if sessions.SendToUser("nobody", NewEnvelope(v1.TypeError, nil)) {
		t.Fatal("send to absent user succeeded")
	}
}
