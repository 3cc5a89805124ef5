package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedStore builds an in-memory store with the given users pre-registered.
func seedStore(users ...User) *InMemoryStore {
	st := NewInMemoryStore()
	for _, u := range users {
		st.PutUser(u)
	}
	return st
}

// recvEnvelope pops one envelope from the client queue, failing the test when
// none arrives within the deadline or the type does not match.
func recvEnvelope(t *testing.T, c *Client, wantType string) v1.Envelope {
	t.Helper()

	select {
	case env := <-c.Send:
		if env.Type != wantType {
			t.Fatalf("envelope type = %q, want %q", env.Type, wantType)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no %q envelope received", wantType)
		return v1.Envelope{}
	}
}

// recvPayload pops one envelope and decodes its payload into out.
func recvPayload(t *testing.T, c *Client, wantType string, out any) {
	t.Helper()

	env := recvEnvelope(t, c, wantType)
	if err := json.Unmarshal(env.Payload, out); err != nil {
		t.Fatalf("decode %q payload: %v", wantType, err)
	}
}

// wantNoEnvelope asserts the client queue is empty.
func wantNoEnvelope(t *testing.T, c *Client) {
	t.Helper()

	select {
	case env := <-c.Send:
		t.Fatalf("unexpected envelope %q", env.Type)
	default:
	}
}

// drainClient discards everything currently queued.
func drainClient(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

// drainCounts empties the client queue and tallies envelope types into the
// given map.
func drainCounts(c *Client, into map[string]int) {
	for {
		select {
		case env := <-c.Send:
			into[env.Type]++
		default:
			return
		}
	}
}

// recorderBroadcaster captures BroadcastAll envelopes for assertions.
type recorderBroadcaster struct {
	mu   sync.Mutex
	envs []v1.Envelope
}

func (r *recorderBroadcaster) BroadcastAll(env v1.Envelope) {
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
}

func (r *recorderBroadcaster) all() []v1.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]v1.Envelope, len(r.envs))
	copy(out, r.envs)
	return out
}

// recordingPush captures push notifications instead of sending them.
type recordingPush struct {
	mu       sync.Mutex
	messages []pushRecord
	calls    []pushRecord
}

type pushRecord struct {
	Token string
	Note  Notification
}

func (p *recordingPush) SendMessageNotification(_ context.Context, token string, n Notification) error {
	p.mu.Lock()
	p.messages = append(p.messages, pushRecord{Token: token, Note: n})
	p.mu.Unlock()
	return nil
}

func (p *recordingPush) SendIncomingCallNotification(_ context.Context, token string, n Notification) error {
	p.mu.Lock()
	p.calls = append(p.calls, pushRecord{Token: token, Note: n})
	p.mu.Unlock()
	return nil
}

func (p *recordingPush) messageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *recordingPush) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// registerUser registers a fresh client for userID and drains the queue.
func registerUser(t *testing.T, sessions *Sessions, userID v1.UserID, sessionID string) *Client {
	t.Helper()

	c := NewClient(sessionID, 64)
	if _, _, err := sessions.Register(context.Background(), userID, c); err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	return c
}
