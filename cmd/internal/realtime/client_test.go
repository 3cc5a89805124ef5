package realtime

import (
	"testing"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

func TestClientTryEnqueue(t *testing.T) {
	t.Parallel()

	c := NewClient("conn-1", 2)

	if !c.TryEnqueue(v1.Envelope{Type: "a"}) || !c.TryEnqueue(v1.Envelope{Type: "b"}) {
		t.Fatal("enqueue into free queue failed")
	}
	// Queue full: drop, do not block.
	if c.TryEnqueue(v1.Envelope{Type: "c"}) {
		t.Fatal("enqueue into full queue succeeded")
	}

	c.Close()
	c.Close() // idempotent

	if c.TryEnqueue(v1.Envelope{Type: "d"}) {
		t.Fatal("enqueue after close succeeded")
	}

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
}

func TestClientNilSafety(t *testing.T) {
	t.Parallel()

	var c *Client
	if c.TryEnqueue(v1.Envelope{}) {
		t.Fatal("nil client accepted an envelope")
	}
	c.Close()
	select {
	case <-c.Done():
	default:
		t.Fatal("nil client Done is not closed")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()

	base := time.Now()
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(base) {
			t.Fatalf("event %d denied under the limit", i)
		}
	}
	if rl.Allow(base) {
		t.Fatal("event over the limit allowed")
	}

	// Once the window slides past the oldest events, capacity returns.
	if !rl.Allow(base.Add(1100 * time.Millisecond)) {
		t.Fatal("event denied after window slid")
	}
}
