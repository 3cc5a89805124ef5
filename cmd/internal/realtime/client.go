package realtime

import (
	"sync"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Client represents one connected websocket session.
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from concurrent broadcasters.
// - done is used to signal goroutines to stop.
// - Close is idempotent.
type Client struct {
	SessionID string
	Send      chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	userID v1.UserID
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// BindUser records which user identity this connection registered as.
// Set by the mapUser handler; read during disconnect cleanup.
func (c *Client) BindUser(id v1.UserID) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// UserID returns the bound user identity, or "" before registration.
func (c *Client) UserID() v1.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// TryEnqueue offers an envelope to the client's send queue without blocking.
// Returns false if the client is shutting down or the queue is full.
func (c *Client) TryEnqueue(env v1.Envelope) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
