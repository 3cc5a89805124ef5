package realtime

import "time"

// Security/performance limits for the websocket gateway.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max message text length (runes).
	maxMessageChars = 4000
)

const (
	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)

// Design values for the realtime core.
const (
	// DefaultRingTimeout bounds how long a call may stay in ringing.
	DefaultRingTimeout = 30 * time.Second

	// DefaultSweepInterval is how often the presence sweeper runs.
	DefaultSweepInterval = 15 * time.Second

	// DefaultStaleAfter demotes users silent for this long to offline.
	DefaultStaleAfter = 45 * time.Second
)
