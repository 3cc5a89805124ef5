package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Broadcaster fans an envelope out to every live session. Sessions satisfies
// it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastAll(env v1.Envelope)
}

type presenceRecord struct {
	state     v1.AppState
	online    bool
	updatedAt time.Time
}

// Presence tracks each user's reported activity state and the derived
// online flag. State is volatile: it lives for the process lifetime only.
//
// Besides explicit client reports, a periodic sweep demotes users whose last
// report predates the staleness threshold to offline. The sweeper is the only
// part of the core that mutates state without an inbound event.
type Presence struct {
	log       *slog.Logger
	broadcast Broadcaster

	sweepEvery time.Duration
	staleAfter time.Duration

	mu      sync.Mutex
	records map[v1.UserID]presenceRecord

	sweeperOnce sync.Once
}

// NewPresence constructs a presence tracker. Zero sweep/stale durations fall
// back to the design values (15s sweep, 45s staleness).
func NewPresence(log *slog.Logger, broadcast Broadcaster, sweepEvery, staleAfter time.Duration) *Presence {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Presence{
		log:        log,
		broadcast:  broadcast,
		sweepEvery: sweepEvery,
		staleAfter: staleAfter,
		records:    make(map[v1.UserID]presenceRecord),
	}
}

// Report records a client state report, derives the online flag, and
// broadcasts the change to all live sessions.
func (p *Presence) Report(userID v1.UserID, state v1.AppState, now time.Time) {
	if userID == "" {
		return
	}
	switch state {
	case v1.StateActive, v1.StateBackground, v1.StateInactive, v1.StateOffline:
	default:
		state = v1.StateInactive
	}

	online := state == v1.StateActive

	p.mu.Lock()
	p.records[userID] = presenceRecord{state: state, online: online, updatedAt: now}
	p.updateGaugeLocked()
	p.mu.Unlock()

	p.broadcast.BroadcastAll(NewEnvelope(v1.TypeUserPresence, v1.UserPresencePayload{
		UserID: userID,
		Online: online,
		State:  state,
	}))
}

// Query returns the user's presence, defaulting to offline when absent.
func (p *Presence) Query(userID v1.UserID) (online bool, state v1.AppState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok {
		return false, v1.StateOffline
	}
	return rec.online, rec.state
}

// SetOffline force-marks a user offline (disconnect path) and broadcasts.
func (p *Presence) SetOffline(userID v1.UserID, now time.Time) {
	p.Report(userID, v1.StateOffline, now)
}

// StartSweeper launches the staleness sweep loop. Guarded so it runs exactly
// once per process regardless of how many connections arrive.
func (p *Presence) StartSweeper(ctx context.Context) {
	p.sweeperOnce.Do(func() {
		go func() {
			t := time.NewTicker(p.sweepEvery)
			defer t.Stop()

			p.log.Info("presence.sweeper.start", "interval", p.sweepEvery, "stale_after", p.staleAfter)
			for {
				select {
				case <-ctx.Done():
					p.log.Info("presence.sweeper.stop")
					return
				case now := <-t.C:
					p.sweepOnce(now.UTC())
				}
			}
		}()
	})
}

// sweepOnce flips every record whose last update predates the staleness
// threshold and whose online flag is still true to offline, broadcasting each
// change. Recently updated users are untouched.
func (p *Presence) sweepOnce(now time.Time) {
	cut := now.Add(-p.staleAfter)

	var flipped []v1.UserID

	p.mu.Lock()
	for uid, rec := range p.records {
		if rec.online && rec.updatedAt.Before(cut) {
			p.records[uid] = presenceRecord{state: v1.StateOffline, online: false, updatedAt: now}
			flipped = append(flipped, uid)
		}
	}
	if len(flipped) > 0 {
		p.updateGaugeLocked()
	}
	p.mu.Unlock()

	for _, uid := range flipped {
		p.log.Info("presence.stale.offline", "user_id", uid)
		p.broadcast.BroadcastAll(NewEnvelope(v1.TypeUserPresence, v1.UserPresencePayload{
			UserID: uid,
			Online: false,
			State:  v1.StateOffline,
		}))
	}
}

func (p *Presence) updateGaugeLocked() {
	var n int
	for _, rec := range p.records {
		if rec.online {
			n++
		}
	}
	metricOnlineUsers.Set(float64(n))
}
