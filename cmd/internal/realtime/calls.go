package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Call lifecycle statuses.
type callStatus string

const (
	callRinging   callStatus = "ringing"
	callConnected callStatus = "connected"
)

// Rejection/teardown reasons on the wire.
const (
	ReasonBusy             = "busy"
	ReasonTimeout          = "timeout"
	ReasonDeclined         = "declined"
	ReasonPeerDisconnected = "peer_disconnected"
)

type callRecord struct {
	roomID v1.RoomID
	from   v1.UserID
	to     v1.UserID
	typ    v1.CallType
	status callStatus
	timer  *time.Timer
}

// Calls owns the per-room call lifecycle: ringing -> connected ->
// ended/rejected/canceled/timeout, busy detection via a reverse index, and
// ringing-timeout cancellation.
//
// The busy check and busy-index insert run under one mutex before any store
// or push I/O, so two near-simultaneous initiations for the same pair cannot
// both pass the check. This is a deliberate departure from the original
// service, where the check and insert could interleave across await points.
type Calls struct {
	log      *slog.Logger
	sessions *Sessions
	presence *Presence
	store    Store
	push     PushGateway

	ringTimeout time.Duration

	mu     sync.Mutex
	byRoom map[v1.RoomID]*callRecord
	busy   map[v1.UserID]v1.RoomID
}

// NewCalls constructs the call state machine. A non-positive ringTimeout
// falls back to the 30s design value.
func NewCalls(log *slog.Logger, sessions *Sessions, presence *Presence, store Store, push PushGateway, ringTimeout time.Duration) *Calls {
	if ringTimeout <= 0 {
		ringTimeout = DefaultRingTimeout
	}
	return &Calls{
		log:         log,
		sessions:    sessions,
		presence:    presence,
		store:       store,
		push:        push,
		ringTimeout: ringTimeout,
		byRoom:      make(map[v1.RoomID]*callRecord),
		busy:        make(map[v1.UserID]v1.RoomID),
	}
}

// InFlight reports the room of the user's current call, if any.
func (c *Calls) InFlight(userID v1.UserID) (v1.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomID, ok := c.busy[userID]
	return roomID, ok
}

// Initiate starts a call from caller's connection. If either participant is
// already in a call, or the room already holds an in-flight call, the caller
// (and the busy callee's session, if live) get callRejected{busy} and no
// record is created. Otherwise the record enters
// ringing, both participants join the busy index, the ring timer starts, the
// caller gets an immediate callRinging ack, and the callee is notified
// presence-aware: live notice first when online, push fallback otherwise.
func (c *Calls) Initiate(ctx context.Context, caller *Client, p v1.CallActionPayload) {
	typ := p.Type
	if typ != v1.CallVideo {
		typ = v1.CallAudio
	}

	c.mu.Lock()
	if _, fromBusy := c.busy[p.FromUserID]; fromBusy {
		c.mu.Unlock()
		c.rejectBusy(caller, p)
		return
	}
	if _, toBusy := c.busy[p.ToUserID]; toBusy {
		c.mu.Unlock()
		c.rejectBusy(caller, p)
		return
	}
	// The room itself counts as busy too. Overwriting an in-flight record
	// would orphan its participants in the busy index and leave its ring
	// timer armed against the new record.
	if _, roomBusy := c.byRoom[p.RoomID]; roomBusy {
		c.mu.Unlock()
		c.rejectBusy(caller, p)
		return
	}

	rec := &callRecord{
		roomID: p.RoomID,
		from:   p.FromUserID,
		to:     p.ToUserID,
		typ:    typ,
		status: callRinging,
	}
	rec.timer = time.AfterFunc(c.ringTimeout, func() { c.timeout(p.RoomID) })
	c.byRoom[p.RoomID] = rec
	c.busy[p.FromUserID] = p.RoomID
	c.busy[p.ToUserID] = p.RoomID
	metricActiveCalls.Set(float64(len(c.byRoom)))
	c.mu.Unlock()

	c.log.Info("call.initiate", "room_id", p.RoomID, "from", p.FromUserID, "to", p.ToUserID, "type", typ)

	// The caller always gets the ringing ack, regardless of callee
	// reachability.
	caller.TryEnqueue(NewEnvelope(v1.TypeCallRinging, v1.CallRingingPayload{RoomID: p.RoomID}))

	// Resolve caller display info for the callee-facing notice.
	var fromName, fromAvatar string
	if u, err := c.store.FindUser(ctx, p.FromUserID); err == nil {
		fromName, fromAvatar = u.Name, u.AvatarURL
	} else {
		c.log.Warn("call.caller.lookup.fail", "user_id", p.FromUserID, "err", err)
	}

	notice := NewEnvelope(v1.TypeIncomingCall, v1.IncomingCallPayload{
		FromUserID:     p.FromUserID,
		RoomID:         p.RoomID,
		Type:           typ,
		FromUserName:   fromName,
		FromUserAvatar: fromAvatar,
		CallerID:       p.FromUserID,
	})

	online, _ := c.presence.Query(p.ToUserID)
	if online && c.sessions.SendToUser(p.ToUserID, notice) {
		c.log.Info("call.notice.live", "room_id", p.RoomID, "to", p.ToUserID)
		return
	}

	// Offline, stale, or live delivery failed: fall back to push.
	c.pushIncomingCall(ctx, p.ToUserID, p.RoomID, typ, fromName, fromAvatar, p.FromUserID)
}

func (c *Calls) rejectBusy(caller *Client, p v1.CallActionPayload) {
	c.log.Info("call.reject.busy", "room_id", p.RoomID, "from", p.FromUserID, "to", p.ToUserID)
	metricCallOutcomes.WithLabelValues(ReasonBusy).Inc()

	rejected := NewEnvelope(v1.TypeCallRejected, v1.CallOutcomePayload{RoomID: p.RoomID, Reason: ReasonBusy})
	caller.TryEnqueue(rejected)
	c.sessions.SendToUser(p.ToUserID, rejected)
}

func (c *Calls) pushIncomingCall(ctx context.Context, to v1.UserID, roomID v1.RoomID, typ v1.CallType, fromName, fromAvatar string, from v1.UserID) {
	callee, err := c.store.FindUser(ctx, to)
	if err != nil {
		c.log.Warn("call.callee.lookup.fail", "user_id", to, "err", err)
		return
	}
	if callee.PushToken == "" {
		c.log.Info("call.push.skip.no_token", "user_id", to)
		return
	}

	title := fromName
	if title == "" {
		title = "Incoming Call"
	}
	body := "Audio call"
	if typ == v1.CallVideo {
		body = "Video call"
	}

	err = c.push.SendIncomingCallNotification(ctx, callee.PushToken, Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"roomId":         string(roomID),
			"fromUserId":     string(from),
			"callType":       string(typ),
			"fromUserName":   fromName,
			"fromUserAvatar": fromAvatar,
			"callerId":       string(from),
		},
	})
	if err != nil {
		metricPushesSent.WithLabelValues("call", "error").Inc()
		c.log.Warn("call.push.fail", "user_id", to, "err", err)
		return
	}
	metricPushesSent.WithLabelValues("call", "ok").Inc()
}

// timeout fires when the ring timer elapses. If the call is still ringing,
// the caller learns it was rejected (timeout) and the callee that it was
// canceled, and the record is torn down.
func (c *Calls) timeout(roomID v1.RoomID) {
	c.mu.Lock()
	rec, ok := c.byRoom[roomID]
	if !ok || rec.status != callRinging {
		c.mu.Unlock()
		return
	}
	from, to := rec.from, rec.to
	c.clearLocked(roomID)
	c.mu.Unlock()

	c.log.Info("call.timeout", "room_id", roomID, "from", from, "to", to)
	metricCallOutcomes.WithLabelValues(ReasonTimeout).Inc()

	c.sessions.SendToUser(from, NewEnvelope(v1.TypeCallRejected, v1.CallOutcomePayload{RoomID: roomID, Reason: ReasonTimeout}))
	c.sessions.SendToUser(to, NewEnvelope(v1.TypeCallCanceled, v1.CallOutcomePayload{RoomID: roomID}))
}

// Cancel notifies the callee and tears the record down unconditionally.
// Idempotent: canceling a call that is already gone is a no-op, not an error.
func (c *Calls) Cancel(p v1.CallActionPayload) {
	c.sessions.SendToUser(p.ToUserID, NewEnvelope(v1.TypeCallCanceled, v1.CallOutcomePayload{RoomID: p.RoomID}))
	if c.clearCall(p.RoomID) {
		c.log.Info("call.cancel", "room_id", p.RoomID, "from", p.FromUserID)
		metricCallOutcomes.WithLabelValues("canceled").Inc()
	}
}

// Accept transitions ringing -> connected, cancels the ring timer, and
// notifies both parties. No-op when no record exists for the room.
func (c *Calls) Accept(callee *Client, p v1.CallActionPayload) {
	c.mu.Lock()
	rec, ok := c.byRoom[p.RoomID]
	if !ok {
		c.mu.Unlock()
		c.log.Info("call.accept.no_call", "room_id", p.RoomID)
		return
	}
	rec.status = callConnected
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	c.mu.Unlock()

	c.log.Info("call.accept", "room_id", p.RoomID)

	accepted := NewEnvelope(v1.TypeCallAccepted, v1.CallOutcomePayload{RoomID: p.RoomID})
	c.sessions.SendToUser(p.ToUserID, accepted)
	callee.TryEnqueue(accepted)
}

// Reject notifies the caller with the given reason (default "declined") and
// tears the record down.
func (c *Calls) Reject(p v1.CallActionPayload) {
	reason := p.Reason
	if reason == "" {
		reason = ReasonDeclined
	}

	c.sessions.SendToUser(p.ToUserID, NewEnvelope(v1.TypeCallRejected, v1.CallOutcomePayload{RoomID: p.RoomID, Reason: reason}))
	if c.clearCall(p.RoomID) {
		c.log.Info("call.reject", "room_id", p.RoomID, "reason", reason)
		metricCallOutcomes.WithLabelValues(reason).Inc()
	}
}

// End notifies both sides and tears the record down.
func (c *Calls) End(actor *Client, p v1.CallActionPayload) {
	ended := NewEnvelope(v1.TypeCallEnded, v1.CallOutcomePayload{RoomID: p.RoomID})
	c.sessions.SendToUser(p.ToUserID, ended)
	actor.TryEnqueue(ended)

	if c.clearCall(p.RoomID) {
		c.log.Info("call.end", "room_id", p.RoomID)
		metricCallOutcomes.WithLabelValues("ended").Inc()
	}
}

// HandleDisconnect runs when a connection drops while its user is in the busy
// index: the peer is notified with reason peer_disconnected and the same
// teardown path runs.
func (c *Calls) HandleDisconnect(userID v1.UserID) {
	c.mu.Lock()
	roomID, ok := c.busy[userID]
	if !ok {
		c.mu.Unlock()
		return
	}
	rec := c.byRoom[roomID]
	var peer v1.UserID
	if rec != nil {
		if rec.from == userID {
			peer = rec.to
		} else {
			peer = rec.from
		}
	}
	c.clearLocked(roomID)
	c.mu.Unlock()

	c.log.Info("call.peer_disconnected", "room_id", roomID, "user_id", userID, "peer", peer)
	metricCallOutcomes.WithLabelValues(ReasonPeerDisconnected).Inc()

	if peer != "" {
		c.sessions.SendToUser(peer, NewEnvelope(v1.TypeCallEnded, v1.CallOutcomePayload{
			RoomID: roomID,
			Reason: ReasonPeerDisconnected,
		}))
	}
}

// clearCall is the single teardown path: it cancels any pending ring timer,
// removes both participants from the busy index, and deletes the record.
// Every terminal transition and the disconnect path go through here.
func (c *Calls) clearCall(roomID v1.RoomID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(roomID)
}

func (c *Calls) clearLocked(roomID v1.RoomID) bool {
	rec, ok := c.byRoom[roomID]
	if !ok {
		return false
	}
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
	delete(c.busy, rec.from)
	delete(c.busy, rec.to)
	delete(c.byRoom, roomID)
	metricActiveCalls.Set(float64(len(c.byRoom)))
	return true
}
