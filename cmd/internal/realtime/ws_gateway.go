package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

const (
	wsSubprotocolV1 = "chatcall.rtc.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// WSGateway is the WebSocket entrypoint for the realtime core.
//
// It enforces origin policy, subprotocol selection, rate limits, and
// heartbeats, and routes validated envelopes to the presence, call, relay,
// and fan-out components.
type WSGateway struct {
	log *slog.Logger

	hub       *Hub
	sessions  *Sessions
	presence  *Presence
	rooms     *ActiveRooms
	calls     *Calls
	relay     *Relay
	deliverer *Deliverer
	store     Store

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks. Accept() authorizes
	// same-host origins by default; cross-origin requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// WSGatewayDeps bundles the realtime components the gateway routes to.
type WSGatewayDeps struct {
	Hub       *Hub
	Sessions  *Sessions
	Presence  *Presence
	Rooms     *ActiveRooms
	Calls     *Calls
	Relay     *Relay
	Deliverer *Deliverer
	Store     Store
}

// NewWSGateway constructs a gateway with secure defaults.
func NewWSGateway(log *slog.Logger, deps WSGatewayDeps) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	g := &WSGateway{
		log:       log,
		hub:       deps.Hub,
		sessions:  deps.Sessions,
		presence:  deps.Presence,
		rooms:     deps.Rooms,
		calls:     deps.Calls,
		relay:     deps.Relay,
		deliverer: deps.Deliverer,
		store:     deps.Store,
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is
	// not an origin policy.
	g.devInsecure = envBoolWS("CHATCALL_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("CHATCALL_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("CHATCALL_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("CHATCALL_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("CHATCALL_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("CHATCALL_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("CHATCALL_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("CHATCALL_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("CHATCALL_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("CHATCALL_WS_RATE_WINDOW", rateLimitWindow)

	return g
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the
// realtime loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocolV1},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID := NewID(time.Now().UTC())
	client := NewClient(sessionID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent and owns the disconnect cleanup ordering:
	// session mapping -> call teardown -> active-room -> presence.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.cleanupDisconnect(sessionID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(client, v1.TypeError, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(client, v1.TypeError, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(client, v1.TypeError, "bad_envelope", err.Error())
			continue readLoop
		}

		g.dispatch(ctx, client, env, now)
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// cleanupDisconnect tears down everything a dropped connection owned. The
// ordering mirrors the registration structure: persisted session mapping
// first, then call state (the peer gets a peer_disconnected notice), then
// active-room, then presence, which is broadcast last so observers see the
// user offline only after their state is gone.
func (g *WSGateway) cleanupDisconnect(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g.hub.LeaveAll(sessionID)

	userID, ok := g.sessions.RemoveBySession(ctx, sessionID)
	metricConnectedSessions.Set(float64(g.sessions.Count()))
	if !ok {
		return
	}

	g.calls.HandleDisconnect(userID)
	g.rooms.Clear(userID)
	g.presence.SetOffline(userID, time.Now().UTC())
}

// ---- dispatch ----

func (g *WSGateway) dispatch(ctx context.Context, client *Client, env v1.Envelope, now time.Time) {
	switch env.Type {
	case v1.TypeMapUser:
		g.onMapUser(ctx, client, env)

	case v1.TypeInitiateCall:
		g.onInitiateCall(ctx, client, env)
	case v1.TypeCancelCall, v1.TypeAcceptCall, v1.TypeRejectCall, v1.TypeEndCall:
		g.onCallAction(client, env)

	case v1.TypeRTCOffer, v1.TypeRTCAnswer, v1.TypeRTCCandidate:
		g.onSignal(env)

	case v1.TypeAppState:
		g.onAppState(env, now)
	case v1.TypeGetPresence:
		g.onGetPresence(client, env)

	case v1.TypeActiveRoom:
		g.onActiveRoom(env, true)
	case v1.TypeInactiveRoom:
		g.onActiveRoom(env, false)

	case v1.TypeCreateRoom:
		g.onCreateRoom(ctx, client, env, now)
	case v1.TypeJoinRoom:
		g.onJoinRoom(ctx, client, env, now)
	case v1.TypeLeaveRoom:
		g.onLeaveRoom(ctx, client, env, now)
	case v1.TypeEndRoom:
		g.onEndRoom(ctx, client, env, now)

	case v1.TypeRoomMessage:
		g.onRoomMessage(ctx, client, env)
	case v1.TypeMarkAsRead:
		g.onMarkAsRead(ctx, client, env)

	case v1.TypeLogout:
		g.onLogout(ctx, client, env)

	default:
		g.trySendError(client, v1.TypeError, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
	}
}

// ---- handlers ----

func (g *WSGateway) onMapUser(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.MapUserPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		g.trySendError(client, v1.TypeMapUserError, "missing_user_id", "User Id Missing")
		return
	}

	mappingID, resynced, err := g.sessions.Register(ctx, p.UserID, client)
	switch {
	case errors.Is(err, ErrUserNotFound):
		g.trySendError(client, v1.TypeMapUserError, "user_not_found", "User not found")
		return
	case err != nil:
		g.log.Error("session.register.fail", "user_id", p.UserID, "err", err)
		g.trySendError(client, v1.TypeMapUserError, "register_failed", err.Error())
		return
	}

	metricConnectedSessions.Set(float64(g.sessions.Count()))

	ack := v1.MapUserSuccessPayload{ID: mappingID, Resynced: resynced}
	if resynced {
		ack.Message = "User re-synced with new connection"
	}
	client.TryEnqueue(NewEnvelope(v1.TypeMapUserSuccess, ack))
}

func (g *WSGateway) onInitiateCall(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.CallActionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.FromUserID == "" || p.ToUserID == "" || p.RoomID == "" {
		client.TryEnqueue(NewEnvelope(v1.TypeCallError, v1.CallErrorPayload{RoomID: p.RoomID, Message: "Missing fields"}))
		return
	}
	g.calls.Initiate(ctx, client, p)
}

func (g *WSGateway) onCallAction(client *Client, env v1.Envelope) {
	var p v1.CallActionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.FromUserID == "" || p.ToUserID == "" || p.RoomID == "" {
		g.log.Debug("call.action.ignore", "type", env.Type)
		return
	}

	switch env.Type {
	case v1.TypeCancelCall:
		g.calls.Cancel(p)
	case v1.TypeAcceptCall:
		g.calls.Accept(client, p)
	case v1.TypeRejectCall:
		g.calls.Reject(p)
	case v1.TypeEndCall:
		g.calls.End(client, p)
	}
}

func (g *WSGateway) onSignal(env v1.Envelope) {
	var p v1.SignalPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	g.relay.Forward(env.Type, p)
}

func (g *WSGateway) onAppState(env v1.Envelope, now time.Time) {
	var p v1.AppStatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		return
	}
	g.presence.Report(p.UserID, p.State, now)
}

func (g *WSGateway) onGetPresence(client *Client, env v1.Envelope) {
	var p v1.GetPresencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		g.trySendError(client, v1.TypeError, "missing_user_id", "User Id Missing")
		return
	}

	online, state := g.presence.Query(p.UserID)
	client.TryEnqueue(NewEnvelope(v1.TypePresenceState, v1.UserPresencePayload{
		UserID: p.UserID,
		Online: online,
		State:  state,
	}))
}

func (g *WSGateway) onActiveRoom(env v1.Envelope, enter bool) {
	var p v1.ActiveRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		return
	}
	if enter {
		g.rooms.Enter(p.UserID, p.RoomID)
	} else {
		g.rooms.Leave(p.UserID, p.RoomID)
	}
}

func (g *WSGateway) onCreateRoom(ctx context.Context, client *Client, env v1.Envelope, now time.Time) {
	var p v1.CreateRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		g.trySendError(client, v1.TypeRoomCreationError, "missing_user_id", "Room Creator Not Found")
		return
	}

	creator, err := g.store.FindUser(ctx, p.UserID)
	if err != nil {
		g.trySendError(client, v1.TypeRoomCreationError, "creator_not_found", "Room Creator Not Found")
		return
	}

	room, err := g.store.CreateRoom(ctx, p.UserID, now)
	if err != nil {
		g.log.Error("room.create.fail", "user_id", p.UserID, "err", err)
		g.trySendError(client, v1.TypeRoomCreationError, "create_failed", "Something went wrong while creating room")
		return
	}

	// Invitation fan-out. Per-invitee failures are isolated.
	var info []v1.MemberInfo
	for _, uid := range p.SelectedUsers {
		u, err := g.store.FindUser(ctx, uid)
		if err != nil {
			g.log.Warn("room.invite.lookup.fail", "user_id", uid, "err", err)
			continue
		}
		info = append(info, v1.MemberInfo{ID: u.ID, Name: u.Name})
	}
	if len(p.SelectedUsers) > 0 {
		invite := NewEnvelope(v1.TypeRoomInvitations, v1.RoomInvitationsPayload{
			Message:       fmt.Sprintf("%s created a call, would you like to join", creator.Name),
			RoomID:        room.ID,
			SelectedUsers: p.SelectedUsers,
			CreatorID:     creator.ID,
			SelectedInfo:  info,
		})
		for _, uid := range p.SelectedUsers {
			g.sessions.SendToUser(uid, invite)
		}
	}

	if err := g.store.AddMember(ctx, room.ID, p.UserID, now); err != nil {
		g.log.Warn("room.member.add.fail", "room_id", room.ID, "user_id", p.UserID, "err", err)
	}
	g.hub.GetOrCreate(room.ID).Join(client)

	client.TryEnqueue(NewEnvelope(v1.TypeUserJoined, v1.UserJoinedPayload{
		Message: fmt.Sprintf("%s joined the call", creator.Name),
		RoomID:  room.ID,
		UserID:  creator.ID,
	}))
}

func (g *WSGateway) onJoinRoom(ctx context.Context, client *Client, env v1.Envelope, now time.Time) {
	var p v1.JoinRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.JoinUser == "" {
		g.trySendError(client, v1.TypeJoiningRoomError, "missing_fields", "Required Fields are missing")
		return
	}

	u, err := g.store.FindUser(ctx, p.JoinUser)
	if err != nil {
		g.trySendError(client, v1.TypeJoiningRoomError, "user_not_found", "User Not Found")
		return
	}

	if err := g.store.AddMember(ctx, p.RoomID, p.JoinUser, now); err != nil {
		g.log.Error("room.join.fail", "room_id", p.RoomID, "user_id", p.JoinUser, "err", err)
		g.trySendError(client, v1.TypeJoiningRoomError, "join_failed", "Something went wrong while joining the room")
		return
	}

	g.hub.GetOrCreate(p.RoomID).Join(client)
	g.hub.BroadcastExcept(p.RoomID, client.SessionID, NewEnvelope(v1.TypeUserJoined, v1.UserJoinedPayload{
		Message: fmt.Sprintf("%s joined the call", u.Name),
		RoomID:  p.RoomID,
		UserID:  u.ID,
	}))
}

func (g *WSGateway) onLeaveRoom(ctx context.Context, client *Client, env v1.Envelope, now time.Time) {
	var p v1.LeaveRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
		g.trySendError(client, v1.TypeLeaveRoomError, "missing_fields", "Error In Leaving Call")
		return
	}

	g.hub.Leave(p.RoomID, client.SessionID)

	if err := g.store.LeaveRoom(ctx, p.RoomID, p.UserID, now); err != nil {
		g.log.Error("room.leave.fail", "room_id", p.RoomID, "user_id", p.UserID, "err", err)
		g.trySendError(client, v1.TypeLeaveRoomError, "leave_failed", "Error In Leaving Call")
		return
	}

	client.TryEnqueue(NewEnvelope(v1.TypeLeaveRoomSuccess, v1.ErrorPayload{Message: "Leave the room successfully"}))
}

func (g *WSGateway) onEndRoom(ctx context.Context, client *Client, env v1.Envelope, now time.Time) {
	var p v1.EndRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
		g.trySendError(client, v1.TypeEndRoomError, "missing_room_id", "Room Id is missing")
		return
	}

	if err := g.store.EndRoom(ctx, p.RoomID, now); err != nil {
		g.log.Error("room.end.fail", "room_id", p.RoomID, "err", err)
		g.trySendError(client, v1.TypeEndRoomError, "end_failed", "Something went wrong")
		return
	}

	g.hub.BroadcastExcept(p.RoomID, client.SessionID, NewEnvelope(v1.TypeEndRoomSuccess, v1.ErrorPayload{Message: "Call end successfully"}))
}

func (g *WSGateway) onRoomMessage(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.RoomMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" || p.RoomID == "" || p.Message == "" || p.Name == "" {
		g.trySendError(client, v1.TypeRoomMessageError, "missing_fields", "Required Fields are missing")
		return
	}
	if len([]rune(p.Message)) > maxMessageChars {
		g.trySendError(client, v1.TypeRoomMessageError, "too_long", fmt.Sprintf("message too long: max=%d chars", maxMessageChars))
		return
	}

	if err := g.deliverer.Deliver(ctx, client, p); err != nil {
		g.log.Error("fanout.deliver.fail", "room_id", p.RoomID, "user_id", p.UserID, "err", err)
		g.trySendError(client, v1.TypeRoomMessageError, "deliver_failed", "Error In Sending Message")
	}
}

func (g *WSGateway) onMarkAsRead(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.MarkAsReadPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
		return
	}
	if err := g.deliverer.MarkRead(ctx, client, p); err != nil {
		g.log.Error("fanout.mark_read.fail", "room_id", p.RoomID, "user_id", p.UserID, "err", err)
	}
}

func (g *WSGateway) onLogout(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.LogoutPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
		g.trySendError(client, v1.TypeMapUserDeleteError, "missing_user_id", "User Id Missing")
		return
	}

	if _, err := g.store.FindSessionMapping(ctx, p.UserID); err != nil {
		g.trySendError(client, v1.TypeMapUserDeleteError, "invalid_user_id", "Invalid User Id")
		return
	}

	// The mapping itself is removed by disconnect cleanup when the client
	// closes the connection after this ack.
	client.TryEnqueue(NewEnvelope(v1.TypeMapUserDeleteSuccess, v1.ErrorPayload{Message: "Event Delete Successfully"}))
}

// ---- send helpers ----

func (g *WSGateway) trySendError(client *Client, typ, code, msg string) {
	client.TryEnqueue(NewErrorEnvelope(typ, code, msg))
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, errBadJSON{err}
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type errBadJSON struct{ err error }

func (e errBadJSON) Error() string { return "bad json: " + e.err.Error() }
func (e errBadJSON) Unwrap() error { return e.err }

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	var bad errBadJSON
	if errors.As(err, &bad) {
		return readErrBadJSON
	}
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using
	// filepath.Match patterns. Keep this strict: only hosts extracted from
	// the allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
