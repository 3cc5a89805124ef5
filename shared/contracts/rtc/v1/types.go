// Package v1 defines the chatcall realtime protocol v1 contract.
//
// This package is intentionally stable and dependency-light. It is shared
// between server and clients to keep the wire protocol authoritative. Event
// type names are wire-stable: they match what mobile clients already emit and
// must not be renamed.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// UserID identifies a user across all realtime state. A dedicated type keeps
// numeric-vs-string id mixups from slipping through map lookups.
type UserID string

// RoomID identifies a room.
type RoomID string

// AppState is a client-reported activity state.
type AppState string

const (
	StateActive     AppState = "active"
	StateBackground AppState = "background"
	StateInactive   AppState = "inactive"
	StateOffline    AppState = "offline"
)

// CallType distinguishes audio from video calls.
type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

// Inbound type constants (client -> server).
const (
	TypeMapUser      = "mapUser"
	TypeInitiateCall = "initiateCall"
	TypeCancelCall   = "cancelCall"
	TypeAcceptCall   = "acceptCall"
	TypeRejectCall   = "rejectCall"
	TypeEndCall      = "endCall"

	TypeRTCOffer     = "rtc:offer"
	TypeRTCAnswer    = "rtc:answer"
	TypeRTCCandidate = "rtc:ice-candidate"

	TypeAppState    = "appState"
	TypeGetPresence = "getPresence"

	TypeActiveRoom   = "activeRoom"
	TypeInactiveRoom = "inactiveRoom"

	TypeCreateRoom = "createRoom"
	TypeJoinRoom   = "joinRoom"
	TypeLeaveRoom  = "leaveRoom"
	TypeEndRoom    = "endRoom"

	TypeRoomMessage = "roomMessage"
	TypeMarkAsRead  = "markAsRead"
	TypeLogout      = "logout"
)

// Outbound type constants (server -> client).
const (
	TypeMapUserSuccess = "mapUserSuccess"
	TypeMapUserError   = "mapUserError"

	TypeCallRinging  = "callRinging"
	TypeIncomingCall = "incomingCall"
	TypeCallRejected = "callRejected"
	TypeCallCanceled = "callCanceled"
	TypeCallAccepted = "callAccepted"
	TypeCallEnded    = "callEnded"
	TypeCallError    = "callError"

	TypeUserPresence  = "userPresence"
	TypePresenceState = "presenceState"

	TypeRoomInvitations   = "roomInvitations"
	TypeUserJoined        = "userJoined"
	TypeRoomCreationError = "roomCreationError"
	TypeJoiningRoomError  = "joiningRoomError"
	TypeLeaveRoomSuccess  = "leaveRoomSuccess"
	TypeLeaveRoomError    = "leaveRoomError"
	TypeEndRoomSuccess    = "endRoomSuccess"
	TypeEndRoomError      = "endRoomError"

	TypeRoomMessageDeliver = "roomMessageDeliver"
	TypeRoomMessageError   = "errorInRoomMessage"
	TypeUpdateUnreadCount  = "updateUnreadCount"
	TypeLastMessageUpdate  = "lastMessageUpdate"
	TypeMessagesRead       = "messagesRead"

	TypeMapUserDeleteSuccess = "mapUserDeleteSuccess"
	TypeMapUserDeleteError   = "mapUserDeleteError"

	TypeError = "error"
)

var inboundTypes = map[string]struct{}{
	TypeMapUser:      {},
	TypeInitiateCall: {},
	TypeCancelCall:   {},
	TypeAcceptCall:   {},
	TypeRejectCall:   {},
	TypeEndCall:      {},
	TypeRTCOffer:     {},
	TypeRTCAnswer:    {},
	TypeRTCCandidate: {},
	TypeAppState:     {},
	TypeGetPresence:  {},
	TypeActiveRoom:   {},
	TypeInactiveRoom: {},
	TypeCreateRoom:   {},
	TypeJoinRoom:     {},
	TypeLeaveRoom:    {},
	TypeEndRoom:      {},
	TypeRoomMessage:  {},
	TypeMarkAsRead:   {},
	TypeLogout:       {},
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an inbound Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}
	if _, ok := inboundTypes[e.Type]; !ok {
		return fmt.Errorf("unknown type: %q", e.Type)
	}
	return nil
}

// ---- identity ----

// MapUserPayload registers a user identity on this connection.
type MapUserPayload struct {
	UserID UserID `json:"userId"`
}

// MapUserSuccessPayload acknowledges registration. Resynced is true when an
// existing mapping was updated in place rather than freshly created.
type MapUserSuccessPayload struct {
	ID       string `json:"id"`
	Resynced bool   `json:"resynced,omitempty"`
	Message  string `json:"message,omitempty"`
}

// LogoutPayload asks the server to acknowledge an explicit sign-out.
type LogoutPayload struct {
	UserID UserID `json:"userId"`
}

// ---- calls ----

// CallActionPayload carries the common fields of all call lifecycle events.
type CallActionPayload struct {
	FromUserID UserID   `json:"fromUserId"`
	ToUserID   UserID   `json:"toUserId"`
	RoomID     RoomID   `json:"roomId"`
	Type       CallType `json:"type,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// CallRingingPayload acknowledges an initiate to the caller.
type CallRingingPayload struct {
	RoomID RoomID `json:"roomId"`
}

// IncomingCallPayload notifies the callee of a ringing call.
type IncomingCallPayload struct {
	FromUserID     UserID   `json:"fromUserId"`
	RoomID         RoomID   `json:"roomId"`
	Type           CallType `json:"type"`
	FromUserName   string   `json:"fromUserName,omitempty"`
	FromUserAvatar string   `json:"fromUserAvatar,omitempty"`
	// CallerID duplicates FromUserID for older client builds.
	CallerID UserID `json:"callerId"`
}

// CallOutcomePayload is emitted for rejected/canceled/accepted/ended.
type CallOutcomePayload struct {
	RoomID RoomID `json:"roomId"`
	Reason string `json:"reason,omitempty"`
}

// CallErrorPayload reports a call handling failure to the caller.
type CallErrorPayload struct {
	RoomID  RoomID `json:"roomId,omitempty"`
	Message string `json:"message"`
}

// ---- webrtc signaling ----

// SignalPayload carries an opaque negotiation payload between two peers.
// Body is never interpreted by the server; for offers/answers it is the SDP,
// for rtc:ice-candidate it is the candidate object.
type SignalPayload struct {
	FromUserID UserID          `json:"fromUserId,omitempty"`
	ToUserID   UserID          `json:"toUserId"`
	RoomID     RoomID          `json:"roomId"`
	SDP        json.RawMessage `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// Body returns whichever opaque payload the signal carries.
func (p SignalPayload) Body() json.RawMessage {
	if len(p.SDP) > 0 {
		return p.SDP
	}
	return p.Candidate
}

// ---- presence ----

// AppStatePayload reports a client activity state change.
type AppStatePayload struct {
	UserID UserID   `json:"userId"`
	State  AppState `json:"state"`
}

// GetPresencePayload queries one user's presence.
type GetPresencePayload struct {
	UserID UserID `json:"userId"`
}

// UserPresencePayload is broadcast on presence change and returned for queries.
type UserPresencePayload struct {
	UserID UserID   `json:"userId"`
	Online bool     `json:"online"`
	State  AppState `json:"state"`
}

// ---- rooms ----

// ActiveRoomPayload marks the room a user is currently viewing.
type ActiveRoomPayload struct {
	UserID UserID `json:"userId"`
	RoomID RoomID `json:"roomId,omitempty"`
}

// CreateRoomPayload creates a room and invites the selected users.
type CreateRoomPayload struct {
	UserID        UserID   `json:"userId"`
	SelectedUsers []UserID `json:"selectedUsers,omitempty"`
}

// JoinRoomPayload joins a user to a room's transport group.
type JoinRoomPayload struct {
	RoomID   RoomID `json:"roomId"`
	JoinUser UserID `json:"joinUser"`
}

// LeaveRoomPayload leaves a room's transport group.
type LeaveRoomPayload struct {
	RoomID RoomID `json:"roomId"`
	UserID UserID `json:"userId"`
}

// EndRoomPayload ends a room for all members.
type EndRoomPayload struct {
	RoomID RoomID `json:"roomId"`
}

// RoomInvitationsPayload invites users into a freshly created room.
type RoomInvitationsPayload struct {
	Message       string       `json:"message"`
	RoomID        RoomID       `json:"roomId"`
	SelectedUsers []UserID     `json:"selectedUsers"`
	CreatorID     UserID       `json:"creatorId"`
	SelectedInfo  []MemberInfo `json:"selectedUserInformation,omitempty"`
}

// MemberInfo is a user id/name pair carried in invitations.
type MemberInfo struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// UserJoinedPayload announces a member joining a room.
type UserJoinedPayload struct {
	Message string `json:"message"`
	RoomID  RoomID `json:"roomId"`
	UserID  UserID `json:"userId"`
}

// ---- messages ----

// RoomMessagePayload sends a chat message into a room.
type RoomMessagePayload struct {
	UserID  UserID `json:"userId"`
	RoomID  RoomID `json:"roomId"`
	Message string `json:"message"`
	Name    string `json:"name"`
	// IsSaveInDB requests persistence before fan-out.
	IsSaveInDB bool `json:"isSaveInDb"`
}

// RoomMessageDeliverPayload is broadcast to room members on a new message.
type RoomMessageDeliverPayload struct {
	Message   string    `json:"message"`
	Name      string    `json:"name"`
	UserID    UserID    `json:"userId"`
	RoomID    RoomID    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UpdateUnreadCountPayload pushes a recipient's fresh unread count.
type UpdateUnreadCountPayload struct {
	SenderID    UserID `json:"senderId"`
	RecipientID UserID `json:"recipientId,omitempty"`
	RoomID      RoomID `json:"roomId"`
	UnreadCount int64  `json:"unreadCount"`
}

// LastMessageUpdatePayload keeps conversation lists in sync for both sides of
// a private room.
type LastMessageUpdatePayload struct {
	RoomID      RoomID    `json:"roomId"`
	OtherUserID UserID    `json:"otherUserId"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	FromMe      bool      `json:"fromMe"`
}

// MarkAsReadPayload marks a room's messages read for the reader.
type MarkAsReadPayload struct {
	RoomID RoomID `json:"roomId"`
	UserID UserID `json:"userId"`
}

// MessagesReadPayload notifies room members that messages were read.
type MessagesReadPayload struct {
	RoomID   RoomID `json:"roomId"`
	ReaderID UserID `json:"readerId"`
}

// ---- errors ----

// ErrorPayload is the generic named-error response payload.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
