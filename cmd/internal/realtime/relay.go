package realtime

import (
	"log/slog"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// Relay forwards opaque WebRTC negotiation payloads (offer/answer/ICE
// candidate) between two identified endpoints. Payload bodies are never
// parsed or validated beyond presence: negotiation retries are the clients'
// responsibility, so an unresolvable target or missing field is silently
// dropped rather than surfaced as an error.
type Relay struct {
	log      *slog.Logger
	sessions *Sessions
}

// NewRelay constructs a signal relay on top of the session registry.
func NewRelay(log *slog.Logger, sessions *Sessions) *Relay {
	return &Relay{log: log, sessions: sessions}
}

// Forward tags the payload with room and origin and enqueues it on the
// target's live connection. kind is one of the rtc:* envelope types.
func (r *Relay) Forward(kind string, p v1.SignalPayload) {
	if p.ToUserID == "" || p.RoomID == "" || len(p.Body()) == 0 {
		return
	}

	if !r.sessions.SendToUser(p.ToUserID, NewEnvelope(kind, p)) {
		// Target offline or backpressured; the negotiating peer retries.
		r.log.Debug("signal.drop", "kind", kind, "to", p.ToUserID, "room_id", p.RoomID)
	}
}
