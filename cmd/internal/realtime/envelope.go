package realtime

import (
	"encoding/json"
	"time"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

// NewEnvelope wraps a payload struct into a versioned wire envelope.
// Marshal failures cannot happen for our own payload types, so the payload is
// marshaled eagerly and any error is swallowed into an empty payload.
func NewEnvelope(typ string, payload any) v1.Envelope {
	now := time.Now().UTC()
	raw, _ := json.Marshal(payload)
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewID(now),
		TS:      now,
		Payload: raw,
	}
}

// NewErrorEnvelope builds a named error event.
func NewErrorEnvelope(typ, code, msg string) v1.Envelope {
	return NewEnvelope(typ, v1.ErrorPayload{Code: code, Message: msg})
}
