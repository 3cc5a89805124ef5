package realtime

import (
	"encoding/json"
	"testing"

	v1 "github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/shared/contracts/rtc/v1"
)

func TestRelayForward(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore(User{ID: "alice"}, User{ID: "bob"}))
	relay := NewRelay(testLogger(), sessions)
	bob := registerUser(t, sessions, "bob", "conn-b")

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	relay.Forward(v1.TypeRTCOffer, v1.SignalPayload{
		FromUserID: "alice",
		ToUserID:   "bob",
		RoomID:     "room-1",
		SDP:        sdp,
	})

	var got v1.SignalPayload
	recvPayload(t, bob, v1.TypeRTCOffer, &got)
	if got.FromUserID != "alice" || got.RoomID != "room-1" {
		t.Fatalf("forwarded payload = %+v", got)
	}
	if string(got.SDP) != string(sdp) {
		t.Fatalf("sdp body changed in transit: %s", got.SDP)
	}
}

func TestRelayDropsSilently(t *testing.T) {
	t.Parallel()

	sessions := NewSessions(testLogger(), seedStore(User{ID: "bob"}))
	relay := NewRelay(testLogger(), sessions)
	bob := registerUser(t, sessions, "bob", "conn-b")

	body := json.RawMessage(`{"candidate":"..."}`)
	cases := []struct {
		name string
		p    v1.SignalPayload
	}{
		{name: "missing target", p: v1.SignalPayload{RoomID: "room-1", Candidate: body}},
		{name: "missing room", p: v1.SignalPayload{ToUserID: "bob", Candidate: body}},
		{name: "missing body", p: v1.SignalPayload{ToUserID: "bob", RoomID: "room-1"}},
		{name: "offline target", p: v1.SignalPayload{ToUserID: "ghost", RoomID: "room-1", Candidate: body}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			relay.Forward(v1.TypeRTCCandidate, tc.p)
			wantNoEnvelope(t, bob)
		})
	}
}
