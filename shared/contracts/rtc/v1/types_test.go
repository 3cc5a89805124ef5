package v1

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{name: "valid mapUser", env: Envelope{V: Version, Type: TypeMapUser}},
		{name: "valid signal", env: Envelope{V: Version, Type: TypeRTCCandidate}},
		{name: "missing version", env: Envelope{Type: TypeMapUser}, wantErr: "missing field: v"},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeMapUser}, wantErr: "unsupported protocol version"},
		{name: "missing type", env: Envelope{V: Version}, wantErr: "missing field: type"},
		{name: "outbound type rejected inbound", env: Envelope{V: Version, Type: TypeCallRinging}, wantErr: "unknown type"},
		{name: "unknown type", env: Envelope{V: Version, Type: "selfDestruct"}, wantErr: "unknown type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.env.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSignalPayloadBody(t *testing.T) {
	t.Parallel()

	sdp := json.RawMessage(`{"type":"offer"}`)
	cand := json.RawMessage(`{"candidate":"udp ..."}`)

	if got := (SignalPayload{SDP: sdp}).Body(); string(got) != string(sdp) {
		t.Fatalf("Body() = %s, want sdp", got)
	}
	if got := (SignalPayload{Candidate: cand}).Body(); string(got) != string(cand) {
		t.Fatalf("Body() = %s, want candidate", got)
	}
	// SDP wins when both are present.
	if got := (SignalPayload{SDP: sdp, Candidate: cand}).Body(); string(got) != string(sdp) {
		t.Fatalf("Body() = %s, want sdp preference", got)
	}
	if got := (SignalPayload{}).Body(); len(got) != 0 {
		t.Fatalf("Body() = %s, want empty", got)
	}
}

func TestRoomMessagePayloadWireNames(t *testing.T) {
	t.Parallel()

	// Mobile clients send isSaveInDb with a lowercase b; the field name is
	// wire-frozen.
	var p RoomMessagePayload
	if err := json.Unmarshal([]byte(`{"userId":"u1","roomId":"r1","message":"m","name":"n","isSaveInDb":true}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.IsSaveInDB {
		t.Fatal("isSaveInDb did not decode")
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"isSaveInDb":true`) {
		t.Fatalf("marshal output = %s", b)
	}
}
