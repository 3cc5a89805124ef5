package realtime

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID string (26 chars). ULIDs are lexicographically
// sortable, which keeps session/envelope/message ids traceable in logs.
func NewID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		// crypto/rand failing is not recoverable at this layer.
		return ulid.MustNew(ulid.Timestamp(now), nil).String()
	}
	return id.String()
}
