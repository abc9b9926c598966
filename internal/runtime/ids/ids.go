// Package ids generates the identifiers attached to inbound requests.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// CorrelationIDPrefix marks identifiers minted by this service.
const CorrelationIDPrefix = "req_"

const correlationHexLength = 16

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCorrelationID returns "req_" followed by 16 lowercase hex characters taken
// from a random (version 4) UUID. Safe for concurrent use.
func NewCorrelationID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return CorrelationIDPrefix + hex[:correlationHexLength]
}

// IsCorrelationID reports whether id has the shape produced by NewCorrelationID.
// Inbound identifiers are adopted verbatim regardless of shape; this exists for
// callers that want to tell the two apart.
func IsCorrelationID(id string) bool {
	if len(id) != len(CorrelationIDPrefix)+correlationHexLength || !strings.HasPrefix(id, CorrelationIDPrefix) {
		return false
	}
	for _, c := range id[len(CorrelationIDPrefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewRequestID returns a time-sortable ULID used to tag a single exchange in
// the streaming pipeline.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
