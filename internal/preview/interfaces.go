package preview

import (
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs (UUIDs).
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Hasher computes digests used to key image payloads.
type Hasher interface {
	Hash(data []byte) (string, error)
}
