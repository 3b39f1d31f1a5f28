package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog caches the result of a completed command so a retried
// call with the same correlation id returns the original outcome instead
// of double-applying.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "actor_id:op:correlation_id"
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey constructs the standard key for a command invoked
// by an actor with a caller-supplied correlation id.
func BuildIdempotencyKey(actorID uuid.UUID, op string, correlationID string) string {
	return actorID.String() + ":" + op + ":" + correlationID
}
