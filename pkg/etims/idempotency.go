package etims

import "github.com/google/uuid"

// NewIdempotencyKey returns a fresh random key for one logical submission.
// Keep it with the document and send the same key on every retry.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
