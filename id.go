package deepagent

import "github.com/google/uuid"

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ShortID generates an 8-character identifier for synthesized tool-call ids.
func ShortID() string {
	return uuid.NewString()[:8]
}
