package deepagent

import (
	"fmt"
	"time"
)

// ErrHTTP reports a non-2xx response from an upstream HTTP API.
type ErrHTTP struct {
	Status int
	Body   string
	// RetryAfter is the server-requested backoff parsed from the
	// Retry-After header, when present.
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
