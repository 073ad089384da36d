package domain

import "time"

// RateLimitState is a point-in-time snapshot of a rate limiter, suitable for
// logging or stats export. The live, mutex-guarded state lives in
// internal/platform/ratelimit; this is the read-only projection of it.
type RateLimitState struct {
	Remaining          int       `json:"remaining"`
	ResetAt            time.Time `json:"reset_at"`
	BackoffFactor      float64   `json:"backoff_factor"`
	LastRequestInstant time.Time `json:"last_request_instant"`
}
