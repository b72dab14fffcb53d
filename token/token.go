package token

import (
	"fmt"
	"time"
)

/* Token is a short-lived OAuth2 access credential with a known expiry
 * Immutable once created: the store replaces it wholesale, never mutates
 * fields in place. ExpiresAt is always after ObtainedAt.
 */
type Token struct {
	AccessToken string
	ObtainedAt  time.Time
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be presented at the given time.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// TTL returns the remaining lifetime at the given time.
func (t Token) TTL(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

// AuthError is returned when the token endpoint is unreachable, rejects the
// exchange, or responds with a body that cannot be parsed. The response
// status and body are captured for logging.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("authentication failed: status %d: %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
