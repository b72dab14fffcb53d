package delivery

import "fmt"

// StatusError is a non-2xx response from a callback destination. 5xx and
// rejected-auth statuses are retried; other 4xx are permanent.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback responded %d: %s", e.Status, e.Body)
}

// RejectedAuth reports whether the destination rejected our token. This
// invalidates the cached token regardless of local expiry bookkeeping.
func (e *StatusError) RejectedAuth() bool {
	return e.Status == 401 || e.Status == 403
}

// Permanent reports whether retrying cannot help.
func (e *StatusError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && !e.RejectedAuth()
}
