package delivery

import "fmt"

/* Result represents the outcome of one inbound webhook's delivery
 * Filtered means the payload was dropped by classification, a deliberate
 * no-op, not a failure. Failed means every attempt was exhausted or a
 * permanent rejection was received.
 */
type Result int

const (
	Filtered Result = iota + 1
	Delivered
	Failed
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Filtered:
		return "filtered"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validate checks if the result is valid
func (r Result) Validate() error {
	if r < Filtered || r > Failed {
		return fmt.Errorf("invalid result: %d", r)
	}
	return nil
}

// Success reports whether the origin system should see a success response.
// Filtered and Delivered both map to success: the origin does not need to
// distinguish them.
func (r Result) Success() bool {
	return r == Filtered || r == Delivered
}
