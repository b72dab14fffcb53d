package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

/* Message represents a received webhook notification
 * Uses value semantics as it represents data, not behavior.
 * Its lifecycle is request-scoped: created per inbound HTTP call and
 * discarded once delivery resolves.
 */
type Message struct {
	Headers map[string]string
	Body    []byte
}

// ExtractRequestID derives a correlation id for a payload. It prefers the
// payload's own "xid" field, then "id", and generates a UUID when neither is
// present or the payload is not valid JSON.
func ExtractRequestID(body []byte) string {
	var fields struct {
		XID string `json:"xid"`
		ID  string `json:"id"`
	}

	if err := json.Unmarshal(body, &fields); err == nil {
		if fields.XID != "" {
			return fmt.Sprintf("req-%s", fields.XID)
		}
		if fields.ID != "" {
			return fmt.Sprintf("req-%s", fields.ID)
		}
	}

	return fmt.Sprintf("req-%s", uuid.New().String())
}
