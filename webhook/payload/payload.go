package payload

import (
	"encoding/json"
	"fmt"
)

/* Category represents what kind of webhook notification a payload carries
 * DeliveryReceipt is a status update for a previously sent message
 * InboundMessage is a message received from an end user
 * Anything else is Unclassified and not forwarded
 */
type Category int

const (
	Unclassified Category = iota + 1
	DeliveryReceipt
	InboundMessage
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case DeliveryReceipt:
		return "delivery_receipt"
	case InboundMessage:
		return "inbound_message"
	default:
		return "unknown"
	}
}

// Validate checks if the category is valid
func (c Category) Validate() error {
	if c < Unclassified || c > InboundMessage {
		return fmt.Errorf("invalid category: %d", c)
	}
	return nil
}

// Forwardable returns true if payloads of this category are relayed onward
func (c Category) Forwardable() bool {
	return c == DeliveryReceipt || c == InboundMessage
}

/* notification mirrors the WhatsApp Cloud API webhook envelope, keeping only
 * the paths the classifier inspects:
 *   entry[].changes[].value.statuses -> delivery receipt
 *   entry[].changes[].value.messages -> inbound message
 * Flat payloads carrying top-level statuses/messages arrays are accepted too.
 */
type notification struct {
	Entry []struct {
		Changes []struct {
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
	changeValue
}

type changeValue struct {
	Statuses []json.RawMessage `json:"statuses"`
	Messages []json.RawMessage `json:"messages"`
}

// Classify inspects a raw JSON webhook body and determines its category.
// Malformed or partial JSON never produces an error; it degrades to
// Unclassified so the caller can drop the payload.
func Classify(body []byte) Category {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Unclassified
	}

	values := make([]changeValue, 0, 1)
	values = append(values, n.changeValue)
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			values = append(values, change.Value)
		}
	}

	/* A status update takes precedence: provider payloads never carry both,
	 * but if one ever did, the receipt is the safer classification since it
	 * references a message we already sent.
	 */
	for _, v := range values {
		if len(v.Statuses) > 0 {
			return DeliveryReceipt
		}
	}
	for _, v := range values {
		if len(v.Messages) > 0 {
			return InboundMessage
		}
	}

	return Unclassified
}
