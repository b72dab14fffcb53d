package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bankgw/webhook-gateway/delivery"
	"github.com/bankgw/webhook-gateway/webhook"
)

/* HTTP layer DTOs for the origin-facing response envelope
 * StatusCode "00" is success, "06" is failure. This is the contract the messaging
 * platform's operators monitor.
 */

type statusResponse struct {
	StatusCode string `json:"StatusCode"`
	StatusDesc string `json:"StatusDesc"`
}

var (
	statusSuccess = statusResponse{StatusCode: "00", StatusDesc: "Success"}
	statusBadReq  = statusResponse{StatusCode: "06", StatusDesc: "Bad Request"}
)

// Deliverer is the slice of the delivery engine the HTTP layer consumes.
type Deliverer interface {
	Deliver(ctx context.Context, msg webhook.Message, requestID string) (delivery.Result, error)
}

// postWebhook handles POST on the webhook path: it reads the raw body,
// derives a request id, hands the message to the delivery engine, and maps
// the result to the origin-facing envelope. Filtered and Delivered both
// return success; the origin does not need to distinguish them.
func postWebhook(deliverer Deliverer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, statusBadReq)
			return
		}
		defer r.Body.Close()

		requestID := webhook.ExtractRequestID(body)

		headers := make(map[string]string, len(r.Header))
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		msg := webhook.Message{
			Headers: headers,
			Body:    body,
		}

		result, err := deliverer.Deliver(r.Context(), msg, requestID)
		if !result.Success() {
			log.Error().
				Err(err).
				Str("request_id", requestID).
				Msg("webhook lost: delivery failed after retries")
			writeStatus(w, http.StatusBadGateway, statusResponse{
				StatusCode: "06",
				StatusDesc: err.Error(),
			})
			return
		}

		writeStatus(w, http.StatusOK, statusSuccess)
	})
}

func writeStatus(w http.ResponseWriter, code int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}
