package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/bankgw/webhook-gateway/alert"
	"github.com/bankgw/webhook-gateway/destination"
	"github.com/bankgw/webhook-gateway/metrics"
	"github.com/bankgw/webhook-gateway/token"
	"github.com/bankgw/webhook-gateway/webhook"
	"github.com/bankgw/webhook-gateway/webhook/payload"
	"github.com/bankgw/webhook-gateway/webhook/signature"
)

// maxResponseBytes caps how much of a destination's response body is
// captured for logging.
const maxResponseBytes = 4096

// RetryPolicy bounds the attempt loop for one destination. Backoff between
// attempts is exponential with jitter.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

/* Engine is the outbound delivery pipeline: classify, sign, forward with
 * bounded retries. Attempts for one inbound request are strictly sequential;
 * deliveries across requests are independent. The token store is the only
 * state shared with other requests and the refresh scheduler.
 */
type Engine struct {
	tokens       *token.Store
	destinations []*destination.Destination
	staticKey    string
	policy       RetryPolicy
	client       *http.Client
	alerts       alert.Notifier
	rec          *metrics.Recorder
	now          func() time.Time
}

// NewEngine creates a delivery engine with dependency injection.
func NewEngine(tokens *token.Store, destinations []*destination.Destination, staticKey string, policy RetryPolicy, alerts alert.Notifier, rec *metrics.Recorder) *Engine {
	if alerts == nil {
		alerts = alert.Noop{}
	}
	return &Engine{
		tokens:       tokens,
		destinations: destinations,
		staticKey:    staticKey,
		policy:       policy,
		client:       &http.Client{},
		alerts:       alerts,
		rec:          rec,
		now:          time.Now,
	}
}

// Deliver classifies a webhook message and forwards it to every configured
// destination. Unclassified payloads are dropped and report Filtered. The
// returned error is non-nil only for Failed and carries the last attempt's
// failure.
func (e *Engine) Deliver(ctx context.Context, msg webhook.Message, requestID string) (Result, error) {
	category := payload.Classify(msg.Body)
	e.rec.Received(ctx, category.String())

	if !category.Forwardable() {
		log.Debug().
			Str("request_id", requestID).
			Int("body_size", len(msg.Body)).
			Msg("payload unclassified, not forwarding")
		e.rec.Filtered(ctx)
		return Filtered, nil
	}

	log.Info().
		Str("request_id", requestID).
		Str("category", category.String()).
		Int("body_size", len(msg.Body)).
		Msg("forwarding webhook")

	/* The body is compacted exactly once. The signature is computed over
	 * these bytes and these same bytes are transmitted, so the destination
	 * verifies what it actually received.
	 */
	body := compactJSON(msg.Body)

	var lastErr error
	for _, dest := range e.destinations {
		if err := e.deliverTo(ctx, dest, body, requestID); err != nil {
			log.Error().
				Err(err).
				Str("request_id", requestID).
				Str("destination", dest.Name).
				Msg("delivery failed after retries")
			lastErr = fmt.Errorf("delivering to %s: %w", dest.Name, err)
		}
	}

	if lastErr != nil {
		e.rec.Failed(ctx)
		return Failed, lastErr
	}

	e.rec.Delivered(ctx)
	return Delivered, nil
}

// deliverTo runs the bounded attempt loop against a single destination.
func (e *Engine) deliverTo(ctx context.Context, dest *destination.Destination, body []byte, requestID string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.policy.InitialBackoff
	bo.MaxInterval = e.policy.MaxBackoff
	bo.MaxElapsedTime = 0 // the attempt budget bounds the loop

	attempts := uint64(e.policy.MaxAttempts)
	if attempts > 0 {
		attempts--
	}
	retryCtx := backoff.WithContext(backoff.WithMaxRetries(bo, attempts), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := e.attempt(ctx, dest, body, requestID, attempt)
		if err == nil {
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) {
			if se.RejectedAuth() {
				/* The destination rejected our token: local expiry
				 * bookkeeping is wrong, so drop the cache and let the
				 * next attempt fetch a fresh one. Counts against the
				 * attempt budget.
				 */
				log.Warn().
					Str("request_id", requestID).
					Str("destination", dest.Name).
					Int("status", se.Status).
					Msg("token rejected by destination, forcing refresh")
				e.tokens.Clear()
				return err
			}
			if se.Permanent() {
				return backoff.Permanent(err)
			}
		}

		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("destination", dest.Name).
			Int("attempt", attempt).
			Msg("delivery attempt failed, will retry")
		return err
	}

	return backoff.Retry(operation, retryCtx)
}

// attempt performs a single signed POST to the destination.
func (e *Engine) attempt(ctx context.Context, dest *destination.Destination, body []byte, requestID string, attempt int) error {
	tok, err := e.tokens.Get(ctx)
	if err != nil {
		// An on-demand fetch failure is a delivery failure for this
		// request only; the store stays empty and self-heals later.
		return fmt.Errorf("obtaining token: %w", err)
	}

	timestamp := signature.Timestamp(e.now())
	sig := signature.Sign(e.staticKey, tok.AccessToken, timestamp, body)

	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("permata-signature", sig)
	req.Header.Set("permata-timestamp", timestamp)
	req.Header.Set("organizationname", dest.OrganizationName)

	resp, err := e.client.Do(req)
	if err != nil {
		e.rec.Attempt(ctx, dest.Name, 0)
		return fmt.Errorf("sending callback request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	e.rec.Attempt(ctx, dest.Name, resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info().
			Str("request_id", requestID).
			Str("destination", dest.Name).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Msg("callback accepted webhook")
		return nil
	}

	e.alerts.Error(fmt.Sprintf("received non-2xx HTTP %d from %s", resp.StatusCode, dest.Name), requestID)

	return &StatusError{
		Status: resp.StatusCode,
		Body:   string(respBody),
	}
}

// compactJSON strips insignificant whitespace. Invalid JSON is returned
// unchanged; classification has already vouched for forwardable payloads.
func compactJSON(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return body
	}
	return buf.Bytes()
}
