package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

/* Recorder provides OpenTelemetry counters for the gateway, exported in
 * Prometheus format. All methods are nil-safe so core packages can be
 * constructed without metrics in tests.
 */
type Recorder struct {
	meterProvider *sdkmetric.MeterProvider

	received         metric.Int64Counter
	filtered         metric.Int64Counter
	delivered        metric.Int64Counter
	failed           metric.Int64Counter
	deliveryAttempts metric.Int64Counter
	tokenRefreshes   metric.Int64Counter
}

// NewRecorder creates a metrics recorder backed by a Prometheus exporter.
func NewRecorder() (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-gateway",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	r := &Recorder{meterProvider: meterProvider}

	if r.received, err = meter.Int64Counter(
		"webhook.received",
		metric.WithDescription("Inbound webhook notifications received"),
		metric.WithUnit("{webhooks}"),
	); err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}

	if r.filtered, err = meter.Int64Counter(
		"webhook.filtered",
		metric.WithDescription("Webhooks dropped by classification"),
		metric.WithUnit("{webhooks}"),
	); err != nil {
		return nil, fmt.Errorf("creating filtered counter: %w", err)
	}

	if r.delivered, err = meter.Int64Counter(
		"webhook.delivered",
		metric.WithDescription("Webhooks forwarded successfully"),
		metric.WithUnit("{webhooks}"),
	); err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}

	if r.failed, err = meter.Int64Counter(
		"webhook.failed",
		metric.WithDescription("Webhooks that exhausted delivery attempts"),
		metric.WithUnit("{webhooks}"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	if r.deliveryAttempts, err = meter.Int64Counter(
		"webhook.delivery.attempts",
		metric.WithDescription("Outbound delivery attempts per destination"),
		metric.WithUnit("{attempts}"),
	); err != nil {
		return nil, fmt.Errorf("creating delivery attempts counter: %w", err)
	}

	if r.tokenRefreshes, err = meter.Int64Counter(
		"token.refresh",
		metric.WithDescription("Token fetches, labeled by outcome"),
		metric.WithUnit("{fetches}"),
	); err != nil {
		return nil, fmt.Errorf("creating token refresh counter: %w", err)
	}

	return r, nil
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil || r.meterProvider == nil {
		return nil
	}
	return r.meterProvider.Shutdown(ctx)
}

// Received counts an inbound webhook, labeled with its category.
func (r *Recorder) Received(ctx context.Context, category string) {
	if r == nil {
		return
	}
	r.received.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// Filtered counts a payload dropped by classification.
func (r *Recorder) Filtered(ctx context.Context) {
	if r == nil {
		return
	}
	r.filtered.Add(ctx, 1)
}

// Delivered counts a successfully forwarded webhook.
func (r *Recorder) Delivered(ctx context.Context) {
	if r == nil {
		return
	}
	r.delivered.Add(ctx, 1)
}

// Failed counts a webhook whose delivery attempts were exhausted.
func (r *Recorder) Failed(ctx context.Context) {
	if r == nil {
		return
	}
	r.failed.Add(ctx, 1)
}

// Attempt counts one outbound delivery attempt against a destination.
func (r *Recorder) Attempt(ctx context.Context, destination string, status int) {
	if r == nil {
		return
	}
	r.deliveryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("destination", destination),
		attribute.Int("status", status),
	))
}

// TokenRefresh counts a token fetch outcome.
func (r *Recorder) TokenRefresh(ctx context.Context, success bool) {
	if r == nil {
		return
	}
	r.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
