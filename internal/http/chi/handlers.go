package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/bankgw/webhook-gateway/config"
	"github.com/bankgw/webhook-gateway/metrics"
)

// Handlers sets up the gateway's HTTP routes: the webhook endpoint on the
// configured path, a liveness probe on the same path and on /health, and the
// Prometheus metrics endpoint.
func Handlers(cfg config.ServerConfig, deliverer Deliverer, rec *metrics.Recorder) *chi.Mux {
	logger := httplog.NewLogger("webhook-gateway", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	health := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success","message":"Application is healthy"}`))
	}

	// Health check; the origin platform probes the webhook path with GET
	r.Get("/health", health)
	r.Get(cfg.WebhookPath, health)

	r.Post(cfg.WebhookPath, postWebhook(deliverer).ServeHTTP)

	if rec != nil {
		r.Handle("/metrics", rec.Handler())
	}

	return r
}
