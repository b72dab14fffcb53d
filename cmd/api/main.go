package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bankgw/webhook-gateway/alert"
	"github.com/bankgw/webhook-gateway/config"
	"github.com/bankgw/webhook-gateway/delivery"
	"github.com/bankgw/webhook-gateway/destination"
	"github.com/bankgw/webhook-gateway/internal/http/chi"
	"github.com/bankgw/webhook-gateway/internal/logger"
	"github.com/bankgw/webhook-gateway/metrics"
	"github.com/bankgw/webhook-gateway/token"
)

const shutdownTimeout = 30 * time.Second

/* main is the entry and exit point of the application: all wiring between
 * packages happens here. Imports point one direction only: the binary
 * imports the business packages, never the reverse.
 */

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	destinations := destination.NewLoader()
	if err := destinations.Load(cfg.DestinationsFile); err != nil {
		log.Fatal().Err(err).Msg("loading destinations")
	}

	rec, err := metrics.NewRecorder()
	if err != nil {
		log.Fatal().Err(err).Msg("setting up metrics")
	}
	defer rec.Shutdown(context.Background())

	alerts := alert.NewTelegram(cfg.Telegram)

	// Token lifecycle: store + fetcher + self-renewing scheduler. Every
	// stored token rearms the scheduler with its expiry; a failed refresh
	// leaves the store empty and the next request self-heals.
	fetcher := token.NewHTTPFetcher(cfg.OAuth, cfg.Signing.StaticKey)
	store := token.NewStore(fetcher)
	scheduler := token.NewScheduler(token.SchedulerConfig{
		RefreshBuffer:   cfg.Scheduler.RefreshBuffer,
		MinScheduleTime: cfg.Scheduler.MinScheduleTime,
	}, store)
	scheduler.OnFailure(func(err error) {
		rec.TokenRefresh(context.Background(), false)
		alerts.Error(fmt.Sprintf("scheduled token refresh failed: %v", err), "")
	})
	store.OnSet(func(tok token.Token) {
		rec.TokenRefresh(context.Background(), true)
		scheduler.Start(tok.ExpiresAt)
	})
	defer scheduler.Shutdown()

	// Warm the token cache before accepting traffic; a failure here is
	// logged and the first delivery fetches on demand instead.
	if _, err := store.Get(ctx); err != nil {
		log.Warn().Err(err).Msg("initial token fetch failed, continuing")
	}

	engine := delivery.NewEngine(
		store,
		destinations.List(),
		cfg.Signing.StaticKey,
		delivery.RetryPolicy{
			MaxAttempts:    cfg.Delivery.MaxAttempts,
			InitialBackoff: cfg.Delivery.InitialBackoff,
			MaxBackoff:     cfg.Delivery.MaxBackoff,
			AttemptTimeout: cfg.Delivery.AttemptTimeout,
		},
		alerts,
		rec,
	)

	r := chi.Handlers(cfg.Server, engine, rec)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)

	log.Info().
		Str("addr", srv.Addr).
		Str("webhook_path", cfg.Server.WebhookPath).
		Int("destinations", len(destinations.List())).
		Msg("webhook gateway listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
	if err := <-errShutdown; err != nil {
		log.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}

	log.Info().Msg("webhook gateway stopped")
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()
	log.Info().Msg("shutdown signal received")

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing server close after %s", shutdownTimeout)
	default:
		errShutdown <- err
	}
}
