package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SchedulerConfig controls when a proactive refresh is scheduled relative to
// the token expiry. Immutable after construction; UpdateConfig swaps it for
// future scheduling decisions only.
type SchedulerConfig struct {
	// RefreshBuffer is the margin before expiry at which the refresh fires.
	RefreshBuffer time.Duration
	// MinScheduleTime is the smallest useful delay: tokens closer to expiry
	// than this are refreshed reactively on the next cache miss instead.
	MinScheduleTime time.Duration
}

// Refresher is the one operation the scheduler invokes when its timer fires.
// The store implements it as clear + fetch + set, and a successful set rearms
// the scheduler through the store's on-set hook.
type Refresher interface {
	Refresh(ctx context.Context) error
}

/* Scheduler owns at most one background timer per token store.
 * Arming replaces any previously armed timer, it never stacks. All state
 * transitions (Idle -> Armed -> Firing -> Idle) are serialized by the mutex,
 * which avoids lock ordering between the replacement and shutdown paths.
 */
type Scheduler struct {
	mu        sync.Mutex
	cfg       SchedulerConfig
	refresher Refresher

	cancel context.CancelFunc
	gen    uint64
	armed  bool
	closed bool

	// onFailure, when set, is notified of refresh errors after they are
	// logged. Used for operational alerting; never invoked concurrently
	// with itself for the same timer.
	onFailure func(error)
}

// NewScheduler creates an idle scheduler for the given refresher.
func NewScheduler(cfg SchedulerConfig, refresher Refresher) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		refresher: refresher,
	}
}

// OnFailure registers a hook notified when a fired refresh fails.
// Must be called during wiring.
func (s *Scheduler) OnFailure(fn func(error)) {
	s.onFailure = fn
}

// Start arms the timer to fire at expiresAt minus the refresh buffer,
// cancelling any previously armed timer. It does not arm when the remaining
// margin is below the minimum schedule time (the next Get miss refreshes
// reactively) or after Shutdown. Returns whether a timer was armed.
func (s *Scheduler) Start(expiresAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	fireAt := expiresAt.Add(-s.cfg.RefreshBuffer)
	wait := time.Until(fireAt)
	if wait < s.cfg.MinScheduleTime {
		log.Info().
			Time("expires_at", expiresAt).
			Dur("margin", wait).
			Dur("min_schedule_time", s.cfg.MinScheduleTime).
			Msg("refresh margin too thin, not arming scheduler")
		return false
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	s.armed = true

	log.Info().
		Time("fire_at", fireAt).
		Dur("in", wait).
		Msg("refresh scheduler armed")

	go s.run(ctx, s.gen, wait)
	return true
}

// UpdateConfig swaps the scheduling parameters. It takes effect on the next
// scheduling decision; an already-armed timer keeps its target.
func (s *Scheduler) UpdateConfig(cfg SchedulerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Active reports whether a timer is currently armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Shutdown cancels any armed timer and prevents future rearming. Safe to
// call repeatedly and concurrently with a firing refresh; it never waits on
// in-flight work.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.armed = false

	log.Info().Msg("refresh scheduler shut down")
}

func (s *Scheduler) run(ctx context.Context, gen uint64, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		log.Debug().Msg("armed refresh timer cancelled")
		s.disarm(gen)
		return
	case <-timer.C:
	}

	s.disarm(gen)

	log.Info().Msg("refresh scheduler fired")
	if err := s.refresh(ctx); err != nil {
		// The store is left empty here: the next Get performs a
		// synchronous fetch, so the system self-heals.
		log.Error().Err(err).Msg("scheduled token refresh failed")
		if s.onFailure != nil {
			s.onFailure(err)
		}
	}
}

// refresh invokes the refresher, converting a panic into an error so a
// misbehaving refresh can never take down the process or leave the
// scheduler silently dead.
func (s *Scheduler) refresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	return s.refresher.Refresh(ctx)
}

// disarm clears the armed flag, unless a newer timer has been armed since.
func (s *Scheduler) disarm(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.armed = false
	}
}
