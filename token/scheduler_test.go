package token

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRefresher records refresh invocations.
type fakeRefresher struct {
	calls int64
	err   error
	panic bool
	done  chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{done: make(chan struct{}, 16)}
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	atomic.AddInt64(&f.calls, 1)
	f.done <- struct{}{}
	if f.panic {
		panic("refresher exploded")
	}
	return f.err
}

func (f *fakeRefresher) count() int64 {
	return atomic.LoadInt64(&f.calls)
}

func waitFired(t *testing.T, f *fakeRefresher) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not fire in time")
	}
}

func TestSchedulerThreshold(t *testing.T) {
	t.Run("does not arm when margin is negative", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   300 * time.Second,
			MinScheduleTime: 60 * time.Second,
		}, refresher)
		defer s.Shutdown()

		armed := s.Start(time.Now().Add(30 * time.Second))

		assert.False(t, armed)
		assert.False(t, s.Active())
		assert.EqualValues(t, 0, refresher.count())
	})

	t.Run("arms when margin is comfortable", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   300 * time.Second,
			MinScheduleTime: 60 * time.Second,
		}, refresher)
		defer s.Shutdown()

		armed := s.Start(time.Now().Add(600 * time.Second))

		assert.True(t, armed)
		assert.True(t, s.Active())
	})

	t.Run("does not arm when margin is below minimum", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   time.Second,
			MinScheduleTime: time.Minute,
		}, refresher)
		defer s.Shutdown()

		assert.False(t, s.Start(time.Now().Add(30*time.Second)))
	})
}

func TestSchedulerFire(t *testing.T) {
	t.Run("fires the refresh and disarms", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   10 * time.Millisecond,
			MinScheduleTime: time.Millisecond,
		}, refresher)
		defer s.Shutdown()

		require.True(t, s.Start(time.Now().Add(40*time.Millisecond)))

		waitFired(t, refresher)
		assert.EqualValues(t, 1, refresher.count())

		assert.Eventually(t, func() bool { return !s.Active() }, time.Second, 5*time.Millisecond)
	})

	t.Run("refresh error is swallowed", func(t *testing.T) {
		refresher := newFakeRefresher()
		refresher.err = &AuthError{Status: 500, Body: "boom"}

		var notified error
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   10 * time.Millisecond,
			MinScheduleTime: time.Millisecond,
		}, refresher)
		var mu sync.Mutex
		s.OnFailure(func(err error) {
			mu.Lock()
			notified = err
			mu.Unlock()
		})
		defer s.Shutdown()

		require.True(t, s.Start(time.Now().Add(30*time.Millisecond)))
		waitFired(t, refresher)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return notified != nil
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("refresh panic does not kill the process", func(t *testing.T) {
		refresher := newFakeRefresher()
		refresher.panic = true

		failed := make(chan error, 1)
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   10 * time.Millisecond,
			MinScheduleTime: time.Millisecond,
		}, refresher)
		s.OnFailure(func(err error) { failed <- err })
		defer s.Shutdown()

		require.True(t, s.Start(time.Now().Add(30*time.Millisecond)))

		select {
		case err := <-failed:
			assert.Contains(t, err.Error(), "refresh panicked")
		case <-time.After(2 * time.Second):
			t.Fatal("panic was not converted to a failure")
		}
	})
}

func TestSchedulerReplace(t *testing.T) {
	t.Run("starting twice leaves exactly one armed timer", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   20 * time.Millisecond,
			MinScheduleTime: time.Millisecond,
		}, refresher)
		defer s.Shutdown()

		// The first timer would fire quickly; replacing it pushes the
		// fire far into the future, so exactly zero refreshes happen.
		require.True(t, s.Start(time.Now().Add(60*time.Millisecond)))
		require.True(t, s.Start(time.Now().Add(time.Hour)))

		time.Sleep(150 * time.Millisecond)

		assert.EqualValues(t, 0, refresher.count())
		assert.True(t, s.Active())
	})
}

func TestSchedulerShutdown(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   time.Minute,
			MinScheduleTime: time.Millisecond,
		}, newFakeRefresher())

		s.Shutdown()
		s.Shutdown()

		assert.False(t, s.Active())
	})

	t.Run("cancels an armed timer and blocks rearming", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   10 * time.Millisecond,
			MinScheduleTime: time.Millisecond,
		}, refresher)

		require.True(t, s.Start(time.Now().Add(50*time.Millisecond)))
		s.Shutdown()

		time.Sleep(100 * time.Millisecond)
		assert.EqualValues(t, 0, refresher.count())

		// Terminal: a later Start must refuse to arm.
		assert.False(t, s.Start(time.Now().Add(time.Hour)))
		assert.False(t, s.Active())
	})

	t.Run("safe concurrently with a firing refresh", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   time.Millisecond,
			MinScheduleTime: 0,
		}, refresher)

		require.True(t, s.Start(time.Now().Add(5*time.Millisecond)))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Shutdown()
			}()
		}
		wg.Wait()

		assert.False(t, s.Active())
	})
}

func TestSchedulerUpdateConfig(t *testing.T) {
	t.Run("takes effect on the next scheduling decision", func(t *testing.T) {
		refresher := newFakeRefresher()
		s := NewScheduler(SchedulerConfig{
			RefreshBuffer:   300 * time.Second,
			MinScheduleTime: 60 * time.Second,
		}, refresher)
		defer s.Shutdown()

		// Too thin under the original config.
		assert.False(t, s.Start(time.Now().Add(90*time.Second)))

		s.UpdateConfig(SchedulerConfig{
			RefreshBuffer:   10 * time.Second,
			MinScheduleTime: 10 * time.Second,
		})

		// The same expiry is schedulable under the new config.
		assert.True(t, s.Start(time.Now().Add(90*time.Second)))
	})
}
