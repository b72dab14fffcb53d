package token

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

/* Store holds zero-or-one current Token behind a lock.
 * It is the only shared mutable state between the refresh scheduler and the
 * concurrent delivery callers. A miss triggers exactly one fetch no matter
 * how many callers observe it simultaneously; the others block on the
 * single-flight group and receive the same token.
 *
 * Construct one per gateway (or per test); ownership is explicit, never a
 * package-level singleton.
 */
type Store struct {
	mu      sync.RWMutex
	current *Token

	group   singleflight.Group
	fetcher Fetcher

	// onSet fires after a successful Set, outside the lock. The gateway
	// wires it to the scheduler so every fresh token rearms the timer.
	onSet func(Token)

	now func() time.Time
}

// NewStore creates a token store backed by the given fetcher.
func NewStore(fetcher Fetcher) *Store {
	return &Store{
		fetcher: fetcher,
		now:     time.Now,
	}
}

// OnSet registers the hook invoked with every token stored via Set.
// Must be called during wiring, before the store is shared.
func (s *Store) OnSet(fn func(Token)) {
	s.onSet = fn
}

// Get returns the cached token while it is still valid, otherwise fetches a
// new one. The returned token is never expired. Concurrent callers during a
// miss share a single fetch.
func (s *Store) Get(ctx context.Context) (Token, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	v, err, shared := s.group.Do("token", func() (interface{}, error) {
		// Another caller may have completed the fetch while we waited
		// for the group slot.
		if tok, ok := s.cached(); ok {
			return tok, nil
		}

		tok, err := s.fetcher.Fetch(ctx)
		if err != nil {
			return Token{}, err
		}
		s.Set(tok)
		return tok, nil
	})
	if err != nil {
		return Token{}, err
	}

	if shared {
		log.Debug().Msg("token fetch shared with concurrent caller")
	}
	return v.(Token), nil
}

// Set replaces the stored token atomically and fires the on-set hook.
func (s *Store) Set(tok Token) {
	s.mu.Lock()
	s.current = &tok
	s.mu.Unlock()

	// The hook runs outside the lock: it typically re-arms the scheduler,
	// which takes its own lock.
	if s.onSet != nil {
		s.onSet(tok)
	}
}

// Clear drops the stored token. The next Get performs a synchronous fetch.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	log.Debug().Msg("token cache cleared")
}

// Refresh is the single well-defined operation the scheduler invokes:
// drop the current token, fetch a fresh one, store it (which rearms the
// scheduler through the on-set hook).
func (s *Store) Refresh(ctx context.Context) error {
	s.Clear()
	_, err := s.Get(ctx)
	return err
}

func (s *Store) cached() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current != nil && s.current.Valid(s.now()) {
		return *s.current, true
	}
	return Token{}, false
}
