package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/content-dashboard/internal/metrics"
)

// StateTTL bounds how long an OAuth state may wait for its callback.
const StateTTL = 10 * time.Minute

// StateStore holds pending OAuth states. A state is accepted at most once:
// ConsumeIfValid deletes it whether or not it is still fresh.
type StateStore interface {
	Put(state string, issuedAt time.Time)
	ConsumeIfValid(state string) bool
}

// NewState returns 32 random bytes encoded as URL-safe base64 (256 bits).
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemoryStateStore is an in-process StateStore keyed by state with its issue
// time. The clock is injected so expiry can be tested without sleeping.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStateStore creates a store with StateTTL. Pass nil for now to
// use the wall clock.
func NewMemoryStateStore(now func() time.Time) *MemoryStateStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStateStore{
		states: make(map[string]time.Time),
		ttl:    StateTTL,
		now:    now,
	}
}

func (s *MemoryStateStore) Put(state string, issuedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = issuedAt
}

func (s *MemoryStateStore) ConsumeIfValid(state string) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issuedAt, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)

	return s.now().Sub(issuedAt) <= s.ttl
}

// Sweep drops every expired state and returns how many were removed.
func (s *MemoryStateStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, issuedAt := range s.states {
		if now.Sub(issuedAt) > s.ttl {
			delete(s.states, state)
			removed++
		}
	}
	return removed
}

// Len reports the number of pending states.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweeper calls Sweep on a fixed interval in a background goroutine, so
// abandoned logins cannot grow the store without bound.
type Sweeper struct {
	store    *MemoryStateStore
	interval time.Duration
	logger   *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSweeper(store *MemoryStateStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling it more than once is a no-op.
func (sw *Sweeper) Start() {
	sw.startOnce.Do(func() {
		sw.wg.Add(1)
		go sw.loop()
	})
}

// Stop ends the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.done)
		sw.wg.Wait()
	})
}

func (sw *Sweeper) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			if n := sw.store.Sweep(); n > 0 {
				sw.logger.Debug("swept expired oauth states", slog.Int("removed", n))
			}
			metrics.OAuthStates.Set(float64(sw.store.Len()))
		}
	}
}
