// Package control holds the pause/cancel state shared by pipeline workers.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-sorter/internal/constants"
)

// Signal is shared by pointer between the controller and every worker.
// Cancel is permanent until Reset.
type Signal struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
	done      chan struct{}
}

// NewSignal returns a running, non-cancelled signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Pause makes Wait block until Resume or Cancel.
func (s *Signal) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume clears the paused flag.
func (s *Signal) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Cancel marks the signal cancelled and releases every paused waiter.
func (s *Signal) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	s.paused = false
	close(s.done)
}

// Reset returns the signal to its initial state for a new session.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	if s.cancelled {
		s.cancelled = false
		s.done = make(chan struct{})
	}
}

// IsPaused reports whether the signal is paused.
func (s *Signal) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// IsCancelled reports whether Cancel was called since the last Reset.
func (s *Signal) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Done is closed when the signal is cancelled.
func (s *Signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks while the signal is paused, re-checking every poll interval.
// It returns true when work may proceed and false once cancellation or
// context expiry is observed.
func (s *Signal) Wait(ctx context.Context, poll time.Duration) bool {
	if poll <= 0 {
		poll = constants.PausePollInterval
	}

	for {
		s.mu.Lock()
		paused, cancelled, done := s.paused, s.cancelled, s.done
		s.mu.Unlock()

		if cancelled || ctx.Err() != nil {
			return false
		}
		if !paused {
			return true
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-done:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
