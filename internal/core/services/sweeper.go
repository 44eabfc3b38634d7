package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Sweepable is anything that can drop its expired entries on demand.
type Sweepable interface {
	Sweep() int
}

// Sweeper runs Sweep on a fixed interval in the background, so expired
// entries are released even when no requests arrive.
type Sweeper struct {
	target   Sweepable
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper for target. A non-positive interval falls
// back to the default ephemeral sweep interval.
func NewSweeper(target Sweepable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		target:   target,
		interval: interval,
	}
}

// Start runs the sweep loop. It blocks until Stop is called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped(stopCh)
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			if n := s.target.Sweep(); n > 0 {
				logger.Debug("sweeper: released %d expired entries", n)
			}
		}
	}
}

// Stop ends the sweep loop and waits for it to return.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	return nil
}

// markStopped records that the loop exited on its own.
func (s *Sweeper) markStopped(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopCh == stopCh {
		s.running = false
		close(stopCh)
	}
}
