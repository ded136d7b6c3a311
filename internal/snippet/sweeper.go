package snippet

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper runs the retention sweep on a fixed interval, off the request
// path. It owns its goroutine and cancellation; Stop waits for an
// in-flight sweep to reach its next checkpoint.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper driving manager every interval.
func NewSweeper(manager *Manager, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic sweeping. It runs an initial sweep immediately,
// then on each tick.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the sweeper and waits for the current sweep (if any) to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	deleted, err := s.manager.SweepExpired(ctx, time.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("retention sweep failed", "deleted", deleted, "err", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention sweep completed", "deleted", deleted)
	}
}
