package session

import (
	"context"
	"sync"
	"time"

	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Sweeper periodically removes sessions whose connection went away without
// a clean disconnect.
type Sweeper struct {
	registry  *Registry
	timeout   time.Duration
	interval  time.Duration
	logger    *zap.SugaredLogger
	onExpired func(expired []canvas.Session)

	wg sync.WaitGroup
}

func NewSweeper(registry *Registry, timeout time.Duration, interval time.Duration, logger *zap.SugaredLogger) *Sweeper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		registry: registry,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// OnExpired registers a callback that receives every batch of swept
// sessions. It must be set before Start.
func (s *Sweeper) OnExpired(fn func(expired []canvas.Session)) {
	s.onExpired = fn
}

// Start deletes every session left over from a previous run, then sweeps
// on each interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	removed, err := s.registry.DeleteExpired(ctx, 0)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		s.logger.Infof("Removed %d sessions left over from a previous run", len(removed))
	}

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Wait blocks until the sweep loop has stopped.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.registry.DeleteExpired(ctx, s.timeout)
	if err != nil {
		s.logger.Errorw("Session sweep failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	s.logger.Infof("Swept %d expired sessions", len(expired))
	if s.onExpired != nil {
		s.onExpired(expired)
	}
}
