package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
)

// Scheduler runs acquisition rounds at regular intervals
type Scheduler struct {
	runner   ports.RoundRunner
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a new round scheduler
func NewScheduler(runner ports.RoundRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins running rounds; the first round fires immediately
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("starting scheduler", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			close(s.doneCh)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return ctx.Err()

		case <-s.stopCh:
			s.logger.Info("scheduler stopped")
			close(s.doneCh)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return nil

		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	// a round must never outlive its slot
	roundTimeout := s.interval / 2
	if roundTimeout < time.Minute {
		roundTimeout = time.Minute
	}

	roundCtx, cancel := context.WithTimeout(ctx, roundTimeout)
	defer cancel()

	summary, err := s.runner.RunRound(roundCtx)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyRound) {
			s.logger.Error("round yielded nothing", "targets", summary.Targets)
			return
		}
		s.logger.Error("round failed", "error", err)
		return
	}

	s.logger.Info("round done",
		"usable", summary.UsablePrices,
		"reconciled", summary.Reconciled,
		"high_confidence", summary.HighConfidence,
	)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")
	close(s.stopCh)

	select {
	case <-s.doneCh:
		return nil
	case <-time.After(10 * time.Second):
		return context.DeadlineExceeded
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
