// Package worker runs the periodic ingestion schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/price-etl/internal/logging"
	"github.com/price-etl/internal/models"
)

// Runner triggers a full ingestion cycle across all sources
type Runner interface {
	RunAll(ctx context.Context) []*models.RunRecord
}

// Scheduler triggers ingestion runs on a fixed interval. Runs started by
// the API while the ticker fires are rejected by the orchestrator's
// in-flight guard, the scheduler just skips that cycle for the source.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *logging.Logger

	running  bool
	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastTick time.Time
}

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	Runner   Runner
	Interval time.Duration
	Logger   *logging.Logger
}

// NewScheduler creates a new ingestion scheduler
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}
	if interval < time.Second {
		return nil, fmt.Errorf("schedule interval must be at least 1s, got %v", interval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Scheduler{
		runner:   cfg.Runner,
		interval: interval,
		logger:   logger.WithField("component", "scheduler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins the schedule loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Infof("starting ingestion scheduler with interval %v", s.interval)

	go s.loop(ctx)

	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-progress cycle
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.mu.Unlock()

	s.logger.Info("stopping ingestion scheduler")

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.Info("ingestion scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// Running reports whether the schedule loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastTick returns when the scheduler last triggered a cycle
func (s *Scheduler) LastTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.lastTick = time.Now()
			s.mu.Unlock()

			s.cycle(ctx)
		}
	}
}

// cycle runs one full ingestion pass and logs the aggregate outcome
func (s *Scheduler) cycle(ctx context.Context) {
	results := s.runner.RunAll(ctx)

	var fetched, rejected int
	for _, run := range results {
		fetched += run.RecordsFetched
		rejected += run.RecordsRejected
	}

	s.logger.WithFields(map[string]interface{}{
		"sources":  len(results),
		"fetched":  fetched,
		"rejected": rejected,
	}).Info("scheduled ingestion cycle finished")
}
