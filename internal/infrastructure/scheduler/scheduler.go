// Package scheduler runs named jobs on fixed intervals. A job never overlaps with itself:
// a run that is due while the previous one is still in flight is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/metrics"
	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

// Job is a unit of scheduled work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job        Job
	interval   time.Duration
	runOnStart bool
	running    sync.Mutex
}

// Scheduler owns the ticker goroutines of its registered jobs
type Scheduler struct {
	entries map[string]*entry
	order   []string
	logger  logger.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New creates an empty scheduler
func New(log logger.Logger, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  log.WithField("component", "scheduler"),
		metrics: m,
	}
}

// Every registers job to run at interval, and once immediately on Start when runOnStart is set
func (s *Scheduler) Every(interval time.Duration, job Job, runOnStart bool) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("job %s: scheduler already started", job.Name())
	}
	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %s registered twice", job.Name())
	}

	s.entries[job.Name()] = &entry{job: job, interval: interval, runOnStart: runOnStart}
	s.order = append(s.order, job.Name())
	return nil
}

// Start launches every job's loop. Loops stop when ctx is cancelled; use Wait to join them.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, name := range s.order {
		e := s.entries[name]
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

// Wait blocks until all job loops have returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	s.logger.Info("Job scheduled", map[string]interface{}{
		"job":          e.job.Name(),
		"interval":     e.interval.String(),
		"run_on_start": e.runOnStart,
	})

	if e.runOnStart {
		s.run(ctx, e)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run(ctx, e)
		case <-ctx.Done():
			s.logger.Info("Stopping job", map[string]interface{}{
				"job": e.job.Name(),
			})
			return
		}
	}
}

// run executes one job run unless another run of the same job is in flight
func (s *Scheduler) run(ctx context.Context, e *entry) bool {
	if ctx.Err() != nil {
		return false
	}

	if !e.running.TryLock() {
		s.logger.Warn("Job still running, skipping", map[string]interface{}{
			"job": e.job.Name(),
		})
		return false
	}
	defer e.running.Unlock()

	runID := uuid.New().String()
	runCtx := middleware.WithRequestID(ctx, runID)
	fields := map[string]interface{}{
		"job":        e.job.Name(),
		"request_id": runID,
	}

	start := time.Now()
	err := s.safeRun(runCtx, e.job)
	s.metrics.JobRun(e.job.Name(), err)

	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Job failed", fields)
	} else {
		s.logger.Debug("Job completed", fields)
	}
	return true
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}
