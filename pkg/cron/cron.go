// Package cron schedules server messages on cron expressions. Each job
// fires its payload into the serve sequence, so scheduled work flows
// through the same branches as webhook traffic.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mullbot/mull/pkg/events"
	"github.com/mullbot/mull/pkg/logger"
)

// Trigger receives a job's payload when its schedule fires.
type Trigger func(ctx context.Context, data map[string]interface{}) error

// Job is a named schedule with a payload for the serve sequence.
type Job struct {
	Name string                 `json:"name"`
	Expr string                 `json:"expr"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Service runs jobs against a trigger.
type Service struct {
	trigger Trigger
	emitter *events.Emitter
	checker *gronx.Gronx

	mu     sync.Mutex
	jobs   map[string]Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a cron service. The emitter may be nil.
func New(trigger Trigger, emitter *events.Emitter) *Service {
	return &Service{
		trigger: trigger,
		emitter: emitter,
		checker: gronx.New(),
		jobs:    make(map[string]Job),
	}
}

// Add registers a job. The expression must be a valid cron schedule.
func (s *Service) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("cron job needs a name")
	}
	if !s.checker.IsValid(job.Expr) {
		return fmt.Errorf("invalid cron expression %q", job.Expr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = job
	return nil
}

// Remove drops a job by name.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// Jobs returns a snapshot of registered jobs.
func (s *Service) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

// Start begins the scheduler loop. Due jobs are checked once a minute,
// aligned to the minute boundary.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		next := time.Now().Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.fireDue(ctx, next)
		}
	}
}

func (s *Service) fireDue(ctx context.Context, at time.Time) {
	s.mu.Lock()
	due := make([]Job, 0)
	for _, job := range s.jobs {
		ok, err := s.checker.IsDue(job.Expr, at)
		if err != nil {
			logger.WarnCF("cron", "schedule check failed", map[string]interface{}{
				"job": job.Name, "error": err.Error(),
			})
			continue
		}
		if ok {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		logger.DebugCF("cron", "job due", map[string]interface{}{"job": job.Name})
		if s.emitter != nil {
			s.emitter.Emit(events.New(events.CronTriggered, "cron", map[string]interface{}{
				"job": job.Name,
			}))
		}
		// Copy the payload so the registered job's map stays untouched.
		data := make(map[string]interface{}, len(job.Data)+1)
		for k, v := range job.Data {
			data[k] = v
		}
		data["job"] = job.Name
		if err := s.trigger(ctx, data); err != nil {
			logger.ErrorCF("cron", "trigger failed", map[string]interface{}{
				"job": job.Name, "error": err.Error(),
			})
		}
	}
}

// Shutdown stops the scheduler loop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
