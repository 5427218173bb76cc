// Package jobs runs periodic maintenance tasks in the background of the API server.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc performs one run of a task.
type TaskFunc func(context.Context) error

// Task is a named unit of periodic work.
type Task struct {
	Name       string
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RunOnStart triggers the first run immediately instead of after one interval.
	RunOnStart bool
	Run        TaskFunc
}

// Scheduler drives every registered task on its own goroutine.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	tasks   []Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Register adds a task. Tasks must be registered before Start.
func (s *Scheduler) Register(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no run func", task.Name)
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %q needs a positive interval", task.Name)
	}
	if task.MaxRetries < 0 {
		task.MaxRetries = 0
	}
	if task.RetryDelay <= 0 {
		task.RetryDelay = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start launches one goroutine per task. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(task)
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.tasks))
}

// Stop cancels every task and waits for running attempts to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) loop(task Task) {
	defer s.wg.Done()

	if task.RunOnStart {
		s.runWithRetries(task)
	}
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runWithRetries(task)
		}
	}
}

// runWithRetries makes up to MaxRetries+1 attempts, waiting RetryDelay between them.
func (s *Scheduler) runWithRetries(task Task) {
	for attempt := 0; ; attempt++ {
		if s.ctx.Err() != nil {
			return
		}
		err := task.Run(s.ctx)
		if err == nil {
			return
		}
		if attempt >= task.MaxRetries {
			s.logger.Sugar().Errorw("task exceeded retries", "task", task.Name, "attempts", attempt+1, "error", err)
			return
		}
		s.logger.Sugar().Warnw("task failed, retrying", "task", task.Name, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(task.RetryDelay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
