package async

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Scheduler runs background tasks under a shared base context. Tasks are
// started immediately; Close cancels the base context and waits for every
// running task to return.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// NewScheduler creates a Scheduler whose tasks inherit ctx.
func NewScheduler(ctx context.Context, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Go starts task on its own goroutine and returns without waiting. It
// reports false when the scheduler is already closed and the task was not
// started. A panicking task is logged and does not take the process down.
func (s *Scheduler) Go(name string, task func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("scheduler closed, dropping task", slog.String("task", name))
		return false
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked",
					slog.String("task", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		task(s.ctx)
	}()
	return true
}

// Context returns the base context shared by all tasks.
func (s *Scheduler) Context() context.Context {
	return s.ctx
}

// Wait blocks until every task started so far has returned, without
// closing the scheduler.
func (s *Scheduler) Wait() {
	s.tasks.Wait()
}

// Close cancels running tasks and waits for them to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.tasks.Wait()
}
