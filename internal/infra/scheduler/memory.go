package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
)

// ErrSchedulerStopped is returned when a job is scheduled after Run returned.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// MemoryScheduler keeps one timer per job key. Pending jobs are lost on restart;
// the expiry sweeper re-derives them from the database.
type MemoryScheduler struct {
	logger      *slog.Logger
	maxAttempts int

	mu       sync.Mutex
	timers   map[string]*time.Timer
	handlers map[entity.JobKind]service.JobHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// retryDelay is replaceable in tests.
	retryDelay func(attempt int) time.Duration
}

// NewMemoryScheduler creates an in-process scheduler.
func NewMemoryScheduler(logger *slog.Logger, maxAttempts int) *MemoryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &MemoryScheduler{
		logger:      logger,
		maxAttempts: maxAttempts,
		timers:      make(map[string]*time.Timer),
		handlers:    make(map[entity.JobKind]service.JobHandler),
		ctx:         ctx,
		cancel:      cancel,
		retryDelay:  backoff,
	}
}

// Register binds the handler of a job kind.
func (s *MemoryScheduler) Register(kind entity.JobKind, handler service.JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[kind] = handler
}

// Schedule arms a timer for the job, replacing any job with the same key.
func (s *MemoryScheduler) Schedule(_ context.Context, job entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return errors.Wrapf(ErrSchedulerStopped, "failed to schedule job %s", job.Key)
	}

	if existing, ok := s.timers[job.Key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(time.Until(job.RunAt), func() {
		s.fire(timer, job)
	})
	s.timers[job.Key] = timer

	return nil
}

// Cancel stops the timer of the key.
func (s *MemoryScheduler) Cancel(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}

	return nil
}

// Run blocks until ctx is done, then stops pending timers and waits for running handlers.
func (s *MemoryScheduler) Run(ctx context.Context) error {
	<-ctx.Done()

	s.mu.Lock()
	s.cancel()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	s.wg.Wait()

	return nil
}

// Pending reports how many jobs are armed.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

func (s *MemoryScheduler) fire(timer *time.Timer, job entity.Job) {
	s.mu.Lock()
	// A replaced or cancelled job must not run.
	if s.timers[job.Key] != timer {
		s.mu.Unlock()

		return
	}
	delete(s.timers, job.Key)
	handler, ok := s.handlers[job.Kind]
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	if !ok {
		s.logger.Warn("No handler registered for job", slog.String("kind", string(job.Kind)), slog.String("key", job.Key))

		return
	}
	if s.ctx.Err() != nil {
		return
	}

	job.Attempts++
	if err := handler(s.ctx, job); err != nil {
		s.logger.Error("Scheduled job failed",
			slog.String("key", job.Key),
			slog.String("kind", string(job.Kind)),
			slog.Int("attempt", job.Attempts),
			slog.Any("error", err),
		)
		if job.Attempts >= s.maxAttempts {
			s.logger.Error("Giving up on job", slog.String("key", job.Key), slog.Int("attempts", job.Attempts))

			return
		}

		job.RunAt = time.Now().Add(s.retryDelay(job.Attempts))
		if err := s.Schedule(s.ctx, job); err != nil {
			s.logger.Error("Failed to reschedule job", slog.String("key", job.Key), slog.Any("error", err))
		}
	}
}
