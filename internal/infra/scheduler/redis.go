package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const (
	dueKey  = "parkshare:scheduler:due"
	jobsKey = "parkshare:scheduler:jobs"
)

// claimScript pops up to ARGV[2] jobs whose score is at or before ARGV[1].
// Removal and read happen in one script so two instances never claim the same job.
var claimScript = goredis.NewScript(`
	local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
	local jobs = {}
	for _, key in ipairs(keys) do
		redis.call('ZREM', KEYS[1], key)
		local payload = redis.call('HGET', KEYS[2], key)
		redis.call('HDEL', KEYS[2], key)
		if payload then
			table.insert(jobs, payload)
		end
	end
	return jobs
`)

// RedisOptions tunes the polling loop.
type RedisOptions struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// RedisScheduler stores jobs in a sorted set scored by run time, so pending jobs survive restarts
// and are shared by every instance.
type RedisScheduler struct {
	rdb    *goredis.Client
	logger *slog.Logger
	opts   RedisOptions
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[entity.JobKind]service.JobHandler
}

// NewRedisScheduler creates a Redis-backed scheduler.
func NewRedisScheduler(rdb *goredis.Client, logger *slog.Logger, opts RedisOptions) *RedisScheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	return &RedisScheduler{
		rdb:      rdb,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		handlers: make(map[entity.JobKind]service.JobHandler),
	}
}

// Register binds the handler of a job kind.
func (s *RedisScheduler) Register(kind entity.JobKind, handler service.JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[kind] = handler
}

// Schedule stores the job, replacing any job with the same key.
func (s *RedisScheduler) Schedule(ctx context.Context, job entity.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, jobsKey, job.Key, payload)
		pipe.ZAdd(ctx, dueKey, goredis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.Key})

		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to schedule job %s", job.Key)
	}

	return nil
}

// Cancel removes the job of the key.
func (s *RedisScheduler) Cancel(ctx context.Context, key string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, dueKey, key)
		pipe.HDel(ctx, jobsKey, key)

		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to cancel job %s", key)
	}

	return nil
}

// Run polls for due jobs until ctx is done.
func (s *RedisScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Redis scheduler started", slog.Duration("poll_interval", s.opts.PollInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Redis scheduler stopped")

			return nil
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Failed to poll scheduled jobs", slog.Any("error", err))
			}
		}
	}
}

// Poll claims and runs one batch of due jobs, returning how many were claimed.
func (s *RedisScheduler) Poll(ctx context.Context) (int, error) {
	payloads, err := claimScript.Run(ctx, s.rdb, []string{dueKey, jobsKey},
		s.now().UnixMilli(), s.opts.BatchSize).StringSlice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}

		return 0, errors.Wrap(err, "failed to claim jobs")
	}

	for _, payload := range payloads {
		var job entity.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			s.logger.Error("Dropping undecodable job", slog.String("payload", payload), slog.Any("error", err))

			continue
		}
		s.dispatch(ctx, job)
	}

	return len(payloads), nil
}

func (s *RedisScheduler) dispatch(ctx context.Context, job entity.Job) {
	s.mu.RLock()
	handler, ok := s.handlers[job.Kind]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("No handler registered for job", slog.String("kind", string(job.Kind)), slog.String("key", job.Key))

		return
	}

	job.Attempts++
	err := handler(ctx, job)
	if err == nil {
		return
	}

	s.logger.Error("Scheduled job failed",
		slog.String("key", job.Key),
		slog.String("kind", string(job.Kind)),
		slog.Int("attempt", job.Attempts),
		slog.Any("error", err),
	)
	if job.Attempts >= s.opts.MaxAttempts {
		s.logger.Error("Giving up on job", slog.String("key", job.Key), slog.Int("attempts", job.Attempts))

		return
	}

	job.RunAt = s.now().Add(backoff(job.Attempts))
	if err := s.Schedule(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("Failed to reschedule job", slog.String("key", job.Key), slog.Any("error", err))
	}
}
