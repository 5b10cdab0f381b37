// Package scheduler provides delayed job execution backends.
package scheduler

import (
	"log/slog"
	"time"

	"parkshare/config"
	"parkshare/internal/domain/constants"
	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const retryBackoff = 5 * time.Second

// Params defines the dependencies of the scheduler provider
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  *goredis.Client `optional:"true"`
}

// NewScheduler creates the scheduler selected by scheduler.provider.
func NewScheduler(params Params) (service.Scheduler, error) {
	cfg := params.Config.Scheduler

	switch cfg.Provider {
	case constants.SchedulerProviderMemory, "":
		params.Logger.Info("Using in-memory scheduler")

		return NewMemoryScheduler(params.Logger, cfg.MaxAttempts), nil

	case constants.SchedulerProviderRedis:
		if params.Redis == nil {
			return nil, errors.New("redis scheduler requires redis.addr")
		}
		params.Logger.Info("Using Redis scheduler")

		return NewRedisScheduler(params.Redis, params.Logger, RedisOptions{
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
			MaxAttempts:  cfg.MaxAttempts,
		}), nil

	default:
		return nil, errors.Errorf("unknown scheduler provider: %s", cfg.Provider)
	}
}

// backoff returns the delay before the given retry attempt.
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return time.Duration(attempt) * retryBackoff
}
