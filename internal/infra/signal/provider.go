// Package signal relays device occupancy confirmations to waiting reservation requests.
package signal

import (
	"log/slog"

	"parkshare/internal/domain/service"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the dependencies of the occupancy signal provider
type Params struct {
	fx.In

	Logger *slog.Logger
	Redis  *goredis.Client `optional:"true"`
}

// NewOccupancySignal uses Redis pub/sub when a client is available, so a confirmation
// received by one instance reaches a request waiting on another.
func NewOccupancySignal(params Params) service.OccupancySignal {
	if params.Redis != nil {
		return NewRedisSignal(params.Redis, params.Logger)
	}

	return NewMemorySignal()
}
