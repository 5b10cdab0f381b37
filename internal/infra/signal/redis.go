package signal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const channelPrefix = "parkshare:occupancy:"

// RedisSignal relays confirmations over Redis pub/sub.
type RedisSignal struct {
	rdb    *goredis.Client
	logger *slog.Logger
}

// NewRedisSignal creates a Redis-backed signal.
func NewRedisSignal(rdb *goredis.Client, logger *slog.Logger) *RedisSignal {
	return &RedisSignal{rdb: rdb, logger: logger}
}

// Channel returns the pub/sub channel of a parking.
func Channel(parkingID uuid.UUID) string {
	return channelPrefix + parkingID.String()
}

// Subscribe waits for the subscription to be confirmed before returning, so a publish
// issued after Subscribe is never missed.
func (s *RedisSignal) Subscribe(ctx context.Context, parkingID uuid.UUID) (<-chan uuid.UUID, func(), error) {
	pubsub := s.rdb.Subscribe(ctx, Channel(parkingID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, nil, errors.Wrap(err, "failed to subscribe to occupancy channel")
	}

	out := make(chan uuid.UUID, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)

		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				occupationID, err := uuid.Parse(msg.Payload)
				if err != nil {
					s.logger.Warn("Ignoring malformed occupancy signal", slog.String("payload", msg.Payload))

					continue
				}
				select {
				case out <- occupationID:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	return out, cancel, nil
}

// Publish announces the confirmed occupation of the parking.
func (s *RedisSignal) Publish(ctx context.Context, parkingID, occupationID uuid.UUID) error {
	if err := s.rdb.Publish(ctx, Channel(parkingID), occupationID.String()).Err(); err != nil {
		return errors.Wrap(err, "failed to publish occupancy signal")
	}

	return nil
}
