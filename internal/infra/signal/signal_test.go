package signal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySignal_PublishReachesSubscriberOfSameParking(t *testing.T) {
	s := NewMemorySignal()
	ctx := context.Background()
	parkingID, otherParking, occupationID := uuid.New(), uuid.New(), uuid.New()

	ch, cancel, err := s.Subscribe(ctx, parkingID)
	require.NoError(t, err)
	defer cancel()

	other, cancelOther, err := s.Subscribe(ctx, otherParking)
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, s.Publish(ctx, parkingID, occupationID))

	select {
	case got := <-ch:
		assert.Equal(t, occupationID, got)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
	assert.Empty(t, other)
}

func TestMemorySignal_CancelUnsubscribes(t *testing.T) {
	s := NewMemorySignal()
	ctx := context.Background()
	parkingID := uuid.New()

	_, cancel, err := s.Subscribe(ctx, parkingID)
	require.NoError(t, err)
	cancel()
	cancel()

	assert.Empty(t, s.subs)
	assert.NoError(t, s.Publish(ctx, parkingID, uuid.New()))
}

func TestRedisSignal_PublishReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisSignal(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	parkingID, occupationID := uuid.New(), uuid.New()

	ch, cancel, err := s.Subscribe(ctx, parkingID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Publish(ctx, parkingID, occupationID))

	select {
	case got := <-ch:
		assert.Equal(t, occupationID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7f1d2c1e-93a4-4a53-9d0c-0b1f4d6f3e21")
	assert.Equal(t, "parkshare:occupancy:7f1d2c1e-93a4-4a53-9d0c-0b1f4d6f3e21", Channel(id))
}
