package store

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

// newTestRedis connects to the Redis named by REDIS_ADDR, skipping the
// test when none is reachable.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewRedis(client, log)
	t.Cleanup(func() {
		s.Close()
		client.Close()
	})
	return s
}

func TestRedisAtomicallyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestRedis(t)
	room := newRoom(t)
	require.NoError(t, s.Create(ctx, room))
	t.Cleanup(func() { _ = s.Delete(ctx, room.ID) })

	committed, err := s.Atomically(ctx, room.ID, func(r *game.Room) error {
		r.Fund = 70_000
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70_000), committed.Fund)

	got, err := s.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70_000), got.Fund)
}

func TestRedisGetUnknownRoom(t *testing.T) {
	s := newTestRedis(t)
	_, err := s.Get(context.Background(), newRoom(t).ID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

// TestRedisSubscribeCancelStopsDelivery verifies cancel actually closes
// the underlying PubSub: commits after cancel must not reach fn.
func TestRedisSubscribeCancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := newTestRedis(t)
	room := newRoom(t)
	require.NoError(t, s.Create(ctx, room))
	t.Cleanup(func() { _ = s.Delete(ctx, room.ID) })

	var delivered atomic.Int64
	cancel := s.Subscribe(room.ID, func(*game.Room) { delivered.Add(1) })

	// The subscription registers asynchronously; commit until the first
	// snapshot arrives.
	require.Eventually(t, func() bool {
		_, err := s.Atomically(ctx, room.ID, func(r *game.Room) error {
			r.Fund++
			return nil
		})
		require.NoError(t, err)
		return delivered.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	// Let in-flight messages drain before the cutoff.
	time.Sleep(200 * time.Millisecond)
	cancel()
	before := delivered.Load()

	for i := 0; i < 3; i++ {
		_, err := s.Atomically(ctx, room.ID, func(r *game.Room) error {
			r.Fund++
			return nil
		})
		require.NoError(t, err)
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, delivered.Load(), "no deliveries after cancel")
}

// TestRedisCloseStopsSubscriptions verifies Close ends every live
// subscription, not just the contexts that created them.
func TestRedisCloseStopsSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestRedis(t)
	room := newRoom(t)
	require.NoError(t, s.Create(ctx, room))
	t.Cleanup(func() { _ = s.Delete(ctx, room.ID) })

	var delivered atomic.Int64
	s.Subscribe(room.ID, func(*game.Room) { delivered.Add(1) })

	require.Eventually(t, func() bool {
		_, err := s.Atomically(ctx, room.ID, func(r *game.Room) error {
			r.Fund++
			return nil
		})
		require.NoError(t, err)
		return delivered.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	s.Close()
	before := delivered.Load()

	_, err := s.Atomically(ctx, room.ID, func(r *game.Room) error {
		r.Fund++
		return nil
	})
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, delivered.Load(), "no deliveries after close")
}
