package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

// maxTxRetries bounds the optimistic retry loop before a conflict
// surfaces to the caller.
const maxTxRetries = 8

// Redis is the multi-process store. Each room is one JSON value under
// room:<id>; transactions run as WATCH/MULTI/EXEC cycles so a concurrent
// write restarts the whole read-validate-write loop. Committed snapshots
// and summary-list changes fan out over pub/sub channels, which keeps the
// subscription contract identical across processes.
type Redis struct {
	client *redis.Client
	log    *logrus.Logger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// NewRedis wraps an initialized client.
func NewRedis(client *redis.Client, log *logrus.Logger) *Redis {
	return &Redis{
		client: client,
		log:    log,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func roomKey(id uuid.UUID) string     { return "room:" + id.String() }
func roomChannel(id uuid.UUID) string { return "room:" + id.String() + ":updates" }

const (
	roomIndexKey = "rooms"         // set of room ids
	lobbyChannel = "rooms:updates" // summary-list change notifications
)

// Create inserts the room record, indexes it, and announces the change.
func (s *Redis) Create(ctx context.Context, room *game.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), raw, 0)
	pipe.SAdd(ctx, roomIndexKey, room.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	s.client.Publish(ctx, lobbyChannel, room.ID.String())
	return nil
}

// Atomically runs fn inside a WATCH transaction on the room key. The
// whole cycle restarts on conflict up to maxTxRetries, then returns
// game.ErrConflict.
func (s *Redis) Atomically(ctx context.Context, roomID uuid.UUID, fn func(*game.Room) error) (*game.Room, error) {
	key := roomKey(roomID)
	var committed *game.Room

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return game.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		var room game.Room
		if err := json.Unmarshal(raw, &room); err != nil {
			return fmt.Errorf("unmarshal room %s: %w", roomID, err)
		}
		if err := fn(&room); err != nil {
			return err
		}
		out, err := json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("marshal room %s: %w", roomID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed = &room
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race; retry the whole cycle
		}
		if err != nil {
			return nil, err
		}
		s.publish(ctx, roomID, committed)
		return committed, nil
	}
	return nil, game.ErrConflict
}

// publish fans the committed snapshot out to room subscribers and pokes
// the lobby channel.
func (s *Redis) publish(ctx context.Context, roomID uuid.UUID, room *game.Room) {
	raw, err := json.Marshal(room)
	if err != nil {
		s.log.WithError(err).WithField("room", roomID).Warn("marshal committed snapshot")
		return
	}
	s.client.Publish(ctx, roomChannel(roomID), raw)
	s.client.Publish(ctx, lobbyChannel, roomID.String())
}

// Get returns a snapshot of the room.
func (s *Redis) Get(ctx context.Context, roomID uuid.UUID) (*game.Room, error) {
	raw, err := s.client.Get(ctx, roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var room game.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", roomID, err)
	}
	return &room, nil
}

// Delete removes the room record and announces the change.
func (s *Redis) Delete(ctx context.Context, roomID uuid.UUID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, roomKey(roomID))
	pipe.SRem(ctx, roomIndexKey, roomID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return game.ErrRoomNotFound
	}
	s.client.Publish(ctx, lobbyChannel, roomID.String())
	return nil
}

// List returns summaries for every indexed room.
func (s *Redis) List(ctx context.Context) ([]game.RoomSummary, error) {
	ids, err := s.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]game.RoomSummary, 0, len(ids))
	for _, id := range ids {
		roomID, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		room, err := s.Get(ctx, roomID)
		if errors.Is(err, game.ErrRoomNotFound) {
			continue // index lag; skip
		}
		if err != nil {
			return nil, err
		}
		out = append(out, room.Summary())
	}
	return out, nil
}

// Subscribe streams committed snapshots of the room to fn until cancel.
// Channel drains until the PubSub closes, so cancel closes it; the pump
// goroutine exits when the closed channel drains out.
func (s *Redis) Subscribe(roomID uuid.UUID, fn func(*game.Room)) (cancel func()) {
	sub := s.client.Subscribe(context.Background(), roomChannel(roomID))
	s.track(sub)
	go func() {
		for msg := range sub.Channel() {
			var room game.Room
			if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
				s.log.WithError(err).WithField("room", roomID).Warn("bad snapshot payload")
				continue
			}
			fn(&room)
		}
	}()
	return func() { s.release(sub) }
}

// SubscribeList streams the full summary list to fn on every change.
func (s *Redis) SubscribeList(fn func([]game.RoomSummary)) (cancel func()) {
	sub := s.client.Subscribe(context.Background(), lobbyChannel)
	s.track(sub)
	go func() {
		for range sub.Channel() {
			summaries, err := s.List(context.Background())
			if err != nil {
				s.log.WithError(err).Warn("list rooms for lobby fan-out")
				continue
			}
			fn(summaries)
		}
	}()
	return func() { s.release(sub) }
}

func (s *Redis) track(sub *redis.PubSub) {
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
}

// release closes one subscription, ending its pump goroutine.
func (s *Redis) release(sub *redis.PubSub) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	if err := sub.Close(); err != nil {
		s.log.WithError(err).Warn("close subscription")
	}
}

// Close closes all live subscriptions.
func (s *Redis) Close() {
	s.mu.Lock()
	subs := make([]*redis.PubSub, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*redis.PubSub]struct{})
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Close()
	}
}
