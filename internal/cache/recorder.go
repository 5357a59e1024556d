// Package cache publishes committed action records to a Redis queue for
// the historian consumer. Publishing is fire-and-forget: gameplay never
// waits on the audit trail.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

// actionQueueKey is the Redis list the historian consumes from.
const actionQueueKey = "game:actions"

// ActionRecord is one queued audit entry.
type ActionRecord struct {
	RoomID uuid.UUID       `json:"roomId"`
	Action game.GameAction `json:"action"`
}

// Recorder pushes action records onto the historian queue. It satisfies
// game.Recorder.
type Recorder struct {
	client *redis.Client
}

// NewRecorder wraps an initialized client.
func NewRecorder(client *redis.Client) *Recorder {
	return &Recorder{client: client}
}

// Record enqueues one committed action.
func (rec *Recorder) Record(ctx context.Context, roomID uuid.UUID, action game.GameAction) error {
	raw, err := json.Marshal(ActionRecord{RoomID: roomID, Action: action})
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := rec.client.RPush(ctx, actionQueueKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue action record: %w", err)
	}
	return nil
}
