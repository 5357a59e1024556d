package game

import (
	"context"

	"github.com/google/uuid"
)

// Store is the state store adapter contract. The engine assumes nothing
// about storage technology beyond this interface: an atomic
// read-modify-write primitive over a single room record plus push
// subscriptions that deliver the full committed record to every observer.
type Store interface {
	// Create inserts a new room record and notifies list subscribers.
	Create(ctx context.Context, room *Room) error

	// Atomically runs fn against the current state of the room. fn
	// receives a private copy; returning nil commits it conditioned on no
	// intervening write, returning an error aborts with no state change.
	// A detected conflict retries the whole cycle transparently; an
	// exhausted retry budget returns ErrConflict. The committed snapshot
	// is returned and fanned out to subscribers.
	Atomically(ctx context.Context, roomID uuid.UUID, fn func(*Room) error) (*Room, error)

	// Get returns a read-only snapshot of the room.
	Get(ctx context.Context, roomID uuid.UUID) (*Room, error)

	// Delete removes the room record and notifies list subscribers.
	Delete(ctx context.Context, roomID uuid.UUID) error

	// List returns summaries of every room.
	List(ctx context.Context) ([]RoomSummary, error)

	// Subscribe registers fn to receive every committed snapshot of the
	// room. The returned cancel function removes the subscription.
	Subscribe(roomID uuid.UUID, fn func(*Room)) (cancel func())

	// SubscribeList registers fn to receive the full summary list
	// whenever any room is created, deleted, or committed.
	SubscribeList(fn func([]RoomSummary)) (cancel func())
}
