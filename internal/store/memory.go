// Package store provides the state store adapter implementations: an
// in-memory store with a mutex per room for single-process deployments,
// and a Redis-backed store with optimistic WATCH transactions for
// multi-process ones. Both satisfy game.Store.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

// Memory is the in-memory store. A per-room mutex serializes transactions,
// so the optimistic-conflict path never triggers; the contract is
// otherwise identical to the Redis store.
type Memory struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*roomEntry
	listSubs map[int]func([]game.RoomSummary)
	nextSub  int
}

type roomEntry struct {
	mu      sync.Mutex
	room    *game.Room
	version uint64
	subs    map[int]func(*game.Room)
	nextSub int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[uuid.UUID]*roomEntry),
		listSubs: make(map[int]func([]game.RoomSummary)),
	}
}

// Create inserts a new room record and notifies list subscribers.
func (m *Memory) Create(ctx context.Context, room *game.Room) error {
	m.mu.Lock()
	m.rooms[room.ID] = &roomEntry{
		room: room.Clone(),
		subs: make(map[int]func(*game.Room)),
	}
	m.mu.Unlock()
	m.notifyList()
	return nil
}

func (m *Memory) entry(roomID uuid.UUID) (*roomEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[roomID]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return e, nil
}

// Atomically runs fn against a private copy of the room and commits the
// result. The per-room mutex makes the read-validate-write cycle
// serializable without retries.
func (m *Memory) Atomically(ctx context.Context, roomID uuid.UUID, fn func(*game.Room) error) (*game.Room, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	work := e.room.Clone()
	if err := fn(work); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.room = work
	e.version++
	committed := work.Clone()
	subs := make([]func(*game.Room), 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	// Fan out after commit, outside the room lock. Each subscriber gets
	// its own copy of the committed snapshot.
	for _, sub := range subs {
		sub(committed.Clone())
	}
	m.notifyList()
	return committed, nil
}

// Get returns a snapshot of the room.
func (m *Memory) Get(ctx context.Context, roomID uuid.UUID) (*game.Room, error) {
	e, err := m.entry(roomID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Clone(), nil
}

// Delete removes the room and notifies list subscribers.
func (m *Memory) Delete(ctx context.Context, roomID uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()
	if !ok {
		return game.ErrRoomNotFound
	}
	m.notifyList()
	return nil
}

// List returns summaries for every room.
func (m *Memory) List(ctx context.Context) ([]game.RoomSummary, error) {
	return m.summaries(), nil
}

func (m *Memory) summaries() []game.RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.RoomSummary, 0, len(m.rooms))
	for _, e := range m.rooms {
		e.mu.Lock()
		out = append(out, e.room.Summary())
		e.mu.Unlock()
	}
	return out
}

func (m *Memory) notifyList() {
	m.mu.RLock()
	subs := make([]func([]game.RoomSummary), 0, len(m.listSubs))
	for _, fn := range m.listSubs {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	summaries := m.summaries()
	for _, fn := range subs {
		fn(summaries)
	}
}

// Subscribe registers fn for committed snapshots of the room.
func (m *Memory) Subscribe(roomID uuid.UUID, fn func(*game.Room)) (cancel func()) {
	e, err := m.entry(roomID)
	if err != nil {
		return func() {}
	}
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// SubscribeList registers fn for room summary updates.
func (m *Memory) SubscribeList(fn func([]game.RoomSummary)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listSubs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listSubs, id)
		m.mu.Unlock()
	}
}
