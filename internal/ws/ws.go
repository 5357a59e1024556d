// Package ws streams committed room snapshots and lobby summaries to
// browser clients over WebSocket. The stream is one-way: intents travel
// over the HTTP endpoints, snapshots travel here.
package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

// Streamer serves the push channels backed by the store's subscriptions.
type Streamer struct {
	store game.Store
	log   *logrus.Logger
}

// NewStreamer builds a Streamer over the given store.
func NewStreamer(store game.Store, log *logrus.Logger) *Streamer {
	return &Streamer{store: store, log: log}
}

// ServeRoom upgrades the request and streams every committed snapshot of
// the room until the client goes away.
func (s *Streamer) ServeRoom(w http.ResponseWriter, r *http.Request, roomID uuid.UUID) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	updates := make(chan *game.Room, 16)
	cancel := s.store.Subscribe(roomID, func(room *game.Room) {
		select {
		case updates <- room:
		default:
			// Slow consumer: drop the intermediate snapshot. The next
			// one carries the full state anyway.
		}
	})
	defer cancel()

	// Initial snapshot, read after subscribing so a commit landing in
	// between still reaches the client through the channel.
	snapshot, err := s.store.Get(ctx, roomID)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "room not found")
		return
	}
	if err := wsjson.Write(ctx, conn, snapshot); err != nil {
		return
	}

	go discardReads(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case room := <-updates:
			if err := wsjson.Write(ctx, conn, room); err != nil {
				return
			}
		}
	}
}

// ServeLobby streams the room summary list on every change.
func (s *Streamer) ServeLobby(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	updates := make(chan []game.RoomSummary, 16)
	cancel := s.store.SubscribeList(func(list []game.RoomSummary) {
		select {
		case updates <- list:
		default:
		}
	})
	defer cancel()

	summaries, err := s.store.List(ctx)
	if err == nil {
		if err := wsjson.Write(ctx, conn, summaries); err != nil {
			return
		}
	}

	go discardReads(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case list := <-updates:
			if err := wsjson.Write(ctx, conn, list); err != nil {
				return
			}
		}
	}
}

// discardReads drains the read side so pings and closes are processed.
func discardReads(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
