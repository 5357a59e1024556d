package ws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// gapStore commits a newer snapshot to subscribers while the initial
// snapshot read is in flight, exercising the window between opening the
// stream and reading the first state.
type gapStore struct {
	game.Store

	older *game.Room
	newer *game.Room

	mu   sync.Mutex
	subs []func(*game.Room)
}

func (g *gapStore) Get(ctx context.Context, roomID uuid.UUID) (*game.Room, error) {
	g.mu.Lock()
	subs := append(([]func(*game.Room))(nil), g.subs...)
	g.mu.Unlock()
	for _, fn := range subs {
		fn(g.newer.Clone())
	}
	return g.older.Clone(), nil
}

func (g *gapStore) Subscribe(roomID uuid.UUID, fn func(*game.Room)) (cancel func()) {
	g.mu.Lock()
	g.subs = append(g.subs, fn)
	g.mu.Unlock()
	return func() {}
}

// TestRoomStreamDeliversCommitDuringSnapshot verifies a commit landing
// while the initial snapshot is being read still reaches the client.
func TestRoomStreamDeliversCommitDuringSnapshot(t *testing.T) {
	roomID := uuid.New()
	older := &game.Room{ID: roomID, Name: "table", Status: game.StatusPlaying, Fund: 1}
	newer := older.Clone()
	newer.Fund = 2

	streamer := NewStreamer(&gapStore{older: older, newer: newer}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamer.ServeRoom(w, r, roomID)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first, second game.Room
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, int64(1), first.Fund)
	require.NoError(t, wsjson.Read(ctx, conn, &second))
	assert.Equal(t, int64(2), second.Fund, "the in-between commit must not be lost")
}
