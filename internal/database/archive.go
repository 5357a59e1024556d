// Package database persists finished-game results to Postgres. The
// archive is best-effort and write-only from the engine's point of view:
// live room state never touches it.
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HandsomeBisu/GridX-sub000/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	room_id     UUID PRIMARY KEY,
	room_name   TEXT NOT NULL,
	winner_id   UUID,
	balances    JSONB NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

// Archive stores finished-game rows. It satisfies game.Archiver.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against the given DSN and ensures the schema.
func Connect(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Archive upserts one finished-game row.
func (a *Archive) Archive(ctx context.Context, result game.Result) error {
	balances := make(map[string]int64, len(result.Balances))
	for id, bal := range result.Balances {
		balances[id.String()] = bal
	}
	raw, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("marshal balances: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO game_results (room_id, room_name, winner_id, balances, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO NOTHING`,
		result.RoomID, result.RoomName, result.Winner, raw, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// Close releases the pool.
func (a *Archive) Close() {
	a.pool.Close()
}
