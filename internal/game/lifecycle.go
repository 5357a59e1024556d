package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
)

// CreateRoom opens a new room with the host seated as its first player.
func (s *Service) CreateRoom(ctx context.Context, hostID uuid.UUID, hostName, roomName string) (*Room, error) {
	room := &Room{
		ID:      uuid.New(),
		Name:    roomName,
		Status:  StatusWaiting,
		Players: make(map[uuid.UUID]*Player),
		Owned:   make(map[int]*LandOwnership),
	}
	seatPlayer(room, hostID, hostName, true)

	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}
	s.log.WithFields(logrusFields(room.ID, hostID)).Info("room created")
	return room, nil
}

// JoinRoom seats a player in a WAITING room.
func (s *Service) JoinRoom(ctx context.Context, roomID, playerID uuid.UUID, name string) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		if r.Status == StatusFinished {
			return &TerminalStateError{Status: r.Status}
		}
		if r.Status != StatusWaiting {
			return authorityf("game already started")
		}
		if len(r.Order) >= board.MaxPlayers {
			return authorityf("room is full")
		}
		if r.Player(playerID) != nil {
			return authorityf("already joined")
		}
		seatPlayer(r, playerID, name, false)
		return nil
	})
}

// LeaveRoom removes a player from a WAITING room, promoting a new host or
// deleting the room when it empties. Leaving mid-game forfeits: the
// player is marked bankrupt and the turn advances if they held it.
func (s *Service) LeaveRoom(ctx context.Context, roomID, playerID uuid.UUID) error {
	var empty bool
	_, err := s.commit(ctx, roomID, func(r *Room) error {
		empty = false
		p := r.Player(playerID)
		if p == nil {
			return authorityf("player %s is not in the room", playerID)
		}
		switch r.Status {
		case StatusFinished:
			return &TerminalStateError{Status: r.Status}
		case StatusWaiting:
			delete(r.Players, playerID)
			for i, id := range r.Order {
				if id == playerID {
					r.Order = append(r.Order[:i], r.Order[i+1:]...)
					break
				}
			}
			if len(r.Order) == 0 {
				empty = true
				return nil
			}
			if p.Host {
				r.Players[r.Order[0]].Host = true
			}
			return nil
		default: // PLAYING: forfeit
			if p.Bankrupt {
				return nil
			}
			now := s.now()
			s.forceBankrupt(r, p, now, "left the game")
			if p.IsTurn {
				s.advanceTurn(r, now, false)
			} else {
				s.checkGameOver(r, now)
			}
			return nil
		}
	})
	if err != nil {
		return err
	}
	if empty {
		s.stopWatchdog(roomID)
		return s.store.Delete(ctx, roomID)
	}
	return nil
}

// StartGame moves a WAITING room into play. Host only, two players
// minimum. The first seated player takes the opening turn.
func (s *Service) StartGame(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		if r.Status == StatusFinished {
			return &TerminalStateError{Status: r.Status}
		}
		if r.Status != StatusWaiting {
			return authorityf("game already started")
		}
		p := r.Player(playerID)
		if p == nil || !p.Host {
			return authorityf("only the host can start the game")
		}
		if len(r.Order) < 2 {
			return authorityf("at least two players are required")
		}

		now := s.now()
		r.Status = StatusPlaying
		r.Turn = 0
		holder := r.Players[r.Order[0]]
		holder.IsTurn = true
		r.Deadline = now.Add(s.turnDuration).UnixMilli()
		r.record(now, GameAction{
			Type:    ActionStartTurn,
			Actor:   holder.ID,
			Message: fmt.Sprintf("game started, %s goes first", holder.Name),
		})
		return nil
	})
}

// ListRooms returns the lobby summaries.
func (s *Service) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	return s.store.List(ctx)
}

// Room returns a read-only snapshot.
func (s *Service) Room(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	return s.store.Get(ctx, roomID)
}

// seatPlayer appends a player with the fixed starting balance, position 0
// and the next free seat color.
func seatPlayer(r *Room, id uuid.UUID, name string, host bool) {
	r.Players[id] = &Player{
		ID:      id,
		Name:    name,
		Balance: board.StartingBalance,
		Color:   seatColors[len(r.Order)%len(seatColors)],
		Host:    host,
	}
	r.Order = append(r.Order, id)
}

func logrusFields(roomID, playerID uuid.UUID) logrus.Fields {
	return logrus.Fields{"room": roomID, "player": playerID}
}
