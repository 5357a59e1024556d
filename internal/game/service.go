package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
	"github.com/HandsomeBisu/GridX-sub000/internal/engine"
)

// DiceRoller produces one dice pair. The authoritative side rolls; client
// requests never carry outcomes.
type DiceRoller func() (int, int)

// CardPicker selects one golden key card from the catalog.
type CardPicker func(catalog []board.Card) board.Card

// Recorder receives every committed action record, e.g. for an audit
// queue. Implementations must tolerate being called concurrently.
type Recorder interface {
	Record(ctx context.Context, roomID uuid.UUID, action GameAction) error
}

// Result is the archive row for a finished room.
type Result struct {
	RoomID     uuid.UUID
	RoomName   string
	Winner     uuid.UUID
	Balances   map[uuid.UUID]int64
	FinishedAt time.Time
}

// Archiver persists finished-game results.
type Archiver interface {
	Archive(ctx context.Context, result Result) error
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	TurnDuration time.Duration // per-turn deadline; default 30s
	Grace        time.Duration // watchdog slack past the deadline; default 5s
	Roll         DiceRoller    // default: two uniform d6
	Pick         CardPicker    // default: uniform over the catalog
	Now          func() time.Time
	Recorder     Recorder // optional audit sink
	Archiver     Archiver // optional finished-game archive
}

// Service validates client intents and commits them as atomic store
// transactions. It owns no room state itself: everything lives in the
// store, so any number of Service instances may front the same rooms.
type Service struct {
	store Store
	board *board.Board
	log   *logrus.Logger

	turnDuration time.Duration
	grace        time.Duration
	roll         DiceRoller
	pick         CardPicker
	now          func() time.Time
	recorder     Recorder
	archiver     Archiver

	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer
}

// Seat colors assigned in join order.
var seatColors = [board.MaxPlayers]string{"red", "blue", "yellow", "green"}

// NewService builds a Service over the given store and board table.
func NewService(store Store, b *board.Board, log *logrus.Logger, opts Options) *Service {
	if opts.TurnDuration == 0 {
		opts.TurnDuration = 30 * time.Second
	}
	if opts.Grace == 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.Roll == nil {
		opts.Roll = func() (int, int) { return rand.IntN(6) + 1, rand.IntN(6) + 1 }
	}
	if opts.Pick == nil {
		opts.Pick = func(catalog []board.Card) board.Card {
			return catalog[rand.IntN(len(catalog))]
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:        store,
		board:        b,
		log:          log,
		turnDuration: opts.TurnDuration,
		grace:        opts.Grace,
		roll:         opts.Roll,
		pick:         opts.Pick,
		now:          opts.Now,
		recorder:     opts.Recorder,
		archiver:     opts.Archiver,
		timers:       make(map[uuid.UUID]*time.Timer),
	}
}

// commit runs fn as one atomic transaction, translates exhausted retries
// into a TransientError, and runs the post-commit hooks (audit record,
// watchdog rearm, archive on finish).
func (s *Service) commit(ctx context.Context, roomID uuid.UUID, fn func(*Room) error) (*Room, error) {
	room, err := s.store.Atomically(ctx, roomID, fn)
	if errors.Is(err, ErrConflict) {
		return nil, &TransientError{}
	}
	if err != nil {
		return nil, err
	}
	s.afterCommit(room)
	return room, nil
}

// afterCommit fires the side channels for a committed snapshot. All of
// them are best-effort: the transition itself is already durable.
func (s *Service) afterCommit(room *Room) {
	if s.recorder != nil && room.LastAction != nil {
		rec := *room.LastAction
		roomID := room.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.recorder.Record(ctx, roomID, rec); err != nil {
				s.log.WithError(err).WithField("room", roomID).Warn("record action")
			}
		}()
	}

	switch room.Status {
	case StatusPlaying:
		s.armWatchdog(room)
	case StatusFinished:
		s.stopWatchdog(room.ID)
		s.archive(room)
	}
}

// armWatchdog schedules a timeout check for the room's current deadline,
// replacing any earlier timer. The fired check re-validates everything
// inside its own transaction, so a stale timer is harmless.
func (s *Service) armWatchdog(room *Room) {
	deadline := time.UnixMilli(room.Deadline).Add(s.grace)
	wait := deadline.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	roomID := room.ID

	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
	}
	s.timers[roomID] = time.AfterFunc(wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.ForceTimeoutCheck(ctx, roomID, uuid.Nil); err != nil && !errors.Is(err, ErrRoomNotFound) {
			s.log.WithError(err).WithField("room", roomID).Warn("watchdog check")
		}
	})
}

func (s *Service) stopWatchdog(roomID uuid.UUID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

// archive asynchronously stores the result of a finished room.
func (s *Service) archive(room *Room) {
	if s.archiver == nil {
		return
	}
	result := Result{
		RoomID:     room.ID,
		RoomName:   room.Name,
		Winner:     room.Winner,
		Balances:   make(map[uuid.UUID]int64, len(room.Players)),
		FinishedAt: s.now(),
	}
	for id, p := range room.Players {
		result.Balances[id] = p.Balance
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archiver.Archive(ctx, result); err != nil {
			s.log.WithError(err).WithField("room", result.RoomID).Warn("archive result")
		}
	}()
}

// playing rejects actions against rooms that are not in active play.
func playing(r *Room) error {
	switch r.Status {
	case StatusFinished:
		return &TerminalStateError{Status: r.Status}
	case StatusWaiting:
		return authorityf("game has not started")
	}
	return nil
}

// turnHolder validates that the actor exists and holds the turn.
func turnHolder(r *Room, playerID uuid.UUID) (*Player, error) {
	if err := playing(r); err != nil {
		return nil, err
	}
	p := r.Player(playerID)
	if p == nil {
		return nil, authorityf("player %s is not in the room", playerID)
	}
	if !p.IsTurn {
		return nil, authorityf("it is not your turn")
	}
	return p, nil
}

// advanceTurn moves the turn to the next non-bankrupt player, or finishes
// the game when only one remains. Pending offers are discarded and the
// deadline resets. When recordStart is false the caller has already
// stamped a more meaningful action for this commit.
// Runs inside a transaction.
func (s *Service) advanceTurn(r *Room, now time.Time, recordStart bool) {
	r.Pending = nil
	r.Rolled = false
	if cur := r.CurrentPlayer(); cur != nil {
		cur.IsTurn = false
	}

	// A bankruptcy may have left a sole survivor; that ends the game
	// rather than handing them the turn.
	if _, over := engine.SoleSurvivor(r.bankruptVector()); over {
		s.finish(r, now)
		return
	}

	next, ok := engine.NextTurnIndex(r.bankruptVector(), r.Turn)
	if !ok {
		s.finish(r, now)
		return
	}
	r.Turn = next
	holder := r.Players[r.Order[next]]
	holder.IsTurn = true
	r.Deadline = now.Add(s.turnDuration).UnixMilli()
	if recordStart {
		r.record(now, GameAction{
			Type:    ActionStartTurn,
			Actor:   holder.ID,
			Message: fmt.Sprintf("%s starts their turn", holder.Name),
		})
	}
}

// finish transitions the room to FINISHED with the sole survivor as
// winner. Runs inside a transaction.
func (s *Service) finish(r *Room, now time.Time) {
	r.Status = StatusFinished
	r.Pending = nil
	r.Rolled = false
	for _, p := range r.Players {
		p.IsTurn = false
	}
	if idx, ok := engine.SoleSurvivor(r.bankruptVector()); ok {
		r.Winner = r.Order[idx]
	}
	winner := r.Player(r.Winner)
	name := "nobody"
	if winner != nil {
		name = winner.Name
	}
	r.record(now, GameAction{
		Type:    ActionWin,
		Actor:   r.Winner,
		Message: fmt.Sprintf("%s wins the game", name),
	})
}

// checkGameOver finishes the room if at most one non-bankrupt player
// remains. Used after bankruptcies that happen off-turn. Runs inside a
// transaction.
func (s *Service) checkGameOver(r *Room, now time.Time) bool {
	if _, ok := engine.SoleSurvivor(r.bankruptVector()); ok {
		s.finish(r, now)
		return true
	}
	return false
}
