package game_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
	"github.com/HandsomeBisu/GridX-sub000/internal/game"
	"github.com/HandsomeBisu/GridX-sub000/internal/store"
)

var playerNames = []string{"alice", "bob", "carol", "dave"}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeClock is a settable clock for deterministic deadlines.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// diceScript replays queued rolls, falling back to (1, 1).
type diceScript struct {
	mu    sync.Mutex
	rolls [][2]int
}

func (d *diceScript) push(a, b int) {
	d.mu.Lock()
	d.rolls = append(d.rolls, [2]int{a, b})
	d.mu.Unlock()
}

func (d *diceScript) roll() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rolls) == 0 {
		return 1, 1
	}
	r := d.rolls[0]
	d.rolls = d.rolls[1:]
	return r[0], r[1]
}

// cardScript replays queued card ids, falling back to the first card.
type cardScript struct {
	mu  sync.Mutex
	ids []int
}

func (c *cardScript) push(id int) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

func (c *cardScript) pick(catalog []board.Card) board.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return catalog[0]
	}
	id := c.ids[0]
	c.ids = c.ids[1:]
	for _, card := range catalog {
		if card.ID == id {
			return card
		}
	}
	return catalog[0]
}

type fixture struct {
	t       *testing.T
	svc     *game.Service
	store   *store.Memory
	clock   *fakeClock
	dice    *diceScript
	cards   *cardScript
	roomID  uuid.UUID
	players []uuid.UUID
}

// waitingRoom builds a room with the given number of seated players,
// still in the lobby. players[0] is the host.
func waitingRoom(t *testing.T, players int) *fixture {
	t.Helper()
	require.LessOrEqual(t, players, len(playerNames))

	f := &fixture{
		t:     t,
		store: store.NewMemory(),
		clock: newFakeClock(),
		dice:  &diceScript{},
		cards: &cardScript{},
	}
	f.svc = game.NewService(f.store, board.Load(), testLogger(), game.Options{
		TurnDuration: 30 * time.Second,
		Grace:        5 * time.Second,
		Roll:         f.dice.roll,
		Pick:         f.cards.pick,
		Now:          f.clock.Now,
	})

	ctx := context.Background()
	for i := 0; i < players; i++ {
		f.players = append(f.players, uuid.New())
	}
	room, err := f.svc.CreateRoom(ctx, f.players[0], playerNames[0], "test table")
	require.NoError(t, err)
	f.roomID = room.ID
	for i := 1; i < players; i++ {
		_, err := f.svc.JoinRoom(ctx, f.roomID, f.players[i], playerNames[i])
		require.NoError(t, err)
	}
	return f
}

// startedRoom builds a room already in play, players[0] holding the turn.
func startedRoom(t *testing.T, players int) *fixture {
	t.Helper()
	f := waitingRoom(t, players)
	_, err := f.svc.StartGame(context.Background(), f.roomID, f.players[0])
	require.NoError(t, err)
	return f
}

// mutate edits room state directly through the store, bypassing the
// service, to set up mid-game scenarios.
func (f *fixture) mutate(fn func(*game.Room)) *game.Room {
	f.t.Helper()
	r, err := f.store.Atomically(context.Background(), f.roomID, func(r *game.Room) error {
		fn(r)
		return nil
	})
	require.NoError(f.t, err)
	return r
}

// room returns a fresh snapshot.
func (f *fixture) room() *game.Room {
	f.t.Helper()
	r, err := f.store.Get(context.Background(), f.roomID)
	require.NoError(f.t, err)
	return r
}

func TestCreateJoinStart(t *testing.T) {
	ctx := context.Background()
	f := waitingRoom(t, 2)
	alice, bob := f.players[0], f.players[1]

	r := f.room()
	assert.Equal(t, game.StatusWaiting, r.Status)
	assert.Equal(t, []uuid.UUID{alice, bob}, r.Order)
	assert.True(t, r.Player(alice).Host)
	assert.False(t, r.Player(bob).Host)
	assert.Equal(t, board.StartingBalance, r.Player(bob).Balance)
	assert.Equal(t, "red", r.Player(alice).Color)
	assert.Equal(t, "blue", r.Player(bob).Color)

	// Double join is rejected.
	_, err := f.svc.JoinRoom(ctx, f.roomID, bob, "bob again")
	assert.True(t, game.IsAuthority(err))

	// Only the host may start.
	_, err = f.svc.StartGame(ctx, f.roomID, bob)
	assert.True(t, game.IsAuthority(err))

	r, err = f.svc.StartGame(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, r.Status)
	assert.Equal(t, 0, r.Turn)
	assert.True(t, r.Player(alice).IsTurn)
	assert.NotZero(t, r.Deadline)

	// The guest cannot act on the host's turn.
	_, err = f.svc.RollDice(ctx, f.roomID, bob)
	assert.True(t, game.IsAuthority(err))
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	f := waitingRoom(t, 1)
	_, err := f.svc.StartGame(context.Background(), f.roomID, f.players[0])
	assert.True(t, game.IsAuthority(err))
}

func TestRoomCapacity(t *testing.T) {
	f := waitingRoom(t, board.MaxPlayers)
	_, err := f.svc.JoinRoom(context.Background(), f.roomID, uuid.New(), "fifth wheel")
	assert.True(t, game.IsAuthority(err))
}

func TestRollMovesAndPaysSalary(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).Position = 37 })
	f.dice.push(2, 2) // 37 + 4 wraps to 1

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	p := r.Player(alice)
	assert.Equal(t, 1, p.Position)
	assert.Equal(t, board.StartingBalance+board.Salary, p.Balance)
	assert.True(t, r.Rolled)
	assert.Equal(t, [2]int{2, 2}, r.Dice)

	// Second roll in the same turn is rejected.
	_, err = f.svc.RollDice(ctx, f.roomID, alice)
	assert.True(t, game.IsAuthority(err))
}

func TestEndTurnRotates(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 3)
	alice, bob := f.players[0], f.players[1]

	// Ending before rolling is rejected.
	_, err := f.svc.EndTurn(ctx, f.roomID, alice)
	assert.True(t, game.IsAuthority(err))

	f.dice.push(4, 5) // lands on 9, unowned land
	_, err = f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)

	r, err := f.svc.EndTurn(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Turn)
	assert.False(t, r.Player(alice).IsTurn)
	assert.True(t, r.Player(bob).IsTurn)
	assert.False(t, r.Rolled)
	assert.Nil(t, r.Pending, "abandoning a purchase offer costs nothing")
	assert.Equal(t, game.ActionStartTurn, r.LastAction.Type)
}

func TestConfinedRollDoesNotMove(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) {
		p := r.Player(alice)
		p.Position = board.IslandCell
		p.Confinement = 2
	})
	f.dice.push(3, 4)

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	p := r.Player(alice)
	assert.Equal(t, board.IslandCell, p.Position, "token must not move")
	assert.Equal(t, 1, p.Confinement)
	assert.Equal(t, board.StartingBalance, p.Balance)
	assert.True(t, r.Rolled)
	assert.Equal(t, game.ActionEscapeFail, r.LastAction.Type)
}

func TestIslandArrivalConfines(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).Position = 17 })
	f.dice.push(1, 2) // lands on the island

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, board.ConfinementTurns, r.Player(alice).Confinement)
	assert.Nil(t, r.Pending)
}

func TestEscapeConfinement(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).Confinement = 3 })

	r, err := f.svc.EscapeConfinement(ctx, f.roomID, alice)
	require.NoError(t, err)
	p := r.Player(alice)
	assert.Equal(t, 0, p.Confinement)
	assert.Equal(t, board.StartingBalance-board.EscapeFee, p.Balance)
	assert.Equal(t, game.ActionEscapeSuccess, r.LastAction.Type)

	// Not confined anymore.
	_, err = f.svc.EscapeConfinement(ctx, f.roomID, alice)
	assert.True(t, game.IsAuthority(err))
}

func TestEscapeConfinementNeedsFunds(t *testing.T) {
	f := startedRoom(t, 2)
	alice := f.players[0]
	f.mutate(func(r *game.Room) {
		p := r.Player(alice)
		p.Confinement = 3
		p.Balance = board.EscapeFee - 1
	})
	_, err := f.svc.EscapeConfinement(context.Background(), f.roomID, alice)
	assert.True(t, game.IsFunds(err))
}

func TestWelfareDepositAndWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice, bob := f.players[0], f.players[1]

	f.mutate(func(r *game.Room) {
		r.Player(alice).Position = 27
		r.Player(bob).Position = 35
	})

	// Alice lands on the deposit cell: pays in, turn auto-advances.
	f.dice.push(1, 2)
	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, board.WelfareContribution, r.Fund)
	assert.Equal(t, board.StartingBalance-board.WelfareContribution, r.Player(alice).Balance)
	assert.True(t, r.Player(bob).IsTurn, "welfare settles in place and passes the turn")
	assert.Equal(t, game.ActionWelfare, r.LastAction.Type)

	// Bob lands on the payout cell: collects the whole fund.
	f.dice.push(1, 2)
	r, err = f.svc.RollDice(ctx, f.roomID, bob)
	require.NoError(t, err)
	assert.Zero(t, r.Fund)
	assert.Equal(t, board.StartingBalance+board.WelfareContribution, r.Player(bob).Balance)
	assert.True(t, r.Player(alice).IsTurn)
}

func TestWelfareDepositClampsAtBalance(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) {
		p := r.Player(alice)
		p.Position = 27
		p.Balance = 40_000
	})
	f.dice.push(1, 2)

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(40_000), r.Fund)
	assert.Zero(t, r.Player(alice).Balance, "deposit never drives the balance negative")
}

func TestGoldenKeyMoneyCard(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.dice.push(1, 1) // lands on the gold key cell at 2
	f.cards.push(2)   // lottery, +200000

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Equal(t, board.StartingBalance+200_000, r.Player(alice).Balance)
	assert.Nil(t, r.Pending, "money cards settle in the same commit")
	assert.Equal(t, game.ActionGoldKey, r.LastAction.Type)
	assert.Equal(t, int64(200_000), r.LastAction.Amount)
}

func TestGoldenKeyMoneyCardClampsAtZero(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).Balance = 30_000 })
	f.dice.push(1, 1)
	f.cards.push(3) // income tax, -100000

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.Zero(t, r.Player(alice).Balance)
	assert.Equal(t, int64(-30_000), r.LastAction.Amount, "only the covered part applies")
}

func TestGoldenKeyMoveCard(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.dice.push(1, 1) // gold key cell at 2
	f.cards.push(9)   // advance to start

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	require.NotNil(t, r.Pending)
	assert.Equal(t, game.PendingCardMove, r.Pending.Kind)
	assert.Equal(t, board.StartCell, r.Pending.Destination)
	assert.Equal(t, 2, r.Player(alice).Position, "the move waits for acknowledgment")

	// Acknowledging with the wrong destination is rejected.
	_, err = f.svc.Teleport(ctx, f.roomID, alice, 5)
	assert.True(t, game.IsAuthority(err))

	// Acknowledging commits the move; wrapping to start pays salary.
	r, err = f.svc.Teleport(ctx, f.roomID, alice, board.StartCell)
	require.NoError(t, err)
	p := r.Player(alice)
	assert.Equal(t, board.StartCell, p.Position)
	assert.Equal(t, board.StartingBalance+board.Salary, p.Balance)
	assert.Nil(t, r.Pending)
}

func TestTeleportHubGrant(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).Position = 7 })
	f.dice.push(1, 2) // lands on the hub at 10

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.True(t, r.Player(alice).HasTeleport)

	_, err = f.svc.EndTurn(ctx, f.roomID, alice)
	require.NoError(t, err)
	_, err = f.svc.RollDice(ctx, f.roomID, f.players[1])
	require.NoError(t, err)
	_, err = f.svc.EndTurn(ctx, f.roomID, f.players[1])
	require.NoError(t, err)

	// Alice spends the grant instead of rolling. A chosen jump pays no
	// salary and resolves the destination normally.
	r, err = f.svc.Teleport(ctx, f.roomID, alice, 24)
	require.NoError(t, err)
	p := r.Player(alice)
	assert.Equal(t, 24, p.Position)
	assert.False(t, p.HasTeleport)
	assert.Equal(t, board.StartingBalance, p.Balance)
	assert.True(t, r.Rolled, "the jump consumes the move")
	require.NotNil(t, r.Pending)
	assert.Equal(t, game.PendingPurchase, r.Pending.Kind)
}

func TestTeleportWithoutGrant(t *testing.T) {
	f := startedRoom(t, 2)
	_, err := f.svc.Teleport(context.Background(), f.roomID, f.players[0], 24)
	assert.True(t, game.IsAuthority(err))
}

func TestRollingForfeitsTeleportGrant(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice := f.players[0]

	f.mutate(func(r *game.Room) { r.Player(alice).HasTeleport = true })
	f.dice.push(2, 2)

	r, err := f.svc.RollDice(ctx, f.roomID, alice)
	require.NoError(t, err)
	assert.False(t, r.Player(alice).HasTeleport)
}

func TestActionsOnFinishedRoom(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	f.mutate(func(r *game.Room) { r.Status = game.StatusFinished })

	_, err := f.svc.RollDice(ctx, f.roomID, f.players[0])
	assert.True(t, game.IsTerminal(err))
	_, err = f.svc.JoinRoom(ctx, f.roomID, uuid.New(), "late")
	assert.True(t, game.IsTerminal(err))
}

func TestLeaveWaitingRoom(t *testing.T) {
	ctx := context.Background()
	f := waitingRoom(t, 2)
	alice, bob := f.players[0], f.players[1]

	// The host leaves; the remaining player is promoted.
	require.NoError(t, f.svc.LeaveRoom(ctx, f.roomID, alice))
	r := f.room()
	assert.Nil(t, r.Player(alice))
	assert.True(t, r.Player(bob).Host)

	// The last player leaves; the room is deleted.
	require.NoError(t, f.svc.LeaveRoom(ctx, f.roomID, bob))
	_, err := f.svc.Room(ctx, f.roomID)
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestLeaveMidGameForfeits(t *testing.T) {
	ctx := context.Background()
	f := startedRoom(t, 2)
	alice, bob := f.players[0], f.players[1]

	require.NoError(t, f.svc.LeaveRoom(ctx, f.roomID, bob))
	r := f.room()
	assert.True(t, r.Player(bob).Bankrupt)
	assert.Equal(t, game.StatusFinished, r.Status)
	assert.Equal(t, alice, r.Winner)
}

// conflictStore loses every optimistic race.
type conflictStore struct {
	game.Store
}

func (conflictStore) Atomically(ctx context.Context, roomID uuid.UUID, fn func(*game.Room) error) (*game.Room, error) {
	return nil, game.ErrConflict
}

func TestExhaustedRetriesSurfaceTransient(t *testing.T) {
	svc := game.NewService(conflictStore{}, board.Load(), testLogger(), game.Options{})
	_, err := svc.RollDice(context.Background(), uuid.New(), uuid.New())
	var te *game.TransientError
	assert.ErrorAs(t, err, &te)
}

func TestListRooms(t *testing.T) {
	f := waitingRoom(t, 2)
	summaries, err := f.svc.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, f.roomID, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].Players)
}
