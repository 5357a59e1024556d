// Package game owns the room state model and the intent service: every
// client-facing operation is validated and committed here as a single
// atomic transaction against the room store.
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/engine"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "WAITING"
	StatusPlaying  RoomStatus = "PLAYING"
	StatusFinished RoomStatus = "FINISHED"
)

// ActionType tags the most recently committed transition.
type ActionType string

const (
	ActionMove          ActionType = "MOVE"
	ActionBuy           ActionType = "BUY"
	ActionSell          ActionType = "SELL"
	ActionPayToll       ActionType = "PAY_TOLL"
	ActionWelfare       ActionType = "WELFARE"
	ActionGoldKey       ActionType = "GOLD_KEY"
	ActionTeleport      ActionType = "TELEPORT"
	ActionEscapeSuccess ActionType = "ESCAPE_SUCCESS"
	ActionEscapeFail    ActionType = "ESCAPE_FAIL"
	ActionBankrupt      ActionType = "BANKRUPT"
	ActionTimeout       ActionType = "TIMEOUT"
	ActionStartTurn     ActionType = "START_TURN"
	ActionWin           ActionType = "WIN"
)

// GameAction is the immutable record of the most recently committed
// transition. Clients deduplicate side effects by the Timestamp field.
type GameAction struct {
	Type      ActionType `json:"type"`
	Actor     uuid.UUID  `json:"actor"`
	Target    uuid.UUID  `json:"target,omitempty"`
	Amount    int64      `json:"amount,omitempty"`
	Message   string     `json:"message"`
	Timestamp int64      `json:"timestamp"` // unix milliseconds
}

// Player is one seat in a room. Players are created on join and never
// deleted, only marked bankrupt.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Balance     int64     `json:"balance"`
	Color       string    `json:"color"`
	Position    int       `json:"position"` // 0..39, circular
	Host        bool      `json:"host"`
	Bankrupt    bool      `json:"bankrupt"`
	OwnedCount  int       `json:"ownedCount"`
	IsTurn      bool      `json:"isTurn"`
	Confinement int       `json:"confinement"` // turns remaining on the island
	HasTeleport bool      `json:"hasTeleport"` // one-shot grant from the teleport hub
}

// LandOwnership records who owns a cell and what has been built there.
// Absence of a record means the cell is unowned. Toll is derived and
// cached on every mutation.
type LandOwnership struct {
	OwnerID   uuid.UUID          `json:"ownerId"`
	Buildings engine.BuildingSet `json:"buildings"`
	Toll      int64              `json:"toll"`
}

// PendingKind identifies the offer awaiting the turn holder's decision.
type PendingKind string

const (
	PendingPurchase PendingKind = "PURCHASE"  // unowned cell: buy or pass
	PendingUpgrade  PendingKind = "UPGRADE"   // own cell: optional single building
	PendingToll     PendingKind = "TOLL"      // owned by another: toll must settle
	PendingCardMove PendingKind = "CARD_MOVE" // move-type golden key awaiting ack
)

// PendingOffer is the follow-up produced by the last arrival. Offers are
// presented optimistically: the commit that settles one re-validates
// affordability and ownership against then-current state. Abandoning an
// offer by ending the turn costs nothing, except a toll, which must be
// settled or escalate to liquidation or bankruptcy.
type PendingOffer struct {
	Kind        PendingKind `json:"kind"`
	PlayerID    uuid.UUID   `json:"playerId"`
	CellID      int         `json:"cellId"`
	Amount      int64       `json:"amount,omitempty"`      // purchase price or toll owed
	OwnerID     uuid.UUID   `json:"ownerId,omitempty"`     // toll creditor
	CardID      int         `json:"cardId,omitempty"`      // drawn move card
	Destination int         `json:"destination,omitempty"` // move card destination
}

// Room is the unit of atomicity: one isolated game instance. All mutation
// happens inside Store.Atomically; outside a transaction a Room value is a
// private snapshot.
type Room struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	Order      []uuid.UUID            `json:"order"`                // turn order, insertion order significant
	Players    map[uuid.UUID]*Player  `json:"players"`
	Owned      map[int]*LandOwnership `json:"owned"`                // sparse; absence means unowned
	Turn       int                    `json:"turn"`                 // index into Order
	Deadline   int64                  `json:"deadline"`             // unix milliseconds
	Status     RoomStatus             `json:"status"`
	Winner     uuid.UUID              `json:"winner,omitempty"`
	Fund       int64                  `json:"fund"`                 // welfare fund, non-negative
	Dice       [2]int                 `json:"dice"`
	Rolled     bool                   `json:"rolled"`               // current holder has rolled this turn
	LastAction *GameAction            `json:"lastAction,omitempty"`
	Pending    *PendingOffer          `json:"pending,omitempty"`
}

// RoomSummary is the lobby-facing digest of a room.
type RoomSummary struct {
	ID      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	Status  RoomStatus `json:"status"`
	Players int        `json:"players"`
}

// Summary returns the lobby digest of the room.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{ID: r.ID, Name: r.Name, Status: r.Status, Players: len(r.Order)}
}

// CurrentPlayer returns the turn holder, or nil while not PLAYING.
func (r *Room) CurrentPlayer() *Player {
	if r.Status != StatusPlaying || r.Turn < 0 || r.Turn >= len(r.Order) {
		return nil
	}
	return r.Players[r.Order[r.Turn]]
}

// Player returns the player with the given id, or nil.
func (r *Room) Player(id uuid.UUID) *Player {
	return r.Players[id]
}

// bankruptVector returns the bankrupt flags in turn order, for the
// rotation helpers in the engine package.
func (r *Room) bankruptVector() []bool {
	out := make([]bool, len(r.Order))
	for i, id := range r.Order {
		out[i] = r.Players[id].Bankrupt
	}
	return out
}

// ownedCells returns the ids of all cells owned by the given player.
func (r *Room) ownedCells(playerID uuid.UUID) []int {
	var cells []int
	for id, own := range r.Owned {
		if own.OwnerID == playerID {
			cells = append(cells, id)
		}
	}
	return cells
}

// record stamps the last-action record of the room.
func (r *Room) record(now time.Time, a GameAction) {
	a.Timestamp = now.UnixMilli()
	r.LastAction = &a
}

// Clone returns a deep copy of the room. The store hands transactions a
// clone and fans out clones to subscribers, so no caller ever aliases the
// committed record.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Order = append([]uuid.UUID(nil), r.Order...)
	cp.Players = make(map[uuid.UUID]*Player, len(r.Players))
	for id, p := range r.Players {
		pc := *p
		cp.Players[id] = &pc
	}
	cp.Owned = make(map[int]*LandOwnership, len(r.Owned))
	for id, o := range r.Owned {
		oc := *o
		cp.Owned[id] = &oc
	}
	if r.LastAction != nil {
		la := *r.LastAction
		cp.LastAction = &la
	}
	if r.Pending != nil {
		po := *r.Pending
		cp.Pending = &po
	}
	return &cp
}
