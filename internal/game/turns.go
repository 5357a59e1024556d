package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
	"github.com/HandsomeBisu/GridX-sub000/internal/engine"
)

// RollDice rolls for the turn holder and resolves the landing. A confined
// player's roll only decrements the confinement counter; the token does
// not move. Rolling forfeits an unused teleport grant.
func (s *Service) RollDice(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if r.Rolled {
			return authorityf("you have already rolled this turn")
		}
		if r.Pending != nil {
			return authorityf("resolve the pending %s first", r.Pending.Kind)
		}

		now := s.now()
		d1, d2 := s.roll()
		r.Dice = [2]int{d1, d2}
		r.Rolled = true

		if p.Confinement > 0 {
			p.Confinement--
			msg := fmt.Sprintf("%s stays on the island (%d turns left)", p.Name, p.Confinement)
			if p.Confinement == 0 {
				msg = fmt.Sprintf("%s may leave the island next turn", p.Name)
			}
			r.record(now, GameAction{Type: ActionEscapeFail, Actor: p.ID, Message: msg})
			return nil
		}

		p.HasTeleport = false
		s.movePlayer(r, p, (p.Position+d1+d2)%board.Size, p.Position+d1+d2 >= board.Size, now)
		s.resolveArrival(r, p, now)
		return nil
	})
}

// movePlayer commits a token move, crediting salary when the move passed
// the start cell. Runs inside a transaction.
func (s *Service) movePlayer(r *Room, p *Player, dest int, passedStart bool, now time.Time) {
	p.Position = dest
	cell := s.board.Cell(dest)
	msg := fmt.Sprintf("%s landed on %s", p.Name, cell.Name)
	var amount int64
	if passedStart {
		p.Balance += board.Salary
		amount = board.Salary
		msg += " and collected salary"
	}
	r.record(now, GameAction{Type: ActionMove, Actor: p.ID, Amount: amount, Message: msg})
}

// resolveArrival applies the single follow-up the landing requires:
// immediate effects (welfare, confinement, money cards) settle in this
// same transaction, while offers that need the player's decision are
// parked on the room as the pending offer. Runs inside a transaction.
func (s *Service) resolveArrival(r *Room, p *Player, now time.Time) {
	cell := s.board.Cell(p.Position)
	ownerID := uuid.Nil
	var buildings engine.BuildingSet
	if own := r.Owned[p.Position]; own != nil {
		ownerID = own.OwnerID
		buildings = own.Buildings
	}

	arrival := engine.ClassifyArrival(cell, p.ID, p.Confinement > 0, ownerID, buildings)
	switch arrival.Kind {
	case engine.ArrivalConfinement:
		p.Confinement = board.ConfinementTurns
		r.record(now, GameAction{
			Type:    ActionMove,
			Actor:   p.ID,
			Message: fmt.Sprintf("%s is stranded on the island for %d turns", p.Name, board.ConfinementTurns),
		})

	case engine.ArrivalGoldenKey:
		s.drawGoldenKey(r, p, now)

	case engine.ArrivalFundDeposit:
		pay := min(p.Balance, board.WelfareContribution)
		p.Balance -= pay
		r.Fund += pay
		r.record(now, GameAction{
			Type:    ActionWelfare,
			Actor:   p.ID,
			Amount:  -pay,
			Message: fmt.Sprintf("%s paid %d into the welfare fund", p.Name, pay),
		})
		s.advanceTurn(r, now, false)

	case engine.ArrivalFundWithdrawal:
		payout := r.Fund
		r.Fund = 0
		p.Balance += payout
		r.record(now, GameAction{
			Type:    ActionWelfare,
			Actor:   p.ID,
			Amount:  payout,
			Message: fmt.Sprintf("%s collected %d from the welfare fund", p.Name, payout),
		})
		s.advanceTurn(r, now, false)

	case engine.ArrivalTeleportGrant:
		p.HasTeleport = true
		r.record(now, GameAction{
			Type:    ActionMove,
			Actor:   p.ID,
			Message: fmt.Sprintf("%s may teleport anywhere on their next turn", p.Name),
		})

	case engine.ArrivalPurchaseOffer:
		r.Pending = &PendingOffer{
			Kind:     PendingPurchase,
			PlayerID: p.ID,
			CellID:   cell.ID,
			Amount:   arrival.Price,
		}

	case engine.ArrivalUpgradeOffer:
		r.Pending = &PendingOffer{
			Kind:     PendingUpgrade,
			PlayerID: p.ID,
			CellID:   cell.ID,
		}

	case engine.ArrivalTollDue:
		s.demandToll(r, p, cell.ID, arrival.Toll, arrival.OwnerID, now)
	}
}

// drawGoldenKey draws one card server-side and applies it. Money cards
// settle immediately; move cards park their destination as a pending
// offer so the client can show the card before the teleport commits.
// Runs inside a transaction.
func (s *Service) drawGoldenKey(r *Room, p *Player, now time.Time) {
	card := s.pick(s.board.Cards())
	outcome := card.Apply(p.Position, p.Balance)

	if card.Category == board.MoneyCard {
		applied := outcome.Delta
		if applied < 0 && p.Balance+applied < 0 {
			applied = -p.Balance // money cards never drive a balance negative
		}
		p.Balance += applied
		r.record(now, GameAction{
			Type:    ActionGoldKey,
			Actor:   p.ID,
			Amount:  applied,
			Message: outcome.Message,
		})
		return
	}

	r.Pending = &PendingOffer{
		Kind:        PendingCardMove,
		PlayerID:    p.ID,
		CellID:      p.Position,
		CardID:      card.ID,
		Destination: *outcome.NewPosition,
	}
	r.record(now, GameAction{
		Type:    ActionGoldKey,
		Actor:   p.ID,
		Message: outcome.Message,
	})
}

// Teleport serves two moves: acknowledging a move-type golden key card
// (the destination is the card's), or spending a teleport-hub grant on a
// freely chosen cell instead of rolling. Either way the landing is
// resolved at the destination.
func (s *Service) Teleport(ctx context.Context, roomID, playerID uuid.UUID, target int) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if target < 0 || target >= board.Size {
			return authorityf("cell %d is not on the board", target)
		}

		now := s.now()

		// Move-card acknowledgment.
		if r.Pending != nil && r.Pending.Kind == PendingCardMove && r.Pending.PlayerID == playerID {
			if target != r.Pending.Destination {
				return authorityf("the card moves you to cell %d", r.Pending.Destination)
			}
			card, ok := s.board.Card(r.Pending.CardID)
			if !ok {
				return authorityf("unknown card %d", r.Pending.CardID)
			}
			outcome := card.Apply(p.Position, p.Balance)
			r.Pending = nil
			s.movePlayer(r, p, target, outcome.PassedStart, now)
			r.record(now, GameAction{
				Type:    ActionTeleport,
				Actor:   p.ID,
				Message: fmt.Sprintf("%s moved to %s", p.Name, s.board.Cell(target).Name),
			})
			s.resolveArrival(r, p, now)
			return nil
		}

		// Teleport-hub grant: supersedes the dice roll.
		if !p.HasTeleport {
			return authorityf("no teleport available")
		}
		if r.Rolled {
			return authorityf("you have already moved this turn")
		}
		if r.Pending != nil {
			return authorityf("resolve the pending %s first", r.Pending.Kind)
		}
		p.HasTeleport = false
		r.Rolled = true
		// A chosen teleport is a jump, not travel: no salary.
		s.movePlayer(r, p, target, false, now)
		r.record(now, GameAction{
			Type:    ActionTeleport,
			Actor:   p.ID,
			Message: fmt.Sprintf("%s teleported to %s", p.Name, s.board.Cell(target).Name),
		})
		s.resolveArrival(r, p, now)
		return nil
	})
}

// EscapeConfinement pays the fixed escape fee to clear the confinement
// counter immediately.
func (s *Service) EscapeConfinement(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if p.Confinement == 0 {
			return authorityf("you are not confined")
		}
		if p.Balance < board.EscapeFee {
			return &FundsError{Need: board.EscapeFee, Have: p.Balance}
		}
		p.Balance -= board.EscapeFee
		p.Confinement = 0
		r.record(s.now(), GameAction{
			Type:    ActionEscapeSuccess,
			Actor:   p.ID,
			Amount:  -board.EscapeFee,
			Message: fmt.Sprintf("%s paid %d to leave the island", p.Name, board.EscapeFee),
		})
		return nil
	})
}

// EndTurn hands the turn to the next eligible player. Abandoning a
// purchase, upgrade, or card offer costs nothing; a pending toll is not
// abandonable and settles here from cash, or fails into the liquidation
// flow.
func (s *Service) EndTurn(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if !r.Rolled {
			return authorityf("roll the dice first")
		}
		now := s.now()
		if r.Pending != nil && r.Pending.Kind == PendingToll {
			if err := s.settleToll(r, p, now); err != nil {
				return err
			}
		}
		s.advanceTurn(r, now, true)
		return nil
	})
}

// ForceTimeoutCheck force-advances a stalled turn once the deadline plus
// grace has passed. Safe to trigger redundantly from any observer: the
// deadline and turn holder are re-validated inside the transaction, so
// concurrent checks commit at most one advancement. Returns whether this
// call advanced the turn.
func (s *Service) ForceTimeoutCheck(ctx context.Context, roomID, _ uuid.UUID) (bool, error) {
	_, err := s.commit(ctx, roomID, func(r *Room) error {
		if r.Status != StatusPlaying {
			return errNoTimeout
		}
		now := s.now()
		if now.UnixMilli() < r.Deadline+s.grace.Milliseconds() {
			return errNoTimeout
		}
		cur := r.CurrentPlayer()
		if cur == nil {
			return errNoTimeout
		}

		// A toll may not lapse: settle it from cash, then by forced
		// liquidation, and as the last resort by bankruptcy.
		if r.Pending != nil && r.Pending.Kind == PendingToll {
			s.settleTollByForce(r, cur, now)
			if r.Status != StatusPlaying {
				return nil // settling forced the game over
			}
			if !cur.IsTurn {
				return nil // bankruptcy already advanced the turn
			}
		}

		r.record(now, GameAction{
			Type:    ActionTimeout,
			Actor:   cur.ID,
			Message: fmt.Sprintf("%s ran out of time", cur.Name),
		})
		s.advanceTurn(r, now, false)
		return nil
	})
	if errors.Is(err, errNoTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// errNoTimeout aborts a timeout-check transaction that found nothing to
// do. It never escapes ForceTimeoutCheck.
var errNoTimeout = errors.New("no timeout due")
