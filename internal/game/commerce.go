package game

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/engine"
)

// ConfirmPurchase settles the pending purchase or upgrade offer.
// Affordability and ownership are re-validated against the current state,
// not the state at the time the offer was shown. An initial purchase buys
// the bare land; an upgrade adds exactly one new building.
func (s *Service) ConfirmPurchase(ctx context.Context, roomID, playerID uuid.UUID, cellID int, requested []engine.Building) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		pending := r.Pending
		if pending == nil || pending.PlayerID != playerID || pending.CellID != cellID {
			return authorityf("no purchase offer for cell %d", cellID)
		}

		cell := s.board.Cell(cellID)
		now := s.now()

		switch pending.Kind {
		case PendingPurchase:
			if len(requested) != 0 {
				return authorityf("buy the land first, build on a later visit")
			}
			if r.Owned[cellID] != nil {
				return authorityf("cell %d is already owned", cellID)
			}
			cost, err := engine.PurchaseCost(cell, false, engine.BuildingSet{}, nil)
			if err != nil {
				return authorityf("cell %d cannot be bought: %v", cellID, err)
			}
			if p.Balance < cost {
				return &FundsError{Need: cost, Have: p.Balance}
			}
			p.Balance -= cost
			p.OwnedCount++
			r.Owned[cellID] = &LandOwnership{
				OwnerID: playerID,
				Toll:    engine.ProjectedToll(cell, engine.BuildingSet{}),
			}
			r.Pending = nil
			r.record(now, GameAction{
				Type:    ActionBuy,
				Actor:   playerID,
				Amount:  -cost,
				Message: fmt.Sprintf("%s bought %s for %d", p.Name, cell.Name, cost),
			})
			return nil

		case PendingUpgrade:
			if len(requested) != 1 {
				return authorityf("exactly one building per visit")
			}
			own := r.Owned[cellID]
			if own == nil || own.OwnerID != playerID {
				return authorityf("you do not own cell %d", cellID)
			}
			b := requested[0]
			cost, err := engine.PurchaseCost(cell, true, own.Buildings, &b)
			if err != nil {
				return authorityf("cannot build %s on %s: %v", b, cell.Name, err)
			}
			if p.Balance < cost {
				return &FundsError{Need: cost, Have: p.Balance}
			}
			p.Balance -= cost
			own.Buildings = own.Buildings.With(b)
			own.Toll = engine.ProjectedToll(cell, own.Buildings)
			r.Pending = nil
			r.record(now, GameAction{
				Type:    ActionBuy,
				Actor:   playerID,
				Amount:  -cost,
				Message: fmt.Sprintf("%s built a %s on %s for %d", p.Name, b, cell.Name, cost),
			})
			return nil

		default:
			return authorityf("pending %s is not a purchase", pending.Kind)
		}
	})
}

// PayToll settles the pending toll from cash. An insufficient balance
// returns a FundsError, which is the signal to enter the liquidation
// flow via SellAssets.
func (s *Service) PayToll(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if r.Pending == nil || r.Pending.Kind != PendingToll || r.Pending.PlayerID != playerID {
			return authorityf("no toll is due")
		}
		return s.settleToll(r, p, s.now())
	})
}

// SellAssets liquidates the selected properties at full refund. When a
// toll is pending, the required payment is deducted and distributed to
// the creditor in the same commit once the post-sale balance covers it;
// if covering has become impossible even with everything else sold, the
// seller goes bankrupt instead.
func (s *Service) SellAssets(ctx context.Context, roomID, playerID uuid.UUID, cellIDs []int) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		p, err := turnHolder(r, playerID)
		if err != nil {
			return err
		}
		if len(cellIDs) == 0 {
			return authorityf("no cells selected")
		}
		seen := make(map[int]bool, len(cellIDs))
		var total int64
		for _, id := range cellIDs {
			if seen[id] {
				return authorityf("cell %d selected twice", id)
			}
			seen[id] = true
			own := r.Owned[id]
			if own == nil || own.OwnerID != playerID {
				return authorityf("you do not own cell %d", id)
			}
			total += engine.SaleRefund(s.board.Cell(id), own.Buildings)
		}

		now := s.now()
		for id := range seen {
			delete(r.Owned, id)
		}
		p.OwnedCount -= len(seen)
		p.Balance += total
		r.record(now, GameAction{
			Type:    ActionSell,
			Actor:   playerID,
			Amount:  total,
			Message: fmt.Sprintf("%s sold %d properties for %d", p.Name, len(seen), total),
		})

		if r.Pending != nil && r.Pending.Kind == PendingToll && r.Pending.PlayerID == playerID {
			toll := r.Pending.Amount
			switch {
			case p.Balance >= toll:
				return s.settleToll(r, p, now)
			case p.Balance+s.totalRefunds(r, playerID) < toll:
				s.forceBankrupt(r, p, now, "could not cover the toll")
				s.advanceTurn(r, now, false)
			}
			// Otherwise the partial sale stands and the toll stays pending.
		}
		return nil
	})
}

// DeclareBankruptcy applies the irrevocable bankruptcy path on the
// player's explicit request.
func (s *Service) DeclareBankruptcy(ctx context.Context, roomID, playerID uuid.UUID) (*Room, error) {
	return s.commit(ctx, roomID, func(r *Room) error {
		if err := playing(r); err != nil {
			return err
		}
		p := r.Player(playerID)
		if p == nil {
			return authorityf("player %s is not in the room", playerID)
		}
		if p.Bankrupt {
			return authorityf("already bankrupt")
		}
		now := s.now()
		wasTurn := p.IsTurn
		s.forceBankrupt(r, p, now, "declared bankruptcy")
		if wasTurn {
			s.advanceTurn(r, now, false)
		} else {
			s.checkGameOver(r, now)
		}
		return nil
	})
}

// demandToll parks the toll obligation as the pending offer, or applies
// bankruptcy straight away when covering it is already mathematically
// impossible. Runs inside a transaction.
func (s *Service) demandToll(r *Room, p *Player, cellID int, toll int64, ownerID uuid.UUID, now time.Time) {
	if p.Balance+s.totalRefunds(r, p.ID) < toll {
		s.forceBankrupt(r, p, now, "could not cover the toll")
		s.advanceTurn(r, now, false)
		return
	}
	r.Pending = &PendingOffer{
		Kind:     PendingToll,
		PlayerID: p.ID,
		CellID:   cellID,
		Amount:   toll,
		OwnerID:  ownerID,
	}
}

// settleToll transfers the pending toll to its creditor. A creditor who
// has since gone bankrupt forfeits the claim. Runs inside a transaction.
func (s *Service) settleToll(r *Room, p *Player, now time.Time) error {
	pending := r.Pending
	toll := pending.Amount
	creditor := r.Player(pending.OwnerID)
	if creditor == nil || creditor.Bankrupt {
		r.Pending = nil
		return nil
	}
	if p.Balance < toll {
		return &FundsError{Need: toll, Have: p.Balance}
	}
	p.Balance -= toll
	creditor.Balance += toll
	r.Pending = nil
	r.record(now, GameAction{
		Type:    ActionPayToll,
		Actor:   p.ID,
		Target:  creditor.ID,
		Amount:  toll,
		Message: fmt.Sprintf("%s paid %d toll to %s", p.Name, toll, creditor.Name),
	})
	return nil
}

// settleTollByForce resolves a lapsed toll without the debtor's help:
// cash first, then forced liquidation cheapest-first, bankruptcy last.
// Runs inside a transaction.
func (s *Service) settleTollByForce(r *Room, p *Player, now time.Time) {
	toll := r.Pending.Amount

	if p.Balance < toll {
		cells := r.ownedCells(p.ID)
		refund := func(id int) int64 {
			return engine.SaleRefund(s.board.Cell(id), r.Owned[id].Buildings)
		}
		sort.Slice(cells, func(i, j int) bool {
			ri, rj := refund(cells[i]), refund(cells[j])
			if ri != rj {
				return ri < rj
			}
			return cells[i] < cells[j]
		})
		for _, id := range cells {
			if p.Balance >= toll {
				break
			}
			p.Balance += refund(id)
			delete(r.Owned, id)
			p.OwnedCount--
		}
	}
	if p.Balance < toll {
		s.forceBankrupt(r, p, now, "could not cover the toll")
		s.advanceTurn(r, now, false)
		return
	}
	if err := s.settleToll(r, p, now); err != nil {
		// Unreachable: the balance was just topped up past the toll.
		s.log.WithError(err).WithField("room", r.ID).Error("forced toll settlement")
	}
}

// forceBankrupt applies the terminal bankruptcy path: all owned
// properties are released (not transferred), the balance zeroes, and the
// bankrupt flag sets one-way. Runs inside a transaction.
func (s *Service) forceBankrupt(r *Room, p *Player, now time.Time, reason string) {
	for _, id := range r.ownedCells(p.ID) {
		delete(r.Owned, id)
	}
	p.OwnedCount = 0
	p.Balance = 0
	p.Bankrupt = true
	p.Confinement = 0
	p.HasTeleport = false
	if r.Pending != nil && r.Pending.PlayerID == p.ID {
		r.Pending = nil
	}
	r.record(now, GameAction{
		Type:    ActionBankrupt,
		Actor:   p.ID,
		Message: fmt.Sprintf("%s went bankrupt: %s", p.Name, reason),
	})
}

// totalRefunds sums the full-sale refund of everything the player owns.
// Runs inside a transaction.
func (s *Service) totalRefunds(r *Room, playerID uuid.UUID) int64 {
	var total int64
	for _, id := range r.ownedCells(playerID) {
		total += engine.SaleRefund(s.board.Cell(id), r.Owned[id].Buildings)
	}
	return total
}
