package engine

import (
	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
)

// ArrivalKind enumerates the single required follow-up produced by a
// landing. Exactly one kind applies per landing, never more.
type ArrivalKind uint8

const (
	ArrivalNone ArrivalKind = iota
	ArrivalPurchaseOffer
	ArrivalUpgradeOffer
	ArrivalTollDue
	ArrivalGoldenKey
	ArrivalFundDeposit
	ArrivalFundWithdrawal
	ArrivalTeleportGrant
	ArrivalConfinement
)

// String returns the canonical name of the arrival kind.
func (k ArrivalKind) String() string {
	switch k {
	case ArrivalPurchaseOffer:
		return "purchase_offer"
	case ArrivalUpgradeOffer:
		return "upgrade_offer"
	case ArrivalTollDue:
		return "toll_due"
	case ArrivalGoldenKey:
		return "golden_key"
	case ArrivalFundDeposit:
		return "fund_deposit"
	case ArrivalFundWithdrawal:
		return "fund_withdrawal"
	case ArrivalTeleportGrant:
		return "teleport_grant"
	case ArrivalConfinement:
		return "confinement"
	}
	return "none"
}

// Arrival is the classified follow-up for a landing.
type Arrival struct {
	Kind    ArrivalKind
	Price   int64     // purchase offers: land price
	Toll    int64     // toll demands: amount owed
	OwnerID uuid.UUID // toll demands: creditor
}

// ClassifyArrival decides which follow-up a landing requires.
//
// A confined arriver (counter > 0) skips arrival handling entirely: only
// the dice-roll path decrements the confinement counter. Landing on the
// island cell always confines, overriding the ownership branches. The
// teleport hub, fund deposit and fund withdrawal cells are identified by
// their fixed board positions.
func ClassifyArrival(cell board.Cell, arriver uuid.UUID, confined bool, ownerID uuid.UUID, buildings BuildingSet) Arrival {
	if confined {
		return Arrival{Kind: ArrivalNone}
	}
	if cell.ID == board.IslandCell {
		return Arrival{Kind: ArrivalConfinement}
	}

	switch {
	case cell.Type == board.GoldenKey:
		return Arrival{Kind: ArrivalGoldenKey}
	case cell.ID == board.FundDepositCell:
		return Arrival{Kind: ArrivalFundDeposit}
	case cell.ID == board.FundWithdrawCell:
		return Arrival{Kind: ArrivalFundWithdrawal}
	case cell.ID == board.TeleportCell:
		return Arrival{Kind: ArrivalTeleportGrant}
	}

	if !cell.Purchasable() {
		return Arrival{Kind: ArrivalNone}
	}

	switch {
	case ownerID == uuid.Nil:
		return Arrival{Kind: ArrivalPurchaseOffer, Price: cell.Price}
	case ownerID == arriver:
		if !cell.AllowsBuildings() || buildings.Count() == 3 {
			return Arrival{Kind: ArrivalNone}
		}
		return Arrival{Kind: ArrivalUpgradeOffer}
	default:
		return Arrival{
			Kind:    ArrivalTollDue,
			Toll:    ProjectedToll(cell, buildings),
			OwnerID: ownerID,
		}
	}
}
