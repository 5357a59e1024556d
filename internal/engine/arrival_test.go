package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
)

func TestClassifyArrivalLandmarks(t *testing.T) {
	b := board.Load()
	arriver := uuid.New()

	cases := []struct {
		name   string
		cellID int
		want   ArrivalKind
	}{
		{"start", board.StartCell, ArrivalNone},
		{"island", board.IslandCell, ArrivalConfinement},
		{"teleport", board.TeleportCell, ArrivalTeleportGrant},
		{"fund deposit", board.FundDepositCell, ArrivalFundDeposit},
		{"fund withdrawal", board.FundWithdrawCell, ArrivalFundWithdrawal},
		{"golden key", 2, ArrivalGoldenKey},
	}
	for _, tc := range cases {
		got := ClassifyArrival(b.Cell(tc.cellID), arriver, false, uuid.Nil, BuildingSet{})
		if got.Kind != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got.Kind)
		}
	}
}

func TestClassifyArrivalOwnership(t *testing.T) {
	b := board.Load()
	arriver := uuid.New()
	other := uuid.New()
	land := b.Cell(3)

	// Unowned purchasable cell offers a purchase at its price.
	got := ClassifyArrival(land, arriver, false, uuid.Nil, BuildingSet{})
	if got.Kind != ArrivalPurchaseOffer {
		t.Fatalf("unowned: expected purchase offer, got %v", got.Kind)
	}
	if got.Price != land.Price {
		t.Errorf("unowned: expected price %d, got %d", land.Price, got.Price)
	}

	// Own cell with room to build offers an upgrade.
	if got := ClassifyArrival(land, arriver, false, arriver, BuildingSet{}); got.Kind != ArrivalUpgradeOffer {
		t.Errorf("own cell: expected upgrade offer, got %v", got.Kind)
	}

	// A fully built own cell has nothing left to add.
	full := BuildingSet{Villa: true, Office: true, Hotel: true}
	if got := ClassifyArrival(land, arriver, false, arriver, full); got.Kind != ArrivalNone {
		t.Errorf("fully built: expected none, got %v", got.Kind)
	}

	// Someone else's cell demands the projected toll from its creditor.
	got = ClassifyArrival(land, arriver, false, other, BuildingSet{Villa: true})
	if got.Kind != ArrivalTollDue {
		t.Fatalf("rival cell: expected toll due, got %v", got.Kind)
	}
	if want := ProjectedToll(land, BuildingSet{Villa: true}); got.Toll != want {
		t.Errorf("rival cell: expected toll %d, got %d", want, got.Toll)
	}
	if got.OwnerID != other {
		t.Errorf("rival cell: expected creditor %s, got %s", other, got.OwnerID)
	}
}

// TestClassifyArrivalConfined verifies a confined player resolves
// nothing regardless of the cell.
func TestClassifyArrivalConfined(t *testing.T) {
	b := board.Load()
	arriver := uuid.New()
	for _, id := range []int{2, 3, board.TeleportCell, board.FundDepositCell} {
		if got := ClassifyArrival(b.Cell(id), arriver, true, uuid.Nil, BuildingSet{}); got.Kind != ArrivalNone {
			t.Errorf("cell %d: expected none while confined, got %v", id, got.Kind)
		}
	}
}

// TestClassifyArrivalVehicleUpgrade verifies vehicle cells never offer
// an upgrade to their owner.
func TestClassifyArrivalVehicleUpgrade(t *testing.T) {
	b := board.Load()
	arriver := uuid.New()
	vehicle := b.Cell(5)
	if got := ClassifyArrival(vehicle, arriver, false, arriver, BuildingSet{}); got.Kind != ArrivalNone {
		t.Errorf("own vehicle: expected none, got %v", got.Kind)
	}
}
