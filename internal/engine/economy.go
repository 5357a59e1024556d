// Package engine implements the pure game rules: the economic resolver,
// arrival classification, golden key application, and turn rotation.
//
// Every function in this package is total and side-effect-free. The
// transaction layer in internal/game is solely responsible for applying
// results atomically against room state.
package engine

import (
	"errors"
	"fmt"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
)

// Building identifies a single upgrade on an owned land cell.
type Building uint8

const (
	Villa Building = iota
	Office
	Hotel
)

// String returns the canonical name of the building.
func (b Building) String() string {
	switch b {
	case Villa:
		return "villa"
	case Office:
		return "office"
	case Hotel:
		return "hotel"
	}
	return "unknown"
}

// ParseBuilding maps a wire name to its Building.
func ParseBuilding(name string) (Building, error) {
	switch name {
	case "villa":
		return Villa, nil
	case "office":
		return Office, nil
	case "hotel":
		return Hotel, nil
	}
	return 0, fmt.Errorf("unknown building %q", name)
}

// BuildingSet records which upgrades have been built on a cell. Each flag
// is monotonic: once set it is cleared only by a full sale that removes
// the ownership record entirely.
type BuildingSet struct {
	Villa  bool `json:"villa"`
	Office bool `json:"office"`
	Hotel  bool `json:"hotel"`
}

// Has reports whether the given building is present in the set.
func (s BuildingSet) Has(b Building) bool {
	switch b {
	case Villa:
		return s.Villa
	case Office:
		return s.Office
	case Hotel:
		return s.Hotel
	}
	return false
}

// With returns a copy of the set with the given building added.
func (s BuildingSet) With(b Building) BuildingSet {
	switch b {
	case Villa:
		s.Villa = true
	case Office:
		s.Office = true
	case Hotel:
		s.Hotel = true
	}
	return s
}

// Count returns the number of buildings in the set.
func (s BuildingSet) Count() int {
	n := 0
	if s.Villa {
		n++
	}
	if s.Office {
		n++
	}
	if s.Hotel {
		n++
	}
	return n
}

// Economic resolver failure modes.
var (
	ErrNotPurchasable   = errors.New("cell cannot be owned")
	ErrNoBuildings      = errors.New("cell does not take buildings")
	ErrAlreadyBuilt     = errors.New("building already present")
	ErrAlreadyOwned     = errors.New("cell already owned")
	ErrBuildingRequired = errors.New("owned cell: a building must be requested")
)

// Building cost multipliers, expressed in halves of the base price:
// villa 0.5x, office 1.0x, hotel 1.5x.
func buildingCostHalves(b Building) int64 {
	switch b {
	case Villa:
		return 1
	case Office:
		return 2
	case Hotel:
		return 3
	}
	return 0
}

// BuildingCost returns the cost of erecting the given building on a cell,
// floored to an integer.
func BuildingCost(cell board.Cell, b Building) int64 {
	return cell.Price * buildingCostHalves(b) / 2
}

// PurchaseCost computes the cost of the next purchase step on a cell.
//
// For an unowned cell the cost is the base price. For a cell the buyer
// already owns, exactly one new building must be requested (requested
// non-nil) and the cost is the building cost. The function fails without
// a defined cost when the requested building is already built or the cell
// type forbids buildings.
func PurchaseCost(cell board.Cell, owned bool, existing BuildingSet, requested *Building) (int64, error) {
	if !cell.Purchasable() {
		return 0, ErrNotPurchasable
	}
	if !owned {
		return cell.Price, nil
	}
	if requested == nil {
		return 0, ErrBuildingRequired
	}
	if !cell.AllowsBuildings() {
		return 0, ErrNoBuildings
	}
	if existing.Has(*requested) {
		return 0, ErrAlreadyBuilt
	}
	return BuildingCost(cell, *requested), nil
}

// ProjectedToll computes the toll owed by a player landing on an owned cell.
//
// Land cells accrue 0.2x the base price plus 1.5x per villa, 2.5x per
// office and 4.5x per hotel, summed and floored to an integer. Vehicle and
// Special cells charge their fixed toll regardless of buildings.
func ProjectedToll(cell board.Cell, buildings BuildingSet) int64 {
	if cell.Type == board.Vehicle || cell.Type == board.Special {
		return cell.Toll
	}
	// Accumulate in tenths so the sum, not each term, is floored.
	tenths := cell.Price * 2
	if buildings.Villa {
		tenths += cell.Price * 15
	}
	if buildings.Office {
		tenths += cell.Price * 25
	}
	if buildings.Hotel {
		tenths += cell.Price * 45
	}
	return tenths / 10
}

// SaleRefund computes the refund for a full sale of an owned cell: 100% of
// the invested capital, term by term, so that buying and then selling is
// an exact round trip.
func SaleRefund(cell board.Cell, buildings BuildingSet) int64 {
	refund := cell.Price
	if buildings.Villa {
		refund += BuildingCost(cell, Villa)
	}
	if buildings.Office {
		refund += BuildingCost(cell, Office)
	}
	if buildings.Hotel {
		refund += BuildingCost(cell, Hotel)
	}
	return refund
}
