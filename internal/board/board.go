// Package board holds the static play-field configuration: the 40-cell
// board table, the golden key card catalog, and the fixed game constants.
// Everything in this package is immutable after Load; the rule engine treats
// it as read-only input.
package board

// CellType classifies what happens when a token arrives on a cell.
type CellType uint8

const (
	Land CellType = iota
	Start
	Island
	Space
	Fund
	GoldenKey
	Vehicle
	Special
)

// String returns the canonical name of the cell type.
func (t CellType) String() string {
	switch t {
	case Land:
		return "LAND"
	case Start:
		return "START"
	case Island:
		return "ISLAND"
	case Space:
		return "SPACE"
	case Fund:
		return "FUND"
	case GoldenKey:
		return "GOLD_KEY"
	case Vehicle:
		return "VEHICLE"
	case Special:
		return "SPECIAL"
	}
	return "UNKNOWN"
}

// Cell is one entry of the 40-cell board table.
type Cell struct {
	ID    int
	Type  CellType
	Name  string
	Price int64 // base price; 0 for non-purchasable cells
	Toll  int64 // fixed toll; set only for Vehicle/Special cells
}

// Purchasable reports whether the cell can be owned at all.
func (c Cell) Purchasable() bool {
	return c.Type == Land || c.Type == Vehicle || c.Type == Special
}

// AllowsBuildings reports whether buildings may be erected on the cell.
// Vehicle and Special cells carry a fixed toll and never take buildings.
func (c Cell) AllowsBuildings() bool {
	return c.Type == Land
}

// Board dimensions and landmark cell ids.
const (
	Size = 40

	StartCell        = 0
	TeleportCell     = 10
	IslandCell       = 20
	FundDepositCell  = 30
	FundWithdrawCell = 38
)

// Fixed game constants, in minor currency units.
const (
	StartingBalance     int64 = 3_000_000
	Salary              int64 = 300_000
	WelfareContribution int64 = 100_000
	EscapeFee           int64 = 200_000

	ConfinementTurns = 3
	MaxPlayers       = 4
)

// Board bundles the cell table and the golden key catalog. Supplied whole
// and read-only at engine start.
type Board struct {
	cells []Cell
	cards []Card
}

// Load returns the standard board with the default card catalog.
func Load() *Board {
	return &Board{cells: standardCells(), cards: standardCards()}
}

// Cell returns the cell with the given id. Panics on out-of-range ids;
// positions are always reduced modulo Size before lookup.
func (b *Board) Cell(id int) Cell {
	return b.cells[id]
}

// Cells returns the full cell table.
func (b *Board) Cells() []Cell {
	return b.cells
}

// Cards returns the full golden key catalog.
func (b *Board) Cards() []Card {
	return b.cards
}

// Card returns the card with the given id, or false if no such card exists.
func (b *Board) Card(id int) (Card, bool) {
	for _, c := range b.cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// standardCells builds the default 40-cell table. Prices roughly double
// around the board; gold key cells sit at 2, 7, 12, 17, 22 and 35.
func standardCells() []Cell {
	land := func(id int, name string, price int64) Cell {
		return Cell{ID: id, Type: Land, Name: name, Price: price}
	}
	key := func(id int) Cell {
		return Cell{ID: id, Type: GoldenKey, Name: "Golden Key"}
	}
	vehicle := func(id int, name string, price, toll int64) Cell {
		return Cell{ID: id, Type: Vehicle, Name: name, Price: price, Toll: toll}
	}

	return []Cell{
		{ID: 0, Type: Start, Name: "Start"},
		land(1, "Taipei", 50_000),
		key(2),
		land(3, "Beijing", 80_000),
		land(4, "Manila", 80_000),
		vehicle(5, "Jeju Liner", 200_000, 30_000),
		land(6, "Singapore", 100_000),
		key(7),
		land(8, "Cairo", 100_000),
		land(9, "Istanbul", 120_000),
		{ID: 10, Type: Space, Name: "Teleport Hub"},
		land(11, "Athens", 140_000),
		key(12),
		land(13, "Copenhagen", 160_000),
		land(14, "Stockholm", 160_000),
		vehicle(15, "Concorde", 200_000, 30_000),
		land(16, "Berne", 180_000),
		key(17),
		land(18, "Berlin", 180_000),
		land(19, "Ottawa", 200_000),
		{ID: 20, Type: Island, Name: "Desert Island"},
		land(21, "Buenos Aires", 220_000),
		key(22),
		land(23, "Sao Paulo", 240_000),
		land(24, "Sydney", 240_000),
		vehicle(25, "Queen Elizabeth", 300_000, 50_000),
		land(26, "Bangkok", 260_000),
		land(27, "Cape Town", 260_000),
		land(28, "Hong Kong", 300_000),
		land(29, "Lisbon", 300_000),
		{ID: 30, Type: Fund, Name: "Welfare Deposit"},
		land(31, "Madrid", 340_000),
		land(32, "Tokyo", 350_000),
		{ID: 33, Type: Space, Name: "World Tour"},
		land(34, "Paris", 380_000),
		key(35),
		land(36, "London", 350_000),
		land(37, "New York", 380_000),
		{ID: 38, Type: Fund, Name: "Welfare Payout"},
		{ID: 39, Type: Special, Name: "Seoul", Price: 1_000_000, Toll: 300_000},
	}
}
