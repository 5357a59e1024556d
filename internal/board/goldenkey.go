package board

// CardCategory splits the golden key catalog into cards that settle
// immediately (money) and cards whose position change waits for the
// player's acknowledgment (move).
type CardCategory uint8

const (
	MoneyCard CardCategory = iota
	MoveCard
)

// String returns the canonical name of the card category.
func (c CardCategory) String() string {
	if c == MoveCard {
		return "MOVE"
	}
	return "MONEY"
}

// Card is one golden key card. A money card carries a signed balance
// delta; a move card carries either an absolute destination (MoveTo >= 0)
// or a relative offset (MoveBy, when MoveTo < 0).
type Card struct {
	ID       int
	Category CardCategory
	Message  string
	Delta    int64 // money cards: signed balance change
	MoveTo   int   // move cards: absolute destination, -1 when relative
	MoveBy   int   // move cards: relative offset, used when MoveTo < 0
}

// Outcome is the result of applying a card to a player's position and
// balance. NewPosition is nil for money cards. PassedStart reports whether
// the move crosses the start cell in the forward direction, which entitles
// the player to salary.
type Outcome struct {
	NewPosition *int
	Delta       int64
	Message     string
	PassedStart bool
}

// Apply evaluates the card against the given position and balance.
// It is pure: the caller commits the outcome.
func (c Card) Apply(pos int, balance int64) Outcome {
	out := Outcome{Message: c.Message}
	if c.Category == MoneyCard {
		out.Delta = c.Delta
		return out
	}

	dest := c.MoveTo
	if dest < 0 {
		dest = ((pos+c.MoveBy)%Size + Size) % Size
		// Relative moves only pass start when stepping forward across it.
		out.PassedStart = c.MoveBy > 0 && pos+c.MoveBy >= Size
	} else {
		// Absolute moves travel forward; wrapping past start pays salary.
		out.PassedStart = dest <= pos && dest != IslandCell
	}
	out.NewPosition = &dest
	return out
}

// standardCards builds the default golden key catalog.
func standardCards() []Card {
	money := func(id int, msg string, delta int64) Card {
		return Card{ID: id, Category: MoneyCard, Message: msg, Delta: delta}
	}
	moveTo := func(id int, msg string, dest int) Card {
		return Card{ID: id, Category: MoveCard, Message: msg, MoveTo: dest}
	}
	moveBy := func(id int, msg string, by int) Card {
		return Card{ID: id, Category: MoveCard, Message: msg, MoveTo: -1, MoveBy: by}
	}

	return []Card{
		money(1, "Birthday party! Collect gifts.", 100_000),
		money(2, "You won the lottery.", 200_000),
		money(3, "Income tax due.", -100_000),
		money(4, "Building repairs on all fronts.", -150_000),
		money(5, "Dividend payout from your shares.", 150_000),
		money(6, "Hospital bill.", -50_000),
		money(7, "Charity gala donation.", -100_000),
		money(8, "Consulting fee received.", 120_000),
		moveTo(9, "Advance to Start.", StartCell),
		moveTo(10, "Shipwrecked! Off to the desert island.", IslandCell),
		moveTo(11, "Business trip to Seoul.", 39),
		moveTo(12, "Invited to the World Tour.", 33),
		moveBy(13, "Tailwind! Move ahead three cells.", 3),
		moveBy(14, "Lost your way. Go back three cells.", -3),
		moveTo(15, "Free cruise to the teleport hub.", TeleportCell),
		money(16, "Found cash on the street.", 50_000),
	}
}
