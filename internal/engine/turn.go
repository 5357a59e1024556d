package engine

// NextTurnIndex returns the index of the next eligible turn holder after
// cur, walking the order circularly and skipping bankrupt players.
//
// ok is false when no other non-bankrupt player exists: the walk would
// wrap back to cur, which means the player at cur (if still solvent) is
// the sole survivor and the game is over.
func NextTurnIndex(bankrupt []bool, cur int) (next int, ok bool) {
	n := len(bankrupt)
	if n == 0 {
		return cur, false
	}
	for i := 1; i <= n; i++ {
		idx := (cur + i) % n
		if idx == cur {
			break
		}
		if !bankrupt[idx] {
			return idx, true
		}
	}
	return cur, false
}

// SoleSurvivor returns the index of the only non-bankrupt player, or
// (-1, false) when zero or more than one remain.
func SoleSurvivor(bankrupt []bool) (int, bool) {
	survivor := -1
	for i, b := range bankrupt {
		if b {
			continue
		}
		if survivor >= 0 {
			return -1, false
		}
		survivor = i
	}
	if survivor < 0 {
		return -1, false
	}
	return survivor, true
}
