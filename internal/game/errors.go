package game

import (
	"errors"
	"fmt"
)

// The error taxonomy mirrors the guarantees of the transaction layer:
// authority and terminal-state failures are rejected synchronously with no
// state change; funds failures signal the caller to enter the liquidation
// flow; conflict retries stay invisible until the bounded attempts are
// exhausted, at which point a TransientError surfaces.

// AuthorityError means the actor lacks permission for the attempted
// action: not their turn, not the owner, room full, game already started.
type AuthorityError struct {
	Reason string
}

func (e *AuthorityError) Error() string { return "authority: " + e.Reason }

// authorityf builds an AuthorityError from a format string.
func authorityf(format string, args ...any) error {
	return &AuthorityError{Reason: fmt.Sprintf(format, args...)}
}

// FundsError means the balance cannot cover a chosen action. For tolls it
// is not a dead end: it directs the caller into liquidation.
type FundsError struct {
	Need int64
	Have int64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d, have %d", e.Need, e.Have)
}

// TerminalStateError means the action targeted a FINISHED room.
type TerminalStateError struct {
	Status RoomStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("room is %s", e.Status)
}

// TransientError surfaces after the store exhausts its bounded optimistic
// retries. The caller may resubmit the intent.
type TransientError struct{}

func (e *TransientError) Error() string {
	return "transaction conflict persisted, giving up"
}

// ErrRoomNotFound is returned by the store when no room has the given id.
var ErrRoomNotFound = errors.New("room not found")

// ErrConflict is returned by store implementations when an optimistic
// transaction lost its race. The store retries internally; the service
// converts an exhausted retry budget into a TransientError.
var ErrConflict = errors.New("optimistic transaction conflict")

// IsAuthority reports whether err is an AuthorityError.
func IsAuthority(err error) bool {
	var ae *AuthorityError
	return errors.As(err, &ae)
}

// IsFunds reports whether err is a FundsError.
func IsFunds(err error) bool {
	var fe *FundsError
	return errors.As(err, &fe)
}

// IsTerminal reports whether err is a TerminalStateError.
func IsTerminal(err error) bool {
	var te *TerminalStateError
	return errors.As(err, &te)
}
