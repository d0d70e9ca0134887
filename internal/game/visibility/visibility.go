// Package visibility implements the per-roll visibility state machine:
// shared, secret, and hidden rolls, the one-way reveal transition, and the
// viewer-side disclosure projection.
package visibility

import (
	"errors"
	"fmt"
)

// Visibility is the roller-chosen audience for a room roll.
type Visibility string

// Visibility states. Shared rolls are always fully visible; secret rolls
// show a placeholder to other viewers until revealed; hidden rolls are
// withheld from other viewers entirely until revealed.
const (
	Shared Visibility = "shared"
	Secret Visibility = "secret"
	Hidden Visibility = "hidden"
)

// ErrInvalidVisibility is returned when an unrecognised visibility string is
// supplied.
var ErrInvalidVisibility = errors.New("invalid visibility")

// Parse converts a stored visibility string into a Visibility.
//
// Postcondition: Returns a valid Visibility or ErrInvalidVisibility.
func Parse(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVisibility, s)
	}
	return v, nil
}

// Valid reports whether v is a recognised visibility state.
func (v Visibility) Valid() bool {
	switch v {
	case Shared, Secret, Hidden:
		return true
	}
	return false
}

// InitialRevealed returns the reveal flag a roll starts with at broadcast
// time. Shared rolls have no reveal concept and start revealed; secret and
// hidden rolls start concealed.
func (v Visibility) InitialRevealed() bool {
	return v == Shared
}

// Reveal applies the one-way reveal transition to the current reveal flag.
// The transition is monotonic (false to true, never back) and idempotent.
func Reveal(revealed bool) bool {
	return true
}

// Disclosure is what a particular viewer may see of a roll.
type Disclosure int

const (
	// DisclosureFull shows the notation, dice, and result.
	DisclosureFull Disclosure = iota
	// DisclosurePlaceholder shows only that a roll happened ("rolled
	// secretly"); notation and dice are withheld.
	DisclosurePlaceholder
	// DisclosureOmitted excludes the roll from the viewer's ledger
	// entirely, placeholder included.
	DisclosureOmitted
)

// View computes the disclosure of a roll for one viewer.
//
// The roller always sees their own roll in full. A revealed roll is treated
// as shared for display purposes regardless of its stored visibility; the
// stored value itself never changes.
func View(v Visibility, revealed, isLocal bool) Disclosure {
	if isLocal || revealed || v == Shared {
		return DisclosureFull
	}
	switch v {
	case Secret:
		return DisclosurePlaceholder
	case Hidden:
		return DisclosureOmitted
	}
	// Unknown visibility on a foreign unrevealed roll: withhold contents.
	return DisclosurePlaceholder
}
