package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadNotation is returned when a notation string cannot be parsed.
var ErrBadNotation = errors.New("invalid dice notation")

// Notation is a parsed pool notation: a die count and an optional flat
// modifier, e.g. "3d+2" or "5d".
type Notation struct {
	// DiceCount is the number of initial dice in the pool.
	DiceCount int
	// Modifier is the flat bonus (never negative in this notation).
	Modifier int
}

// ParseNotation parses a pool notation string.
//
// Supported forms: "3d", "3d+2", case-insensitive, whitespace-tolerant
// ("3 d + 2"). The count must be a non-negative integer; the modifier, when
// present, a non-negative integer.
//
// Precondition: text must be non-empty.
// Postcondition: Returns a Notation or an error wrapping ErrBadNotation.
func ParseNotation(text string) (Notation, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return Notation{}, fmt.Errorf("%w: empty input", ErrBadNotation)
	}

	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		return Notation{}, fmt.Errorf("%w: missing 'd' in %q", ErrBadNotation, text)
	}

	countStr := strings.TrimSpace(s[:dIdx])
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return Notation{}, fmt.Errorf("%w: die count in %q", ErrBadNotation, text)
	}
	if count < 0 {
		return Notation{}, fmt.Errorf("%w: die count must be >= 0 in %q", ErrBadNotation, text)
	}

	rest := strings.TrimSpace(s[dIdx+1:])
	modifier := 0
	if rest != "" {
		if !strings.HasPrefix(rest, "+") {
			return Notation{}, fmt.Errorf("%w: unexpected suffix %q in %q", ErrBadNotation, rest, text)
		}
		modStr := strings.TrimSpace(rest[1:])
		modifier, err = strconv.Atoi(modStr)
		if err != nil {
			return Notation{}, fmt.Errorf("%w: modifier in %q", ErrBadNotation, text)
		}
		if modifier < 0 {
			return Notation{}, fmt.Errorf("%w: modifier must be >= 0 in %q", ErrBadNotation, text)
		}
	}

	return Notation{DiceCount: count, Modifier: modifier}, nil
}

// NewDiceSet creates the initial unresolved dice for a pool of the given
// size. Exactly the last die is the wild die: it explodes on SuccessValue
// and cancels on FailValue.
//
// Precondition: count must be >= 0.
// Postcondition: Returns count dice with IDs 0..count-1; only the last die
// has CanExplodeSucceed, CanExplodeFail, and IsExploding set.
func NewDiceSet(count int) []Die {
	set := make([]Die, 0, count)
	for i := 0; i < count; i++ {
		wild := i == count-1
		set = append(set, Die{
			ID:                i,
			IsExploding:       wild,
			CanExplodeSucceed: wild,
			CanExplodeFail:    wild,
		})
	}
	return set
}
