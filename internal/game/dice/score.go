package dice

import "errors"

// Scoring errors.
var (
	// ErrNoDice is returned when a roll has an empty dice sequence.
	ErrNoDice = errors.New("dice: roll has no dice")
	// ErrUnresolvedDie is returned when a die has no final number. The
	// engine always resolves before returning, so hitting this indicates a
	// caller constructed a roll by hand.
	ErrUnresolvedDie = errors.New("dice: die has no final number")
)

// Score returns the roll total: the sum of every non-cancelled die's final
// number (bonus dice included) plus the modifier.
//
// Postcondition: Returns ErrNoDice for an empty roll and ErrUnresolvedDie
// when any die lacks a final number.
func Score(roll Roll) (int, error) {
	if len(roll.Dice) == 0 {
		return 0, ErrNoDice
	}
	total := roll.Modifier
	for _, d := range roll.Dice {
		if d.FinalNumber == nil {
			return 0, ErrUnresolvedDie
		}
		if d.IsCancelled {
			continue
		}
		total += *d.FinalNumber
	}
	return total, nil
}
