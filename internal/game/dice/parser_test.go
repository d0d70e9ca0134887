package dice_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

// TestParseNotation verifies supported forms including case and whitespace
// tolerance.
func TestParseNotation(t *testing.T) {
	cases := []struct {
		in       string
		count    int
		modifier int
	}{
		{"3d", 3, 0},
		{"3d+2", 3, 2},
		{"5D", 5, 0},
		{" 3 d + 2 ", 3, 2},
		{"0d", 0, 0},
		{"12d+10", 12, 10},
	}
	for _, tc := range cases {
		n, err := dice.ParseNotation(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.count, n.DiceCount, "input %q", tc.in)
		assert.Equal(t, tc.modifier, n.Modifier, "input %q", tc.in)
	}
}

// TestParseNotation_Invalid verifies malformed notations report
// ErrBadNotation.
func TestParseNotation_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "d", "3", "3d-2", "3d+", "xdy", "3d+2x", "-1d"} {
		_, err := dice.ParseNotation(in)
		assert.ErrorIs(t, err, dice.ErrBadNotation, "input %q", in)
	}
}

// TestParseNotation_Property verifies round-tripping arbitrary counts and
// modifiers through a printed notation.
func TestParseNotation_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 500).Draw(rt, "count")
		modifier := rapid.IntRange(0, 500).Draw(rt, "modifier")
		withModifier := rapid.Bool().Draw(rt, "with_modifier")

		in := fmt.Sprintf("%dd", count)
		if withModifier {
			in = fmt.Sprintf("%dd+%d", count, modifier)
		}

		n, err := dice.ParseNotation(in)
		require.NoError(rt, err)
		assert.Equal(rt, count, n.DiceCount)
		if withModifier {
			assert.Equal(rt, modifier, n.Modifier)
		} else {
			assert.Zero(rt, n.Modifier)
		}
	})
}

// TestNewDiceSet verifies exactly the last die is wild.
func TestNewDiceSet(t *testing.T) {
	set := dice.NewDiceSet(4)
	require.Len(t, set, 4)
	for i, d := range set {
		assert.Equal(t, i, d.ID)
		wild := i == 3
		assert.Equal(t, wild, d.CanExplodeSucceed, "die %d", i)
		assert.Equal(t, wild, d.CanExplodeFail, "die %d", i)
		assert.Equal(t, wild, d.IsExploding, "die %d", i)
		assert.Nil(t, d.FinalNumber)
	}
}
