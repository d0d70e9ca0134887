package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

// scriptedSource returns faces from a fixed script for face draws and a
// constant for cosmetic duration draws, so resolution is fully deterministic.
type scriptedSource struct {
	faces []int
	next  int
}

func (s *scriptedSource) Intn(n int) int {
	if n == dice.Sides {
		if s.next >= len(s.faces) {
			panic("scriptedSource: face script exhausted")
		}
		face := s.faces[s.next]
		s.next++
		return face - 1
	}
	// Duration draw; the value is cosmetic.
	return 0
}

// alwaysSix explodes forever, for exercising the chain cap.
type alwaysSix struct{}

func (alwaysSix) Intn(n int) int {
	if n == dice.Sides {
		return dice.SuccessValue - 1
	}
	return 0
}

func depths(dice []dice.Die) []int {
	out := make([]int, len(dice))
	for i, d := range dice {
		if d.ChainDepth == nil {
			out[i] = -1
		} else {
			out[i] = *d.ChainDepth
		}
	}
	return out
}

// TestResolve_PlainPool verifies a pool with no explosions resolves every
// die exactly once with sequential IDs.
func TestResolve_PlainPool(t *testing.T) {
	src := &scriptedSource{faces: []int{2, 3, 4}}
	roll := dice.Resolve(src, "3d", dice.NewDiceSet(3), 0, 3)

	require.Len(t, roll.Dice, 3, "no chain dice expected")
	for i, d := range roll.Dice {
		assert.Equal(t, i, d.ID, "IDs must be sequential from 0")
		require.NotNil(t, d.FinalNumber, "every die must be resolved")
		assert.False(t, d.IsCancelled)
	}
	assert.Equal(t, 3, roll.DiceCount)
	assert.Positive(t, roll.ID)
	assert.False(t, roll.Date.IsZero())

	total, err := dice.Score(roll)
	require.NoError(t, err)
	assert.Equal(t, 9, total)
}

// TestResolve_WildExplosionChain reproduces the documented scenario: a
// single wild die rolling 6, 6, 2 yields three dice with chain depths
// 0, 1, 2 and a score of 14.
func TestResolve_WildExplosionChain(t *testing.T) {
	src := &scriptedSource{faces: []int{6, 6, 2}}
	roll := dice.Resolve(src, "1d", dice.NewDiceSet(1), 0, 1)

	require.Len(t, roll.Dice, 3)
	assert.Equal(t, []int{0, 1, 2}, depths(roll.Dice))
	assert.Equal(t, []int{0, 1, 2}, []int{roll.Dice[0].ID, roll.Dice[1].ID, roll.Dice[2].ID})

	for _, d := range roll.Dice[1:] {
		assert.True(t, d.IsExploding, "chain dice are exploding")
		assert.True(t, d.CanExplodeSucceed, "chain dice keep chaining on success")
		assert.False(t, d.CanExplodeFail, "only the original wild die can fail")
	}

	total, err := dice.Score(roll)
	require.NoError(t, err)
	assert.Equal(t, 14, total)
}

// TestResolve_WildFailCancelsHighest reproduces the documented scenario:
// the wild die rolls 1, cancelling itself and the highest plain die.
func TestResolve_WildFailCancelsHighest(t *testing.T) {
	src := &scriptedSource{faces: []int{5, 3, 1}}
	roll := dice.Resolve(src, "3d", dice.NewDiceSet(3), 0, 3)

	require.Len(t, roll.Dice, 3)
	assert.True(t, roll.Dice[0].IsCancelled, "highest plain die (5) must be cancelled")
	assert.False(t, roll.Dice[1].IsCancelled, "lower plain die (3) survives")
	assert.True(t, roll.Dice[2].IsCancelled, "failing wild die is cancelled at draw time")

	total, err := dice.Score(roll)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

// TestResolve_CancellationTieBreak verifies ties break by original order:
// the first of two equal faces is cancelled.
func TestResolve_CancellationTieBreak(t *testing.T) {
	src := &scriptedSource{faces: []int{5, 5, 1}}
	roll := dice.Resolve(src, "3d", dice.NewDiceSet(3), 0, 3)

	assert.True(t, roll.Dice[0].IsCancelled, "first-seen die wins the tie")
	assert.False(t, roll.Dice[1].IsCancelled)
}

// TestResolve_CancellationBudgetExceedsEligible verifies that when fewer
// eligible dice exist than the budget, all of them are cancelled without
// error.
func TestResolve_CancellationBudgetExceedsEligible(t *testing.T) {
	src := &scriptedSource{faces: []int{1}}
	roll := dice.Resolve(src, "1d", dice.NewDiceSet(1), 2, 1)

	require.Len(t, roll.Dice, 1)
	assert.True(t, roll.Dice[0].IsCancelled)

	total, err := dice.Score(roll)
	require.NoError(t, err)
	assert.Equal(t, 2, total, "only the modifier survives")
}

// TestResolve_FailingWildNeverChains verifies a wild die that rolls
// FailValue spawns no chain even though it can explode on success.
func TestResolve_FailingWildNeverChains(t *testing.T) {
	src := &scriptedSource{faces: []int{4, 1}}
	roll := dice.Resolve(src, "2d", dice.NewDiceSet(2), 0, 2)
	require.Len(t, roll.Dice, 2, "no chain dice after a wild fail")
}

// TestResolve_ZeroDice verifies the engine is total over an empty pool.
func TestResolve_ZeroDice(t *testing.T) {
	src := &scriptedSource{}
	roll := dice.Resolve(src, "0d", dice.NewDiceSet(0), 0, 0)
	assert.Empty(t, roll.Dice)

	_, err := dice.Score(roll)
	assert.ErrorIs(t, err, dice.ErrNoDice)
}

// TestResolve_ChainCap verifies an explosion chain is bounded by
// MaxChainLength even when the source always rolls the success value.
func TestResolve_ChainCap(t *testing.T) {
	roll := dice.Resolve(alwaysSix{}, "1d", dice.NewDiceSet(1), 0, 1)
	assert.Len(t, roll.Dice, 1+dice.MaxChainLength)
}

// TestResolve_RollIDsMonotonic verifies process-unique roll IDs even when
// rolls land within the same millisecond.
func TestResolve_RollIDsMonotonic(t *testing.T) {
	a := dice.Resolve(&scriptedSource{faces: []int{2}}, "1d", dice.NewDiceSet(1), 0, 1)
	b := dice.Resolve(&scriptedSource{faces: []int{2}}, "1d", dice.NewDiceSet(1), 0, 1)
	assert.Greater(t, b.ID, a.ID)
}

// TestAppendBonusDice verifies bonus dice continue IDs from the existing
// maximum, chain on success, and are never cancelled.
func TestAppendBonusDice(t *testing.T) {
	src := &scriptedSource{faces: []int{2, 3}}
	roll := dice.Resolve(src, "2d", dice.NewDiceSet(2), 0, 2)
	require.Len(t, roll.Dice, 2)

	// First bonus die explodes once (6 then 4); second stops at 2.
	src.faces = append(src.faces, 6, 4, 2)
	extended, appended := dice.AppendBonusDice(src, roll, 2)

	require.Len(t, appended, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{appended[0].ID, appended[1].ID, appended[2].ID})
	assert.Equal(t, []int{0, 1, 0}, depths(appended))
	for _, d := range appended {
		assert.True(t, d.IsCpDie)
		assert.True(t, d.IsExploding)
		assert.False(t, d.CanExplodeFail, "bonus dice never cancel")
		assert.False(t, d.IsCancelled, "bonus dice are never cancelled")
		require.NotNil(t, d.FinalNumber)
	}

	require.Len(t, extended.Dice, 5)
	assert.Len(t, roll.Dice, 2, "original roll must not be mutated")

	total, err := dice.Score(extended)
	require.NoError(t, err)
	assert.Equal(t, 2+3+6+4+2, total)
}

// TestAppendBonusDice_AfterWildFail verifies bonus dice are immune to a
// prior cancellation: appending to a failed roll cancels nothing new.
func TestAppendBonusDice_AfterWildFail(t *testing.T) {
	src := &scriptedSource{faces: []int{5, 1}}
	roll := dice.Resolve(src, "2d", dice.NewDiceSet(2), 0, 2)

	src.faces = append(src.faces, 4)
	extended, appended := dice.AppendBonusDice(src, roll, 1)

	require.Len(t, appended, 1)
	assert.False(t, appended[0].IsCancelled)

	total, err := dice.Score(extended)
	require.NoError(t, err)
	assert.Equal(t, 4, total, "both original dice cancelled, bonus die counts")
}
