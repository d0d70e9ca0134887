package room_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/dicehall/internal/game/visibility"
	"github.com/cory-johannsen/dicehall/internal/room"
)

// TestProjectLedger covers the viewer-side projection: shared rolls are
// fully visible, foreign secret rolls become placeholders, foreign hidden
// rolls vanish, and reveal or ownership restores full disclosure.
func TestProjectLedger(t *testing.T) {
	shared := roomRoll(1, "a", visibility.Shared, 3)

	secretForeign := roomRoll(2, "b", visibility.Secret, 4)

	secretOwn := roomRoll(3, "me", visibility.Secret, 5)
	secretOwn.IsLocal = true

	hiddenForeign := roomRoll(4, "b", visibility.Hidden, 6)

	hiddenRevealed := roomRoll(5, "b", visibility.Hidden, 2)
	hiddenRevealed.IsRevealed = true

	rolls := []room.RoomRoll{shared, secretForeign, secretOwn, hiddenForeign, hiddenRevealed}
	entries := room.ProjectLedger(rolls)

	require.Len(t, entries, 4, "hidden unrevealed foreign roll must be omitted")

	assert.Equal(t, visibility.DisclosureFull, entries[0].Disclosure)
	assert.Equal(t, "test", entries[0].Text)

	assert.Equal(t, visibility.DisclosurePlaceholder, entries[1].Disclosure)
	assert.Empty(t, entries[1].Text, "secret roll withholds notation")
	assert.Empty(t, entries[1].Dice, "secret roll withholds dice")
	assert.Equal(t, "Swift Falcon", entries[1].Nickname, "placeholder keeps the roller's name")
	assert.Equal(t, int64(2), entries[1].ID)

	assert.Equal(t, visibility.DisclosureFull, entries[2].Disclosure, "own secret roll is fully visible")
	assert.Equal(t, visibility.DisclosureFull, entries[3].Disclosure, "revealed hidden roll is fully visible")
	assert.Equal(t, int64(5), entries[3].ID)
}

// TestProjectLedger_RevealTransition verifies the before/after pair from
// the reveal flow: the same hidden roll absent before reveal and fully
// present after.
func TestProjectLedger_RevealTransition(t *testing.T) {
	hidden := roomRoll(9, "b", visibility.Hidden, 4)
	before := room.ProjectLedger([]room.RoomRoll{hidden})
	assert.Empty(t, before)

	revealed := hidden
	revealed.IsRevealed = true
	after := room.ProjectLedger([]room.RoomRoll{revealed})
	require.Len(t, after, 1)
	assert.Equal(t, visibility.DisclosureFull, after[0].Disclosure)
	assert.Equal(t, "test", after[0].Text)
}
