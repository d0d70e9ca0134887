package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/game/visibility"
	"github.com/cory-johannsen/dicehall/internal/room"
)

func plainRoll(id int64, faces ...int) dice.Roll {
	ds := make([]dice.Die, len(faces))
	for i, f := range faces {
		face := f
		ds[i] = dice.Die{ID: i, FinalNumber: &face}
	}
	return dice.Roll{
		ID:        id,
		Text:      "test",
		DiceCount: len(faces),
		Date:      time.Now(),
		Dice:      ds,
	}
}

func roomRoll(id int64, author string, vis visibility.Visibility, faces ...int) room.RoomRoll {
	return room.RoomRoll{
		Roll:       plainRoll(id, faces...),
		Nickname:   "Swift Falcon",
		AuthorID:   author,
		Visibility: vis,
		IsRevealed: vis.InitialRevealed(),
	}
}

// TestMergeInsert_Appends verifies a new roll is appended without mutating
// the previous slice.
func TestMergeInsert_Appends(t *testing.T) {
	prev := []room.RoomRoll{roomRoll(1, "a", visibility.Shared, 3)}
	out := room.MergeInsert(prev, roomRoll(2, "b", visibility.Shared, 4))

	require.Len(t, out, 2)
	assert.Len(t, prev, 1, "input must not be mutated")
	assert.Equal(t, int64(2), out[1].ID)
}

// TestMergeInsert_Dedup verifies an echoed insert for an already-present
// roll ID never changes the ledger: the optimistic copy stays authoritative.
func TestMergeInsert_Dedup(t *testing.T) {
	local := roomRoll(7, "me", visibility.Shared, 5)
	local.IsLocal = true
	prev := []room.RoomRoll{local}

	echo := roomRoll(7, "me", visibility.Shared, 5)
	out := room.MergeInsert(prev, echo)

	require.Len(t, out, 1)
	assert.True(t, &prev[0] == &out[0], "dedup must return the same slice")
	assert.True(t, out[0].IsLocal, "the optimistic copy wins")
}

// TestMergeUpdate_DiceGrowth verifies a grown dice array replaces the dice
// and re-animates the roll.
func TestMergeUpdate_DiceGrowth(t *testing.T) {
	prev := []room.RoomRoll{roomRoll(1, "a", visibility.Shared, 3, 4)}

	grown := plainRoll(1, 3, 4, 6)
	out := room.MergeUpdate(prev, room.RollRow{RollID: 1, Roll: grown, IsRevealed: true})

	require.Len(t, out, 1)
	assert.Len(t, out[0].Dice, 3)
	assert.True(t, out[0].ShouldAnimate, "new dice must animate")
	assert.Len(t, prev[0].Dice, 2, "input must not be mutated")
}

// TestMergeUpdate_Reveal verifies a reveal-only change sets the flag and
// stops animation so the final state displays immediately.
func TestMergeUpdate_Reveal(t *testing.T) {
	rr := roomRoll(1, "a", visibility.Secret, 3)
	rr.ShouldAnimate = true
	prev := []room.RoomRoll{rr}

	out := room.MergeUpdate(prev, room.RollRow{RollID: 1, Roll: rr.Roll, IsRevealed: true})

	require.Len(t, out, 1)
	assert.True(t, out[0].IsRevealed)
	assert.False(t, out[0].ShouldAnimate)
	assert.Equal(t, visibility.Secret, out[0].Visibility,
		"reveal never rewrites the stored visibility")
}

// TestMergeUpdate_NoChange verifies the same slice is returned when nothing
// observable changed, preserving identity for downstream re-render checks.
func TestMergeUpdate_NoChange(t *testing.T) {
	rr := roomRoll(1, "a", visibility.Shared, 3)
	prev := []room.RoomRoll{rr}

	out := room.MergeUpdate(prev, room.RollRow{RollID: 1, Roll: rr.Roll, IsRevealed: rr.IsRevealed})
	assert.True(t, &prev[0] == &out[0], "no-op update must return the same slice")

	out = room.MergeUpdate(prev, room.RollRow{RollID: 99, Roll: rr.Roll})
	assert.True(t, &prev[0] == &out[0], "unknown roll ID must return the same slice")
}

// TestMergeReveal verifies owner-only, monotonic, idempotent reveal
// semantics on the optimistic copy.
func TestMergeReveal(t *testing.T) {
	rr := roomRoll(1, "me", visibility.Secret, 3)
	rr.ShouldAnimate = true
	prev := []room.RoomRoll{rr}

	merged, revealed, err := room.MergeReveal(prev, 1, "me")
	require.NoError(t, err)
	assert.True(t, revealed.IsRevealed)
	assert.False(t, revealed.ShouldAnimate, "own reveal stops animation")
	assert.False(t, prev[0].IsRevealed, "input must not be mutated")

	again, _, err := room.MergeReveal(merged, 1, "me")
	require.NoError(t, err)
	assert.Equal(t, merged, again, "revealing twice equals revealing once")

	_, _, err = room.MergeReveal(prev, 1, "someone-else")
	assert.ErrorIs(t, err, room.ErrNotRollOwner)

	_, _, err = room.MergeReveal(prev, 42, "me")
	assert.ErrorIs(t, err, room.ErrRollNotFound)
}

// TestMergeHistory verifies refetched history wins while unpersisted local
// rolls survive a resynchronization.
func TestMergeHistory(t *testing.T) {
	missedRemote := roomRoll(2, "b", visibility.Shared, 4)
	history := []room.RoomRoll{roomRoll(1, "a", visibility.Shared, 3), missedRemote}

	unpersisted := roomRoll(3, "me", visibility.Shared, 5)
	unpersisted.IsLocal = true
	current := []room.RoomRoll{roomRoll(1, "a", visibility.Shared, 3), unpersisted}

	out := room.MergeHistory(history, current)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(2), out[1].ID, "missed remote roll recovered")
	assert.Equal(t, int64(3), out[2].ID, "unpersisted local roll kept")
}

// TestFlattenPresence verifies a multi-valued snapshot flattens into one
// deterministic list.
func TestFlattenPresence(t *testing.T) {
	at := time.Now()
	state := map[string][]room.PresenceUser{
		"conn-b": {{Nickname: "Bronze Wolf", OnlineAt: at}},
		"conn-a": {{Nickname: "Swift Falcon", OnlineAt: at}, {Nickname: "Swift Falcon", OnlineAt: at}},
	}
	users := room.FlattenPresence(state)
	require.Len(t, users, 3)
	assert.Equal(t, "Swift Falcon", users[0].Nickname, "keys are visited in sorted order")
	assert.Equal(t, "Bronze Wolf", users[2].Nickname)
}

// TestMergeInsert_Property verifies inserting the same roll any number of
// times leaves exactly one copy and never reorders the ledger.
func TestMergeInsert_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOfN(rapid.Int64Range(1, 20), 0, 30).Draw(rt, "ids")

		var rolls []room.RoomRoll
		for _, id := range ids {
			rolls = room.MergeInsert(rolls, roomRoll(id, "a", visibility.Shared, 3))
		}

		seen := map[int64]int{}
		for _, r := range rolls {
			seen[r.ID]++
		}
		for id, n := range seen {
			assert.Equal(rt, 1, n, "roll %d duplicated", id)
		}

		unique := map[int64]bool{}
		for _, id := range ids {
			unique[id] = true
		}
		assert.Len(rt, rolls, len(unique))
	})
}
