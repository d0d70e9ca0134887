package room

import "sort"

// Pure merge reducers. Every change-feed message and optimistic local action
// flows through one of these, so the async boundary stays thin and the merge
// logic is synchronously testable. None of them mutate their input.

// MergeInsert appends incoming to prev unless a roll with the same ID is
// already present, in which case prev is returned unchanged. The dedup makes
// the local optimistic copy authoritative when the store later echoes this
// client's own insert.
func MergeInsert(prev []RoomRoll, incoming RoomRoll) []RoomRoll {
	for _, r := range prev {
		if r.ID == incoming.ID {
			return prev
		}
	}
	out := make([]RoomRoll, 0, len(prev)+1)
	out = append(out, prev...)
	return append(out, incoming)
}

// MergeUpdate applies an update event to the roll matching row.RollID.
//
// A grown dice array is a bonus-dice append: the dice are replaced and the
// roll animates again. Otherwise a changed reveal flag is applied; a freshly
// revealed roll stops animating so its final state displays immediately.
// When nothing observable changed (or the roll is unknown) the same slice is
// returned, preserving identity so downstream consumers can skip re-renders.
func MergeUpdate(prev []RoomRoll, row RollRow) []RoomRoll {
	for i, r := range prev {
		if r.ID != row.RollID {
			continue
		}

		grew := len(row.Roll.Dice) > len(r.Dice)
		revealChanged := row.IsRevealed != r.IsRevealed
		if !grew && !revealChanged {
			return prev
		}

		updated := r
		if grew {
			updated.Dice = row.Roll.Dice
			updated.ShouldAnimate = true
		} else {
			updated.IsRevealed = row.IsRevealed
			if row.IsRevealed {
				updated.ShouldAnimate = false
			}
		}

		out := make([]RoomRoll, len(prev))
		copy(out, prev)
		out[i] = updated
		return out
	}
	return prev
}

// MergeReveal applies this client's own reveal to its optimistic copy:
// monotonic, idempotent, and owner-only. It returns the merged slice, the
// revealed roll, and whether the roll was found and owned by userID.
func MergeReveal(prev []RoomRoll, rollID int64, userID string) ([]RoomRoll, RoomRoll, error) {
	for i, r := range prev {
		if r.ID != rollID {
			continue
		}
		if r.AuthorID != userID {
			return prev, RoomRoll{}, ErrNotRollOwner
		}
		if r.IsRevealed && !r.ShouldAnimate {
			return prev, r, nil
		}
		updated := r
		updated.IsRevealed = true
		updated.ShouldAnimate = false
		out := make([]RoomRoll, len(prev))
		copy(out, prev)
		out[i] = updated
		return out, updated, nil
	}
	return prev, RoomRoll{}, ErrRollNotFound
}

// MergeHistory reconciles a freshly fetched history against the current
// slice after a reconnect. History rows win (they recover inserts and
// updates missed while disconnected); current rolls absent from history —
// this client's optimistic copies whose persist has not landed — are kept,
// appended after the history in their original relative order.
func MergeHistory(history, current []RoomRoll) []RoomRoll {
	seen := make(map[int64]bool, len(history))
	out := make([]RoomRoll, 0, len(history)+len(current))
	out = append(out, history...)
	for _, r := range history {
		seen[r.ID] = true
	}
	for _, r := range current {
		if !seen[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// FlattenPresence flattens a full presence snapshot, multi-valued per
// connection key, into a single user list. Keys are visited in sorted order
// so snapshots render deterministically.
func FlattenPresence(state map[string][]PresenceUser) []PresenceUser {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var users []PresenceUser
	for _, k := range keys {
		users = append(users, state[k]...)
	}
	return users
}
