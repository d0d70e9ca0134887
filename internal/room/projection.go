package room

import "github.com/cory-johannsen/dicehall/internal/game/visibility"

// LedgerEntry is one viewer-facing ledger line: the roll as this viewer may
// see it, plus the disclosure level that produced it.
type LedgerEntry struct {
	RoomRoll
	Disclosure visibility.Disclosure
}

// ProjectLedger applies the visibility rules to a merged roll sequence for
// one viewer. Hidden unrevealed foreign rolls are excluded entirely; secret
// unrevealed foreign rolls keep only their identity and nickname (notation,
// dice, and modifier are withheld).
//
// Postcondition: Entries preserve the input order; no entry with
// DisclosureOmitted is ever returned.
func ProjectLedger(rolls []RoomRoll) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(rolls))
	for _, r := range rolls {
		d := visibility.View(r.Visibility, r.IsRevealed, r.IsLocal)
		if d == visibility.DisclosureOmitted {
			continue
		}
		entry := LedgerEntry{RoomRoll: r, Disclosure: d}
		if d == visibility.DisclosurePlaceholder {
			entry.Text = ""
			entry.Dice = nil
			entry.Modifier = 0
			entry.DiceCount = 0
		}
		out = append(out, entry)
	}
	return out
}

// Ledger returns the viewer-facing projection of the session's current
// rolls.
func (s *Session) Ledger() []LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ProjectLedger(s.rolls)
}
