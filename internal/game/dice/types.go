// Package dice provides the roll resolution engine: exploding d6 pools with
// a single wild die, failure-driven cancellation, and character-point bonus
// dice appended to an already-resolved roll.
package dice

import (
	"encoding/json"
	"sync"
	"time"
)

// Game constants for the six-sided exploding pool.
const (
	// Sides is the number of faces on every die in a pool.
	Sides = 6
	// SuccessValue triggers an explosion chain when rolled on a die that
	// can explode on success.
	SuccessValue = 6
	// FailValue triggers cancellation when rolled on the wild die.
	FailValue = 1
	// MaxChainLength bounds a single explosion chain. The probability of
	// reaching the cap is (1/6)^100; the cap exists so a broken Source
	// cannot loop forever.
	MaxChainLength = 100
)

// Display timing bounds for the cosmetic stop-after duration. The engine
// assigns the duration but never sleeps on it; outcomes are fixed at
// resolution time.
const (
	RollDurationMin = 500 * time.Millisecond
	RollDurationMax = 1500 * time.Millisecond
)

// Die is a single resolved (or to-be-resolved) die within a roll.
//
// Invariant: FinalNumber is assigned exactly once, during resolution, and is
// never recomputed. ChainDepth is nil for plain dice, 0 for a die that can
// start a chain (the wild die or a bonus die), and >= 1 for dice spawned by
// a chain.
type Die struct {
	// ID is unique within a Roll and monotonically assigned.
	ID int
	// FinalNumber is the resolved face value, nil until resolution.
	FinalNumber *int
	// IsExploding marks dice that participate in explosion chains: the
	// wild die, every chain-spawned die, and every bonus die.
	IsExploding bool
	// CanExplodeSucceed means rolling SuccessValue spawns a chain die.
	CanExplodeSucceed bool
	// CanExplodeFail means rolling FailValue cancels dice. Only a die from
	// the original wild-die set may carry this flag.
	CanExplodeFail bool
	// IsCancelled zeroes the die's contribution to the score. Only set on
	// non-exploding, non-bonus dice by the cancellation rule, or on the
	// wild die itself when it rolls FailValue.
	IsCancelled bool
	// IsCpDie marks character-point bonus dice appended after resolution.
	IsCpDie bool
	// ChainDepth is the die's position in an explosion chain.
	ChainDepth *int
	// StopAfter is the cosmetic display duration before the die settles.
	StopAfter time.Duration
}

// Face returns the resolved face value, or 0 when the die is unresolved.
func (d Die) Face() int {
	if d.FinalNumber == nil {
		return 0
	}
	return *d.FinalNumber
}

// dieJSON is the wire shape of a Die inside persisted roll_data. Field names
// and the millisecond stopAfter encoding match the stored rows.
type dieJSON struct {
	ID                int    `json:"id"`
	FinalNumber       *int   `json:"finalNumber,omitempty"`
	IsExploding       bool   `json:"isExploding,omitempty"`
	CanExplodeSucceed bool   `json:"canExplodeSucceed,omitempty"`
	CanExplodeFail    bool   `json:"canExplodeFail,omitempty"`
	IsCancelled       bool   `json:"isCancelled,omitempty"`
	IsCpDie           bool   `json:"isCpDie,omitempty"`
	ChainDepth        *int   `json:"chainDepth,omitempty"`
	StopAfter         *int64 `json:"stopAfter,omitempty"`
}

// MarshalJSON encodes the die with StopAfter in whole milliseconds.
func (d Die) MarshalJSON() ([]byte, error) {
	j := dieJSON{
		ID:                d.ID,
		FinalNumber:       d.FinalNumber,
		IsExploding:       d.IsExploding,
		CanExplodeSucceed: d.CanExplodeSucceed,
		CanExplodeFail:    d.CanExplodeFail,
		IsCancelled:       d.IsCancelled,
		IsCpDie:           d.IsCpDie,
		ChainDepth:        d.ChainDepth,
	}
	if d.StopAfter > 0 {
		ms := d.StopAfter.Milliseconds()
		j.StopAfter = &ms
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes the millisecond stopAfter back into a Duration.
func (d *Die) UnmarshalJSON(data []byte) error {
	var j dieJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	d.ID = j.ID
	d.FinalNumber = j.FinalNumber
	d.IsExploding = j.IsExploding
	d.CanExplodeSucceed = j.CanExplodeSucceed
	d.CanExplodeFail = j.CanExplodeFail
	d.IsCancelled = j.IsCancelled
	d.IsCpDie = j.IsCpDie
	d.ChainDepth = j.ChainDepth
	d.StopAfter = 0
	if j.StopAfter != nil {
		d.StopAfter = time.Duration(*j.StopAfter) * time.Millisecond
	}
	return nil
}

// Roll is a fully resolved set of dice plus the notation that produced it.
//
// Invariant: Dice is append-only during resolution; ordering encodes
// resolution order (each initial die followed by its chain, then bonus dice).
type Roll struct {
	// ID is the creation timestamp in unix milliseconds, bumped to stay
	// process-unique when two rolls land in the same millisecond.
	ID int64 `json:"id"`
	// Text is the original notation, e.g. "3d+2".
	Text string `json:"text"`
	// DiceCount is the number of initial dice before chain expansion.
	DiceCount int `json:"diceCount"`
	// Modifier is the flat bonus added to the score (never negative).
	Modifier int `json:"modifier"`
	// Date is when the roll was created.
	Date time.Time `json:"date"`
	// Dice is the ordered resolved die sequence.
	Dice []Die `json:"dice"`
}

// MaxDieID returns the highest die ID in the roll, or -1 when empty.
func (r Roll) MaxDieID() int {
	maxID := -1
	for _, d := range r.Dice {
		if d.ID > maxID {
			maxID = d.ID
		}
	}
	return maxID
}

// Resolved reports whether every die in the roll has a final number.
func (r Roll) Resolved() bool {
	for _, d := range r.Dice {
		if d.FinalNumber == nil {
			return false
		}
	}
	return true
}

var (
	rollIDMu   sync.Mutex
	lastRollID int64
)

// nextRollID returns the unix-millisecond timestamp for now, bumped past the
// previously issued ID so concurrent rolls never collide within a process.
func nextRollID(now time.Time) int64 {
	rollIDMu.Lock()
	defer rollIDMu.Unlock()
	id := now.UnixMilli()
	if id <= lastRollID {
		id = lastRollID + 1
	}
	lastRollID = id
	return id
}

func intPtr(n int) *int { return &n }
