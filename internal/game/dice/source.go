package dice

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are cryptographically secure and uniformly
// distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
// Panics with "dice: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Face draws a face value in [1, Sides] from src.
//
// Precondition: src must be non-nil.
func Face(src Source) int {
	return src.Intn(Sides) + 1
}

// Duration draws a cosmetic stop-after duration in
// [RollDurationMin, RollDurationMax] from src.
//
// Precondition: src must be non-nil.
func Duration(src Source) time.Duration {
	span := int(RollDurationMax - RollDurationMin)
	return RollDurationMin + time.Duration(src.Intn(span+1))
}
