// Package solo persists the local roll history when no room backend is
// configured.
package solo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

// Ledger is a JSON-file-backed history of resolved rolls. All methods are
// safe for concurrent use.
type Ledger struct {
	path       string
	maxEntries int
	logger     *zap.Logger

	mu    sync.Mutex
	rolls []dice.Roll
}

// NewLedger creates a Ledger persisting to path. maxEntries bounds the
// history; zero means unbounded.
//
// Precondition: logger must be non-nil.
func NewLedger(path string, maxEntries int, logger *zap.Logger) *Ledger {
	return &Ledger{path: path, maxEntries: maxEntries, logger: logger}
}

// Load reads the persisted history. A missing file yields an empty ledger.
// Rolls containing a die with no final number are dropped: they cannot be
// scored and would poison every later projection.
func (l *Ledger) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading roll ledger %s: %w", l.path, err)
	}

	var rolls []dice.Roll
	if err := json.Unmarshal(data, &rolls); err != nil {
		return fmt.Errorf("decoding roll ledger %s: %w", l.path, err)
	}

	kept := rolls[:0]
	for _, r := range rolls {
		if !r.Resolved() {
			l.logger.Warn("dropping unresolved roll from ledger", zap.Int64("roll_id", r.ID))
			continue
		}
		kept = append(kept, r)
	}

	l.mu.Lock()
	l.rolls = kept
	l.mu.Unlock()
	return nil
}

// Append records a resolved roll and persists the ledger.
//
// Postcondition: Returns dice.ErrUnresolvedDie when any die has no final
// number; the ledger is unchanged in that case.
func (l *Ledger) Append(roll dice.Roll) error {
	if !roll.Resolved() {
		return dice.ErrUnresolvedDie
	}

	l.mu.Lock()
	l.rolls = append(l.rolls, roll)
	if l.maxEntries > 0 && len(l.rolls) > l.maxEntries {
		overflow := len(l.rolls) - l.maxEntries
		l.rolls = append([]dice.Roll(nil), l.rolls[overflow:]...)
	}
	l.mu.Unlock()

	return l.Save()
}

// Rolls returns a snapshot of the history, oldest first.
func (l *Ledger) Rolls() []dice.Roll {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]dice.Roll, len(l.rolls))
	copy(out, l.rolls)
	return out
}

// Save writes the current history to disk, creating parent directories as
// needed.
func (l *Ledger) Save() error {
	l.mu.Lock()
	rolls := make([]dice.Roll, len(l.rolls))
	copy(rolls, l.rolls)
	l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	data, err := json.Marshal(rolls)
	if err != nil {
		return fmt.Errorf("encoding roll ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return fmt.Errorf("writing roll ledger %s: %w", l.path, err)
	}
	return nil
}
