// Package identity manages the stable anonymous client identity: a persisted
// UUID plus generated display names and room slugs.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

// Identity is the client's persisted anonymous identity. The ID never changes
// once created; stored rolls whose author matches it belong to this client.
type Identity struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// LoadOrCreate reads the identity file at path, creating a fresh identity
// with a random UUID and generated nickname when none exists.
//
// Postcondition: The returned Identity has a non-empty ID and Nickname; a
// newly created identity is persisted before returning.
func LoadOrCreate(path string, src dice.Source) (Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err != nil {
			return Identity{}, fmt.Errorf("decoding identity file %s: %w", path, err)
		}
		if id.ID == "" {
			return Identity{}, fmt.Errorf("identity file %s has no id", path)
		}
		if id.Nickname == "" {
			id.Nickname = GenerateNickname(src)
		}
		return id, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Identity{}, fmt.Errorf("reading identity file %s: %w", path, err)
	}

	id := Identity{
		ID:       uuid.NewString(),
		Nickname: GenerateNickname(src),
	}
	if err := id.Save(path); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Save writes the identity to path, creating parent directories as needed.
func (id Identity) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating identity directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing identity file %s: %w", path, err)
	}
	return nil
}
