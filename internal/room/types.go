// Package room implements the client-side room synchronization session:
// joining a shared room, reconciling local optimistic rolls against the
// store's change feed, tracking presence, and recovering from dropped
// connections.
package room

import (
	"time"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/game/visibility"
)

// Room identifies a shared session: an opaque store key plus the
// human-readable slug participants join by.
type Room struct {
	ID   string
	Slug string
}

// Status is the session's connection state.
type Status string

// Connection states. Reconnecting is a transient indicator, not an error.
const (
	StatusDisconnected Status = "disconnected"
	StatusJoining      Status = "joining"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// RoomRoll is a resolved roll plus its multiplayer metadata.
//
// Invariant: IsRevealed never transitions true to false. A revealed roll is
// displayed as shared, but Visibility itself never changes.
type RoomRoll struct {
	dice.Roll
	// Nickname is the roller's display name at broadcast time.
	Nickname string
	// AuthorID is the roller's stored identity; IsLocal derives from it.
	AuthorID string
	// IsLocal is true when this client made the roll. Derived per viewer,
	// never persisted as true globally.
	IsLocal bool
	// ShouldAnimate is ephemeral: false once this viewer has already seen
	// the roll resolve. History loads never animate.
	ShouldAnimate bool
	// Visibility is the roller-chosen audience.
	Visibility visibility.Visibility
	// IsRevealed is the one-way disclosure flag for secret/hidden rolls.
	IsRevealed bool
}

// PresenceUser is an ephemeral "who is here" record, re-broadcast on
// (re)connect and nickname changes, never persisted.
type PresenceUser struct {
	Nickname string    `json:"nickname"`
	OnlineAt time.Time `json:"online_at"`
}
