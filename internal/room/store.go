package room

import (
	"context"
	"errors"
	"time"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
)

// Store errors shared by every backend implementation.
var (
	// ErrRoomNotFound is returned when a slug lookup yields no room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a slug another client
	// created concurrently.
	ErrRoomExists = errors.New("room already exists")
	// ErrRollNotFound is returned when a roll update targets an unknown
	// (room_id, roll_id) pair.
	ErrRollNotFound = errors.New("roll not found")
)

// Session errors.
var (
	// ErrNotConfigured is returned when no backend is configured; room
	// features degrade to solo mode.
	ErrNotConfigured = errors.New("room backend not configured")
	// ErrNotInRoom is returned when an operation requires a joined room.
	ErrNotInRoom = errors.New("not in a room")
	// ErrNotRollOwner is returned when revealing a roll made by someone
	// else.
	ErrNotRollOwner = errors.New("only the roller may reveal a roll")
)

// RollRow is the persisted shape of a room roll.
type RollRow struct {
	RoomID     string
	RollID     int64
	UserID     string
	Nickname   string
	Roll       dice.Roll
	Visibility string
	IsRevealed bool
	CreatedAt  time.Time
}

// Store is the row-level persistence collaborator. Implementations must make
// CreateRoom insert-if-absent and report the race with ErrRoomExists.
type Store interface {
	// RoomBySlug looks up a room by slug, returning ErrRoomNotFound when
	// absent.
	RoomBySlug(ctx context.Context, slug string) (Room, error)
	// CreateRoom inserts a room row for slug, returning ErrRoomExists if
	// another client created it first.
	CreateRoom(ctx context.Context, slug string) (Room, error)
	// RollsByRoom returns every roll row for the room ordered by creation
	// time ascending.
	RollsByRoom(ctx context.Context, roomID string) ([]RollRow, error)
	// InsertRoll persists a new roll row.
	InsertRoll(ctx context.Context, row RollRow) error
	// UpdateRollData replaces a roll's dice payload (bonus-dice append).
	UpdateRollData(ctx context.Context, roomID string, rollID int64, roll dice.Roll) error
	// SetRevealed flips a roll's reveal flag to true.
	SetRevealed(ctx context.Context, roomID string, rollID int64) error
}

// FeedEvent is a change-feed message. Delivery is at-least-once with no
// ordering guarantee across event types; the session's merge reducers are
// idempotent to compensate.
type FeedEvent interface {
	feedEvent()
}

// RollInserted announces a newly persisted roll row.
type RollInserted struct {
	Row RollRow
}

// RollUpdated announces a changed roll row (bonus dice or reveal).
type RollUpdated struct {
	Row RollRow
}

// FeedDown reports a broken subscription; the session enters its reconnect
// flow.
type FeedDown struct {
	Err error
}

func (RollInserted) feedEvent() {}
func (RollUpdated) feedEvent()  {}
func (FeedDown) feedEvent()     {}

// Subscription is one live change feed scoped to a room.
type Subscription interface {
	// Events returns the inbound event channel. The channel closes when
	// the subscription is torn down.
	Events() <-chan FeedEvent
	// Close tears down the subscription.
	Close() error
}

// Feed is the change-notification collaborator.
type Feed interface {
	// Subscribe opens a change subscription for the room's rolls.
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
}

// PresenceChannel is one live presence membership.
type PresenceChannel interface {
	// Track publishes this client's presence record, replacing any
	// previous record for the same connection key.
	Track(ctx context.Context, user PresenceUser) error
	// Sync delivers full presence snapshots, not increments.
	Sync() <-chan []PresenceUser
	// Leave withdraws this client's record and tears the channel down.
	Leave(ctx context.Context) error
}

// Presence is the ephemeral who-is-here collaborator.
type Presence interface {
	// Join opens the presence channel for a room under this client's
	// connection key.
	Join(ctx context.Context, roomID, key string) (PresenceChannel, error)
}
