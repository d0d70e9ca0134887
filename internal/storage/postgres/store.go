package postgres

import (
	"context"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/room"
)

// Store combines the room and roll repositories behind the room.Store
// contract.
type Store struct {
	rooms *RoomRepository
	rolls *RollRepository
}

// NewStore creates a Store backed by the given pool.
//
// Precondition: pool must be connected.
func NewStore(pool *Pool) *Store {
	db := pool.DB()
	return &Store{
		rooms: NewRoomRepository(db),
		rolls: NewRollRepository(db),
	}
}

// RoomBySlug implements room.Store.
func (s *Store) RoomBySlug(ctx context.Context, slug string) (room.Room, error) {
	return s.rooms.BySlug(ctx, slug)
}

// CreateRoom implements room.Store.
func (s *Store) CreateRoom(ctx context.Context, slug string) (room.Room, error) {
	return s.rooms.Create(ctx, slug)
}

// RollsByRoom implements room.Store.
func (s *Store) RollsByRoom(ctx context.Context, roomID string) ([]room.RollRow, error) {
	return s.rolls.ListByRoom(ctx, roomID)
}

// InsertRoll implements room.Store.
func (s *Store) InsertRoll(ctx context.Context, row room.RollRow) error {
	return s.rolls.Insert(ctx, row)
}

// UpdateRollData implements room.Store.
func (s *Store) UpdateRollData(ctx context.Context, roomID string, rollID int64, roll dice.Roll) error {
	return s.rolls.UpdateData(ctx, roomID, rollID, roll)
}

// SetRevealed implements room.Store.
func (s *Store) SetRevealed(ctx context.Context, roomID string, rollID int64) error {
	return s.rolls.SetRevealed(ctx, roomID, rollID)
}

var _ room.Store = (*Store)(nil)
