package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/dicehall/internal/room"
)

// RoomRepository provides room persistence operations.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// BySlug retrieves a room by its slug.
//
// Precondition: slug must be non-empty.
// Postcondition: Returns the Room or room.ErrRoomNotFound.
func (r *RoomRepository) BySlug(ctx context.Context, slug string) (room.Room, error) {
	var rm room.Room
	err := r.db.QueryRow(ctx,
		`SELECT id, slug FROM rooms WHERE slug = $1`,
		slug,
	).Scan(&rm.ID, &rm.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.Room{}, room.ErrRoomNotFound
		}
		return room.Room{}, fmt.Errorf("querying room: %w", err)
	}
	return rm, nil
}

// Create inserts a new room with the given slug.
//
// Precondition: slug must be non-empty.
// Postcondition: Returns the created Room with ID set, or room.ErrRoomExists
// when another client created the slug first.
func (r *RoomRepository) Create(ctx context.Context, slug string) (room.Room, error) {
	var rm room.Room
	err := r.db.QueryRow(ctx,
		`INSERT INTO rooms (slug) VALUES ($1) RETURNING id, slug`,
		slug,
	).Scan(&rm.ID, &rm.Slug)
	if err != nil {
		if isDuplicateKeyError(err) {
			return room.Room{}, room.ErrRoomExists
		}
		return room.Room{}, fmt.Errorf("inserting room: %w", err)
	}
	return rm, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
