package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/room"
)

// RollRepository provides roll persistence operations. Roll payloads are
// stored as JSONB in the wire format produced by dice.Roll.
type RollRepository struct {
	db *pgxpool.Pool
}

// NewRollRepository creates a RollRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRollRepository(db *pgxpool.Pool) *RollRepository {
	return &RollRepository{db: db}
}

// ListByRoom returns all rolls for the given room, ordered oldest first.
//
// Precondition: roomID must be a valid room UUID.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *RollRepository) ListByRoom(ctx context.Context, roomID string) ([]room.RollRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT room_id, roll_id, user_id, nickname, roll_data, visibility, is_revealed, created_at
		FROM room_rolls WHERE room_id = $1 ORDER BY created_at ASC, roll_id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rolls: %w", err)
	}
	defer rows.Close()

	out := make([]room.RollRow, 0)
	for rows.Next() {
		row, err := scanRollRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Insert persists a roll row. Re-inserting an existing (room, roll) pair is a
// no-op so that retries after a dropped connection stay idempotent.
//
// Precondition: row.RoomID must reference an existing room.
func (r *RollRepository) Insert(ctx context.Context, row room.RollRow) error {
	data, err := json.Marshal(row.Roll)
	if err != nil {
		return fmt.Errorf("encoding roll: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO room_rolls (room_id, roll_id, user_id, nickname, roll_data, visibility, is_revealed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, roll_id) DO NOTHING`,
		row.RoomID, row.RollID, row.UserID, row.Nickname, data, row.Visibility, row.IsRevealed,
	)
	if err != nil {
		return fmt.Errorf("inserting roll: %w", err)
	}
	return nil
}

// UpdateData replaces the stored roll payload, typically after bonus dice are
// appended.
//
// Postcondition: Returns room.ErrRollNotFound when no such roll exists.
func (r *RollRepository) UpdateData(ctx context.Context, roomID string, rollID int64, roll dice.Roll) error {
	data, err := json.Marshal(roll)
	if err != nil {
		return fmt.Errorf("encoding roll: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE room_rolls SET roll_data = $3 WHERE room_id = $1 AND roll_id = $2`,
		roomID, rollID, data,
	)
	if err != nil {
		return fmt.Errorf("updating roll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return room.ErrRollNotFound
	}
	return nil
}

// SetRevealed marks a roll as revealed. The flag only ever transitions to
// true, so repeated calls are idempotent.
//
// Postcondition: Returns room.ErrRollNotFound when no such roll exists.
func (r *RollRepository) SetRevealed(ctx context.Context, roomID string, rollID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE room_rolls SET is_revealed = TRUE WHERE room_id = $1 AND roll_id = $2`,
		roomID, rollID,
	)
	if err != nil {
		return fmt.Errorf("updating reveal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return room.ErrRollNotFound
	}
	return nil
}

// rollByID fetches a single roll row.
//
// Postcondition: Returns room.ErrRollNotFound when no such roll exists.
func (r *RollRepository) rollByID(ctx context.Context, roomID string, rollID int64) (room.RollRow, error) {
	row, err := scanRollRow(r.db.QueryRow(ctx, `
		SELECT room_id, roll_id, user_id, nickname, roll_data, visibility, is_revealed, created_at
		FROM room_rolls WHERE room_id = $1 AND roll_id = $2`,
		roomID, rollID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.RollRow{}, room.ErrRollNotFound
		}
		return room.RollRow{}, err
	}
	return row, nil
}

// scanRollRow maps one result row, decoding the JSONB payload.
func scanRollRow(row pgx.Row) (room.RollRow, error) {
	var (
		out  room.RollRow
		data []byte
	)
	if err := row.Scan(
		&out.RoomID, &out.RollID, &out.UserID, &out.Nickname,
		&data, &out.Visibility, &out.IsRevealed, &out.CreatedAt,
	); err != nil {
		return room.RollRow{}, fmt.Errorf("scanning roll row: %w", err)
	}
	if err := json.Unmarshal(data, &out.Roll); err != nil {
		return room.RollRow{}, fmt.Errorf("decoding roll %d: %w", out.RollID, err)
	}
	return out, nil
}
