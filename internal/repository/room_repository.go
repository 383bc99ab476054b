package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/havenops/shelter-occupancy/internal/model"
)

// RoomRepo reads the room catalog.  Rooms are created and retired by
// shelter administration outside this service, so the repository exposes
// lookups only.  LockByIDTx additionally takes a row lock so that one
// assignment per room proceeds at a time.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *RoomRepo) DB() *sql.DB { return r.db }

const roomColumns = `id, name, category, beds, daily_rate_cents, is_active, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	var rm model.Room
	var rate sql.NullInt64
	if err := row.Scan(&rm.ID, &rm.Name, &rm.Category, &rm.Beds, &rate, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return nil, err
	}
	if rate.Valid {
		c := uint32(rate.Int64)
		rm.DailyRateCents = &c
	}
	return &rm, nil
}

// GetByID returns a room by id, or ErrRoomNotFound when no such row exists.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	rm, err := scanRoom(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rm, nil
}

// LockByIDTx loads a room inside the given transaction with a FOR UPDATE
// row lock.  Two concurrent assignments for the same room serialize on this
// lock, so the overlap check and the insert that follow observe a stable
// set of stays.  Returns ErrRoomNotFound when the room does not exist.
func (r *RoomRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? FOR UPDATE`
	rm, err := scanRoom(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rm, nil
}

// List returns rooms ordered by name.  category filters to one category
// when non-empty; activeOnly restricts to rooms accepting assignments.
func (r *RoomRepo) List(ctx context.Context, category string, activeOnly bool) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE 1=1`
	args := make([]any, 0, 2)
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Room, 0)
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
