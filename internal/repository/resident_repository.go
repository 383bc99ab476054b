package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/havenops/shelter-occupancy/internal/model"
)

// ResidentRepo reads the resident catalog.  Intake and profile management
// happen outside this service; allocation only needs to confirm identity.
type ResidentRepo struct {
	db *sql.DB
}

// NewResidentRepo returns a ResidentRepo bound to the given database.
func NewResidentRepo(db *sql.DB) *ResidentRepo { return &ResidentRepo{db: db} }

// GetByID returns a resident by id, or ErrResidentNotFound when no such
// row exists.
func (r *ResidentRepo) GetByID(ctx context.Context, id uint64) (*model.Resident, error) {
	const q = `SELECT id, full_name, created_at FROM residents WHERE id = ?`
	var res model.Resident
	err := r.db.QueryRowContext(ctx, q, id).Scan(&res.ID, &res.FullName, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResidentNotFound
		}
		return nil, err
	}
	return &res, nil
}
