package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
)

// StayRepo provides data access for the stays table, the one table this
// service owns.  Methods suffixed Tx operate inside a caller-provided
// transaction; the caller commits or rolls back.  Mutating queries touch
// only active rows, so closed stays stay immutable at the SQL level as
// well.  All dates are UTC calendar dates.
type StayRepo struct {
	db *sql.DB
}

// NewStayRepo returns a StayRepo bound to the given database.
func NewStayRepo(db *sql.DB) *StayRepo { return &StayRepo{db: db} }

// DB exposes the underlying sql.DB for transaction control.
func (r *StayRepo) DB() *sql.DB { return r.db }

const stayColumns = `id, room_id, resident_id, start_date, end_date, active, payment_mode,
       daily_rate_cents, total_amount_cents, created_by, created_at, updated_at`

func scanStay(row interface{ Scan(...any) error }) (*model.Stay, error) {
	var s model.Stay
	var end sql.NullTime
	var rate, total sql.NullInt64
	if err := row.Scan(&s.ID, &s.RoomID, &s.ResidentID, &s.StartDate, &end, &s.Active,
		&s.PaymentMode, &rate, &total, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StartDate = interval.Normalize(s.StartDate)
	if end.Valid {
		e := interval.Normalize(end.Time)
		s.EndDate = &e
	}
	if rate.Valid {
		c := uint32(rate.Int64)
		s.DailyRateCents = &c
	}
	if total.Valid {
		c := uint32(total.Int64)
		s.TotalAmountCents = &c
	}
	return &s, nil
}

func dateArg(t time.Time) string { return t.Format(interval.DateLayout) }

func nullableDateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

func nullableCentsArg(c *uint32) any {
	if c == nil {
		return nil
	}
	return *c
}

// CreateTx inserts a new open stay within the given transaction, then reads
// the row back to populate the generated id and DB-default timestamps on
// the provided struct.
func (r *StayRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Stay) error {
	const q = `INSERT INTO stays (room_id, resident_id, start_date, end_date, active, payment_mode,
               daily_rate_cents, total_amount_cents, created_by)
               VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.RoomID, s.ResidentID, dateArg(s.StartDate),
		nullableDateArg(s.EndDate), s.PaymentMode, nullableCentsArg(s.DailyRateCents),
		nullableCentsArg(s.TotalAmountCents), s.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + stayColumns + ` FROM stays WHERE id = ?`
	created, err := scanStay(tx.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetByID returns a stay by id regardless of its active flag, or
// ErrStayNotFound when no such row exists.
func (r *StayRepo) GetByID(ctx context.Context, id uint64) (*model.Stay, error) {
	const q = `SELECT ` + stayColumns + ` FROM stays WHERE id = ?`
	s, err := scanStay(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStayNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetActiveByIDTx loads an active stay with a FOR UPDATE row lock.  Closed
// stays are invisible to this query, which is what makes release and edits
// of released stays fail with ErrStayNotFound instead of mutating history.
func (r *StayRepo) GetActiveByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Stay, error) {
	const q = `SELECT ` + stayColumns + ` FROM stays WHERE id = ? AND active = 1 FOR UPDATE`
	s, err := scanStay(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStayNotFound
		}
		return nil, err
	}
	return s, nil
}

// FindOverlappingForRoomTx returns the active stays of a room whose dates
// overlap the interval [start, end], treating a nil end as unbounded: an
// open-ended request conflicts with anything from its start on, and an
// existing open-ended stay blocks every future date until released.
// excludeID skips one stay so an edit does not conflict with itself; pass
// zero to check all.  Rows are locked FOR UPDATE so the caller's insert or
// update commits against the same set it checked.
func (r *StayRepo) FindOverlappingForRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64, start time.Time, end *time.Time, excludeID uint64) ([]model.Stay, error) {
	q := `SELECT ` + stayColumns + ` FROM stays
          WHERE room_id = ? AND active = 1
            AND (end_date IS NULL OR end_date >= ?)`
	args := []any{roomID, dateArg(start)}
	if end != nil {
		q += ` AND start_date <= ?`
		args = append(args, dateArg(*end))
	}
	if excludeID != 0 {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	q += ` ORDER BY start_date ASC FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overlaps []model.Stay
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		overlaps = append(overlaps, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// ActiveByResidentTx returns all active stays of a resident, locked FOR
// UPDATE.  Locking the index range keeps a concurrent assignment for the
// same resident from inserting a second active stay between this check and
// the caller's insert.
func (r *StayRepo) ActiveByResidentTx(ctx context.Context, tx *sql.Tx, residentID uint64) ([]model.Stay, error) {
	const q = `SELECT ` + stayColumns + ` FROM stays
               WHERE resident_id = ? AND active = 1 FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, residentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stays []model.Stay
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		stays = append(stays, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stays, nil
}

// ListActive returns every active stay ordered by room then start date.
// The conflict detector works off this snapshot.
func (r *StayRepo) ListActive(ctx context.Context) ([]model.Stay, error) {
	const q = `SELECT ` + stayColumns + ` FROM stays
               WHERE active = 1
               ORDER BY room_id ASC, start_date ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stays := make([]model.Stay, 0)
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		stays = append(stays, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stays, nil
}

// ListIntersecting returns all stays, active or historical, whose dates
// intersect the window [winStart, winEnd].  roomID filters to one room when
// non-zero; category filters via the rooms table when non-empty.  Results
// feed the occupancy report only and take no locks.
func (r *StayRepo) ListIntersecting(ctx context.Context, winStart, winEnd time.Time, roomID uint64, category string) ([]model.Stay, error) {
	q := `SELECT s.id, s.room_id, s.resident_id, s.start_date, s.end_date, s.active, s.payment_mode,
                 s.daily_rate_cents, s.total_amount_cents, s.created_by, s.created_at, s.updated_at
          FROM stays s`
	args := make([]any, 0, 4)
	if category != "" {
		q += ` JOIN rooms rm ON rm.id = s.room_id`
	}
	q += ` WHERE s.start_date <= ? AND (s.end_date IS NULL OR s.end_date >= ?)`
	args = append(args, dateArg(winEnd), dateArg(winStart))
	if roomID != 0 {
		q += ` AND s.room_id = ?`
		args = append(args, roomID)
	}
	if category != "" {
		q += ` AND rm.category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY s.room_id ASC, s.start_date ASC, s.id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stays := make([]model.Stay, 0)
	for rows.Next() {
		s, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		stays = append(stays, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stays, nil
}

// CloseTx ends an active stay: freezes end_date, clears the active flag and
// stores the final amount.  Affecting zero rows means the stay does not
// exist or is already closed; both map to ErrStayNotFound.
func (r *StayRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, end time.Time, totalCents *uint32) error {
	const q = `UPDATE stays
               SET end_date = ?, active = 0, total_amount_cents = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND active = 1`
	res, err := tx.ExecContext(ctx, q, dateArg(end), nullableCentsArg(totalCents), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrStayNotFound
	}
	return nil
}

// UpdateEndTx adjusts the end date of a stay that remains open, updating
// the computed amount alongside.  Used by edits and by conflict
// resolution.  Affecting zero rows maps to ErrStayNotFound.
func (r *StayRepo) UpdateEndTx(ctx context.Context, tx *sql.Tx, id uint64, end time.Time, totalCents *uint32) error {
	const q = `UPDATE stays
               SET end_date = ?, total_amount_cents = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND active = 1`
	res, err := tx.ExecContext(ctx, q, dateArg(end), nullableCentsArg(totalCents), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrStayNotFound
	}
	return nil
}

// RoomOccupied reports whether any active stay covers the room on the given
// date.  A single EXISTS query keeps the check on one consistent snapshot.
func (r *StayRepo) RoomOccupied(ctx context.Context, roomID uint64, asOf time.Time) (bool, error) {
	const q = `SELECT EXISTS(
                 SELECT 1 FROM stays
                 WHERE room_id = ? AND active = 1
                   AND start_date <= ? AND (end_date IS NULL OR end_date >= ?))`
	var occupied bool
	d := dateArg(asOf)
	if err := r.db.QueryRowContext(ctx, q, roomID, d, d).Scan(&occupied); err != nil {
		return false, err
	}
	return occupied, nil
}

// ResidentHoused reports whether any active stay covers the resident on the
// given date.
func (r *StayRepo) ResidentHoused(ctx context.Context, residentID uint64, asOf time.Time) (bool, error) {
	const q = `SELECT EXISTS(
                 SELECT 1 FROM stays
                 WHERE resident_id = ? AND active = 1
                   AND start_date <= ? AND (end_date IS NULL OR end_date >= ?))`
	var housed bool
	d := dateArg(asOf)
	if err := r.db.QueryRowContext(ctx, q, residentID, d, d).Scan(&housed); err != nil {
		return false, err
	}
	return housed, nil
}
