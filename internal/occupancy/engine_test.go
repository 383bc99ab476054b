package occupancy

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenops/shelter-occupancy/internal/interval"
	"github.com/havenops/shelter-occupancy/internal/model"
	"github.com/havenops/shelter-occupancy/internal/repository"
)

var (
	roomCols = []string{"id", "name", "category", "beds", "daily_rate_cents", "is_active", "created_at", "updated_at"}
	stayCols = []string{"id", "room_id", "resident_id", "start_date", "end_date", "active", "payment_mode",
		"daily_rate_cents", "total_amount_cents", "created_by", "created_at", "updated_at"}
	residentCols = []string{"id", "full_name", "created_at"}
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	eng := NewEngine(db,
		repository.NewRoomRepo(db),
		repository.NewResidentRepo(db),
		repository.NewStayRepo(db))
	return eng, mock
}

func roomRow(ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(roomCols).
		AddRow(int64(10), "Room 204", model.RoomCategoryStandard, int64(2), int64(2000), true, ts, ts)
}

func residentRow(ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(residentCols).AddRow(int64(3), "Jordan Blake", ts)
}

func stayRow(id int64, start time.Time, end any, rate, total any, ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(stayCols).
		AddRow(id, int64(10), int64(3), start, end, true, model.PaymentPayNow, rate, total, "tester", ts, ts)
}

func expectCatalogLookups(mock sqlmock.Sqlmock, ts time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ?`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM residents WHERE id = ?`)).
		WithArgs(int64(3)).WillReturnRows(residentRow(ts))
}

func TestAssignCreatesStayAndPricesInclusiveDays(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	start := interval.Date(2024, 2, 1)
	end := interval.Date(2024, 2, 5)

	expectCatalogLookups(mock, ts)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resident_id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(stayCols))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = ? AND active = 1`)).
		WithArgs(int64(10), "2024-02-01", "2024-02-05").
		WillReturnRows(sqlmock.NewRows(stayCols))
	// five inclusive days at 2000 cents: total 10000
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO stays`)).
		WithArgs(int64(10), int64(3), "2024-02-01", "2024-02-05", model.PaymentPayNow,
			int64(2000), int64(10000), "tester").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ?`)).
		WithArgs(int64(7)).
		WillReturnRows(stayRow(7, start, end, int64(2000), int64(10000), ts))
	mock.ExpectCommit()

	stay, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       start,
		End:         &end,
		PaymentMode: model.PaymentPayNow,
		CreatedBy:   "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stay.ID)
	assert.True(t, stay.Active)
	require.NotNil(t, stay.TotalAmountCents)
	assert.Equal(t, uint32(10000), *stay.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOpenEndedStayHasNoAmountYet(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	start := interval.Date(2024, 2, 1)

	expectCatalogLookups(mock, ts)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resident_id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(stayCols))
	// no end date, so only the reach-forward predicate applies
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = ? AND active = 1`)).
		WithArgs(int64(10), "2024-02-01").
		WillReturnRows(sqlmock.NewRows(stayCols))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO stays`)).
		WithArgs(int64(10), int64(3), "2024-02-01", nil, model.PaymentPayNow,
			int64(2000), nil, "tester").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ?`)).
		WithArgs(int64(8)).
		WillReturnRows(stayRow(8, start, nil, int64(2000), nil, ts))
	mock.ExpectCommit()

	stay, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       start,
		PaymentMode: model.PaymentPayNow,
		CreatedBy:   "tester",
	})
	require.NoError(t, err)
	assert.Nil(t, stay.EndDate)
	assert.Nil(t, stay.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRoomConflict(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	start := interval.Date(2024, 2, 1)
	end := interval.Date(2024, 2, 5)

	expectCatalogLookups(mock, ts)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resident_id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(stayCols))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = ? AND active = 1`)).
		WithArgs(int64(10), "2024-02-01", "2024-02-05").
		WillReturnRows(stayRow(4, interval.Date(2024, 2, 3), interval.Date(2024, 2, 10), nil, nil, ts))
	mock.ExpectRollback()

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       start,
		End:         &end,
		PaymentMode: model.PaymentPayNow,
		CreatedBy:   "tester",
	})
	assert.ErrorIs(t, err, repository.ErrRoomConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOpenEndedStayBlocksFutureDates(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	// the room holds an open-ended stay that started months earlier; a
	// request far in the future must still be refused until it is released
	start := interval.Date(2024, 8, 1)
	end := interval.Date(2024, 8, 10)

	expectCatalogLookups(mock, ts)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resident_id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(stayCols))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE room_id = ? AND active = 1`)).
		WithArgs(int64(10), "2024-08-01", "2024-08-10").
		WillReturnRows(stayRow(2, interval.Date(2024, 1, 1), nil, nil, nil, ts))
	mock.ExpectRollback()

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       start,
		End:         &end,
		PaymentMode: model.PaymentFree,
		CreatedBy:   "tester",
	})
	assert.ErrorIs(t, err, repository.ErrRoomConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignResidentAlreadyHoused(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	expectCatalogLookups(mock, ts)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resident_id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(3)).
		WillReturnRows(stayRow(9, interval.Date(2024, 1, 1), nil, nil, nil, ts))
	mock.ExpectRollback()

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       interval.Date(2024, 2, 1),
		PaymentMode: model.PaymentFree,
		CreatedBy:   "tester",
	})
	assert.ErrorIs(t, err, repository.ErrResidentConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignUnknownRoom(t *testing.T) {
	eng, mock := newTestEngine(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ?`)).
		WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      99,
		Start:       interval.Date(2024, 2, 1),
		PaymentMode: model.PaymentFree,
	})
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRejectsEndBeforeStart(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	end := interval.Date(2024, 1, 5)

	expectCatalogLookups(mock, ts)

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       interval.Date(2024, 2, 1),
		End:         &end,
		PaymentMode: model.PaymentPayNow,
	})
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignRejectsUnknownPaymentMode(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	expectCatalogLookups(mock, ts)

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       interval.Date(2024, 2, 1),
		PaymentMode: "INSTALLMENTS",
	})
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseClosesStayAndFreezesAmount(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(stayRow(5, interval.Date(2024, 2, 1), nil, int64(2000), nil, ts))
	mock.ExpectExec(regexp.QuoteMeta(`SET end_date = ?, active = 0`)).
		WithArgs("2024-02-05", int64(10000), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stay, err := eng.Release(context.Background(), 5, interval.Date(2024, 2, 5))
	require.NoError(t, err)
	assert.False(t, stay.Active)
	require.NotNil(t, stay.EndDate)
	assert.Equal(t, interval.Date(2024, 2, 5), *stay.EndDate)
	require.NotNil(t, stay.TotalAmountCents)
	assert.Equal(t, uint32(10000), *stay.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseAlreadyClosedStay(t *testing.T) {
	eng, mock := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := eng.Release(context.Background(), 5, interval.Date(2024, 2, 5))
	assert.ErrorIs(t, err, repository.ErrStayNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseBeforeStartRejected(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(stayRow(5, interval.Date(2024, 2, 10), nil, nil, nil, ts))
	mock.ExpectRollback()

	_, err := eng.Release(context.Background(), 5, interval.Date(2024, 2, 5))
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAmendEndRecheckExcludesSelf(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM stays WHERE id = ? AND active = 1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(stayRow(5, interval.Date(2024, 2, 1), nil, int64(2000), nil, ts))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ? FOR UPDATE`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`AND id <> ?`)).
		WithArgs(int64(10), "2024-02-01", "2024-02-10", int64(5)).
		WillReturnRows(sqlmock.NewRows(stayCols))
	mock.ExpectExec(regexp.QuoteMeta(`SET end_date = ?, total_amount_cents = ?`)).
		WithArgs("2024-02-10", int64(20000), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stay, err := eng.AmendEnd(context.Background(), 5, interval.Date(2024, 2, 10))
	require.NoError(t, err)
	require.NotNil(t, stay.EndDate)
	assert.Equal(t, interval.Date(2024, 2, 10), *stay.EndDate)
	require.NotNil(t, stay.TotalAmountCents)
	assert.Equal(t, uint32(20000), *stay.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRoomFree(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM rooms WHERE id = ?`)).
		WithArgs(int64(10)).WillReturnRows(roomRow(ts))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(int64(10), "2024-02-03", "2024-02-03").
		WillReturnRows(sqlmock.NewRows([]string{"occupied"}).AddRow(true))

	free, err := eng.IsRoomFree(context.Background(), 10, interval.Date(2024, 2, 3))
	require.NoError(t, err)
	assert.False(t, free)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockContentionSurfacesAsTransient(t *testing.T) {
	eng, mock := newTestEngine(t)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	lockErr := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	expectCatalogLookups(mock, ts)
	for i := 0; i < lockRetries; i++ {
		mock.ExpectBegin().WillReturnError(lockErr)
	}

	_, err := eng.Assign(context.Background(), AssignInput{
		ResidentID:  3,
		RoomID:      10,
		Start:       interval.Date(2024, 2, 1),
		PaymentMode: model.PaymentFree,
	})
	assert.ErrorIs(t, err, repository.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}
