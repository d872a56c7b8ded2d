package database

import (
	"context"
	"errors"
	"testing"

	"carrental/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	nop := zerolog.Nop()
	return &DB{DB: mockDB, logger: &nop}, mock
}

func TestDB_ClosedErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := db.GetCar(ctx, "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = db.ListCustomers(ctx)
	assert.Error(t, err)

	_, _, err = db.FilterBookings(ctx, models.BookingFilter{})
	assert.Error(t, err)

	assert.Error(t, db.CreateBookingWithLock(ctx, &models.Booking{ID: "b"}))
}

func TestCreateBookingWithLock_ConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE car_id = \?`).
		WithArgs("car-1", "2025-03-03", "2025-03-01", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := db.CreateBookingWithLock(context.Background(), &models.Booking{
		ID:        "b-1",
		CarID:     "car-1",
		StartDate: models.NewDate(2025, 3, 1),
		EndDate:   models.NewDate(2025, 3, 3),
	})
	assert.ErrorIs(t, err, ErrCarNotAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingWithLock_InsertFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.CreateBookingWithLock(context.Background(), &models.Booking{ID: "b-2", CarID: "car-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboard_QueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("db down"))

	_, err := db.Dashboard(context.Background(), models.NewDate(2025, 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load dashboard")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingWithLock_VersionMismatch(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM bookings WHERE id = \?`).
		WithArgs("b-3").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))
	mock.ExpectRollback()

	err := db.UpdateBookingWithLock(context.Background(), &models.Booking{ID: "b-3"}, 3)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
