package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"carrental/internal/models"
)

const bookingColumns = `id, booking_uid, car_id, customer_id, start_date, end_date, discount, total_bill_amount,
	brand, model, customer_name, mobile_no, customer_city, email, created_at, updated_at, version`

// overlapCondition selects bookings of one car whose inclusive range intersects
// [start, end]: existing.start <= end AND existing.end >= start.
const overlapCondition = `car_id = ? AND start_date <= ? AND end_date >= ? AND id <> ?`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
	)
	err := row.Scan(
		&b.ID, &b.BookingUID, &b.CarID, &b.CustomerID, &start, &end, &b.Discount, &b.TotalBillAmount,
		&b.Brand, &b.Model, &b.CustomerName, &b.MobileNo, &b.CustomerCity, &b.Email,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if b.StartDate, err = models.ParseDate(start); err != nil {
		return nil, fmt.Errorf("failed to parse booking start date %s: %w", start, err)
	}
	if b.EndDate, err = models.ParseDate(end); err != nil {
		return nil, fmt.Errorf("failed to parse booking end date %s: %w", end, err)
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findConflicts(ctx context.Context, q queryer, carID string, start, end models.Date, excludeID string) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+overlapCondition+` ORDER BY start_date ASC`,
		carID, end.String(), start.String(), excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	return scanBookings(rows)
}

// FindConflicts returns bookings of carID overlapping [start, end], ignoring excludeID.
func (db *DB) FindConflicts(ctx context.Context, carID string, start, end models.Date, excludeID string) ([]*models.Booking, error) {
	return findConflicts(ctx, db, carID, start, end, excludeID)
}

// CreateBookingWithLock checks for overlaps and inserts inside a single transaction.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+overlapCondition,
		booking.CarID, booking.EndDate.String(), booking.StartDate.String(), booking.ID,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrCarNotAvailable
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.BookingUID, booking.CarID, booking.CustomerID,
		booking.StartDate.String(), booking.EndDate.String(), booking.Discount, booking.TotalBillAmount,
		booking.Brand, booking.Model, booking.CustomerName, booking.MobileNo, booking.CustomerCity, booking.Email,
		now, now, 1,
	)
	if err != nil {
		return wrapWriteErr("insert booking in tx", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingWithLock rewrites a booking if it is still at fromVersion and the
// new range does not overlap another booking of the same car.
func (db *DB) UpdateBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM bookings WHERE id = ?`, booking.ID).Scan(&current)
	if err != nil {
		return notFoundOr("load booking version", err)
	}
	if current != fromVersion {
		return ErrConcurrentModification
	}

	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+overlapCondition,
		booking.CarID, booking.EndDate.String(), booking.StartDate.String(), booking.ID,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrCarNotAvailable
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET car_id = ?, customer_id = ?, start_date = ?, end_date = ?, discount = ?,
			total_bill_amount = ?, brand = ?, model = ?, customer_name = ?, mobile_no = ?, customer_city = ?,
			email = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		booking.CarID, booking.CustomerID, booking.StartDate.String(), booking.EndDate.String(), booking.Discount,
		booking.TotalBillAmount, booking.Brand, booking.Model, booking.CustomerName, booking.MobileNo,
		booking.CustomerCity, booking.Email, now, booking.ID, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}
	booking.UpdatedAt = now
	booking.Version = fromVersion + 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get booking", err)
	}
	return b, nil
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return expectOneRow(result)
}

// ListBookings returns bookings newest start first; limit <= 0 returns all.
func (db *DB) ListBookings(ctx context.Context, limit, offset int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY start_date DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return scanBookings(rows)
}

func (db *DB) GetCustomerBookings(ctx context.Context, customerID string) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE customer_id = ? ORDER BY start_date DESC, created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer bookings: %w", err)
	}
	return scanBookings(rows)
}

// GetBookingsInRange returns bookings that overlap [from, to], oldest start first.
func (db *DB) GetBookingsInRange(ctx context.Context, from, to models.Date) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE start_date <= ? AND end_date >= ?
		 ORDER BY start_date ASC, brand, model`,
		to.String(), from.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return scanBookings(rows)
}

// FilterBookings applies f and returns the requested page plus the total match count.
func (db *DB) FilterBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, int, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.MobileNo); s != "" {
		conds = append(conds, `LOWER(mobile_no) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(s))
	}
	if s := strings.TrimSpace(f.CustomerName); s != "" {
		conds = append(conds, `LOWER(customer_name) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(s))
	}
	if s := strings.TrimSpace(f.CarID); s != "" && s != "0" {
		conds = append(conds, `car_id = ?`)
		args = append(args, s)
	}
	if f.CustomerID != "" {
		conds = append(conds, `customer_id = ?`)
		args = append(args, f.CustomerID)
	}
	if !f.From.IsZero() {
		conds = append(conds, `end_date >= ?`)
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, `start_date <= ?`)
		args = append(args, f.To.String())
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	total, err := db.count(ctx, `SELECT COUNT(*) FROM bookings`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count filtered bookings: %w", err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where + ` ORDER BY start_date DESC, created_at DESC`
	if f.PageSize > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, f.Offset())
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to filter bookings: %w", err)
	}
	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (db *DB) CountBookings(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM bookings`)
}

// Dashboard aggregates totals; today selects bookings starting on that day.
func (db *DB) Dashboard(ctx context.Context, today models.Date) (*models.DashboardData, error) {
	var data models.DashboardData
	err := db.QueryRowContext(ctx, `SELECT
			(SELECT COALESCE(SUM(total_bill_amount), 0) FROM bookings WHERE start_date = ?),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM cars)`,
		today.String(),
	).Scan(&data.TodayTotalAmount, &data.TotalBookings, &data.TotalCustomers, &data.TotalCars)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return &data, nil
}
