package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/models"
)

const customerColumns = `id, customer_name, customer_city, mobile_no, email, created_at, updated_at`

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.CustomerName, &c.CustomerCity, &c.MobileNo, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateCustomer(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	c.Email = normalizeEmail(c.Email)
	c.MobileNo = strings.TrimSpace(c.MobileNo)
	_, err := db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CustomerName, c.CustomerCity, c.MobileNo, c.Email, now, now,
	)
	if err != nil {
		return wrapWriteErr("create customer", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := scanCustomer(db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get customer", err)
	}
	return c, nil
}

func (db *DB) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	c, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = ?`, normalizeEmail(email)))
	if err != nil {
		return nil, notFoundOr("get customer by email", err)
	}
	return c, nil
}

// GetCustomerByName matches the full name case-insensitively; the oldest match wins.
func (db *DB) GetCustomerByName(ctx context.Context, name string) (*models.Customer, error) {
	c, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE LOWER(customer_name) = LOWER(?) ORDER BY created_at ASC LIMIT 1`,
		strings.TrimSpace(name)))
	if err != nil {
		return nil, notFoundOr("get customer by name", err)
	}
	return c, nil
}

func (db *DB) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY customer_name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (db *DB) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	c.Email = normalizeEmail(c.Email)
	c.MobileNo = strings.TrimSpace(c.MobileNo)
	result, err := db.ExecContext(ctx,
		`UPDATE customers SET customer_name = ?, customer_city = ?, mobile_no = ?, email = ?, updated_at = ? WHERE id = ?`,
		c.CustomerName, c.CustomerCity, c.MobileNo, c.Email, now, c.ID,
	)
	if err != nil {
		return wrapWriteErr("update customer", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// DeleteCustomer refuses to remove a customer that still has bookings.
func (db *DB) DeleteCustomer(ctx context.Context, id string) error {
	return db.deleteUnreferenced(ctx, "customers", "customer_id", id)
}

func (db *DB) deleteUnreferenced(ctx context.Context, table, bookingColumn, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+bookingColumn+` = ?`, id,
	).Scan(&refs); err != nil {
		return fmt.Errorf("failed to count bookings: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
