package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carrental/internal/models"
)

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query,
		user.ID, normalizeEmail(user.Email), user.PasswordHash, user.Name, user.Role, now, now,
	); err != nil {
		return wrapWriteErr("create user", err)
	}
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// RegisterUser inserts a user and its customer profile in one transaction.
// The customer shares the user's id.
func (db *DB) RegisterUser(ctx context.Context, user *models.User, customer *models.Customer) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	user.Email = normalizeEmail(user.Email)
	customer.ID = user.ID
	customer.Email = user.Email

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role, now, now,
	); err != nil {
		return wrapWriteErr("insert user in tx", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.CustomerName, customer.CustomerCity, customer.MobileNo, customer.Email, now, now,
	); err != nil {
		return wrapWriteErr("insert customer in tx", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	user.CreatedAt, user.UpdatedAt = now, now
	customer.CreatedAt, customer.UpdatedAt = now, now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr("get user", err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr("get user by email", err)
	}
	return u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) UpdateUserRole(ctx context.Context, id, role string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return expectOneRow(result)
}

// DeleteUser removes the account. The customer profile and its bookings are kept.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result)
}

// UpdateProfile writes the user and, when present, the linked customer atomically.
func (db *DB) UpdateProfile(ctx context.Context, user *models.User, customer *models.Customer) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	user.Email = normalizeEmail(user.Email)
	result, err := tx.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, name = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.PasswordHash, user.Name, now, user.ID,
	)
	if err != nil {
		return wrapWriteErr("update user in tx", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if customer != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE customers SET customer_name = ?, customer_city = ?, mobile_no = ?, email = ?, updated_at = ? WHERE id = ?`,
			customer.CustomerName, customer.CustomerCity, customer.MobileNo, user.Email, now, customer.ID,
		); err != nil {
			return wrapWriteErr("update customer in tx", err)
		}
		customer.Email = user.Email
		customer.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile update: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

// EmailTaken reports whether email belongs to a user or customer other than excludeID.
func (db *DB) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?) +
		(SELECT COUNT(*) FROM customers WHERE email = ? AND id <> ?)`
	email = normalizeEmail(email)
	var count int
	if err := db.QueryRowContext(ctx, query, email, excludeID, email, excludeID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// MobileTaken reports whether a customer other than excludeID uses mobile.
func (db *DB) MobileTaken(ctx context.Context, mobile, excludeID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE mobile_no = ? AND id <> ?`,
		strings.TrimSpace(mobile), excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check mobile: %w", err)
	}
	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
