package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carrental/internal/models"
)

const carColumns = `id, brand, model, year, color, daily_rate, car_image, reg_no, created_at, updated_at`

func scanCar(row rowScanner) (*models.Car, error) {
	var c models.Car
	if err := row.Scan(&c.ID, &c.Brand, &c.Model, &c.Year, &c.Color, &c.DailyRate, &c.CarImage, &c.RegNo,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) CreateCar(ctx context.Context, car *models.Car) error {
	now := time.Now().UTC()
	car.RegNo = strings.TrimSpace(car.RegNo)
	_, err := db.ExecContext(ctx,
		`INSERT INTO cars (`+carColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		car.ID, car.Brand, car.Model, car.Year, car.Color, car.DailyRate, car.CarImage, car.RegNo, now, now,
	)
	if err != nil {
		return wrapWriteErr("create car", err)
	}
	car.CreatedAt, car.UpdatedAt = now, now
	return nil
}

func (db *DB) GetCar(ctx context.Context, id string) (*models.Car, error) {
	c, err := scanCar(db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get car", err)
	}
	return c, nil
}

func (db *DB) GetCarByRegNo(ctx context.Context, regNo string) (*models.Car, error) {
	c, err := scanCar(db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE reg_no = ?`, strings.TrimSpace(regNo)))
	if err != nil {
		return nil, notFoundOr("get car by reg no", err)
	}
	return c, nil
}

func (db *DB) ListCars(ctx context.Context) ([]*models.Car, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+carColumns+` FROM cars ORDER BY brand COLLATE NOCASE, model COLLATE NOCASE, reg_no`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

func (db *DB) UpdateCar(ctx context.Context, car *models.Car) error {
	now := time.Now().UTC()
	car.RegNo = strings.TrimSpace(car.RegNo)
	result, err := db.ExecContext(ctx,
		`UPDATE cars SET brand = ?, model = ?, year = ?, color = ?, daily_rate = ?, car_image = ?, reg_no = ?, updated_at = ?
		 WHERE id = ?`,
		car.Brand, car.Model, car.Year, car.Color, car.DailyRate, car.CarImage, car.RegNo, now, car.ID,
	)
	if err != nil {
		return wrapWriteErr("update car", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	car.UpdatedAt = now
	return nil
}

// UpsertCarByRegNo inserts the car or refreshes the existing one with the same
// registration number, keeping its id. Returns true when a new row was created.
func (db *DB) UpsertCarByRegNo(ctx context.Context, car *models.Car) (bool, error) {
	existing, err := db.GetCarByRegNo(ctx, car.RegNo)
	switch {
	case errors.Is(err, ErrNotFound):
		return true, db.CreateCar(ctx, car)
	case err != nil:
		return false, err
	}

	car.ID = existing.ID
	return false, db.UpdateCar(ctx, car)
}

// DeleteCar refuses to remove a car that still has bookings.
func (db *DB) DeleteCar(ctx context.Context, id string) error {
	return db.deleteUnreferenced(ctx, "cars", "car_id", id)
}

func (db *DB) CountCars(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM cars`)
}
