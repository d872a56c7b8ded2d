package service

import (
	"context"
	"errors"
	"strings"

	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type CarService struct {
	repo   domain.CarRepository
	logger *zerolog.Logger
}

func NewCarService(repo domain.CarRepository, logger *zerolog.Logger) *CarService {
	return &CarService{repo: repo, logger: logger}
}

func validateCar(car *models.Car) error {
	car.Brand = strings.TrimSpace(car.Brand)
	car.Model = strings.TrimSpace(car.Model)
	car.RegNo = strings.TrimSpace(car.RegNo)
	car.Color = strings.TrimSpace(car.Color)

	switch {
	case car.Brand == "":
		return invalid("brand", "Brand is required.")
	case car.Model == "":
		return invalid("model", "Model is required.")
	case car.RegNo == "":
		return invalid("regNo", "Registration number is required.")
	case car.Year < models.MinCarYear:
		return invalid("year", "Year must be 1900 or later.")
	case car.DailyRate < 0:
		return invalid("dailyRate", "Daily rate cannot be negative.")
	}
	return nil
}

func mapCarErr(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrCarNotFound
	case errors.Is(err, database.ErrDuplicate):
		return ErrCarRegNoExists
	}
	return err
}

func (s *CarService) ListCars(ctx context.Context) ([]*models.Car, error) {
	cars, err := s.repo.ListCars(ctx)
	if err != nil {
		return nil, err
	}
	if cars == nil {
		cars = []*models.Car{}
	}
	return cars, nil
}

func (s *CarService) GetCar(ctx context.Context, id string) (*models.Car, error) {
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return nil, mapCarErr(err)
	}
	return car, nil
}

func (s *CarService) CreateCar(ctx context.Context, car *models.Car) error {
	if err := validateCar(car); err != nil {
		return err
	}
	car.ID = uuid.NewString()
	if err := s.repo.CreateCar(ctx, car); err != nil {
		return mapCarErr(err)
	}
	s.logger.Info().Str("car_id", car.ID).Str("reg_no", car.RegNo).Msg("car created")
	return nil
}

func (s *CarService) UpdateCar(ctx context.Context, car *models.Car) error {
	if err := validateCar(car); err != nil {
		return err
	}
	if err := s.repo.UpdateCar(ctx, car); err != nil {
		return mapCarErr(err)
	}
	s.logger.Info().Str("car_id", car.ID).Msg("car updated")
	return nil
}

func (s *CarService) DeleteCar(ctx context.Context, id string) error {
	if err := s.repo.DeleteCar(ctx, id); err != nil {
		return mapCarErr(err)
	}
	s.logger.Info().Str("car_id", id).Msg("car deleted")
	return nil
}

// CheckAvailability reports whether the car is free for the inclusive range.
func (s *CarService) CheckAvailability(ctx context.Context, carID string, start, end models.Date) (*models.CarAvailability, error) {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if _, err := s.repo.GetCar(ctx, carID); err != nil {
		return nil, mapCarErr(err)
	}

	conflicts, err := s.repo.FindConflicts(ctx, carID, start, end, "")
	if err != nil {
		return nil, err
	}
	return &models.CarAvailability{
		CarID:     carID,
		StartDate: start,
		EndDate:   end,
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

// SeedFleet upserts cars by registration number and returns how many were new.
func (s *CarService) SeedFleet(ctx context.Context, cars []models.Car) (int, error) {
	created := 0
	for i := range cars {
		car := cars[i]
		if err := validateCar(&car); err != nil {
			s.logger.Warn().Err(err).Str("reg_no", car.RegNo).Msg("skipping invalid fleet entry")
			continue
		}
		car.ID = uuid.NewString()
		isNew, err := s.repo.UpsertCarByRegNo(ctx, &car)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	fleetSize, err := s.repo.CountCars(ctx)
	if err != nil {
		return created, err
	}
	s.logger.Info().Int("entries", len(cars)).Int("created", created).Int("fleet_size", fleetSize).Msg("fleet seeded")
	return created, nil
}
