package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"carrental/internal/database"
	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, bookingID string, booking *models.Booking) error {
	return m.Called(ctx, taskType, bookingID, booking).Error(0)
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedCar(t *testing.T, db *database.DB, regNo string, rate float64) *models.Car {
	t.Helper()
	car := &models.Car{
		ID:        uuid.NewString(),
		Brand:     "Hyundai",
		Model:     "Creta",
		Year:      2023,
		DailyRate: rate,
		RegNo:     regNo,
	}
	require.NoError(t, db.CreateCar(context.Background(), car))
	return car
}

// seedUser registers a user with a linked customer profile and returns the caller identity.
func seedUser(t *testing.T, db *database.DB, email, mobile, role string) models.Actor {
	t.Helper()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		Name:         "Seeded " + role,
		Role:         role,
	}
	customer := &models.Customer{CustomerName: user.Name, CustomerCity: "Chennai", MobileNo: mobile}
	require.NoError(t, db.RegisterUser(context.Background(), user, customer))
	return models.Actor{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
}
