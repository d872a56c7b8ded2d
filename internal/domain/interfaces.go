package domain

import (
	"context"
	"time"

	"carrental/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	RegisterUser(ctx context.Context, user *models.User, customer *models.Customer) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, id, role string) error
	DeleteUser(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, user *models.User, customer *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	MobileTaken(ctx context.Context, mobile, excludeID string) (bool, error)
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	MobileTaken(ctx context.Context, mobile, excludeID string) (bool, error)
}

type CarRepository interface {
	CreateCar(ctx context.Context, car *models.Car) error
	GetCar(ctx context.Context, id string) (*models.Car, error)
	ListCars(ctx context.Context) ([]*models.Car, error)
	UpdateCar(ctx context.Context, car *models.Car) error
	UpsertCarByRegNo(ctx context.Context, car *models.Car) (bool, error)
	DeleteCar(ctx context.Context, id string) error
	CountCars(ctx context.Context) (int, error)
	FindConflicts(ctx context.Context, carID string, start, end models.Date, excludeID string) ([]*models.Booking, error)
}

type BookingRepository interface {
	GetCar(ctx context.Context, id string) (*models.Car, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (*models.Customer, error)

	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingWithLock(ctx context.Context, booking *models.Booking, fromVersion int64) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListBookings(ctx context.Context, limit, offset int) ([]*models.Booking, error)
	CountBookings(ctx context.Context) (int, error)
	GetCustomerBookings(ctx context.Context, customerID string) ([]*models.Booking, error)
	GetBookingsInRange(ctx context.Context, from, to models.Date) ([]*models.Booking, error)
	FilterBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, int, error)
	FindConflicts(ctx context.Context, carID string, start, end models.Date, excludeID string) ([]*models.Booking, error)
	Dashboard(ctx context.Context, today models.Date) (*models.DashboardData, error)
}

// SyncQueue is the durable store behind the sheets worker.
type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// TokenStore keeps revoked token ids and login attempt counters.
type TokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ResetRateLimit(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking) error
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBookingRow(ctx context.Context, bookingID string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
