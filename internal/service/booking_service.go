package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/metrics"
	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	syncUpsert = "upsert"
	syncDelete = "delete"

	bookingUIDLength   = 8
	bookingUIDAttempts = 3
)

// BookingRequest is the create payload shared by the admin and user paths.
// The user path ignores the customer fields, Discount and TotalBillAmount.
type BookingRequest struct {
	CarID           string      `json:"carId"`
	CustomerID      string      `json:"customerId"`
	CustomerName    string      `json:"customerName"`
	Email           string      `json:"email"`
	MobileNo        string      `json:"mobileNo"`
	StartDate       models.Date `json:"startDate"`
	EndDate         models.Date `json:"endDate"`
	Discount        float64     `json:"discount"`
	TotalBillAmount float64     `json:"totalBillAmount"`
}

// BookingUpdate carries admin changes; nil or zero fields keep their value.
type BookingUpdate struct {
	CarID           string      `json:"carId"`
	StartDate       models.Date `json:"startDate"`
	EndDate         models.Date `json:"endDate"`
	Discount        *float64    `json:"discount"`
	TotalBillAmount *float64    `json:"totalBillAmount"`
	Version         int64       `json:"version"`
}

type BookingService struct {
	repo           domain.BookingRepository
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	maxAdvanceDays int
	pageSize       int
	location       *time.Location
	logger         *zerolog.Logger
	now            func() time.Time
	newUID         func() string
}

func NewBookingService(
	repo domain.BookingRepository,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = 365
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("unknown booking timezone, using UTC")
		loc = time.UTC
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		syncWorker:     syncWorker,
		maxAdvanceDays: cfg.MaxAdvanceDays,
		pageSize:       cfg.PageSize,
		location:       loc,
		logger:         logger,
		now:            time.Now,
		newUID:         newBookingUID,
	}
}

func newBookingUID() string {
	return uuid.NewString()[:bookingUIDLength]
}

// Today is the current calendar day in the booking timezone.
func (s *BookingService) Today() models.Date {
	return models.DateOf(s.now().In(s.location))
}

func (s *BookingService) validateDates(start, end models.Date, allowPast bool) error {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return ErrInvalidDateRange
	}

	today := s.Today()
	if !allowPast && start.Before(today) {
		return ErrPastDate
	}
	if end.After(today.AddDays(s.maxAdvanceDays)) {
		return ErrDateTooFar
	}
	return nil
}

func (s *BookingService) loadCar(ctx context.Context, id string) (*models.Car, error) {
	if id == "" {
		return nil, ErrCarNotFound
	}
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return car, nil
}

// resolveCustomer looks the customer up by id, then email, then exact name.
func (s *BookingService) resolveCustomer(ctx context.Context, req BookingRequest) (*models.Customer, error) {
	var (
		c   *models.Customer
		err = database.ErrNotFound
	)
	switch {
	case req.CustomerID != "":
		c, err = s.repo.GetCustomer(ctx, req.CustomerID)
	case req.Email != "":
		c, err = s.repo.GetCustomerByEmail(ctx, req.Email)
	case req.CustomerName != "":
		c, err = s.repo.GetCustomerByName(ctx, req.CustomerName)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *BookingService) newBooking(car *models.Car, customer *models.Customer, start, end models.Date) *models.Booking {
	return &models.Booking{
		ID:           uuid.NewString(),
		BookingUID:   s.newUID(),
		CarID:        car.ID,
		CustomerID:   customer.ID,
		StartDate:    start,
		EndDate:      end,
		Brand:        car.Brand,
		Model:        car.Model,
		CustomerName: customer.CustomerName,
		MobileNo:     customer.MobileNo,
		CustomerCity: customer.CustomerCity,
		Email:        customer.Email,
	}
}

// CreateAdminBooking books for any customer with an admin-supplied total and discount.
func (s *BookingService) CreateAdminBooking(ctx context.Context, actor models.Actor, req BookingRequest) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.validateDates(req.StartDate, req.EndDate, true); err != nil {
		return nil, err
	}
	if req.TotalBillAmount <= 0 {
		return nil, ErrNonPositiveTotal
	}
	if req.Discount < 0 {
		return nil, invalid("discount", "Discount cannot be negative.")
	}

	car, err := s.loadCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	customer, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	booking := s.newBooking(car, customer, req.StartDate, req.EndDate)
	booking.Discount = req.Discount
	booking.TotalBillAmount = req.TotalBillAmount

	if err := s.create(ctx, booking, "admin", actor); err != nil {
		return nil, err
	}
	return booking, nil
}

// CreateUserBooking books for the caller's own customer profile at the car's daily rate.
func (s *BookingService) CreateUserBooking(ctx context.Context, actor models.Actor, req BookingRequest) (*models.Booking, error) {
	if err := s.validateDates(req.StartDate, req.EndDate, false); err != nil {
		return nil, err
	}

	car, err := s.loadCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	customer, err := s.resolveCustomer(ctx, BookingRequest{CustomerID: actor.UserID})
	if err != nil {
		return nil, err
	}

	booking := s.newBooking(car, customer, req.StartDate, req.EndDate)
	booking.TotalBillAmount = car.DailyRate * float64(booking.Days())
	if booking.TotalBillAmount <= 0 {
		return nil, ErrNonPositiveTotal
	}

	if err := s.create(ctx, booking, "user", actor); err != nil {
		return nil, err
	}
	return booking, nil
}

// create inserts booking, drawing a fresh booking_uid when the short uid collides.
func (s *BookingService) create(ctx context.Context, booking *models.Booking, path string, actor models.Actor) error {
	var err error
	for attempt := 1; attempt <= bookingUIDAttempts; attempt++ {
		err = s.repo.CreateBookingWithLock(ctx, booking)
		if !errors.Is(err, database.ErrDuplicate) {
			break
		}
		s.logger.Warn().Str("booking_uid", booking.BookingUID).Int("attempt", attempt).Msg("booking uid collision")
		booking.BookingUID = s.newUID()
	}
	if err != nil {
		if errors.Is(err, database.ErrCarNotAvailable) {
			metrics.IncBookingConflict()
		}
		return err
	}

	metrics.IncBookingCreated(path)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("car_id", booking.CarID).
		Str("customer_id", booking.CustomerID).
		Str("path", path).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking, actor)
	s.enqueueSync(ctx, syncUpsert, booking)
	return nil
}

func (s *BookingService) UpdateBooking(ctx context.Context, actor models.Actor, id string, upd BookingUpdate) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if upd.CarID != "" && upd.CarID != booking.CarID {
		car, err := s.loadCar(ctx, upd.CarID)
		if err != nil {
			return nil, err
		}
		booking.CarID = car.ID
		booking.Brand = car.Brand
		booking.Model = car.Model
	}
	if !upd.StartDate.IsZero() {
		booking.StartDate = upd.StartDate
	}
	if !upd.EndDate.IsZero() {
		booking.EndDate = upd.EndDate
	}
	if err := s.validateDates(booking.StartDate, booking.EndDate, true); err != nil {
		return nil, err
	}

	if upd.Discount != nil {
		if *upd.Discount < 0 {
			return nil, invalid("discount", "Discount cannot be negative.")
		}
		booking.Discount = *upd.Discount
	}
	if upd.TotalBillAmount != nil {
		booking.TotalBillAmount = *upd.TotalBillAmount
	}
	if booking.TotalBillAmount <= 0 {
		return nil, ErrNonPositiveTotal
	}

	version := upd.Version
	if version == 0 {
		version = booking.Version
	}

	if err := s.repo.UpdateBookingWithLock(ctx, booking, version); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrBookingNotFound
		case errors.Is(err, database.ErrCarNotAvailable):
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Int64("version", booking.Version).Msg("booking updated")
	s.publishEvent(events.EventBookingUpdated, booking, actor)
	s.enqueueSync(ctx, syncUpsert, booking)
	return booking, nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}

	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}

	s.logger.Info().Str("booking_id", id).Msg("booking deleted")
	s.publishEvent(events.EventBookingDeleted, booking, actor)
	s.enqueueSync(ctx, syncDelete, booking)
	return nil
}

// GetBooking returns the booking to its customer or to an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() && booking.CustomerID != actor.UserID {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) paging(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if page > 0 && pageSize <= 0 {
		pageSize = s.pageSize
	}
	return page, pageSize
}

// ListBookings returns a page of all bookings plus the overall count.
func (s *BookingService) ListBookings(ctx context.Context, page, pageSize int) ([]*models.Booking, int, error) {
	page, pageSize = s.paging(page, pageSize)
	f := models.BookingFilter{Page: page, PageSize: pageSize}

	bookings, err := s.repo.ListBookings(ctx, pageSize, f.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountBookings(ctx)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CustomerBookings lists bookings of customerID; non-admins always get their own.
func (s *BookingService) CustomerBookings(ctx context.Context, actor models.Actor, customerID string) ([]*models.Booking, error) {
	if !actor.IsAdmin() || customerID == "" {
		customerID = actor.UserID
	}
	return s.repo.GetCustomerBookings(ctx, customerID)
}

func (s *BookingService) FilterBookings(ctx context.Context, actor models.Actor, f models.BookingFilter) ([]*models.Booking, int, error) {
	if !actor.IsAdmin() {
		f.CustomerID = actor.UserID
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, ErrInvalidDateRange
	}
	f.Page, f.PageSize = s.paging(f.Page, f.PageSize)
	return s.repo.FilterBookings(ctx, f)
}

func (s *BookingService) Dashboard(ctx context.Context) (*models.DashboardData, error) {
	return s.repo.Dashboard(ctx, s.Today())
}

// BookingsForExport returns bookings overlapping [from, to]. Zero bounds default
// to the last 30 days and the booking horizon.
func (s *BookingService) BookingsForExport(ctx context.Context, from, to models.Date) ([]*models.Booking, models.Date, models.Date, error) {
	today := s.Today()
	if from.IsZero() {
		from = today.AddDays(-30)
	}
	if to.IsZero() {
		to = today.AddDays(s.maxAdvanceDays)
	}
	if to.Before(from) {
		return nil, from, to, ErrInvalidDateRange
	}
	bookings, err := s.repo.GetBookingsInRange(ctx, from, to)
	if err != nil {
		return nil, from, to, fmt.Errorf("failed to load bookings for export: %w", err)
	}
	return bookings, from, to, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:    booking.ID,
		BookingUID:   booking.BookingUID,
		CarID:        booking.CarID,
		Car:          booking.Brand + " " + booking.Model,
		CustomerID:   booking.CustomerID,
		CustomerName: booking.CustomerName,
		MobileNo:     booking.MobileNo,
		StartDate:    booking.StartDate.String(),
		EndDate:      booking.EndDate.String(),
		Total:        booking.TotalBillAmount,
		Discount:     booking.Discount,
		ChangedBy:    actor.Email,
		ChangedByID:  actor.UserID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, booking *models.Booking) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, booking.ID, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
