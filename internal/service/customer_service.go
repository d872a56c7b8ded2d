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

type CustomerService struct {
	repo   domain.CustomerRepository
	logger *zerolog.Logger
}

func NewCustomerService(repo domain.CustomerRepository, logger *zerolog.Logger) *CustomerService {
	return &CustomerService{repo: repo, logger: logger}
}

func mapCustomerErr(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, database.ErrDuplicate):
		return ErrCustomerExists
	}
	return err
}

func (s *CustomerService) validate(ctx context.Context, c *models.Customer) error {
	c.CustomerName = strings.TrimSpace(c.CustomerName)
	c.CustomerCity = strings.TrimSpace(c.CustomerCity)
	c.MobileNo = strings.TrimSpace(c.MobileNo)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))

	switch {
	case c.CustomerName == "":
		return invalid("customerName", "Customer name is required.")
	case c.MobileNo == "":
		return invalid("mobileNo", "Mobile number is required.")
	case c.Email == "":
		return invalid("email", "Email is required.")
	case !validEmail(c.Email):
		return invalid("email", "Invalid email format.")
	}

	// users own emails too, so a customer cannot take one
	if taken, err := s.repo.EmailTaken(ctx, c.Email, c.ID); err != nil {
		return err
	} else if taken {
		return ErrCustomerExists
	}
	if taken, err := s.repo.MobileTaken(ctx, c.MobileNo, c.ID); err != nil {
		return err
	} else if taken {
		return ErrCustomerExists
	}
	return nil
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	return customers, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, mapCustomerErr(err)
	}
	return c, nil
}

// GetProfile returns the customer record linked to userID. Admins may read
// any profile; other callers only their own.
func (s *CustomerService) GetProfile(ctx context.Context, actor models.Actor, userID string) (*models.Customer, error) {
	if userID == "" {
		userID = actor.UserID
	}
	if !actor.IsAdmin() && userID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.GetCustomer(ctx, userID)
}

func (s *CustomerService) CreateCustomer(ctx context.Context, c *models.Customer) error {
	c.ID = uuid.NewString()
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return mapCustomerErr(err)
	}
	s.logger.Info().Str("customer_id", c.ID).Msg("customer created")
	return nil
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return mapCustomerErr(err)
	}
	s.logger.Info().Str("customer_id", c.ID).Msg("customer updated")
	return nil
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return mapCustomerErr(err)
	}
	s.logger.Info().Str("customer_id", id).Msg("customer deleted")
	return nil
}
