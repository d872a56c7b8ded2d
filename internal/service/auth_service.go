package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/metrics"
	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// passwordSpecials are the characters that satisfy the special-character rule.
const passwordSpecials = `!@#$%^&*(),.?":{}|<>_+=-[]\/`

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	MobileNo     string `json:"mobileNo"`
	CustomerCity string `json:"customerCity"`
	Role         string `json:"role"`
}

// ProfileUpdate carries optional profile changes; empty fields are left alone.
type ProfileUpdate struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	MobileNo        string `json:"mobileNo"`
	CustomerCity    string `json:"customerCity"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type LoginResult struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type AuthService struct {
	users    domain.UserRepository
	tokens   *TokenManager
	store    domain.TokenStore
	eventBus domain.EventPublisher
	cfg      config.AuthConfig
	logger   *zerolog.Logger
}

func NewAuthService(
	users domain.UserRepository,
	tokens *TokenManager,
	store domain.TokenStore,
	eventBus domain.EventPublisher,
	cfg config.AuthConfig,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		store:    store,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// ValidatePassword enforces length and character class rules.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return invalid("password", fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper || !lower:
		return invalid("password", "Password must contain both uppercase and lowercase letters.")
	case !digit:
		return invalid("password", "Password must include at least one number.")
	case !special:
		return invalid("password", "Password must include at least one special character.")
	}
	return nil
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.MobileNo = strings.TrimSpace(in.MobileNo)
	in.CustomerCity = strings.TrimSpace(in.CustomerCity)

	if in.Email == "" || in.Password == "" || in.Name == "" || in.MobileNo == "" || in.CustomerCity == "" {
		return nil, invalid("", "Missing required fields.")
	}
	if !validEmail(in.Email) {
		return nil, invalid("email", "Invalid email format.")
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch {
	case role == "":
		role = models.RoleUser
	case !models.ValidRole(role):
		return nil, invalid("role", "Invalid role.")
	case role == models.RoleAdmin && !s.cfg.AllowAdminSignup:
		s.logger.Warn().Str("email", in.Email).Msg("admin self-signup disabled, registering as user")
		role = models.RoleUser
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	if taken, err := s.users.EmailTaken(ctx, in.Email, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrCustomerExists
	}
	if taken, err := s.users.MobileTaken(ctx, in.MobileNo, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrCustomerExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         role,
	}
	customer := &models.Customer{
		CustomerName: in.Name,
		CustomerCity: in.CustomerCity,
		MobileNo:     in.MobileNo,
	}

	if err := s.users.RegisterUser(ctx, user, customer); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrCustomerExists
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	if s.eventBus != nil {
		payload := events.UserEventPayload{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
		if err := s.eventBus.PublishJSON(events.EventUserRegistered, payload); err != nil {
			s.logger.Error().Err(err).Str("user_id", user.ID).Msg("publish event error")
		}
	}
	return user, nil
}

func loginKey(email string) string {
	return "login:" + email
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	window := time.Duration(s.cfg.LoginWindowSeconds) * time.Second
	allowed, err := s.store.CheckRateLimit(ctx, loginKey(email), s.cfg.LoginAttemptLimit, window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login rate limit check failed")
	} else if !allowed {
		metrics.IncLoginFailure("throttled")
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncLoginFailure("unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.IncLoginFailure("bad_password")
		return nil, ErrInvalidCredentials
	}

	if err := s.store.ResetRateLimit(ctx, loginKey(email)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset login counter")
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return &LoginResult{
		Token: token,
		User:  UserInfo{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role},
	}, nil
}

// Logout revokes the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) {
	if claims == nil {
		return
	}
	ttl := s.tokens.remaining(claims)
	if err := s.store.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to revoke token")
	}
}

// Authenticate verifies raw and returns the caller with the role currently stored.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (models.Actor, *Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return models.Actor{}, nil, err
	}

	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("token revocation check failed")
		return models.Actor{}, nil, ErrInvalidToken
	}
	if revoked {
		return models.Actor{}, nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Actor{}, nil, ErrInvalidToken
		}
		return models.Actor{}, nil, err
	}

	return models.Actor{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, claims, nil
}

// UpdateProfile applies changes to the caller's user and linked customer.
func (s *AuthService) UpdateProfile(ctx context.Context, actor models.Actor, in ProfileUpdate) (*models.User, *models.Customer, error) {
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	customer, err := s.users.GetCustomer(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, nil, err
		}
		customer = nil
	}

	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, nil, invalid("currentPassword", "Current password is required to change password.")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
			return nil, nil, ErrWrongPassword
		}
		if err := ValidatePassword(in.NewPassword); err != nil {
			return nil, nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cfg.BcryptCost)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
		if customer != nil {
			customer.CustomerName = name
		}
	}

	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		if !validEmail(email) {
			return nil, nil, invalid("email", "Invalid email format.")
		}
		taken, err := s.users.EmailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, fmt.Errorf("email is already in use by another user: %w", ErrUserExists)
		}
		user.Email = email
	}

	if customer != nil {
		if mobile := strings.TrimSpace(in.MobileNo); mobile != "" && mobile != customer.MobileNo {
			taken, err := s.users.MobileTaken(ctx, mobile, customer.ID)
			if err != nil {
				return nil, nil, err
			}
			if taken {
				return nil, nil, ErrCustomerExists
			}
			customer.MobileNo = mobile
		}
		if city := strings.TrimSpace(in.CustomerCity); city != "" {
			customer.CustomerCity = city
		}
	}

	if err := s.users.UpdateProfile(ctx, user, customer); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, nil, ErrCustomerExists
		}
		return nil, nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("profile updated")
	return user, customer, nil
}

// EnsureAdmin creates the bootstrap admin or promotes the existing account.
// It reports whether a new user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" {
		return false, nil
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := s.users.UpdateUserRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return false, err
			}
			s.logger.Info().Str("user_id", existing.ID).Msg("bootstrap admin promoted")
		}
		return false, nil
	case !errors.Is(err, database.ErrNotFound):
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), s.cfg.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         cfg.Name,
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return false, err
	}
	s.logger.Info().Str("user_id", admin.ID).Str("email", email).Msg("bootstrap admin created")
	return true, nil
}
