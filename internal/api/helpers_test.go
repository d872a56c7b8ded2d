package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/models"
	"carrental/internal/repository"
	"carrental/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret    = "0123456789abcdef0123456789abcdef"
	testPassword  = "Str0ng!pass"
	adminEmail    = "admin@rental.test"
	adminPassword = "Adm1n!pass"
)

type testEnv struct {
	t      *testing.T
	db     *database.DB
	svc    Services
	server *httptest.Server
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestServices(t *testing.T) (*database.DB, Services) {
	t.Helper()
	logger := testLogger()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authCfg := config.AuthConfig{
		BcryptCost:         bcrypt.MinCost,
		LoginAttemptLimit:  5,
		LoginWindowSeconds: 60,
	}
	tokens := service.NewTokenManager(testSecret, "carrental-test", time.Hour)
	bookingCfg := config.BookingConfig{MaxAdvanceDays: 365, Timezone: "UTC", PageSize: 50}

	svc := Services{
		Auth:      service.NewAuthService(db, tokens, repository.NewMemoryTokenStore(), nil, authCfg, logger),
		Cars:      service.NewCarService(db, logger),
		Customers: service.NewCustomerService(db, logger),
		Bookings:  service.NewBookingService(db, nil, nil, bookingCfg, logger),
		Users:     service.NewUserService(db, logger),
		DB:        db,
	}
	return db, svc
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	db, svc := newTestServices(t)

	_, err := svc.Auth.EnsureAdmin(context.Background(), config.AdminConfig{
		Email:    adminEmail,
		Password: adminPassword,
		Name:     "Admin",
	})
	require.NoError(t, err)

	srv := NewHTTPServer(cfg, svc, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{t: t, db: db, svc: svc, server: ts}
}

type apiResponse struct {
	Status  int
	Header  http.Header
	Message string          `json:"message"`
	Result  bool            `json:"result"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(method, path, token string, body any) apiResponse {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(e.t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst), string(r.Data))
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, resp.Status, resp.Message)

	var res service.LoginResult
	resp.decode(e.t, &res)
	require.NotEmpty(e.t, res.Token)
	return res.Token
}

func (e *testEnv) adminToken() string {
	return e.login(adminEmail, adminPassword)
}

// registerUser signs a user up through the API and returns their id and token.
func (e *testEnv) registerUser(email, mobile string) (string, string) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email:        email,
		Password:     testPassword,
		Name:         "Ravi Kumar",
		MobileNo:     mobile,
		CustomerCity: "Chennai",
	})
	require.Equal(e.t, http.StatusCreated, resp.Status, resp.Message)

	var user models.User
	resp.decode(e.t, &user)
	return user.ID, e.login(email, testPassword)
}

func (e *testEnv) createCar(token, regNo string, rate float64) models.Car {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/cars", token, models.Car{
		Brand:     "Maruti",
		Model:     "Swift",
		Year:      2022,
		Color:     "Red",
		DailyRate: rate,
		RegNo:     regNo,
	})
	require.Equal(e.t, http.StatusCreated, resp.Status, resp.Message)

	var car models.Car
	resp.decode(e.t, &car)
	return car
}

func today() models.Date {
	return models.DateOf(time.Now().UTC())
}
