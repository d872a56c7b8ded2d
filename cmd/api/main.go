package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrental/internal/api"
	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/google"
	"carrental/internal/logging"
	"carrental/internal/metrics"
	"carrental/internal/models"
	"carrental/internal/notify"
	"carrental/internal/repository"
	"carrental/internal/service"
	"carrental/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

type services struct {
	auth      *service.AuthService
	cars      *service.CarService
	customers *service.CustomerService
	bookings  *service.BookingService
	users     *service.UserService
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	tokenStore := initTokenStore(ctx, redisClient, &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, db, &logger); sheetsService != nil {
		sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy, &logger)
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	tokens := service.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	svc := services{
		auth:      service.NewAuthService(db, tokens, tokenStore, eventBus, cfg.Auth, &logger),
		cars:      service.NewCarService(db, &logger),
		customers: service.NewCustomerService(db, &logger),
		bookings:  service.NewBookingService(db, eventBus, syncWorker, cfg.Booking, &logger),
		users:     service.NewUserService(db, &logger),
	}

	if err := bootstrap(ctx, cfg, svc, &logger); err != nil {
		return err
	}

	startNotifier(ctx, cfg, eventBus, db, &logger)

	backupService := database.NewBackupService(db, cfg.Backup, &logger)
	if err := backupService.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("backup service")
		return err
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Auth:      svc.auth,
		Cars:      svc.cars,
		Customers: svc.customers,
		Bookings:  svc.bookings,
		Users:     svc.users,
		DB:        db,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewFleetService(svc.cars), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initTokenStore prefers Redis and falls back to process memory when it is absent or down.
func initTokenStore(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.TokenStore {
	memory := repository.NewMemoryTokenStore()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				memory.Sweep()
			}
		}
	}()

	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverTokenStore(repository.NewRedisTokenStore(redisClient), memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadsheetID == "" {
		logger.Info().Msg("google sheets not configured, booking mirror disabled")
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadsheetID, cfg.Google.BookingSheetName, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Warn().Str("service_account", email).Msg("share the spreadsheet with this account")
		}
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed")
	}

	if cfg.Google.ResyncOnStart {
		bookings, err := db.ListBookings(ctx, 0, 0)
		if err != nil {
			logger.Warn().Err(err).Msg("load bookings for sheet resync")
		} else if err := sheetsService.ReplaceBookings(ctx, bookings); err != nil {
			logger.Warn().Err(err).Msg("google sheets resync failed")
		} else {
			logger.Info().Int("bookings", len(bookings)).Msg("google sheets resynced")
		}
	}

	go sheetsService.RefreshCache(ctx, 15*time.Minute)

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// bootstrap ensures the configured admin exists and seeds the fleet file.
func bootstrap(ctx context.Context, cfg *config.Config, svc services, logger *zerolog.Logger) error {
	created, err := svc.auth.EnsureAdmin(ctx, cfg.Admin)
	if err != nil {
		logger.Error().Err(err).Msg("ensure admin")
		return err
	}
	if created {
		logger.Info().Str("email", cfg.Admin.Email).Msg("bootstrap admin created")
	}

	cars, err := loadFleet(cfg.Fleet.SeedFile)
	if err != nil {
		logger.Error().Err(err).Str("fleet_file", cfg.Fleet.SeedFile).Msg("load fleet")
		return err
	}
	if len(cars) == 0 {
		return nil
	}
	if _, err := svc.cars.SeedFleet(ctx, cars); err != nil {
		logger.Error().Err(err).Msg("seed fleet")
		return err
	}
	return nil
}

func loadFleet(path string) ([]models.Car, error) {
	if path == "" {
		path = os.Getenv("FLEET_PATH")
	}
	if path == "" {
		path = "configs/fleet.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var fleet struct {
		Cars []models.Car `yaml:"cars"`
	}
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}
	return fleet.Cars, nil
}

func startNotifier(ctx context.Context, cfg *config.Config, bus *events.EventBus, db *database.DB, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		logger.Info().Msg("telegram not configured, admin notifications disabled")
		return
	}

	botAPI, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.NewNotifier(botAPI, cfg.Telegram.AdminChatIDs, logger)
	notifier.Subscribe(bus)
	go notifier.Start(ctx)

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if err := notifier.StartDigest(ctx, db, cfg.Telegram.ReminderTime, loc); err != nil {
		logger.Warn().Err(err).Str("reminder_time", cfg.Telegram.ReminderTime).Msg("daily digest disabled")
	}
	logger.Info().Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.Start()
	}()

	logger.Info().Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-httpErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
