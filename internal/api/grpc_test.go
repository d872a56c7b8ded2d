package api

import (
	"context"
	"net"
	"testing"

	"carrental/internal/config"
	"carrental/internal/models"
	"carrental/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func grpcTestConfig() *config.APIConfig {
	return &config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "crm-key", Extra: "crm-extra", Name: "crm"},
				{Key: "cars-only", Extra: "x", Name: "catalog", Permissions: []string{permReadCars}},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 100},
	}
}

func startBufconnServer(t *testing.T, cfg *config.APIConfig, cars *service.CarService) *FleetClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv, err := newGRPCServer(cfg, NewFleetService(cars), testLogger())
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewFleetClient(conn)
}

func withKey(key, extra string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", key, "x-api-extra", extra)
}

func TestFleetService(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	car := &models.Car{ID: uuid.NewString(), Brand: "Honda", Model: "City", Year: 2021, DailyRate: 1800, RegNo: "GJ01HC0001"}
	require.NoError(t, db.CreateCar(ctx, car))

	client := startBufconnServer(t, grpcTestConfig(), svc.Cars)

	t.Run("list cars", func(t *testing.T) {
		var header metadata.MD
		out, err := client.ListCars(withKey("crm-key", "crm-extra"), grpc.Header(&header))
		require.NoError(t, err)

		cars := out.GetFields()["cars"].GetListValue().GetValues()
		require.Len(t, cars, 1)
		fields := cars[0].GetStructValue().GetFields()
		assert.Equal(t, car.ID, fields["id"].GetStringValue())
		assert.Equal(t, "GJ01HC0001", fields["reg_no"].GetStringValue())
		assert.Equal(t, 1800.0, fields["daily_rate"].GetNumberValue())
		assert.NotEmpty(t, header.Get(requestIDMetadataKey))
	})

	t.Run("availability", func(t *testing.T) {
		out, err := client.CheckAvailability(withKey("crm-key", "crm-extra"), car.ID, "2030-01-01", "2030-01-03")
		require.NoError(t, err)
		assert.True(t, out.GetFields()["available"].GetBoolValue())
		assert.Empty(t, out.GetFields()["conflicts"].GetListValue().GetValues())
	})

	t.Run("unknown car", func(t *testing.T) {
		_, err := client.CheckAvailability(withKey("crm-key", "crm-extra"), "missing", "2030-01-01", "2030-01-03")
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("bad dates", func(t *testing.T) {
		_, err := client.CheckAvailability(withKey("crm-key", "crm-extra"), car.ID, "01/01/2030", "2030-01-03")
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.CheckAvailability(withKey("crm-key", "crm-extra"), car.ID, "2030-01-05", "2030-01-03")
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := client.ListCars(context.Background())
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("permission scoped", func(t *testing.T) {
		_, err := client.ListCars(withKey("cars-only", "x"))
		assert.NoError(t, err)

		_, err = client.CheckAvailability(withKey("cars-only", "x"), car.ID, "2030-01-01", "2030-01-03")
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestAuthInterceptor(t *testing.T) {
	cfg := grpcTestConfig()
	interceptor := NewAuthInterceptor(cfg).Unary()

	handler := func(_ context.Context, _ any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: fleetListCarsMethod}

	incoming := func(pairs ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
	}

	t.Run("Success", func(t *testing.T) {
		resp, err := interceptor(incoming("x-api-key", "crm-key", "x-api-extra", "crm-extra"), "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := interceptor(incoming("x-api-key", "nope", "x-api-extra", "crm-extra"), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		_, err := interceptor(incoming("x-api-key", "crm-key", "x-api-extra", "wrong"), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Disabled", func(t *testing.T) {
		open := NewAuthInterceptor(&config.APIConfig{}).Unary()
		resp, err := open(context.Background(), "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("RateLimited", func(t *testing.T) {
		limited := grpcTestConfig()
		limited.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
		ic := NewAuthInterceptor(limited).Unary()
		ctx := incoming("x-api-key", "crm-key", "x-api-extra", "crm-extra")

		_, err := ic(ctx, "req", info, handler)
		assert.NoError(t, err)
		_, err = ic(ctx, "req", info, handler)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	})
}

func TestRequiredPermission(t *testing.T) {
	assert.Equal(t, permReadCars, requiredPermission(fleetListCarsMethod))
	assert.Equal(t, permReadAvailability, requiredPermission(fleetCheckAvailabilityRPC))
	assert.Empty(t, requiredPermission("/grpc.health.v1.Health/Check"))
}

func TestBuildTLSConfigErrors(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	assert.Error(t, err)
}
