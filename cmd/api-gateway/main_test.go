package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fleetops/api-gateway/app"
	"github.com/fleetops/api-gateway/config"
	"github.com/fleetops/api-gateway/firebase/firebasetest"
	"github.com/fleetops/api-gateway/identity"
	"github.com/fleetops/api-gateway/routes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testProjectID = "fleetops-e2e"

// directoryServer is an in-process identity service backed by a fixed directory
type directoryServer map[string]*identity.UserContextResponse

func (d directoryServer) GetUserContext(_ context.Context, req *identity.GetUserContextRequest) (*identity.UserContextResponse, error) {
	user, ok := d[req.FirebaseUID]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such user")
	}
	return user, nil
}

type gateway struct {
	URL      string
	emulator *firebasetest.Emulator
}

func (g *gateway) token(t *testing.T, subject string) string {
	t.Helper()
	return g.emulator.Token(t, subject)
}

func (g *gateway) get(t *testing.T, path, authorization string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, g.URL+path, nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// startGateway runs the full dependency graph against the Auth emulator
// stand-in and an in-memory identity service. Revocation is checked, so
// every subject must also be known to the emulator.
func startGateway(t *testing.T, directory directoryServer, accounts ...firebasetest.User) *gateway {
	t.Helper()

	emulator := firebasetest.NewEmulator(t, testProjectID)
	for _, u := range accounts {
		emulator.AddUser(u)
	}

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(identity.Codec{}))
	identity.RegisterIdentityServer(grpcServer, directory)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	cfg := testConfig()
	cfg.Firebase.EmulatorHost = emulator.Host()
	cfg.Firebase.CheckRevoked = true
	ctx := context.Background()

	deps, err := app.NewDependencies(ctx, cfg, zaptest.NewLogger(t),
		app.WithIdentityDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(ctx) })

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(ts.Close)

	return &gateway{URL: ts.URL, emulator: emulator}
}

func TestMain(m *testing.M) {
	os.Setenv("ENVIRONMENT", "test")
	os.Exit(m.Run())
}

func TestInitLogger(t *testing.T) {
	t.Run("json logger", func(t *testing.T) {
		logger, err := initLogger(testConfig())
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("console logger", func(t *testing.T) {
		cfg := testConfig()
		cfg.Observability.LogFormat = "console"
		cfg.Observability.LogLevel = "debug"

		logger, err := initLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := testConfig()
		cfg.Observability.LogLevel = "verbose"

		logger, err := initLogger(cfg)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestEndToEnd(t *testing.T) {
	directory := directoryServer{
		"uid_1":        {UserID: "uid_1", OrganizationID: "org_9", Role: "ADMIN"},
		"uid_2":        {UserID: "usr_2", Email: "driver@fleetops.io", OrganizationID: "org_9", Role: "USER"},
		"uid_su":       {UserID: "uid_su", OrganizationID: "org_9", Role: "SUPERUSER"},
		"uid_no":       {UserID: "uid_no", Role: "ADMIN"},
		"uid_revoked":  {UserID: "uid_revoked", OrganizationID: "org_9", Role: "ADMIN"},
		"uid_disabled": {UserID: "uid_disabled", OrganizationID: "org_9", Role: "ADMIN"},
	}
	gw := startGateway(t, directory,
		firebasetest.User{UID: "uid_1"},
		firebasetest.User{UID: "uid_2"},
		firebasetest.User{UID: "uid_su"},
		firebasetest.User{UID: "uid_no"},
		firebasetest.User{UID: "uid_ghost"},
		firebasetest.User{UID: "uid_revoked", ValidSince: time.Now().Add(time.Hour)},
		firebasetest.User{UID: "uid_disabled", Disabled: true},
	)

	const unauthorized = `{"error":"unauthorized","message":"Authentication required"}`

	t.Run("valid token resolves the user context", func(t *testing.T) {
		code, body := gw.get(t, "/auth/me", "Bearer "+gw.token(t, "uid_1"))
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"userId":"uid_1","organizationId":"org_9","role":"ADMIN"}`, body)
	})

	t.Run("email is carried through", func(t *testing.T) {
		code, body := gw.get(t, "/secure", "Bearer "+gw.token(t, "uid_2"))
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"user":{"userId":"usr_2","email":"driver@fleetops.io","organizationId":"org_9","role":"USER"}}`, body)
	})

	t.Run("missing header", func(t *testing.T) {
		code, body := gw.get(t, "/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.JSONEq(t, unauthorized, body)
	})

	rejections := []struct {
		name          string
		authorization func() string
	}{
		{"wrong scheme", func() string { return "Basic " + gw.token(t, "uid_1") }},
		{"garbage token", func() string { return "Bearer not.a.jwt" }},
		{"unknown role", func() string { return "Bearer " + gw.token(t, "uid_su") }},
		{"missing organization", func() string { return "Bearer " + gw.token(t, "uid_no") }},
		{"unknown user", func() string { return "Bearer " + gw.token(t, "uid_ghost") }},
		{"revoked session", func() string { return "Bearer " + gw.token(t, "uid_revoked") }},
		{"disabled account", func() string { return "Bearer " + gw.token(t, "uid_disabled") }},
		{"account deleted at the provider", func() string { return "Bearer " + gw.token(t, "uid_deleted") }},
	}
	for _, tc := range rejections {
		t.Run(tc.name, func(t *testing.T) {
			code, body := gw.get(t, "/auth/me", tc.authorization())
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.JSONEq(t, unauthorized, body)
		})
	}

	t.Run("role gate", func(t *testing.T) {
		code, _ := gw.get(t, "/auth/events/summary", "Bearer "+gw.token(t, "uid_2"))
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("metrics expose outcomes", func(t *testing.T) {
		code, body := gw.get(t, "/metrics", "")
		require.Equal(t, http.StatusOK, code)
		assert.True(t, strings.Contains(body, `gateway_authentications_total{outcome="success"}`))
		assert.True(t, strings.Contains(body, `gateway_authentications_total{outcome="enrichment_failed"}`))
	})

	t.Run("readiness", func(t *testing.T) {
		code, _ := gw.get(t, "/readyz", "")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("liveness under both paths", func(t *testing.T) {
		for _, path := range []string{"/health", "/healthz"} {
			code, _ := gw.get(t, path, "")
			assert.Equal(t, http.StatusOK, code, path)
		}
	})
}

func TestNewDependencies_IdentityUnreachable(t *testing.T) {
	emulator := firebasetest.NewEmulator(t, testProjectID)
	cfg := testConfig()
	cfg.Firebase.EmulatorHost = emulator.Host()
	cfg.Identity.DialTimeout = 200 * time.Millisecond

	_, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t),
		app.WithIdentityDialOptions(grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}
		})),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}

// Test helpers

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Firebase: config.FirebaseConfig{
			ProjectID: testProjectID,
		},
		Identity: config.IdentityConfig{
			Address:     "passthrough:///bufnet",
			CallTimeout: 2 * time.Second,
			DialTimeout: 2 * time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}
