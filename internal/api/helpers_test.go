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

	"github.com/stretchr/testify/require"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/config"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/database"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/logging"
	"github.com/shvydak/homelab-dashboard/internal/ratelimit"
	"github.com/shvydak/homelab-dashboard/migrations"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "correct-horse"
)

// testEnv is a server wired to a temp SQLite database, without a listener.
type testEnv struct {
	srv    *Server
	router http.Handler
	store  *auth.Store
	tokens *auth.TokenService
	audit  *audit.SQLiteRepository
}

type envOption func(*config.Config, *Deps)

func withLimiter(l ratelimit.Limiter) envOption {
	return func(_ *config.Config, d *Deps) { d.Limiter = l }
}

func withEnvironment(env string) envOption {
	return func(c *config.Config, _ *Deps) { c.Environment = env }
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		API: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
		Store: config.StoreConfig{Driver: config.StoreDriverSQLite},
		WebSocket: config.WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Dashboard: config.DashboardConfig{
			Services: []config.ServiceConfig{
				{Name: "Immich Photos", URL: "http://photos.lan", Status: "online"},
				{Name: "Plex", URL: "http://plex.lan"},
			},
		},
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	require.NoError(t, db.Migrate(t.Context(), migrations.SQLite()))

	hasher, err := auth.NewHasher(auth.MinCost)
	require.NoError(t, err)
	store := auth.NewStore(auth.NewSQLiteUserRepository(db.DB), hasher)
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	log := logging.Discard()
	auditRepo := audit.NewSQLiteRepository(db.DB)

	cfg := testConfig()
	deps := Deps{
		Config:    cfg,
		Logger:    log,
		Auth:      auth.NewAuthenticator(store, hasher, tokens, log.Logger),
		AuditRepo: auditRepo,
		Version:   "test",
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)

	return &testEnv{
		srv:    srv,
		router: srv.buildRouter(),
		store:  store,
		tokens: tokens,
		audit:  auditRepo,
	}
}

// runAuditDrain processes queued audit entries until the returned stop
// function is called; stop waits for the queue to empty.
func (e *testEnv) runAuditDrain(t *testing.T) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.srv.drainAuditLog(ctx)
		close(done)
	}()
	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func (e *testEnv) createUser(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()
	u, err := e.store.Create(t.Context(), auth.NewUser{
		Email:     email,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) tokenFor(t *testing.T, u *auth.User) string {
	t.Helper()
	token, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

// do sends a request through the router. body is JSON-encoded unless it
// is a string, which is sent as is.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// envelope mirrors successResponse and errorResponse for decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

// requireError asserts a failure envelope with the given status and message.
func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) envelope {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	env := decodeEnvelope(t, w)
	require.False(t, env.Success)
	require.Equal(t, message, env.Error)
	return env
}

// sessionData is the data of register and login responses.
type sessionData struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

// failingLimiter simulates an unreachable rate limit backend.
type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, ratelimit.ErrUnavailable
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
