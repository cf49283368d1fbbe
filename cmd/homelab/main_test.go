package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shvydak/homelab-dashboard/internal/auth"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/config"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/logging"
	"github.com/shvydak/homelab-dashboard/internal/ratelimit"
)

const testJWTSecret = "test-secret-for-development-only-0123456789"

// writeTestConfig writes a minimal valid config to a temp dir, points
// HOMELAB_CONFIG at it and moves into that dir so no stray .env is read.
func writeTestConfig(t *testing.T, port int, extra string) string {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "homelab.db")
	content := fmt.Sprintf(`
environment: test

api:
  host: "127.0.0.1"
  port: %d

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: text
  output: stderr

security:
  jwt:
    secret: %q
    expires_in: "1h"
  bcrypt_cost: 10
%s`, port, dbPath, testJWTSecret, extra)

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("HOMELAB_CONFIG", configPath)
	t.Chdir(dir)
	return dbPath
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HOMELAB_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HOMELAB_CONFIG", "/etc/homelab/config.yaml")
	if got := getConfigPath(); got != "/etc/homelab/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOMELAB_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("HOMELAB_API_PORT", "9123")

	cfg, err := loadConfig(logging.Discard())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Store.Driver != config.StoreDriverSQLite {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.API.Port != 9123 {
		t.Errorf("API.Port = %d, want env override 9123", cfg.API.Port)
	}
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	writeTestConfig(t, 8080, "")
	if err := os.WriteFile(".env", []byte("HOMELAB_ENV=staging\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("HOMELAB_ENV") })

	cfg, err := loadConfig(logging.Discard())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want staging from .env", cfg.Environment)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	writeTestConfig(t, 0, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with an invalid port")
	}
	if !strings.Contains(err.Error(), "api.port") {
		t.Errorf("error = %v, want api.port problem", err)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	writeTestConfig(t, port, `
seed:
  enabled: true
  admin_email: "admin@example.com"
  admin_password: "bootstrap-password"
  admin_first_name: "Admin"
  admin_last_name: "User"
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:gosec,noctx // test URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET /health status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestRunUserAdd(t *testing.T) {
	dbPath := writeTestConfig(t, 8080, "")

	var out bytes.Buffer
	err := runUserAdd(context.Background(),
		[]string{"-email", "Ops@Example.com", "-role", "admin", "-first", "Ops", "-last", "Team"},
		strings.NewReader("hunter22-long\n"), &out)
	if err != nil {
		t.Fatalf("runUserAdd() error = %v", err)
	}
	if !strings.Contains(out.String(), "created admin ops@example.com") {
		t.Errorf("output = %q", out.String())
	}

	cfg, err := loadConfig(logging.Discard())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Database.Path != dbPath {
		t.Fatalf("Database.Path = %q, want %q", cfg.Database.Path, dbPath)
	}
	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	defer db.Close()

	authn, closeStore, err := buildAuthenticator(context.Background(), cfg, db, logging.Discard())
	if err != nil {
		t.Fatalf("buildAuthenticator() error = %v", err)
	}
	defer closeStore()

	session, err := authn.Login(context.Background(), auth.Credentials{Email: "ops@example.com", Password: "hunter22-long"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.User.Role != auth.RoleAdmin {
		t.Errorf("Role = %q, want admin", session.User.Role)
	}
}

func TestRunUserAdd_Rejections(t *testing.T) {
	writeTestConfig(t, 8080, "")

	tests := []struct {
		name    string
		args    []string
		input   string
		wantErr string
	}{
		{"missing email", []string{"-first", "A", "-last", "B"}, "password1\n", "-email is required"},
		{"bad role", []string{"-email", "a@example.com", "-role", "root"}, "password1\n", `role "root"`},
		{"short password", []string{"-email", "a@example.com", "-first", "A", "-last", "B"}, "123\n", "at least 6 characters"},
		{"missing names", []string{"-email", "a@example.com"}, "password1\n", "First name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runUserAdd(context.Background(), tt.args, strings.NewReader(tt.input), &out)
			if err == nil {
				t.Fatal("runUserAdd() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildLimiter(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	log := logging.Discard()

	cfg.Security.RateLimit.Enabled = false
	limiter, closeFn := buildLimiter(context.Background(), cfg, log)
	closeFn()
	if limiter != nil {
		t.Errorf("limiter = %T, want nil when disabled", limiter)
	}

	cfg.Security.RateLimit.Enabled = true
	cfg.Redis.Enabled = false
	limiter, closeFn = buildLimiter(context.Background(), cfg, log)
	closeFn()
	if _, ok := limiter.(*ratelimit.MemoryLimiter); !ok {
		t.Errorf("limiter = %T, want *ratelimit.MemoryLimiter", limiter)
	}

	// An unreachable Redis degrades to the in-memory limiter.
	cfg.Redis.Enabled = true
	cfg.Redis.URL = fmt.Sprintf("redis://127.0.0.1:%d/0", freePort(t))
	limiter, closeFn = buildLimiter(context.Background(), cfg, log)
	closeFn()
	if _, ok := limiter.(*ratelimit.MemoryLimiter); !ok {
		t.Errorf("limiter = %T, want *ratelimit.MemoryLimiter", limiter)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
