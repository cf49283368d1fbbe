package auth

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shvydak/homelab-dashboard/internal/infrastructure/database"
	"github.com/shvydak/homelab-dashboard/migrations"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "correct-horse"
)

// newTestDB opens a migrated SQLite database in a temp directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, db.Migrate(t.Context(), migrations.SQLite()))
	return db.DB
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(MinCost)
	require.NoError(t, err)
	return h
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewSQLiteUserRepository(newTestDB(t)), newTestHasher(t))
}

func newTestAuthenticator(t *testing.T, opts ...TokenOption) *Authenticator {
	t.Helper()
	store := newTestStore(t)
	tokens, err := NewTokenService(testSecret, time.Hour, opts...)
	require.NoError(t, err)
	return NewAuthenticator(store, store.hasher, tokens, slogDiscard())
}

func createTestUser(t *testing.T, s *Store, email string, role Role) *User {
	t.Helper()
	u, err := s.Create(t.Context(), NewUser{
		Email:     email,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func slogDiscard() *slog.Logger { return slog.New(slog.DiscardHandler) }
