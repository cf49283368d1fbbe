package auth

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAdminAccount_GeneratesPassword(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	password, err := SeedAdminAccount(t.Context(), s, SeedAdmin{
		Email: "admin@homelab.local", FirstName: "Home", LastName: "Admin",
	}, logger)
	require.NoError(t, err)
	require.Len(t, password, 2*seedPasswordBytes)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), password)

	admin, err := s.FindByEmail(t.Context(), "admin@homelab.local", WithPasswordHash())
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, RoleAdmin, admin.Role)

	ok, err := s.hasher.Verify(t.Context(), password, admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedAdminAccount_SkipsWhenUsersExist(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "existing@example.com", RoleUser)

	password, err := SeedAdminAccount(t.Context(), s, SeedAdmin{
		Email: "admin@homelab.local", Password: "given-password", FirstName: "Home", LastName: "Admin",
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Empty(t, password)

	admin, err := s.FindByEmail(t.Context(), "admin@homelab.local")
	require.NoError(t, err)
	assert.Nil(t, admin)
}

func TestSeedAdminAccount_UsesGivenPassword(t *testing.T) {
	s := newTestStore(t)

	password, err := SeedAdminAccount(t.Context(), s, SeedAdmin{
		Email: "admin@homelab.local", Password: "given-password", FirstName: "Home", LastName: "Admin",
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, "given-password", password)
}
