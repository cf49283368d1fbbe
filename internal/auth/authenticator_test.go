package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireAuthError(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, msg, e.Message)
}

func TestAuthenticator_RegisterIssuesToken(t *testing.T) {
	a := newTestAuthenticator(t)

	sess, err := a.Register(t.Context(), NewUser{
		Email: "new@example.com", Password: testPassword, FirstName: "New", LastName: "User",
	})
	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.Empty(t, sess.User.PasswordHash)

	claims, err := a.Tokens().Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestAuthenticator_LoginByEmailAndUsername(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "ops@example.com", RoleAdmin)

	for name, c := range map[string]Credentials{
		"email":             {Email: "OPS@example.com", Password: testPassword},
		"username":          {Username: "ops", Password: testPassword},
		"email as username": {Username: "ops@example.com", Password: testPassword},
	} {
		t.Run(name, func(t *testing.T) {
			sess, err := a.Login(t.Context(), c)
			require.NoError(t, err)
			assert.Equal(t, u.ID, sess.User.ID)
			assert.Empty(t, sess.User.PasswordHash)

			claims, err := a.Tokens().Verify(sess.Token)
			require.NoError(t, err)
			assert.Equal(t, RoleAdmin, claims.Role)
		})
	}
}

func TestAuthenticator_LoginFailuresAreIndistinguishable(t *testing.T) {
	a := newTestAuthenticator(t)
	createTestUser(t, a.Store(), "known@example.com", RoleUser)

	_, unknownErr := a.Login(t.Context(), Credentials{Email: "unknown@example.com", Password: testPassword})
	_, wrongErr := a.Login(t.Context(), Credentials{Email: "known@example.com", Password: "wrong-password"})
	_, unknownName := a.Login(t.Context(), Credentials{Username: "unknown", Password: testPassword})

	for _, err := range []error{unknownErr, wrongErr, unknownName} {
		requireAuthError(t, err, KindUnauthorized, MsgInvalidCredentials)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestAuthenticator_LoginDeactivatedUser(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "sleepy@example.com", RoleUser)

	_, err := a.Store().Update(t.Context(), u.ID, UserPatch{IsActive: ptr(false)})
	require.NoError(t, err)

	_, err = a.Login(t.Context(), Credentials{Email: "sleepy@example.com", Password: testPassword})
	requireAuthError(t, err, KindUnauthorized, MsgUserInactive)

	// A wrong password still reports invalid credentials, not the account state.
	_, err = a.Login(t.Context(), Credentials{Email: "sleepy@example.com", Password: "nope-nope"})
	requireAuthError(t, err, KindUnauthorized, MsgInvalidCredentials)
}

func TestAuthenticator_LoginMalformedHash(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "corrupt@example.com", RoleUser)

	stored, err := a.Store().FindByID(t.Context(), u.ID, WithPasswordHash())
	require.NoError(t, err)
	stored.PasswordHash = "corrupted"
	require.NoError(t, a.Store().repo.Update(t.Context(), stored))

	_, err = a.Login(t.Context(), Credentials{Email: "corrupt@example.com", Password: testPassword})
	requireAuthError(t, err, KindUnauthorized, MsgInvalidCredentials)
}

func TestAuthenticator_LoginUpgradesWeakHash(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "upgrade@example.com", RoleUser)

	stronger, err := NewHasher(MinCost + 1)
	require.NoError(t, err)
	a.hasher = stronger
	a.store.hasher = stronger

	_, err = a.Login(t.Context(), Credentials{Email: "upgrade@example.com", Password: testPassword})
	require.NoError(t, err)

	stored, err := a.Store().FindByID(t.Context(), u.ID, WithPasswordHash())
	require.NoError(t, err)
	assert.False(t, stronger.NeedsRehash(stored.PasswordHash))
}

func TestAuthenticator_Authenticate(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := start
	a := newTestAuthenticator(t, WithClock(func() time.Time { return now }))

	u := createTestUser(t, a.Store(), "member@example.com", RoleUser)
	token, err := a.Tokens().Issue(u)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		got, err := a.Authenticate(t.Context(), "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Empty(t, got.PasswordHash)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := a.Authenticate(t.Context(), "")
		requireAuthError(t, err, KindUnauthorized, MsgNoToken)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		_, err := a.Authenticate(t.Context(), "Basic "+token)
		requireAuthError(t, err, KindUnauthorized, MsgNoToken)
	})

	t.Run("empty bearer", func(t *testing.T) {
		_, err := a.Authenticate(t.Context(), "Bearer   ")
		requireAuthError(t, err, KindUnauthorized, MsgNoToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := a.Authenticate(t.Context(), "Bearer not.a.jwt")
		requireAuthError(t, err, KindUnauthorized, MsgInvalidToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other, err := NewTokenService("some-other-secret-with-enough-length", time.Hour)
		require.NoError(t, err)
		forged, err := other.Issue(u)
		require.NoError(t, err)

		_, err = a.Authenticate(t.Context(), "Bearer "+forged)
		requireAuthError(t, err, KindUnauthorized, MsgInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		now = start.Add(2 * time.Hour)
		t.Cleanup(func() { now = start })

		_, err := a.Authenticate(t.Context(), "Bearer "+token)
		requireAuthError(t, err, KindUnauthorized, MsgTokenExpired)
	})
}

func TestAuthenticator_AuthenticateChecksStoredState(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "stateful@example.com", RoleUser)
	token, err := a.Tokens().Issue(u)
	require.NoError(t, err)

	_, err = a.Store().Update(t.Context(), u.ID, UserPatch{IsActive: ptr(false)})
	require.NoError(t, err)

	// The signature is still good; the stored flag decides.
	_, err = a.Tokens().Verify(token)
	require.NoError(t, err)

	_, err = a.Authenticate(t.Context(), "Bearer "+token)
	requireAuthError(t, err, KindUnauthorized, MsgUserInactive)

	_, err = a.Store().Delete(t.Context(), u.ID)
	require.NoError(t, err)

	_, err = a.Authenticate(t.Context(), "Bearer "+token)
	requireAuthError(t, err, KindUnauthorized, MsgUserGone)
}

func TestAuthenticator_AuthenticateUsesStoredRole(t *testing.T) {
	a := newTestAuthenticator(t)
	u := createTestUser(t, a.Store(), "promoted@example.com", RoleUser)
	token, err := a.Tokens().Issue(u)
	require.NoError(t, err)

	_, err = a.Store().Update(t.Context(), u.ID, UserPatch{Role: ptr(RoleAdmin)})
	require.NoError(t, err)

	got, err := a.Authenticate(t.Context(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)
}
