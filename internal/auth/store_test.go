package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateHashesPassword(t *testing.T) {
	s := newTestStore(t)

	u := createTestUser(t, s, "  Ada@Example.COM ", "")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.Regexp(t, `^usr-[0-9a-f]{8}$`, u.ID)
	assert.Empty(t, u.PasswordHash, "Create must not return the hash")
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	stored, err := s.FindByID(t.Context(), u.ID, WithPasswordHash())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, testPassword, stored.PasswordHash)

	ok, err := s.hasher.Verify(t.Context(), testPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_CreateValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(t.Context(), NewUser{Email: "not-an-email", Password: "123"})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasField("email"))
	assert.True(t, ve.HasField("password"))
	assert.True(t, ve.HasField("firstName"))
	assert.True(t, ve.HasField("lastName"))
	assert.Equal(t,
		"Please enter a valid email address, First name is required, Last name is required, Password must be at least 6 characters long",
		ve.Error())
	assert.Equal(t, KindValidation, KindOf(err))

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_CreateRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(t.Context(), NewUser{
		Email: "root@example.com", Password: testPassword,
		FirstName: "Root", LastName: "User", Role: "superuser",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasField("role"))
}

func TestStore_CreateDuplicateEmailIgnoresCase(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "grace@example.com", RoleUser)

	_, err := s.Create(t.Context(), NewUser{
		Email: "GRACE@example.com", Password: testPassword, FirstName: "G", LastName: "H",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgEmailExists, ve.Error())
}

func TestStore_ConcurrentCreateSameEmail(t *testing.T) {
	s := newTestStore(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			email := "race@example.com"
			if i%2 == 1 {
				email = "RACE@Example.com"
			}
			_, err := s.Create(t.Context(), NewUser{
				Email: email, Password: testPassword, FirstName: "Race", LastName: "Condition",
			})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			var ve *ValidationError
			if assert.ErrorAs(t, err, &ve) && ve.HasField("email") {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, dupes)

	n, err := s.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_RepositoryUniqueIndexIsFinalGuard(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "index@example.com", RoleUser)

	// Bypass Store's check and write straight to the repository.
	now := time.Now()
	err := s.repo.Create(t.Context(), &User{
		ID: newUserID(), Email: "INDEX@example.com", PasswordHash: "x",
		FirstName: "I", LastName: "X", Role: RoleUser, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestStore_FindMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	u, err := s.FindByID(t.Context(), "usr-missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.FindByEmail(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.FindByUsername(t.Context(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.FindByID(t.Context(), "")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStore_FindByEmailHidesHashByDefault(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "hidden@example.com", RoleUser)

	u, err := s.FindByEmail(t.Context(), "HIDDEN@example.com ")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Empty(t, u.PasswordHash)

	u, err = s.FindByEmail(t.Context(), "hidden@example.com", WithPasswordHash())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestStore_FindByUsernameEarliestWins(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base.Add(time.Minute) }
	later := createTestUser(t, s, "alex@second.example.com", RoleUser)
	s.now = func() time.Time { return base }
	earlier := createTestUser(t, s, "alex@first.example.com", RoleUser)

	u, err := s.FindByUsername(t.Context(), "Alex")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, earlier.ID, u.ID)
	assert.NotEqual(t, later.ID, u.ID)
}

func TestStore_FindByUsernameMatchesLiterally(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "a_b@example.com", RoleUser)
	createTestUser(t, s, "axb@example.com", RoleUser)

	u, err := s.FindByUsername(t.Context(), "a%")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.FindByUsername(t.Context(), "axb")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "axb@example.com", u.Email)

	u, err = s.FindByUsername(t.Context(), "someone@example.com")
	require.NoError(t, err)
	assert.Nil(t, u, "names containing @ are not usernames")
}

func TestStore_UpdateProfileKeepsHash(t *testing.T) {
	s := newTestStore(t)
	created := createTestUser(t, s, "keep@example.com", RoleUser)

	before, err := s.FindByID(t.Context(), created.ID, WithPasswordHash())
	require.NoError(t, err)

	s.now = func() time.Time { return created.CreatedAt.Add(time.Hour) }
	updated, err := s.Update(t.Context(), created.ID, UserPatch{FirstName: ptr("Kept")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Kept", updated.FirstName)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	after, err := s.FindByID(t.Context(), created.ID, WithPasswordHash())
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestStore_UpdatePasswordRehashes(t *testing.T) {
	s := newTestStore(t)
	created := createTestUser(t, s, "rotate@example.com", RoleUser)

	_, err := s.Update(t.Context(), created.ID, UserPatch{Password: ptr("brand-new-pass")})
	require.NoError(t, err)

	stored, err := s.FindByID(t.Context(), created.ID, WithPasswordHash())
	require.NoError(t, err)

	ok, err := s.hasher.Verify(t.Context(), "brand-new-pass", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.hasher.Verify(t.Context(), testPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpdateEmail(t *testing.T) {
	s := newTestStore(t)
	a := createTestUser(t, s, "a@example.com", RoleUser)
	createTestUser(t, s, "b@example.com", RoleUser)

	// Re-saving the same address, differently cased, is not a conflict.
	u, err := s.Update(t.Context(), a.ID, UserPatch{Email: ptr("A@EXAMPLE.com")})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = s.Update(t.Context(), a.ID, UserPatch{Email: ptr("B@example.com")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgEmailExists, ve.Error())

	_, err = s.Update(t.Context(), a.ID, UserPatch{Email: ptr("broken")})
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasField("email"))
}

func TestStore_UpdateMissingUser(t *testing.T) {
	s := newTestStore(t)

	u, err := s.Update(t.Context(), "usr-missing", UserPatch{FirstName: ptr("Nobody")})
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStore_UpdateRejectsShortPassword(t *testing.T) {
	s := newTestStore(t)
	created := createTestUser(t, s, "short@example.com", RoleUser)

	_, err := s.Update(t.Context(), created.ID, UserPatch{Password: ptr("123")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasField("password"))
}

func TestStore_DeleteAndList(t *testing.T) {
	s := newTestStore(t)
	a := createTestUser(t, s, "first@example.com", RoleAdmin)
	b := createTestUser(t, s, "second@example.com", RoleUser)

	users, err := s.List(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}

	removed, err := s.Delete(t.Context(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, b.ID, removed.ID)
	assert.Empty(t, removed.PasswordHash)

	removed, err = s.Delete(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Nil(t, removed)

	users, err = s.List(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.ID, users[0].ID)
}
