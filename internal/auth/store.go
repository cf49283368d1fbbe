package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserRepository persists user records. Implementations must enforce email
// uniqueness (case-insensitive) in storage and report violations as
// ErrEmailExists, and report missing rows as ErrUserNotFound.
//
// Repositories store exactly what they are given; IDs, timestamps, hashing
// and validation belong to Store.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByEmailLocalPart returns the earliest-created user whose email
	// starts with local + "@", compared case-insensitively.
	GetByEmailLocalPart(ctx context.Context, local string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	// Update overwrites every mutable column, password hash included.
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Store is the credential store: validation, uniqueness and hashing in
// front of a UserRepository.
//
// Lookups return (nil, nil) when nothing matches. Returned users carry no
// password hash unless WithPasswordHash is passed.
type Store struct {
	repo   UserRepository
	hasher *Hasher
	now    func() time.Time

	// writeMu serialises the check-then-write of Create and Update.
	// The storage unique index remains the final guard.
	writeMu sync.Mutex
}

// NewStore creates a Store.
func NewStore(repo UserRepository, hasher *Hasher) *Store {
	return &Store{repo: repo, hasher: hasher, now: time.Now}
}

type findOptions struct {
	withHash bool
}

// FindOption adjusts a Store lookup.
type FindOption func(*findOptions)

// WithPasswordHash keeps the password hash on the returned user.
func WithPasswordHash() FindOption {
	return func(o *findOptions) { o.withHash = true }
}

func project(u *User, opts []FindOption) *User {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.withHash {
		return u
	}
	return u.redacted()
}

// timestamp is the current time at the precision every backend can store.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func newUserID() string {
	return "usr-" + uuid.NewString()[:8]
}

// Create validates in, hashes the password and persists a new user.
// Validation problems, including a taken email, are returned as *ValidationError.
func (s *Store) Create(ctx context.Context, in NewUser) (*User, error) {
	u := &User{
		Email:     NormalizeEmail(in.Email),
		Username:  strings.TrimSpace(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
		IsActive:  true,
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	v := &ValidationError{}
	validateProfile(v, u)
	validatePassword(v, in.Password)
	if err := v.orNil(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.ensureEmailFree(ctx, u.Email, ""); err != nil {
		return nil, err
	}

	now := s.timestamp()
	u.ID = newUserID()
	u.PasswordHash = hash
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, duplicateEmail()
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return u.redacted(), nil
}

// FindByID looks a user up by ID.
func (s *Store) FindByID(ctx context.Context, id string, opts ...FindOption) (*User, error) {
	if id == "" {
		return nil, nil
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return project(u, opts), nil
}

// FindByEmail looks a user up by email, ignoring case and surrounding space.
func (s *Store) FindByEmail(ctx context.Context, email string, opts ...FindOption) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return project(u, opts), nil
}

// FindByUsername resolves a login name to the user whose email local part
// equals it. When several addresses share the local part, the account
// created first wins.
func (s *Store) FindByUsername(ctx context.Context, username string, opts ...FindOption) (*User, error) {
	local := NormalizeEmail(username)
	if local == "" || strings.Contains(local, "@") {
		return nil, nil
	}
	u, err := s.repo.GetByEmailLocalPart(ctx, local)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return project(u, opts), nil
}

// Update applies patch to the user with the given ID. The password is
// re-hashed only when the patch carries one. Returns (nil, nil) when the
// user does not exist.
func (s *Store) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	var newHash string
	if patch.Password != nil {
		v := &ValidationError{}
		validatePassword(v, *patch.Password)
		if err := v.orNil(); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(ctx, *patch.Password)
		if err != nil {
			return nil, err
		}
		newHash = hash
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading user for update: %w", err)
	}

	previousEmail := u.Email
	applyPatch(u, patch)

	v := &ValidationError{}
	validateProfile(v, u)
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if u.Email != previousEmail {
		if err := s.ensureEmailFree(ctx, u.Email, u.ID); err != nil {
			return nil, err
		}
	}

	if patch.Password != nil {
		u.PasswordHash = newHash
	}
	u.UpdatedAt = s.timestamp()

	if err := s.repo.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return nil, nil
		case errors.Is(err, ErrEmailExists):
			return nil, duplicateEmail()
		default:
			return nil, fmt.Errorf("updating user: %w", err)
		}
	}

	return u.redacted(), nil
}

func applyPatch(u *User, p UserPatch) {
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.Username != nil {
		u.Username = strings.TrimSpace(*p.Username)
	}
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}

// Delete removes a user and returns the removed record, or (nil, nil) if
// there was nothing to remove.
func (s *Store) Delete(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading user for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("deleting user: %w", err)
	}
	return u.redacted(), nil
}

// List returns every user in creation order.
func (s *Store) List(ctx context.Context) ([]*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]*User, len(users))
	for i, u := range users {
		out[i] = u.redacted()
	}
	return out, nil
}

// Count returns the number of users.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// ensureEmailFree fails with a duplicate-email ValidationError when another
// user (not exceptID) already has email.
func (s *Store) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking email uniqueness: %w", err)
	case existing.ID == exceptID:
		return nil
	default:
		return duplicateEmail()
	}
}
