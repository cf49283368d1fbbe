package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const bearerPrefix = "Bearer "

// Credentials is a login attempt. Username takes precedence over Email
// when both are set; a Username containing "@" is looked up as an email.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Authenticator ties the Store, Hasher and TokenService together for
// login, registration and per-request authentication.
type Authenticator struct {
	store  *Store
	hasher *Hasher
	tokens *TokenService
	logger *slog.Logger

	// decoyHash is compared against when no user matches a login, so unknown
	// users cost the same bcrypt work as wrong passwords.
	decoyOnce sync.Once
	decoyHash string
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(store *Store, hasher *Hasher, tokens *TokenService, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Tokens exposes the TokenService.
func (a *Authenticator) Tokens() *TokenService { return a.tokens }

// Store exposes the credential store.
func (a *Authenticator) Store() *Store { return a.store }

// Authenticate resolves the Authorization header value to a live, active user.
//
// Failures are *Error values of KindUnauthorized carrying one of MsgNoToken,
// MsgInvalidToken, MsgTokenExpired, MsgUserGone or MsgUserInactive, or
// KindInternal when the store cannot be read.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (*User, error) {
	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok {
		return nil, Unauthorized(MsgNoToken, nil)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, Unauthorized(MsgNoToken, nil)
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, Unauthorized(MsgTokenExpired, err)
		}
		return nil, Unauthorized(MsgInvalidToken, err)
	}

	// The token only names the user; the stored record decides.
	u, err := a.store.FindByID(ctx, claims.UserID, WithPasswordHash())
	if err != nil {
		return nil, Internal("Authentication failed", err)
	}
	if u == nil {
		return nil, Unauthorized(MsgUserGone, ErrUserNotFound)
	}
	if !u.IsActive {
		return nil, Unauthorized(MsgUserInactive, nil)
	}

	return u.redacted(), nil
}

// Register creates an account and issues its first token.
func (a *Authenticator) Register(ctx context.Context, in NewUser) (*Session, error) {
	u, err := a.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Issue(u)
	if err != nil {
		return nil, Internal("Registration failed", err)
	}
	return &Session{User: u, Token: token}, nil
}

// Login checks credentials and issues a token.
//
// Unknown users and wrong passwords fail identically with MsgInvalidCredentials.
// Unexpected failures are KindInternal with message "Login failed".
func (a *Authenticator) Login(ctx context.Context, c Credentials) (*Session, error) {
	var (
		u   *User
		err error
	)
	switch {
	case strings.Contains(c.Username, "@"):
		u, err = a.store.FindByEmail(ctx, c.Username, WithPasswordHash())
	case c.Username != "":
		u, err = a.store.FindByUsername(ctx, c.Username, WithPasswordHash())
	default:
		u, err = a.store.FindByEmail(ctx, c.Email, WithPasswordHash())
	}
	if err != nil {
		return nil, Internal("Login failed", err)
	}

	if u == nil {
		// Spend the same bcrypt work as a real comparison.
		_, _ = a.hasher.Verify(ctx, c.Password, a.decoy()) //nolint:errcheck // result is irrelevant
		return nil, Unauthorized(MsgInvalidCredentials, ErrInvalidCredentials)
	}

	ok, err := a.hasher.Verify(ctx, c.Password, u.PasswordHash)
	if err != nil {
		if !errors.Is(err, ErrHashMalformed) {
			return nil, Internal("Login failed", err)
		}
		a.logger.Error("stored password hash is malformed", "user_id", u.ID, "error", err)
	}
	if !ok {
		return nil, Unauthorized(MsgInvalidCredentials, ErrInvalidCredentials)
	}

	if !u.IsActive {
		return nil, Unauthorized(MsgUserInactive, nil)
	}

	if a.hasher.NeedsRehash(u.PasswordHash) {
		password := c.Password
		if _, err := a.store.Update(ctx, u.ID, UserPatch{Password: &password}); err != nil {
			a.logger.Warn("upgrading password hash failed", "user_id", u.ID, "error", err)
		}
	}

	token, err := a.tokens.Issue(u)
	if err != nil {
		return nil, Internal("Login failed", err)
	}
	return &Session{User: u.redacted(), Token: token}, nil
}

func (a *Authenticator) decoy() string {
	a.decoyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("homelab-decoy-password"), a.hasher.Cost())
		if err == nil {
			a.decoyHash = string(hash)
		}
	})
	return a.decoyHash
}
