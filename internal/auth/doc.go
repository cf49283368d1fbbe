// Package auth is the authentication subsystem of the homelab dashboard.
//
// It is built from five parts, leaf first:
//   - Store: user records with validation, case-insensitive unique email,
//     and hashing on create or password change (UserRepository backends for
//     SQLite, PostgreSQL and MongoDB)
//   - Hasher: bcrypt with a minimum cost of 10, bounded by a semaphore
//   - TokenService: HS256 JWTs carrying userId, email and role
//   - Authenticator: login, registration, and per-request resolution of a
//     bearer token to a live, active user
//   - CheckRole: set-membership role gate
//
// Tokens are stateless. Deactivating a user takes effect on their next
// request because every request re-reads the stored record; nothing else
// revokes a token before it expires.
//
// Security Considerations:
//   - PasswordHash is tagged json:"-" and stripped from Store results unless
//     WithPasswordHash is requested
//   - Unknown users and wrong passwords produce the same error and cost the
//     same bcrypt work
package auth
