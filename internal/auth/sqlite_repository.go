package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// sqliteTimeFormat keeps fixed-width fractional seconds so that text
// ordering of created_at matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

const sqliteUserColumns = "id, email, username, password_hash, first_name, last_name, role, is_active, created_at, updated_at"

// SQLiteUserRepository implements UserRepository on the users table created
// by the embedded SQLite migrations.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a SQLite-backed user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts u.
func (r *SQLiteUserRepository) Create(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), boolToInt(u.IsActive),
		formatSQLiteTime(u.CreatedAt), formatSQLiteTime(u.UpdatedAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "SELECT "+sqliteUserColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail returns the user with the given email, ignoring case.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "SELECT "+sqliteUserColumns+" FROM users WHERE email = ? COLLATE NOCASE", email)
}

// GetByEmailLocalPart returns the earliest user whose email begins with local@.
func (r *SQLiteUserRepository) GetByEmailLocalPart(ctx context.Context, local string) (*User, error) {
	return r.getOne(ctx,
		"SELECT "+sqliteUserColumns+` FROM users WHERE email LIKE ? ESCAPE '\' ORDER BY created_at, rowid LIMIT 1`,
		escapeLike(local)+"@%",
	)
}

// List returns all users in creation order.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+sqliteUserColumns+" FROM users ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Update overwrites the mutable columns of u.
func (r *SQLiteUserRepository) Update(ctx context.Context, u *User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, username = ?, password_hash = ?, first_name = ?, last_name = ?,
		 role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), boolToInt(u.IsActive), formatSQLiteTime(u.UpdatedAt), u.ID,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("updating user: %w", err)
	}

	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user with the given ID.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (r *SQLiteUserRepository) getOne(ctx context.Context, query string, args ...any) (*User, error) {
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(s scanner) (*User, error) {
	var (
		u                    User
		role                 string
		isActive             int
		createdAt, updatedAt string
	)
	err := s.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.IsActive = isActive != 0
	u.CreatedAt, _ = time.Parse(sqliteTimeFormat, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(sqliteTimeFormat, updatedAt) //nolint:errcheck // format is controlled
	return &u, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// escapeLike escapes LIKE wildcards so local is matched literally.
func escapeLike(local string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(local)
}
