package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const pgUserColumns = "id, email, username, password_hash, first_name, last_name, role, is_active, created_at, updated_at"

// PostgresUserRepository implements UserRepository on PostgreSQL. The
// users_email_lower_key index enforces case-insensitive email uniqueness.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a PostgreSQL-backed user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts u.
func (r *PostgresUserRepository) Create(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (`+pgUserColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "SELECT "+pgUserColumns+" FROM users WHERE id = $1", id)
}

// GetByEmail returns the user with the given email, ignoring case.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "SELECT "+pgUserColumns+" FROM users WHERE lower(email) = lower($1)", email)
}

// GetByEmailLocalPart returns the earliest user whose email begins with local@.
func (r *PostgresUserRepository) GetByEmailLocalPart(ctx context.Context, local string) (*User, error) {
	return r.getOne(ctx,
		"SELECT "+pgUserColumns+` FROM users WHERE lower(email) LIKE lower($1) ESCAPE '\' ORDER BY created_at, id LIMIT 1`,
		escapeLike(local)+"@%",
	)
}

// List returns all users in creation order.
func (r *PostgresUserRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+pgUserColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanPgUser(rows)
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
func (r *PostgresUserRepository) Update(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $1, username = $2, password_hash = $3, first_name = $4, last_name = $5,
		 role = $6, is_active = $7, updated_at = $8 WHERE id = $9`,
		u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		string(u.Role), u.IsActive, u.UpdatedAt, u.ID,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user with the given ID.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the number of users.
func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, args ...any) (*User, error) {
	return scanPgUser(r.pool.QueryRow(ctx, query, args...))
}

func scanPgUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.Role = Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
