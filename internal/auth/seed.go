package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes in a generated admin password.
const seedPasswordBytes = 16

// SeedAdmin describes the administrator created on first boot.
type SeedAdmin struct {
	Email     string
	Password  string // generated when empty
	FirstName string
	LastName  string
}

// SeedAdminAccount creates an admin account if the store is empty.
// A generated password is logged once at WARN and returned; it must be
// changed after first login. Returns "" when seeding was skipped.
func SeedAdminAccount(ctx context.Context, store *Store, seed SeedAdmin, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	password := seed.Password
	generated := password == ""
	if generated {
		buf := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(buf)
	}

	u, err := store.Create(ctx, NewUser{
		Email:     seed.Email,
		Password:  password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		Role:      RoleAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"email", u.Email,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "email", u.Email)
	}
	return password, nil
}
