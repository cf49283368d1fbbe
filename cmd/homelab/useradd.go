package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/shvydak/homelab-dashboard/internal/auth"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/logging"
)

// runUserAdd creates an account in the configured user store. The password
// is prompted without echo when in is a terminal, and read as one line
// otherwise so the command can be scripted.
func runUserAdd(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fset := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fset.SetOutput(out)
	email := fset.String("email", "", "email address (required)")
	role := fset.String("role", string(auth.RoleUser), "role: user or admin")
	first := fset.String("first", "", "first name (required)")
	last := fset.String("last", "", "last name (required)")
	username := fset.String("username", "", "optional display name")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fset.Usage()
		return errors.New("useradd: -email is required")
	}
	r := auth.Role(*role)
	if !r.Valid() {
		return fmt.Errorf("useradd: role %q must be user or admin", *role)
	}

	log := logging.Discard()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	password, err := readPassword(in, out)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits right after

	authn, closeStore, err := buildAuthenticator(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	u, err := authn.Store().Create(ctx, auth.NewUser{
		Email:     *email,
		Password:  password,
		FirstName: *first,
		LastName:  *last,
		Username:  *username,
		Role:      r,
	})
	if err != nil {
		var ve *auth.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("useradd: %s", ve.Error())
		}
		return fmt.Errorf("useradd: %w", err)
	}

	fmt.Fprintf(out, "created %s %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}

// readPassword prompts for the password. Terminal input is read twice for
// confirmation.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		fd := int(f.Fd()) //nolint:gosec // fd fits in int
		fmt.Fprint(out, "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Fprint(out, "Confirm password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("useradd: passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
