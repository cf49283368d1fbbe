package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	maxNameLength     = 50
)

// emailPattern accepts word characters with single dots or hyphens between
// them, and a final 2-3 letter label.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// NormalizeEmail trims and lower-cases an address. Emails are compared in
// this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateProfile checks every field of u except the password.
func validateProfile(v *ValidationError, u *User) {
	switch {
	case u.Email == "":
		v.Add("email", "Email is required")
	case !emailPattern.MatchString(u.Email):
		v.Add("email", "Please enter a valid email address")
	}

	checkName(v, "firstName", "First name", u.FirstName)
	checkName(v, "lastName", "Last name", u.LastName)

	if utf8.RuneCountInString(u.Username) > maxNameLength {
		v.Add("username", "Username cannot exceed 50 characters")
	}

	if !u.Role.Valid() {
		v.Add("role", "Role must be either user or admin")
	}
}

func checkName(v *ValidationError, field, label, value string) {
	switch {
	case value == "":
		v.Add(field, label+" is required")
	case utf8.RuneCountInString(value) > maxNameLength:
		v.Add(field, label+" cannot exceed 50 characters")
	}
}

// validatePassword checks a plaintext password.
func validatePassword(v *ValidationError, password string) {
	switch {
	case password == "":
		v.Add("password", "Password is required")
	case utf8.RuneCountInString(password) < minPasswordLength:
		v.Add("password", "Password must be at least 6 characters long")
	case len(password) > maxPasswordBytes:
		v.Add("password", "Password cannot exceed 72 bytes")
	}
}
