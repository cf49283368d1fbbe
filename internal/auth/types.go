package auth

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the coarse authorisation tag carried by every user.
type Role string

const (
	// RoleUser can use the dashboard and manage their own account.
	RoleUser Role = "user"

	// RoleAdmin can additionally manage other accounts and read the audit trail.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role a user account may hold.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// Valid reports whether r is one of ValidRoles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a dashboard account.
//
// PasswordHash is never serialised. Store lookups leave it empty unless the
// caller passes WithPasswordHash.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is the username if set, otherwise the local part of the email.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// MarshalJSON adds the computed fullName to the serialised form.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		FullName string `json:"fullName"`
	}{plain(u), u.FullName()})
}

// redacted returns a copy without the password hash.
func (u *User) redacted() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}

// NewUser is the input to Store.Create.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Username  string

	// Role defaults to RoleUser when empty.
	Role Role

	// IsActive defaults to true when nil.
	IsActive *bool
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Email     *string
	Username  *string
	Password  *string
	FirstName *string
	LastName  *string
	Role      *Role
	IsActive  *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Username == nil && p.Password == nil &&
		p.FirstName == nil && p.LastName == nil && p.Role == nil && p.IsActive == nil
}
