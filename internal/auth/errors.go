package auth

import (
	"errors"
	"strings"
)

// Sentinel errors. Use errors.Is to check for these.
var (
	// ErrUserNotFound is returned by repositories when no row matches.
	// Store methods translate it into a nil user.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned by repositories when the storage-level
	// unique constraint on email rejects a write.
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired is returned by TokenService.Verify when exp has passed.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned for bad signatures, algorithms, or structure.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrHashMalformed is returned by Hasher.Verify when the stored hash
	// cannot be parsed. The comparison result is always false.
	ErrHashMalformed = errors.New("password hash is malformed")
)

// Messages shown to API clients.
const (
	MsgNoToken            = "No token provided"
	MsgInvalidToken       = "Invalid token"
	MsgTokenExpired       = "Token expired"
	MsgUserGone           = "User no longer exists"
	MsgUserInactive       = "User account is deactivated"
	MsgInvalidCredentials = "Invalid credentials"
	MsgNotAuthenticated   = "User not authenticated"
	MsgInsufficientRole   = "Access denied. Insufficient permissions."
	MsgEmailExists        = "Email already exists"
)

// Kind classifies an error for translation into a response status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified failure with a client-safe message.
// Err holds the underlying cause for logs and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

// Forbidden builds a KindForbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Internal builds a KindInternal error. msg is what the client sees.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldError is one failed field check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in one input.
type ValidationError struct {
	Fields []FieldError
}

// Error joins the field messages with ", ".
func (v *ValidationError) Error() string {
	msgs := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, ", ")
}

// Add records a field problem.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// HasField reports whether field failed.
func (v *ValidationError) HasField(field string) bool {
	for _, f := range v.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// orNil returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) orNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func duplicateEmail() *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: "email", Message: MsgEmailExists}}}
}
