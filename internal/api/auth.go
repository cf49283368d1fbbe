package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// ticketBytes is the number of random bytes used for WebSocket tickets.
	ticketBytes = 32

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// ─── Request Types ─────────────────────────────────────────────────

// registerRequest is the request body for POST /api/auth/register.
// Registration always creates a plain user; there is no role field.
type registerRequest struct {
	Email     string `json:"email" validate:"max=254"`
	Password  string `json:"password" validate:"max=1024"`
	FirstName string `json:"firstName" validate:"max=200"`
	LastName  string `json:"lastName" validate:"max=200"`
	Username  string `json:"username" validate:"max=200"`
}

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email,max=254"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleRegister creates an account and returns it with a token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	session, err := s.auth.Register(r.Context(), auth.NewUser{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Role:      auth.RoleUser,
	})
	if err != nil {
		s.recordAuthOutcome(audit.ActionRegister, outcomeFailure, "")
		s.writeAuthError(w, r, err)
		return
	}

	s.recordAuthOutcome(audit.ActionRegister, outcomeSuccess, session.User.ID)
	s.auditLog(r, audit.ActionRegister, session.User.ID, session.User.ID, nil)
	writeSuccess(w, http.StatusCreated, session, "User registered successfully")
}

// handleLogin authenticates by username or email and returns a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	session, err := s.auth.Login(r.Context(), auth.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.recordAuthOutcome(audit.ActionLogin, outcomeFailure, "")
		var ae *auth.Error
		if errors.As(err, &ae) && ae.Kind == auth.KindUnauthorized {
			identifier := req.Username
			if identifier == "" {
				identifier = req.Email
			}
			s.auditLog(r, audit.ActionLoginFailed, "", "", map[string]any{
				"identifier": identifier,
				"reason":     ae.Message,
			})
		}
		s.writeAuthError(w, r, err)
		return
	}

	s.recordAuthOutcome(audit.ActionLogin, outcomeSuccess, session.User.ID)
	s.auditLog(r, audit.ActionLogin, session.User.ID, session.User.ID, nil)
	writeSuccess(w, http.StatusOK, session, "Login successful")
}

// handleLogout acknowledges a logout. Tokens are stateless; the client
// discards its copy.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, nil, "Logged out successfully")
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"user": auth.UserFromContext(r.Context()),
	}, "")
}

// recordAuthOutcome updates the auth counters and the time series.
func (s *Server) recordAuthOutcome(action, outcome, userID string) {
	s.metrics.authOutcome(action, outcome)
	if s.influx != nil {
		s.influx.WriteAuthEvent(action, outcome, userID, time.Now())
	}
}

// ─── WebSocket Tickets ─────────────────────────────────────────────

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
	now     func() time.Time
}

type ticketEntry struct {
	expiresAt time.Time
	userID    string
	role      auth.Role
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue creates a ticket bound to the given identity.
func (t *ticketStore) issue(userID string, role auth.Role) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	ticket := hex.EncodeToString(b)

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{
		expiresAt: t.now().Add(ticketTTL),
		userID:    userID,
		role:      role,
	}
	t.mu.Unlock()
	return ticket, nil
}

// consume checks if a ticket is valid and removes it (single-use).
func (t *ticketStore) consume(ticket string) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)

	if !t.now().Before(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// clean removes expired tickets.
func (t *ticketStore) clean() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ticket, entry := range t.tickets {
		if !now.Before(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	ticket, err := s.tickets.issue(user.ID, user.Role)
	if err != nil {
		s.writeInternal(w, r, "Failed to issue ticket", err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"ticket":    ticket,
		"expiresIn": int(ticketTTL.Seconds()),
	}, "")
}

// cleanTicketsLoop runs ticketStore.clean periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.clean()
		}
	}
}
