package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// ─── Request Types ─────────────────────────────────────────────────

// updateUserRequest is a partial update. Absent fields are left unchanged.
type updateUserRequest struct {
	Email     *string    `json:"email" validate:"omitempty,max=254"`
	Username  *string    `json:"username" validate:"omitempty,max=200"`
	Password  *string    `json:"password" validate:"omitempty,max=1024"`
	FirstName *string    `json:"firstName" validate:"omitempty,max=200"`
	LastName  *string    `json:"lastName" validate:"omitempty,max=200"`
	Role      *auth.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsActive  *bool      `json:"isActive"`
}

func (req updateUserRequest) patch() auth.UserPatch {
	return auth.UserPatch{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		IsActive:  req.IsActive,
	}
}

// changedFields lists the JSON names of the fields present in the request.
// Passwords are reported as changed, never by value.
func (req updateUserRequest) changedFields() []string {
	var fields []string
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(req.Email != nil, "email")
	add(req.Username != nil, "username")
	add(req.Password != nil, "password")
	add(req.FirstName != nil, "firstName")
	add(req.LastName != nil, "lastName")
	add(req.Role != nil, "role")
	add(req.IsActive != nil, "isActive")
	return fields
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.Store().List(r.Context())
	if err != nil {
		s.writeInternal(w, r, "Failed to fetch users", err)
		return
	}

	writeSuccess(w, http.StatusOK, users, "Users fetched successfully")
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Store().FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeInternal(w, r, "Failed to fetch user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	writeSuccess(w, http.StatusOK, user, "User fetched successfully")
}

// handleGetUserByEmail returns a single user by email, ignoring case.
func (s *Server) handleGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Store().FindByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.writeInternal(w, r, "Failed to fetch user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	writeSuccess(w, http.StatusOK, user, "User fetched successfully")
}

// handleUpdateUser applies a partial update. Users may edit themselves;
// admins may edit anyone, and only admins may change role or isActive.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if !auth.CanModify(actor, id) {
		writeError(w, http.StatusForbidden, auth.MsgInsufficientRole)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if (req.Role != nil || req.IsActive != nil) && actor.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, auth.MsgInsufficientRole)
		return
	}

	patch := req.patch()
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	updated, err := s.auth.Store().Update(r.Context(), id, patch)
	if err != nil {
		if auth.KindOf(err) == auth.KindValidation {
			s.writeAuthError(w, r, err)
			return
		}
		s.writeInternal(w, r, "Failed to update user", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	s.auditLog(r, audit.ActionUserUpdate, updated.ID, actor.ID, map[string]any{
		"fields": req.changedFields(),
	})
	writeSuccess(w, http.StatusOK, updated, "User updated successfully")
}

// handleDeleteUser removes an account and returns it. Admin only; admins
// cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if actor.ID == id {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	removed, err := s.auth.Store().Delete(r.Context(), id)
	if err != nil {
		s.writeInternal(w, r, "Failed to delete user", err)
		return
	}
	if removed == nil {
		writeError(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	s.auditLog(r, audit.ActionUserDelete, removed.ID, actor.ID, map[string]any{
		"email": removed.Email,
	})
	writeSuccess(w, http.StatusOK, removed, "User deleted successfully")
}
