package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hieudev/pricewatch/internal/database"
	"github.com/hieudev/pricewatch/internal/models"
)

// UserStore is the account surface the auth handlers need. *database.DB
// implements it.
type UserStore interface {
	CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdateUserRole(ctx context.Context, id int64, role models.Role) error
	UpdateUserAccount(ctx context.Context, id int64, username, password string) error
	VerifyPassword(ctx context.Context, id int64, password string) error
}

// AuthHandlers serves the account endpoints. There are no sessions:
// credentials accompany every privileged call.
type AuthHandlers struct {
	users  UserStore
	logger *slog.Logger
}

func NewAuthHandlers(users UserStore, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:  users,
		logger: logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies a username/password pair and returns the account
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			h.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err, "username", req.Username)
		h.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

// Register creates a regular user account
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Password, models.RoleUser)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			h.respondError(w, http.StatusConflict, "username already taken")
			return
		}
		h.logger.Error("registration failed", "error", err, "username", req.Username)
		h.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, user)
}

// ListUsers returns every account. Admin credentials are passed as
// query parameters.
func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	adminUsername := r.URL.Query().Get("adminUsername")
	adminPassword := r.URL.Query().Get("adminPassword")

	if !h.requireAdmin(w, r, adminUsername, adminPassword) {
		return
	}

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	h.respondJSON(w, http.StatusOK, users)
}

type adminRequest struct {
	AdminUsername string `json:"adminUsername"`
	AdminPassword string `json:"adminPassword"`
}

// DeleteUser removes an account. Admin credentials travel in the body.
func (h *AuthHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.requireAdmin(w, r, req.AdminUsername, req.AdminPassword) {
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, database.ErrLastAdmin):
			h.respondError(w, http.StatusConflict, "cannot remove the last admin")
		default:
			h.logger.Error("failed to delete user", "error", err, "id", id)
			h.respondError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

type updateRoleRequest struct {
	adminRequest
	NewRole string `json:"newRole"`
}

// UpdateRole changes an account's role
func (h *AuthHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role := models.Role(req.NewRole)
	if role != models.RoleUser && role != models.RoleAdmin {
		h.respondError(w, http.StatusBadRequest, "newRole must be user or admin")
		return
	}

	if !h.requireAdmin(w, r, req.AdminUsername, req.AdminPassword) {
		return
	}

	if err := h.users.UpdateUserRole(r.Context(), id, role); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, database.ErrLastAdmin):
			h.respondError(w, http.StatusConflict, "cannot demote the last admin")
		default:
			h.logger.Error("failed to update role", "error", err, "id", id)
			h.respondError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

type editAccountRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	CurrentPassword string `json:"currentPassword"`
}

// EditAccount renames an account and/or replaces its password after
// verifying the current password.
func (h *AuthHandlers) EditAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req editAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" {
		h.respondError(w, http.StatusBadRequest, "currentPassword is required")
		return
	}
	if req.Username == "" && req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := h.users.VerifyPassword(r.Context(), id, req.CurrentPassword); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, database.ErrInvalidCredentials):
			h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			h.logger.Error("failed to verify password", "error", err, "id", id)
			h.respondError(w, http.StatusInternalServerError, "failed to update account")
		}
		return
	}

	if err := h.users.UpdateUserAccount(r.Context(), id, req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, database.ErrDuplicate):
			h.respondError(w, http.StatusConflict, "username already taken")
		default:
			h.logger.Error("failed to update account", "error", err, "id", id)
			h.respondError(w, http.StatusInternalServerError, "failed to update account")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "account updated"})
}

// requireAdmin authenticates the supplied admin credentials and writes
// the error response itself when they do not check out.
func (h *AuthHandlers) requireAdmin(w http.ResponseWriter, r *http.Request, username, password string) bool {
	if username == "" || password == "" {
		h.respondError(w, http.StatusUnauthorized, "admin credentials required")
		return false
	}

	if _, err := h.users.AuthenticateAdmin(r.Context(), username, password); err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			h.respondError(w, http.StatusForbidden, "admin access required")
			return false
		}
		h.logger.Error("admin authentication failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "authentication failed")
		return false
	}

	return true
}

func (h *AuthHandlers) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid user ID")
		return 0, false
	}
	return id, true
}

func (h *AuthHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *AuthHandlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
