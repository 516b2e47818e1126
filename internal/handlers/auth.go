package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleetmasterpro/internal/auth"
	"github.com/ukydev/fleetmasterpro/internal/db"
	"github.com/ukydev/fleetmasterpro/internal/middleware"
	"github.com/ukydev/fleetmasterpro/internal/models"
)

// AuthHandler serves sign-in, registration and the caller's profile.
type AuthHandler struct {
	tokens     *auth.Service
	users      db.UserCollection
	logger     log.FieldLogger
	mainAppURL string
}

// NewAuthHandler creates the handler. When mainAppURL is set, sign-in
// responses carry a hand-off link into the main app.
func NewAuthHandler(tokens *auth.Service, users db.UserCollection, logger log.FieldLogger, mainAppURL string) *AuthHandler {
	return &AuthHandler{tokens: tokens, users: users, logger: logger, mainAppURL: mainAppURL}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Login checks the credentials and issues a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, db.ErrNotFound):
		httpError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		writeError(w, h.logger, err)
		return
	}
	// Unknown users and wrong passwords get the same answer.
	if !h.tokens.CheckPassword(req.Password, user.PasswordHash) {
		h.logger.WithField("username", req.Username).Info("Failed login attempt")
		httpError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		httpError(w, http.StatusForbidden, "account is deactivated")
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	resp, err := h.session(user, req.Redirect)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.WithField("username", user.Username).Info("User logged in")
	writeJSON(w, http.StatusOK, resp)
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.ensureUnique(r, req.Username, req.Email, ""); err != nil {
		writeError(w, h.logger, err)
		return
	}

	hash, err := h.tokens.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.InsertUser(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp, err := h.session(&user, "")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.WithFields(log.Fields{"username": user.Username, "role": user.Role}).Info("User registered")
	writeJSON(w, http.StatusCreated, resp)
}

// GetProfile returns the caller's account.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the caller's names and email.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if req.Email != "" && req.Email != user.Email {
		if err := h.ensureUnique(r, "", req.Email, user.ID); err != nil {
			writeError(w, h.logger, err)
			return
		}
		user.Email = req.Email
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.users.UpdateUser(r.Context(), user.ID, *user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !h.tokens.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		httpError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := h.tokens.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := h.users.UpdateUser(r.Context(), user.ID, *user); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.WithField("username", user.Username).Info("Password changed")
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// session issues the token pair for user, plus the hand-off link when a
// main app is configured.
func (h *AuthHandler) session(user *models.User, redirect string) (*models.LoginResponse, error) {
	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := h.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	resp := &models.LoginResponse{Token: token, RefreshToken: refresh, User: *user}
	if h.mainAppURL != "" {
		link, err := auth.HandoffURL(h.mainAppURL, token, redirect)
		if err != nil {
			return nil, models.NewValidationError("redirect", err.Error())
		}
		resp.HandoffURL = link
	}
	return resp, nil
}

// ensureUnique reports a conflict when the username or email belongs to an
// account other than self. Empty values are not checked.
func (h *AuthHandler) ensureUnique(r *http.Request, username, email, self string) error {
	ctx := r.Context()
	if username != "" {
		u, err := h.users.FindUserByUsername(ctx, username)
		if err == nil && u.ID != self {
			return fmt.Errorf("username %q: %w", username, db.ErrConflict)
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
	}
	if email != "" {
		u, err := h.users.FindUserByEmail(ctx, email)
		if err == nil && u.ID != self {
			return fmt.Errorf("email %q: %w", email, db.ErrConflict)
		}
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
	}
	return nil
}

// currentUser loads the caller's account, writing the error response itself
// when it cannot.
func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httpError(w, http.StatusNotFound, "user not found")
		} else {
			writeError(w, h.logger, err)
		}
		return nil, false
	}
	return user, true
}
