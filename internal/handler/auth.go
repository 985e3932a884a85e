// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mileusna/useragent"

	"pipecrm/internal/auth"
	"pipecrm/internal/middleware"
	"pipecrm/internal/store"
)

// LoginRequest is the request body for /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the uniform login outcome, regardless of backing
// mode.
type LoginResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Login authenticates against the local user store. In remote mode a
// store session token is additionally obtained and kept in the server
// session for record API calls made on the user's behalf.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		WriteBadRequest(w, "Email and password are required")
		return
	}

	if h.protection != nil {
		if locked, remaining := h.protection.IsAccountLocked(email); locked {
			slog.Warn("login attempt on locked account", "email", email, "remaining", remaining)
			WriteJSON(w, http.StatusTooManyRequests, LoginResponse{
				Success: false,
				Error:   "account temporarily locked",
			})
			return
		}
	}

	user, err := store.New(h.db).GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("loading user for login", "error", err)
		}
		h.failLogin(w, r, email)
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		h.failLogin(w, r, email)
		return
	}

	// Rotate the session token on privilege change.
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		slog.Error("renewing session token", "error", err)
		WriteInternalError(w, "Login failed")
		return
	}
	h.sessions.Put(r.Context(), middleware.SessionKeyUserID, user.ID)

	if h.remote != nil {
		result, err := h.remote.Login(r.Context(), email, req.Password)
		if err != nil {
			slog.Error("remote store login", "error", err)
		} else if result.Success {
			h.sessions.Put(r.Context(), middleware.SessionKeyRemoteToken, result.Token)
		}
	}

	if h.protection != nil {
		h.protection.RecordSuccessfulLogin(email)
	}
	if h.events != nil {
		ua := useragent.Parse(r.UserAgent())
		_ = h.events.LogAuthEvent(r.Context(), "info", "User logged in", user.ID, map[string]any{
			"email":   email,
			"browser": ua.Name,
			"os":      ua.OS,
			"mobile":  ua.Mobile,
		})
	}

	WriteJSON(w, http.StatusOK, LoginResponse{Success: true})
}

// failLogin responds identically for unknown accounts and wrong
// passwords.
func (h *Handler) failLogin(w http.ResponseWriter, r *http.Request, email string) {
	if h.protection != nil {
		if locked, duration := h.protection.RecordFailedAttempt(email); locked {
			slog.Warn("account locked", "email", email, "duration", duration)
		}
	}
	if h.events != nil {
		_ = h.events.LogAuthEvent(r.Context(), "warning", "Failed login attempt", "", map[string]any{
			"email": email,
			"ip":    r.RemoteAddr,
		})
	}
	WriteJSON(w, http.StatusUnauthorized, LoginResponse{
		Success: false,
		Error:   "invalid credentials",
	})
}

// Logout destroys the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessions.GetString(r.Context(), middleware.SessionKeyUserID)
	if err := h.sessions.Destroy(r.Context()); err != nil {
		slog.Error("destroying session", "error", err)
		WriteInternalError(w, "Logout failed")
		return
	}
	if h.events != nil && userID != "" {
		_ = h.events.LogAuthEvent(r.Context(), "info", "User logged out", userID, nil)
	}
	WriteSuccess(w, map[string]bool{"success": true})
}

// MeResponse is the authenticated user plus their effective permission
// table.
type MeResponse struct {
	User        any            `json:"user"`
	Permissions map[string]any `json:"permissions"`
}

// Me returns the current user and their effective permissions for
// every resource type.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}

	perms := make(map[string]any)
	if user.IsAdmin() {
		for resource := range h.perm.EffectiveAll(r.Context(), user.ID) {
			perms[resource] = map[string]bool{"read": true, "edit": true, "delete": true}
		}
	} else {
		for resource, p := range h.perm.EffectiveAll(r.Context(), user.ID) {
			perms[resource] = p
		}
	}

	WriteSuccess(w, MeResponse{User: user, Permissions: perms})
}
