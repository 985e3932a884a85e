// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the REST API handlers for the CRM.
// Authorization happens here, at the trigger layer: every mutating
// route checks the permission engine before touching entity state.
package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"pipecrm/internal/cache"
	"pipecrm/internal/middleware"
	"pipecrm/internal/model"
	"pipecrm/internal/perm"
	"pipecrm/internal/remote"
	"pipecrm/internal/service"
	"pipecrm/internal/state"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	state        *state.Manager
	perm         *perm.Engine
	sessions     *scs.SessionManager
	events       *service.EventService
	collections  *cache.Collections
	remote       *remote.Client // nil in local mode
	db           *sql.DB
	protection   LoginProtector
	loginLimiter func(http.Handler) http.Handler
	version      string
	startTime    time.Time
}

// LoginProtector is the brute-force protection surface the auth
// handlers depend on.
type LoginProtector interface {
	IsAccountLocked(email string) (bool, time.Duration)
	RecordFailedAttempt(email string) (bool, time.Duration)
	RecordSuccessfulLogin(email string)
}

// Options configures a Handler.
type Options struct {
	State       *state.Manager
	Perm        *perm.Engine
	Sessions    *scs.SessionManager
	Events      *service.EventService
	Collections *cache.Collections
	Remote      *remote.Client
	DB          *sql.DB
	Protection  LoginProtector

	// LoginLimiter is applied to the login route only (IP rate
	// limiting on credential guessing).
	LoginLimiter func(http.Handler) http.Handler

	// Version is the build version reported by /status.
	Version string
}

// NewHandler creates the API handler set.
func NewHandler(opts Options) *Handler {
	return &Handler{
		state:        opts.State,
		perm:         opts.Perm,
		sessions:     opts.Sessions,
		events:       opts.Events,
		collections:  opts.Collections,
		remote:       opts.Remote,
		db:           opts.DB,
		protection:   opts.Protection,
		loginLimiter: opts.LoginLimiter,
		version:      opts.Version,
		startTime:    time.Now(),
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any `json:"data,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteConflict writes a 409 Conflict response carrying the state
// manager's error message.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// writeMutationFailure maps a failed state mutation to a response: the
// manager's error slot carries the user-visible reason.
func (h *Handler) writeMutationFailure(w http.ResponseWriter) {
	msg := h.state.LastError()
	if msg == "" {
		WriteInternalError(w, "Operation failed")
		return
	}
	WriteConflict(w, msg)
}

// checkRead guards list/get routes. Returns false after writing the
// error response.
func (h *Handler) checkRead(w http.ResponseWriter, r *http.Request, user *model.User, resource string) bool {
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return false
	}
	if !h.perm.CanRead(r.Context(), user, resource) {
		WriteForbidden(w, "You do not have permission to view "+resource)
		return false
	}
	return true
}

// checkEdit guards create/update routes.
func (h *Handler) checkEdit(w http.ResponseWriter, r *http.Request, user *model.User, resource string) bool {
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return false
	}
	if !h.perm.CanEdit(r.Context(), user, resource) {
		h.logDenied(r, user, resource, "edit")
		WriteForbidden(w, "You do not have permission to modify "+resource)
		return false
	}
	return true
}

// checkDelete guards delete routes.
func (h *Handler) checkDelete(w http.ResponseWriter, r *http.Request, user *model.User, resource string) bool {
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return false
	}
	if !h.perm.CanDelete(r.Context(), user, resource) {
		h.logDenied(r, user, resource, "delete")
		WriteForbidden(w, "You do not have permission to delete "+resource)
		return false
	}
	return true
}

func (h *Handler) logDenied(r *http.Request, user *model.User, resource, action string) {
	if h.events == nil {
		return
	}
	_ = h.events.LogPermissionEvent(r.Context(), "warning", "Access denied", user.ID, map[string]any{
		"resource": resource,
		"action":   action,
		"path":     r.URL.Path,
	})
}

// Routes registers all API routes on the given router. The router is
// expected to already carry session and user-loading middleware; the
// non-public routes additionally require an authenticated session when
// a session manager is configured.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	if h.loginLimiter != nil {
		r.With(h.loginLimiter).Post("/auth/login", h.Login)
	} else {
		r.Post("/auth/login", h.Login)
	}

	r.Group(func(r chi.Router) {
		if h.sessions != nil {
			r.Use(middleware.Auth(h.sessions))
		}
		h.protectedRoutes(r)
	})
}

func (h *Handler) protectedRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.ListLeads)
		r.Post("/", h.CreateLead)
		r.Get("/{id}", h.GetLead)
		r.Patch("/{id}", h.UpdateLead)
		r.Delete("/{id}", h.DeleteLead)
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.ListCustomers)
		r.Post("/", h.CreateCustomer)
		r.Get("/{id}", h.GetCustomer)
		r.Patch("/{id}", h.UpdateCustomer)
		r.Delete("/{id}", h.DeleteCustomer)
		r.Get("/{id}/contacts", h.ListCustomerContacts)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.ListContacts)
		r.Post("/", h.CreateContact)
		r.Get("/{id}", h.GetContact)
		r.Patch("/{id}", h.UpdateContact)
		r.Delete("/{id}", h.DeleteContact)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{id}", h.GetProduct)
		r.Patch("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
		r.Get("/{id}/models", h.ListProductModels)
	})

	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.ListModels)
		r.Post("/", h.CreateModel)
		r.Get("/{id}", h.GetModel)
		r.Patch("/{id}", h.UpdateModel)
		r.Delete("/{id}", h.DeleteModel)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/{id}", h.GetUser)
		r.Patch("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
		r.Get("/{id}/permissions", h.GetUserPermissions)
		r.Put("/{id}/permissions/{resource}", h.UpdateUserPermissions)
	})

	r.Get("/state/error", h.StateError)
	r.Post("/state/refresh", h.StateRefresh)
}

// Status reports build and backing-mode information.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	backend := "local"
	if h.remote != nil {
		backend = "remote"
	}
	WriteSuccess(w, map[string]any{
		"status":  "ok",
		"version": h.version,
		"backend": backend,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health returns service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable", nil)
			return
		}
	}
	WriteSuccess(w, map[string]string{"status": "ok"})
}
