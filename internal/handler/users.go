// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pipecrm/internal/middleware"
	"pipecrm/internal/model"
	"pipecrm/internal/state"
)

// ListUsers returns all user accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceUsers) {
		return
	}
	WriteSuccess(w, h.state.Users())
}

// GetUser returns a single user account.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceUsers) {
		return
	}

	target, ok := h.state.GetUser(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "User not found")
		return
	}
	WriteSuccess(w, target)
}

// CreateUser creates a user account. Admin only: account management is
// never delegated through resource overrides.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	if !user.IsAdmin() {
		WriteForbidden(w, "Only administrators can create users")
		return
	}

	var in state.UserInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddUser(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	if h.events != nil {
		_ = h.events.LogUserEvent(r.Context(), "info", "User created", user.ID, map[string]any{"email": in.Email})
	}

	users := h.state.Users()
	WriteCreated(w, users[len(users)-1])
}

// UpdateUser applies a partial profile update. Admins can update
// anyone; other users can update only their own account, and cannot
// change their role.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if !user.IsAdmin() && user.ID != id {
		WriteForbidden(w, "You can only update your own account")
		return
	}

	if _, ok := h.state.GetUser(id); !ok {
		WriteNotFound(w, "User not found")
		return
	}

	var patch state.UserPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Role != nil && !user.IsAdmin() {
		WriteForbidden(w, "Only administrators can change roles")
		return
	}

	if !h.state.UpdateUser(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}

	updated, _ := h.state.GetUser(id)
	WriteSuccess(w, updated)
}

// DeleteUser removes a user account and its permission overrides.
// Admin only; self-deletion is rejected by the state manager.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	if !user.IsAdmin() {
		WriteForbidden(w, "Only administrators can delete users")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetUser(id); !ok {
		WriteNotFound(w, "User not found")
		return
	}

	if !h.state.DeleteUser(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	if h.events != nil {
		_ = h.events.LogUserEvent(r.Context(), "info", "User deleted", user.ID, map[string]any{"user_id": id})
	}
	WriteSuccess(w, map[string]bool{"deleted": true})
}

// GetUserPermissions returns the target user's effective permission
// table for every resource type.
func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if !user.IsAdmin() && user.ID != id {
		WriteForbidden(w, "You can only view your own permissions")
		return
	}
	if _, ok := h.state.GetUser(id); !ok {
		WriteNotFound(w, "User not found")
		return
	}

	WriteSuccess(w, h.perm.EffectiveAll(r.Context(), id))
}

// UpdateUserPermissions merges a partial permission override for one
// resource onto the target user. Non-admin callers get a success
// response but no change is applied.
func (h *Handler) UpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetUser(id); !ok {
		WriteNotFound(w, "User not found")
		return
	}

	resource := chi.URLParam(r, "resource")
	if !model.ValidResource(resource) {
		WriteBadRequest(w, "Unknown resource type")
		return
	}

	var patch model.PermissionPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := h.perm.UpdateUserPermissions(r.Context(), user, id, resource, patch); err != nil {
		WriteInternalError(w, "Failed to update permissions")
		return
	}
	if h.events != nil && user.IsAdmin() {
		_ = h.events.LogPermissionEvent(r.Context(), "info", "Permissions updated", user.ID, map[string]any{
			"target_user": id,
			"resource":    resource,
		})
	}

	WriteSuccess(w, h.perm.EffectiveAll(r.Context(), id))
}
