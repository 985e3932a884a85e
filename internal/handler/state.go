// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"pipecrm/internal/middleware"
	"pipecrm/internal/model"
)

// StateError exposes the state manager's error slot. The slot holds the
// message from the most recent failed mutation, or empty after any
// successful one.
func (h *Handler) StateError(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	WriteSuccess(w, map[string]string{"error": h.state.LastError()})
}

// StateRefresh re-fetches every collection from the backing store and
// drops cached list payloads. Admin only.
func (h *Handler) StateRefresh(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	if !user.IsAdmin() {
		WriteForbidden(w, "Only administrators can refresh state")
		return
	}

	h.state.Refresh(r.Context())
	if h.collections != nil {
		h.collections.InvalidateAll(r.Context())
	}
	if msg := h.state.LastError(); msg != "" {
		WriteError(w, http.StatusBadGateway, "refresh_failed", msg, nil)
		return
	}
	if h.events != nil {
		_ = h.events.LogSyncEvent(r.Context(), model.EventLevelInfo, "Manual state refresh", map[string]any{
			"triggered_by": user.ID,
		})
	}
	WriteSuccess(w, map[string]bool{"refreshed": true})
}
