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

// ListLeads returns the lead collection.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceLeads) {
		return
	}

	if h.collections != nil {
		if data, ok := h.collections.Get(r.Context(), model.ResourceLeads); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	leads := h.state.Leads()
	if h.collections != nil {
		h.collections.Set(r.Context(), model.ResourceLeads, Response{Data: leads})
	}
	WriteSuccess(w, leads)
}

// GetLead returns a single lead.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceLeads) {
		return
	}

	lead, ok := h.state.GetLead(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "Lead not found")
		return
	}
	WriteSuccess(w, lead)
}

// CreateLead creates a lead.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceLeads) {
		return
	}

	var in state.LeadInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddLead(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceLeads)
	if h.events != nil {
		_ = h.events.LogLeadEvent(r.Context(), "info", "Lead created", user.ID, map[string]any{"name": in.Name})
	}

	leads := h.state.Leads()
	WriteCreated(w, leads[len(leads)-1])
}

// UpdateLead applies a partial update. A status change to "converted"
// runs the conversion workflow, so customer and contact caches are
// invalidated as well.
func (h *Handler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceLeads) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetLead(id); !ok {
		WriteNotFound(w, "Lead not found")
		return
	}

	var patch state.LeadPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	converting := patch.Status != nil && *patch.Status == model.LeadStatusConverted

	if !h.state.UpdateLead(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}

	if converting {
		h.invalidate(r, model.ResourceLeads, model.ResourceCustomers, model.ResourceContacts)
		if h.events != nil {
			_ = h.events.LogLeadEvent(r.Context(), "info", "Lead converted", user.ID, map[string]any{"lead_id": id})
		}
	} else {
		h.invalidate(r, model.ResourceLeads)
	}

	lead, _ := h.state.GetLead(id)
	WriteSuccess(w, lead)
}

// DeleteLead removes a lead unless a customer references it.
func (h *Handler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkDelete(w, r, user, model.ResourceLeads) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetLead(id); !ok {
		WriteNotFound(w, "Lead not found")
		return
	}

	if !h.state.DeleteLead(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceLeads)
	if h.events != nil {
		_ = h.events.LogLeadEvent(r.Context(), "info", "Lead deleted", user.ID, map[string]any{"lead_id": id})
	}
	WriteSuccess(w, map[string]bool{"deleted": true})
}

// invalidate drops cached collection payloads for the given resources.
func (h *Handler) invalidate(r *http.Request, resources ...string) {
	if h.collections != nil {
		h.collections.Invalidate(r.Context(), resources...)
	}
}
