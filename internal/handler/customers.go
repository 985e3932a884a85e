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

// ListCustomers returns the customer collection.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceCustomers) {
		return
	}

	if h.collections != nil {
		if data, ok := h.collections.Get(r.Context(), model.ResourceCustomers); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	customers := h.state.Customers()
	if h.collections != nil {
		h.collections.Set(r.Context(), model.ResourceCustomers, Response{Data: customers})
	}
	WriteSuccess(w, customers)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceCustomers) {
		return
	}

	customer, ok := h.state.GetCustomer(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "Customer not found")
		return
	}
	WriteSuccess(w, customer)
}

// ListCustomerContacts returns the contacts belonging to a customer.
func (h *Handler) ListCustomerContacts(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceContacts) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetCustomer(id); !ok {
		WriteNotFound(w, "Customer not found")
		return
	}
	WriteSuccess(w, h.state.ContactsByCustomer(id))
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceCustomers) {
		return
	}

	var in state.CustomerInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddCustomer(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceCustomers)

	customers := h.state.Customers()
	WriteCreated(w, customers[len(customers)-1])
}

// UpdateCustomer applies a partial update.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceCustomers) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetCustomer(id); !ok {
		WriteNotFound(w, "Customer not found")
		return
	}

	var patch state.CustomerPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if !h.state.UpdateCustomer(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceCustomers)

	customer, _ := h.state.GetCustomer(id)
	WriteSuccess(w, customer)
}

// DeleteCustomer removes a customer and cascades to its contacts.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkDelete(w, r, user, model.ResourceCustomers) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetCustomer(id); !ok {
		WriteNotFound(w, "Customer not found")
		return
	}

	if !h.state.DeleteCustomer(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceCustomers, model.ResourceContacts)
	WriteSuccess(w, map[string]bool{"deleted": true})
}

// ListContacts returns the contact collection.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceContacts) {
		return
	}

	if h.collections != nil {
		if data, ok := h.collections.Get(r.Context(), model.ResourceContacts); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	contacts := h.state.Contacts()
	if h.collections != nil {
		h.collections.Set(r.Context(), model.ResourceContacts, Response{Data: contacts})
	}
	WriteSuccess(w, contacts)
}

// GetContact returns a single contact.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceContacts) {
		return
	}

	contact, ok := h.state.GetContact(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "Contact not found")
		return
	}
	WriteSuccess(w, contact)
}

// CreateContact creates a contact under an existing customer.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceContacts) {
		return
	}

	var in state.ContactInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddContact(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceContacts)

	contacts := h.state.Contacts()
	WriteCreated(w, contacts[len(contacts)-1])
}

// UpdateContact applies a partial update.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceContacts) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetContact(id); !ok {
		WriteNotFound(w, "Contact not found")
		return
	}

	var patch state.ContactPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if !h.state.UpdateContact(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceContacts)

	contact, _ := h.state.GetContact(id)
	WriteSuccess(w, contact)
}

// DeleteContact removes a single contact.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkDelete(w, r, user, model.ResourceContacts) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetContact(id); !ok {
		WriteNotFound(w, "Contact not found")
		return
	}

	if !h.state.DeleteContact(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceContacts)
	WriteSuccess(w, map[string]bool{"deleted": true})
}
