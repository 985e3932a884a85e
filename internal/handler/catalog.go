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

// ListProducts returns the product catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceProducts) {
		return
	}

	if h.collections != nil {
		if data, ok := h.collections.Get(r.Context(), model.ResourceProducts); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	products := h.state.Products()
	if h.collections != nil {
		h.collections.Set(r.Context(), model.ResourceProducts, Response{Data: products})
	}
	WriteSuccess(w, products)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceProducts) {
		return
	}

	product, ok := h.state.GetProduct(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "Product not found")
		return
	}
	WriteSuccess(w, product)
}

// ListProductModels returns the models belonging to a product.
func (h *Handler) ListProductModels(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceModels) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetProduct(id); !ok {
		WriteNotFound(w, "Product not found")
		return
	}
	WriteSuccess(w, h.state.ModelsByProduct(id))
}

// CreateProduct creates a catalog product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceProducts) {
		return
	}

	var in state.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddProduct(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceProducts)

	products := h.state.Products()
	WriteCreated(w, products[len(products)-1])
}

// UpdateProduct applies a partial update.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceProducts) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetProduct(id); !ok {
		WriteNotFound(w, "Product not found")
		return
	}

	var patch state.ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if !h.state.UpdateProduct(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceProducts)

	product, _ := h.state.GetProduct(id)
	WriteSuccess(w, product)
}

// DeleteProduct removes a product and cascades to its models.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkDelete(w, r, user, model.ResourceProducts) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetProduct(id); !ok {
		WriteNotFound(w, "Product not found")
		return
	}

	if !h.state.DeleteProduct(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceProducts, model.ResourceModels)
	WriteSuccess(w, map[string]bool{"deleted": true})
}

// ListModels returns the model collection.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceModels) {
		return
	}

	if h.collections != nil {
		if data, ok := h.collections.Get(r.Context(), model.ResourceModels); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	models := h.state.Models()
	if h.collections != nil {
		h.collections.Set(r.Context(), model.ResourceModels, Response{Data: models})
	}
	WriteSuccess(w, models)
}

// GetModel returns a single model.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkRead(w, r, user, model.ResourceModels) {
		return
	}

	m, ok := h.state.GetModel(chi.URLParam(r, "id"))
	if !ok {
		WriteNotFound(w, "Model not found")
		return
	}
	WriteSuccess(w, m)
}

// CreateModel creates a model under an existing product.
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceModels) {
		return
	}

	var in state.ModelInput
	if !decodeBody(w, r, &in) {
		return
	}

	if !h.state.AddModel(r.Context(), user.ID, in) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceModels)

	models := h.state.Models()
	WriteCreated(w, models[len(models)-1])
}

// UpdateModel applies a partial update.
func (h *Handler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkEdit(w, r, user, model.ResourceModels) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetModel(id); !ok {
		WriteNotFound(w, "Model not found")
		return
	}

	var patch state.ModelPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if !h.state.UpdateModel(r.Context(), user.ID, id, patch) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceModels)

	m, _ := h.state.GetModel(id)
	WriteSuccess(w, m)
}

// DeleteModel removes a single model.
func (h *Handler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !h.checkDelete(w, r, user, model.ResourceModels) {
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.state.GetModel(id); !ok {
		WriteNotFound(w, "Model not found")
		return
	}

	if !h.state.DeleteModel(r.Context(), user.ID, id) {
		h.writeMutationFailure(w)
		return
	}
	h.invalidate(r, model.ResourceModels)
	WriteSuccess(w, map[string]bool{"deleted": true})
}
