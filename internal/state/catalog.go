// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"

	"pipecrm/internal/model"
	"pipecrm/internal/remote"
	"pipecrm/internal/util"
)

// ProductInput holds the caller-supplied fields for a new product.
// Description may contain user-authored HTML; it is sanitized before
// storage.
type ProductInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ProductPatch is a partial product update.
type ProductPatch struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

func (p ProductPatch) apply(pr model.Product) model.Product {
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Slug != nil {
		pr.Slug = *p.Slug
	}
	if p.Description != nil {
		pr.Description = *p.Description
	}
	if p.Category != nil {
		pr.Category = *p.Category
	}
	return pr
}

func (p ProductPatch) record(pr model.Product) remote.Record {
	rec := remote.Record{
		"lastModifiedBy": pr.LastModifiedBy,
		"lastModifiedAt": pr.LastModifiedAt,
	}
	if p.Name != nil {
		rec["name"] = pr.Name
	}
	if p.Slug != nil {
		rec["slug"] = pr.Slug
	}
	if p.Description != nil {
		rec["description"] = pr.Description
	}
	if p.Category != nil {
		rec["category"] = pr.Category
	}
	return rec
}

// AddProduct creates a catalog product. An empty slug is derived from
// the name.
func (m *Manager) AddProduct(ctx context.Context, actor string, in ProductInput) bool {
	slug := in.Slug
	if slug == "" {
		slug = util.Slugify(in.Name)
	}
	if slug != "" && !util.IsValidSlug(slug) {
		m.setErr("invalid product slug %q", slug)
		return false
	}

	by, at := m.stamp(actor)
	product := model.Product{
		ID:             m.newID(),
		Name:           in.Name,
		Slug:           slug,
		Description:    m.sanitizer.Sanitize(in.Description),
		Category:       in.Category,
		CreatedAt:      *at,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}

	if m.remoteMode() {
		body, err := remote.Encode(product)
		if err != nil {
			m.setErr("encoding product: %v", err)
			return false
		}
		returned, err := m.backend.Create(ctx, resourceProducts, body)
		if err != nil {
			m.setErr("creating product: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &product); err != nil {
				m.setErr("decoding created product: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	m.products = append(m.products, product)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateProduct merges partial fields onto the product, sanitizing a
// replaced description.
func (m *Manager) UpdateProduct(ctx context.Context, actor, id string, patch ProductPatch) bool {
	if patch.Slug != nil && *patch.Slug != "" && !util.IsValidSlug(*patch.Slug) {
		m.setErr("invalid product slug %q", *patch.Slug)
		return false
	}
	if patch.Description != nil {
		clean := m.sanitizer.Sanitize(*patch.Description)
		patch.Description = &clean
	}

	m.mu.Lock()
	var current model.Product
	found := false
	for _, p := range m.products {
		if p.ID == id {
			current, found = p, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("product %s not found", id)
		return false
	}

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	if m.remoteMode() {
		returned, err := m.backend.Update(ctx, resourceProducts, id, patch.record(merged))
		if err != nil {
			m.setErr("updating product: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &merged); err != nil {
				m.setErr("decoding updated product: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	for i, p := range m.products {
		if p.ID == id {
			m.products[i] = merged
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteProduct removes a product and cascades to its models.
func (m *Manager) DeleteProduct(ctx context.Context, actor, id string) bool {
	m.mu.Lock()
	found := false
	for _, p := range m.products {
		if p.ID == id {
			found = true
			break
		}
	}
	var dependents []string
	for _, mod := range m.models {
		if mod.ProductID == id {
			dependents = append(dependents, mod.ID)
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("product %s not found", id)
		return false
	}

	if m.remoteMode() {
		for _, modelID := range dependents {
			if err := m.backend.Delete(ctx, resourceModels, modelID); err != nil {
				m.setErr("deleting model %s: %v", modelID, err)
				return false
			}
			m.removeModel(modelID)
		}
		if err := m.backend.Delete(ctx, resourceProducts, id); err != nil {
			m.setErr("deleting product: %v", err)
			return false
		}
	}

	m.mu.Lock()
	filtered := m.models[:0]
	for _, mod := range m.models {
		if mod.ProductID != id {
			filtered = append(filtered, mod)
		}
	}
	m.models = filtered
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

func (m *Manager) removeModel(id string) {
	m.mu.Lock()
	for i, mod := range m.models {
		if mod.ID == id {
			m.models = append(m.models[:i], m.models[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

// ModelInput holds the caller-supplied fields for a new model.
type ModelInput struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Stock     int     `json:"stock"`
	Price     float64 `json:"price"`
}

// ModelPatch is a partial model update. ProductID is immutable after
// creation.
type ModelPatch struct {
	Name  *string  `json:"name,omitempty"`
	SKU   *string  `json:"sku,omitempty"`
	Stock *int     `json:"stock,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

func (p ModelPatch) apply(mod model.Model) model.Model {
	if p.Name != nil {
		mod.Name = *p.Name
	}
	if p.SKU != nil {
		mod.SKU = *p.SKU
	}
	if p.Stock != nil {
		mod.Stock = *p.Stock
	}
	if p.Price != nil {
		mod.Price = *p.Price
	}
	return mod
}

func (p ModelPatch) record(mod model.Model) remote.Record {
	rec := remote.Record{
		"lastModifiedBy": mod.LastModifiedBy,
		"lastModifiedAt": mod.LastModifiedAt,
	}
	if p.Name != nil {
		rec["name"] = mod.Name
	}
	if p.SKU != nil {
		rec["sku"] = mod.SKU
	}
	if p.Stock != nil {
		rec["stock"] = mod.Stock
	}
	if p.Price != nil {
		rec["price"] = mod.Price
	}
	return rec
}

// AddModel creates a model under an existing product.
func (m *Manager) AddModel(ctx context.Context, actor string, in ModelInput) bool {
	if in.Stock < 0 {
		m.setErr("model stock must not be negative")
		return false
	}
	if in.Price < 0 {
		m.setErr("model price must not be negative")
		return false
	}

	m.mu.Lock()
	productExists := false
	for _, p := range m.products {
		if p.ID == in.ProductID {
			productExists = true
			break
		}
	}
	m.mu.Unlock()

	if !productExists {
		m.setErr("product %s not found", in.ProductID)
		return false
	}

	by, at := m.stamp(actor)
	mod := model.Model{
		ID:             m.newID(),
		ProductID:      in.ProductID,
		Name:           in.Name,
		SKU:            in.SKU,
		Stock:          in.Stock,
		Price:          in.Price,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}

	if m.remoteMode() {
		body, err := remote.Encode(mod)
		if err != nil {
			m.setErr("encoding model: %v", err)
			return false
		}
		returned, err := m.backend.Create(ctx, resourceModels, body)
		if err != nil {
			m.setErr("creating model: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &mod); err != nil {
				m.setErr("decoding created model: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	m.models = append(m.models, mod)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateModel merges partial fields onto the model.
func (m *Manager) UpdateModel(ctx context.Context, actor, id string, patch ModelPatch) bool {
	if patch.Stock != nil && *patch.Stock < 0 {
		m.setErr("model stock must not be negative")
		return false
	}
	if patch.Price != nil && *patch.Price < 0 {
		m.setErr("model price must not be negative")
		return false
	}

	m.mu.Lock()
	var current model.Model
	found := false
	for _, mod := range m.models {
		if mod.ID == id {
			current, found = mod, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("model %s not found", id)
		return false
	}

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	if m.remoteMode() {
		returned, err := m.backend.Update(ctx, resourceModels, id, patch.record(merged))
		if err != nil {
			m.setErr("updating model: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &merged); err != nil {
				m.setErr("decoding updated model: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	for i, mod := range m.models {
		if mod.ID == id {
			m.models[i] = merged
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteModel removes a single model.
func (m *Manager) DeleteModel(ctx context.Context, actor, id string) bool {
	m.mu.Lock()
	found := false
	for _, mod := range m.models {
		if mod.ID == id {
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("model %s not found", id)
		return false
	}

	if m.remoteMode() {
		if err := m.backend.Delete(ctx, resourceModels, id); err != nil {
			m.setErr("deleting model: %v", err)
			return false
		}
	}

	m.removeModel(id)
	m.mu.Lock()
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}
