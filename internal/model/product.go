// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Product represents a catalog product.
type Product struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug,omitempty"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
}

// Model represents a specific SKU variant of a product, carrying stock
// and price.
type Model struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"productId"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku"`
	Stock          int        `json:"stock"`
	Price          float64    `json:"price"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
}
