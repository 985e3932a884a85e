// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Customer statuses. Transitions between them are free; there is no
// enforced state machine beyond the enum itself.
const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
	CustomerStatusPending  = "pending"
)

// Customer represents a company account, optionally traced back to the
// lead it was converted from via LeadID.
type Customer struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	LeadID         string     `json:"leadId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
}

// ValidCustomerStatus reports whether status is a known customer status.
func ValidCustomerStatus(status string) bool {
	switch status {
	case CustomerStatusActive, CustomerStatusInactive, CustomerStatusPending:
		return true
	}
	return false
}

// Contact represents a person associated with a customer.
type Contact struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customerId"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
}

// PrimaryContactRole is the role assigned to the contact created by the
// lead conversion workflow.
const PrimaryContactRole = "Primary Contact"
