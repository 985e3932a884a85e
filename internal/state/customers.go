// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"

	"pipecrm/internal/model"
	"pipecrm/internal/remote"
)

// CustomerInput holds the caller-supplied fields for a new customer.
type CustomerInput struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	LeadID string `json:"leadId"`
}

// CustomerPatch is a partial customer update. LeadID is immutable after
// creation and is deliberately absent.
type CustomerPatch struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

func (p CustomerPatch) apply(c model.Customer) model.Customer {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return c
}

func (p CustomerPatch) record(c model.Customer) remote.Record {
	rec := remote.Record{
		"lastModifiedBy": c.LastModifiedBy,
		"lastModifiedAt": c.LastModifiedAt,
	}
	if p.Name != nil {
		rec["name"] = *p.Name
	}
	if p.Status != nil {
		rec["status"] = *p.Status
	}
	return rec
}

// AddCustomer creates a customer. A non-empty LeadID must reference an
// existing lead that has not already been converted; conversion keeps
// its at-most-one-customer-per-lead guarantee this way even for manual
// creates.
func (m *Manager) AddCustomer(ctx context.Context, actor string, in CustomerInput) bool {
	if in.Status == "" {
		in.Status = model.CustomerStatusActive
	}
	if !model.ValidCustomerStatus(in.Status) {
		m.setErr("invalid customer status %q", in.Status)
		return false
	}

	if in.LeadID != "" {
		m.mu.Lock()
		leadExists := false
		for _, l := range m.leads {
			if l.ID == in.LeadID {
				leadExists = true
				break
			}
		}
		_, taken := m.customerByLeadLocked(in.LeadID)
		m.mu.Unlock()

		if !leadExists {
			m.setErr("lead %s not found", in.LeadID)
			return false
		}
		if taken {
			m.setErr("lead %s is already linked to a customer", in.LeadID)
			return false
		}
	}

	by, at := m.stamp(actor)
	customer := model.Customer{
		ID:             m.newID(),
		Name:           in.Name,
		Status:         in.Status,
		LeadID:         in.LeadID,
		CreatedAt:      *at,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}

	if m.remoteMode() {
		body, err := remote.Encode(customer)
		if err != nil {
			m.setErr("encoding customer: %v", err)
			return false
		}
		returned, err := m.backend.Create(ctx, resourceCustomers, body)
		if err != nil {
			m.setErr("creating customer: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &customer); err != nil {
				m.setErr("decoding created customer: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	m.customers = append(m.customers, customer)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateCustomer merges partial fields onto the customer.
func (m *Manager) UpdateCustomer(ctx context.Context, actor, id string, patch CustomerPatch) bool {
	if patch.Status != nil && !model.ValidCustomerStatus(*patch.Status) {
		m.setErr("invalid customer status %q", *patch.Status)
		return false
	}

	m.mu.Lock()
	var current model.Customer
	found := false
	for _, c := range m.customers {
		if c.ID == id {
			current, found = c, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("customer %s not found", id)
		return false
	}

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	if m.remoteMode() {
		returned, err := m.backend.Update(ctx, resourceCustomers, id, patch.record(merged))
		if err != nil {
			m.setErr("updating customer: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &merged); err != nil {
				m.setErr("decoding updated customer: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	for i, c := range m.customers {
		if c.ID == id {
			m.customers[i] = merged
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteCustomer removes a customer and cascades to its contacts. In
// remote mode each contact is deleted through the store first; a
// contact delete failure aborts with the remaining state intact except
// for contacts already removed, mirroring the store's own partial
// progress.
func (m *Manager) DeleteCustomer(ctx context.Context, actor, id string) bool {
	m.mu.Lock()
	found := false
	for _, c := range m.customers {
		if c.ID == id {
			found = true
			break
		}
	}
	var dependents []string
	for _, c := range m.contacts {
		if c.CustomerID == id {
			dependents = append(dependents, c.ID)
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("customer %s not found", id)
		return false
	}

	if m.remoteMode() {
		for _, contactID := range dependents {
			if err := m.backend.Delete(ctx, resourceContacts, contactID); err != nil {
				m.setErr("deleting contact %s: %v", contactID, err)
				return false
			}
			m.removeContact(contactID)
		}
		if err := m.backend.Delete(ctx, resourceCustomers, id); err != nil {
			m.setErr("deleting customer: %v", err)
			return false
		}
	}

	m.mu.Lock()
	filtered := m.contacts[:0]
	for _, c := range m.contacts {
		if c.CustomerID != id {
			filtered = append(filtered, c)
		}
	}
	m.contacts = filtered
	for i, c := range m.customers {
		if c.ID == id {
			m.customers = append(m.customers[:i], m.customers[i+1:]...)
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

func (m *Manager) removeContact(id string) {
	m.mu.Lock()
	for i, c := range m.contacts {
		if c.ID == id {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

// ContactInput holds the caller-supplied fields for a new contact.
type ContactInput struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
}

// ContactPatch is a partial contact update. CustomerID is immutable
// after creation.
type ContactPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (p ContactPatch) apply(c model.Contact) model.Contact {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Role != nil {
		c.Role = *p.Role
	}
	return c
}

func (p ContactPatch) record(c model.Contact) remote.Record {
	rec := remote.Record{
		"lastModifiedBy": c.LastModifiedBy,
		"lastModifiedAt": c.LastModifiedAt,
	}
	if p.Name != nil {
		rec["name"] = *p.Name
	}
	if p.Email != nil {
		rec["email"] = *p.Email
	}
	if p.Phone != nil {
		rec["phone"] = *p.Phone
	}
	if p.Role != nil {
		rec["role"] = *p.Role
	}
	return rec
}

// AddContact creates a contact under an existing customer.
func (m *Manager) AddContact(ctx context.Context, actor string, in ContactInput) bool {
	m.mu.Lock()
	customerExists := false
	for _, c := range m.customers {
		if c.ID == in.CustomerID {
			customerExists = true
			break
		}
	}
	m.mu.Unlock()

	if !customerExists {
		m.setErr("customer %s not found", in.CustomerID)
		return false
	}

	by, at := m.stamp(actor)
	contact := model.Contact{
		ID:             m.newID(),
		CustomerID:     in.CustomerID,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Role:           in.Role,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}

	if m.remoteMode() {
		body, err := remote.Encode(contact)
		if err != nil {
			m.setErr("encoding contact: %v", err)
			return false
		}
		returned, err := m.backend.Create(ctx, resourceContacts, body)
		if err != nil {
			m.setErr("creating contact: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &contact); err != nil {
				m.setErr("decoding created contact: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	m.contacts = append(m.contacts, contact)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateContact merges partial fields onto the contact.
func (m *Manager) UpdateContact(ctx context.Context, actor, id string, patch ContactPatch) bool {
	m.mu.Lock()
	var current model.Contact
	found := false
	for _, c := range m.contacts {
		if c.ID == id {
			current, found = c, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("contact %s not found", id)
		return false
	}

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	if m.remoteMode() {
		returned, err := m.backend.Update(ctx, resourceContacts, id, patch.record(merged))
		if err != nil {
			m.setErr("updating contact: %v", err)
			return false
		}
		if returned != nil {
			if err := remote.Decode(returned, &merged); err != nil {
				m.setErr("decoding updated contact: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	for i, c := range m.contacts {
		if c.ID == id {
			m.contacts[i] = merged
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteContact removes a single contact. No cascade; customers are not
// affected.
func (m *Manager) DeleteContact(ctx context.Context, actor, id string) bool {
	m.mu.Lock()
	found := false
	for _, c := range m.contacts {
		if c.ID == id {
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("contact %s not found", id)
		return false
	}

	if m.remoteMode() {
		if err := m.backend.Delete(ctx, resourceContacts, id); err != nil {
			m.setErr("deleting contact: %v", err)
			return false
		}
	}

	m.removeContact(id)
	m.mu.Lock()
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}
