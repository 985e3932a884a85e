// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"

	"pipecrm/internal/model"
	"pipecrm/internal/remote"
)

// LeadInput holds the caller-supplied fields for a new lead. ID and
// creation stamps are generated by the manager.
type LeadInput struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Company string  `json:"company"`
	Status  string  `json:"status"`
	Source  string  `json:"source"`
	Value   float64 `json:"value"`
}

// LeadPatch is a partial lead update. Nil fields are left unchanged.
type LeadPatch struct {
	Name    *string  `json:"name,omitempty"`
	Email   *string  `json:"email,omitempty"`
	Phone   *string  `json:"phone,omitempty"`
	Company *string  `json:"company,omitempty"`
	Status  *string  `json:"status,omitempty"`
	Source  *string  `json:"source,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

func (p LeadPatch) apply(l model.Lead) model.Lead {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Email != nil {
		l.Email = *p.Email
	}
	if p.Phone != nil {
		l.Phone = *p.Phone
	}
	if p.Company != nil {
		l.Company = *p.Company
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Source != nil {
		l.Source = *p.Source
	}
	if p.Value != nil {
		l.Value = *p.Value
	}
	return l
}

// record renders only the set patch fields plus the modification stamps
// as a partial update body.
func (p LeadPatch) record(l model.Lead) remote.Record {
	rec := remote.Record{
		"lastModifiedBy": l.LastModifiedBy,
		"lastModifiedAt": l.LastModifiedAt,
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
	if p.Company != nil {
		rec["company"] = *p.Company
	}
	if p.Status != nil {
		rec["status"] = *p.Status
	}
	if p.Source != nil {
		rec["source"] = *p.Source
	}
	if p.Value != nil {
		rec["value"] = *p.Value
	}
	return rec
}

// AddLead creates a lead. Returns false when the remote store rejects
// the create; the error slot carries the reason.
func (m *Manager) AddLead(ctx context.Context, actor string, in LeadInput) bool {
	if in.Status == "" {
		in.Status = model.LeadStatusNew
	}
	if !model.ValidLeadStatus(in.Status) {
		m.setErr("invalid lead status %q", in.Status)
		return false
	}
	if in.Value < 0 {
		m.setErr("lead value must not be negative")
		return false
	}

	by, at := m.stamp(actor)
	lead := model.Lead{
		ID:             m.newID(),
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Company:        in.Company,
		Status:         in.Status,
		Source:         in.Source,
		Value:          in.Value,
		CreatedAt:      *at,
		CreatedBy:      actor,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}

	if m.remoteMode() {
		body, err := remote.Encode(lead)
		if err != nil {
			m.setErr("encoding lead: %v", err)
			return false
		}
		returned, err := m.backend.Create(ctx, resourceLeads, body)
		if err != nil {
			m.setErr("creating lead: %v", err)
			return false
		}
		// Prefer the store's view of the record; fall back to the
		// locally constructed one when the store returns nothing.
		if returned != nil {
			if err := remote.Decode(returned, &lead); err != nil {
				m.setErr("decoding created lead: %v", err)
				return false
			}
		}
	}

	m.mu.Lock()
	m.leads = append(m.leads, lead)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateLead merges partial fields onto the lead and re-stamps the
// modification markers. A status transition to "converted" triggers the
// conversion workflow: exactly one customer and one primary contact are
// derived from the lead, unless a customer already references it.
func (m *Manager) UpdateLead(ctx context.Context, actor, id string, patch LeadPatch) bool {
	if patch.Status != nil && !model.ValidLeadStatus(*patch.Status) {
		m.setErr("invalid lead status %q", *patch.Status)
		return false
	}
	if patch.Value != nil && *patch.Value < 0 {
		m.setErr("lead value must not be negative")
		return false
	}

	m.mu.Lock()
	idx := -1
	for i, l := range m.leads {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		m.setErr("lead %s not found", id)
		return false
	}
	current := m.leads[idx]
	_, alreadyConverted := m.customerByLeadLocked(id)
	m.mu.Unlock()

	converting := patch.Status != nil &&
		*patch.Status == model.LeadStatusConverted &&
		!alreadyConverted

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	if !m.remoteMode() {
		return m.applyLeadUpdate(merged, converting, actor)
	}

	returned, err := m.backend.Update(ctx, resourceLeads, id, patch.record(merged))
	if err != nil {
		m.setErr("updating lead: %v", err)
		return false
	}
	// Apply the store's returned record rather than the optimistic
	// local merge when one is available.
	if returned != nil {
		if err := remote.Decode(returned, &merged); err != nil {
			m.setErr("decoding updated lead: %v", err)
			return false
		}
	}

	if converting && m.remoteCascades {
		// The store created the customer and contact server-side;
		// observe them by re-fetching rather than constructing locally.
		m.storeLead(merged)
		m.Refresh(ctx)
		return m.LastError() == ""
	}
	if converting {
		return m.convertRemote(ctx, merged, actor)
	}

	m.storeLead(merged)
	return true
}

// applyLeadUpdate commits a local-mode lead update, running the
// conversion cascade in the same critical section so the customer and
// contact appear atomically with the status change.
func (m *Manager) applyLeadUpdate(lead model.Lead, converting bool, actor string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.storeLeadLocked(lead)
	if converting {
		if _, exists := m.customerByLeadLocked(lead.ID); !exists {
			customer, contact := m.conversionRecords(lead, actor)
			m.customers = append(m.customers, customer)
			m.contacts = append(m.contacts, contact)
		}
	}
	m.clearErrLocked()
	return true
}

// storeLead replaces the lead with a matching id. A lead deleted while
// the update was in flight stays deleted.
func (m *Manager) storeLead(lead model.Lead) {
	m.mu.Lock()
	m.storeLeadLocked(lead)
	m.clearErrLocked()
	m.mu.Unlock()
}

func (m *Manager) storeLeadLocked(lead model.Lead) {
	for i, l := range m.leads {
		if l.ID == lead.ID {
			m.leads[i] = lead
			return
		}
	}
}

// conversionRecords derives the customer and primary contact for a
// converted lead. An empty company yields an empty customer name; field
// validation is a form-layer concern and never blocks conversion.
func (m *Manager) conversionRecords(lead model.Lead, actor string) (model.Customer, model.Contact) {
	by, at := m.stamp(actor)

	customer := model.Customer{
		ID:             m.newID(),
		Name:           lead.Company,
		Status:         model.CustomerStatusActive,
		LeadID:         lead.ID,
		CreatedAt:      *at,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}
	contact := model.Contact{
		ID:             m.newID(),
		CustomerID:     customer.ID,
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Role:           model.PrimaryContactRole,
		LastModifiedBy: by,
		LastModifiedAt: at,
	}
	return customer, contact
}

// convertRemote performs the conversion cascade against a store that
// does not cascade server-side: the customer and contact are created
// through the records API, then committed locally from the returned
// records.
func (m *Manager) convertRemote(ctx context.Context, lead model.Lead, actor string) bool {
	customer, contact := m.conversionRecords(lead, actor)

	customerBody, err := remote.Encode(customer)
	if err != nil {
		m.setErr("encoding customer: %v", err)
		return false
	}
	returned, err := m.backend.Create(ctx, resourceCustomers, customerBody)
	if err != nil {
		m.storeLead(lead)
		m.setErr("converting lead %s: creating customer: %v", lead.ID, err)
		return false
	}
	if returned != nil {
		if err := remote.Decode(returned, &customer); err != nil {
			m.setErr("decoding created customer: %v", err)
			return false
		}
	}

	contact.CustomerID = customer.ID
	contactBody, err := remote.Encode(contact)
	if err != nil {
		m.setErr("encoding contact: %v", err)
		return false
	}
	returned, err = m.backend.Create(ctx, resourceContacts, contactBody)
	if err != nil {
		m.setErr("converting lead %s: creating contact: %v", lead.ID, err)
		return false
	}
	if returned != nil {
		if err := remote.Decode(returned, &contact); err != nil {
			m.setErr("decoding created contact: %v", err)
			return false
		}
	}

	m.mu.Lock()
	m.storeLeadLocked(lead)
	// Re-check idempotence in case a concurrent conversion landed
	// while the network calls were in flight.
	if _, exists := m.customerByLeadLocked(lead.ID); !exists {
		m.customers = append(m.customers, customer)
		m.contacts = append(m.contacts, contact)
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteLead removes a lead. Returns false and records a user-visible
// error, without deleting, while any customer references the lead
// (referential protection, not a cascade).
func (m *Manager) DeleteLead(ctx context.Context, actor, id string) bool {
	m.mu.Lock()
	if _, referenced := m.customerByLeadLocked(id); referenced {
		m.mu.Unlock()
		m.setErr("cannot delete lead %s: a customer references it", id)
		return false
	}
	found := false
	for _, l := range m.leads {
		if l.ID == id {
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("lead %s not found", id)
		return false
	}

	if m.remoteMode() {
		if err := m.backend.Delete(ctx, resourceLeads, id); err != nil {
			m.setErr("deleting lead: %v", err)
			return false
		}
	}

	m.mu.Lock()
	for i, l := range m.leads {
		if l.ID == id {
			m.leads = append(m.leads[:i], m.leads[i+1:]...)
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}
