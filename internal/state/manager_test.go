// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pipecrm/internal/model"
)

// newLocalManager creates a local-mode manager with deterministic ids
// and a fixed clock.
func newLocalManager() *Manager {
	m := NewManager(Options{})
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	m.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return m
}

func addLead(t *testing.T, m *Manager, name, company string) model.Lead {
	t.Helper()
	if !m.AddLead(context.Background(), "u-1", LeadInput{
		Name:    name,
		Email:   strings.ToLower(name) + "@example.com",
		Phone:   "+1 555 0100",
		Company: company,
		Source:  "website",
		Value:   5000,
	}) {
		t.Fatalf("AddLead failed: %s", m.LastError())
	}
	leads := m.Leads()
	return leads[len(leads)-1]
}

func strPtr(s string) *string { return &s }

func TestAddLeadDefaultsAndStamps(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "Acme")

	if lead.Status != model.LeadStatusNew {
		t.Errorf("Status = %q, want %q", lead.Status, model.LeadStatusNew)
	}
	if lead.ID == "" {
		t.Error("expected generated id")
	}
	if lead.LastModifiedBy != "u-1" {
		t.Errorf("LastModifiedBy = %q, want u-1", lead.LastModifiedBy)
	}
	if lead.LastModifiedAt == nil {
		t.Error("expected LastModifiedAt to be set")
	}
	if m.LastError() != "" {
		t.Errorf("LastError = %q, want empty", m.LastError())
	}
}

func TestAddLeadRejectsInvalidStatus(t *testing.T) {
	m := newLocalManager()
	if m.AddLead(context.Background(), "u-1", LeadInput{Name: "Bob", Status: "bogus"}) {
		t.Fatal("expected AddLead to fail for invalid status")
	}
	if m.LastError() == "" {
		t.Error("expected error slot to be populated")
	}
	if len(m.Leads()) != 0 {
		t.Error("expected no lead to be added")
	}
}

func TestUpdateLeadPartialMerge(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "Acme")

	if !m.UpdateLead(context.Background(), "u-2", lead.ID, LeadPatch{
		Status: strPtr(model.LeadStatusQualified),
	}) {
		t.Fatalf("UpdateLead failed: %s", m.LastError())
	}

	got, ok := m.GetLead(lead.ID)
	if !ok {
		t.Fatal("lead disappeared")
	}
	if got.Status != model.LeadStatusQualified {
		t.Errorf("Status = %q, want qualified", got.Status)
	}
	if got.Name != "Alice" || got.Company != "Acme" {
		t.Error("untouched fields must survive a partial update")
	}
	if got.LastModifiedBy != "u-2" {
		t.Errorf("LastModifiedBy = %q, want u-2", got.LastModifiedBy)
	}
}

func TestUpdateLeadNotFound(t *testing.T) {
	m := newLocalManager()
	if m.UpdateLead(context.Background(), "u-1", "missing", LeadPatch{Name: strPtr("X")}) {
		t.Fatal("expected update of missing lead to fail")
	}
	if !strings.Contains(m.LastError(), "not found") {
		t.Errorf("LastError = %q, want not-found message", m.LastError())
	}
}

func TestConversionCreatesCustomerAndPrimaryContact(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "Acme")

	if !m.UpdateLead(context.Background(), "u-1", lead.ID, LeadPatch{
		Status: strPtr(model.LeadStatusConverted),
	}) {
		t.Fatalf("converting update failed: %s", m.LastError())
	}

	customers := m.Customers()
	if len(customers) != 1 {
		t.Fatalf("customers = %d, want 1", len(customers))
	}
	customer := customers[0]
	if customer.Name != "Acme" {
		t.Errorf("customer name = %q, want Acme", customer.Name)
	}
	if customer.Status != model.CustomerStatusActive {
		t.Errorf("customer status = %q, want active", customer.Status)
	}
	if customer.LeadID != lead.ID {
		t.Errorf("customer leadId = %q, want %s", customer.LeadID, lead.ID)
	}

	contacts := m.ContactsByCustomer(customer.ID)
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(contacts))
	}
	contact := contacts[0]
	if contact.Role != model.PrimaryContactRole {
		t.Errorf("contact role = %q, want %q", contact.Role, model.PrimaryContactRole)
	}
	if contact.Name != lead.Name || contact.Email != lead.Email || contact.Phone != lead.Phone {
		t.Error("contact must copy the lead's name, email and phone")
	}
}

func TestConversionIsIdempotent(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "Acme")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !m.UpdateLead(ctx, "u-1", lead.ID, LeadPatch{Status: strPtr(model.LeadStatusConverted)}) {
			t.Fatalf("update %d failed: %s", i, m.LastError())
		}
	}

	if got := len(m.Customers()); got != 1 {
		t.Errorf("customers = %d, want exactly 1", got)
	}
	if got := len(m.Contacts()); got != 1 {
		t.Errorf("contacts = %d, want exactly 1", got)
	}
}

func TestConversionWithEmptyCompany(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "")

	if !m.UpdateLead(context.Background(), "u-1", lead.ID, LeadPatch{
		Status: strPtr(model.LeadStatusConverted),
	}) {
		t.Fatalf("converting update failed: %s", m.LastError())
	}

	customers := m.Customers()
	if len(customers) != 1 {
		t.Fatalf("customers = %d, want 1", len(customers))
	}
	if customers[0].Name != "" {
		t.Errorf("customer name = %q, want empty", customers[0].Name)
	}
}

func TestDeleteLeadReferentialProtection(t *testing.T) {
	m := newLocalManager()
	lead := addLead(t, m, "Alice", "Acme")
	ctx := context.Background()

	if !m.UpdateLead(ctx, "u-1", lead.ID, LeadPatch{Status: strPtr(model.LeadStatusConverted)}) {
		t.Fatalf("converting update failed: %s", m.LastError())
	}

	if m.DeleteLead(ctx, "u-1", lead.ID) {
		t.Fatal("expected delete of converted lead to fail")
	}
	if m.LastError() == "" {
		t.Error("expected error slot to be populated")
	}
	if _, ok := m.GetLead(lead.ID); !ok {
		t.Error("lead must survive a blocked delete")
	}

	// Removing the referencing customer unblocks the delete.
	customer := m.Customers()[0]
	if !m.DeleteCustomer(ctx, "u-1", customer.ID) {
		t.Fatalf("DeleteCustomer failed: %s", m.LastError())
	}
	if !m.DeleteLead(ctx, "u-1", lead.ID) {
		t.Fatalf("DeleteLead failed after customer removal: %s", m.LastError())
	}
}

func TestDeleteCustomerCascadesContacts(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	if !m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Acme"}) {
		t.Fatalf("AddCustomer failed: %s", m.LastError())
	}
	customer := m.Customers()[0]

	for i := 0; i < 2; i++ {
		if !m.AddContact(ctx, "u-1", ContactInput{
			CustomerID: customer.ID,
			Name:       fmt.Sprintf("Contact %d", i),
			Role:       "Billing",
		}) {
			t.Fatalf("AddContact failed: %s", m.LastError())
		}
	}

	if !m.DeleteCustomer(ctx, "u-1", customer.ID) {
		t.Fatalf("DeleteCustomer failed: %s", m.LastError())
	}
	if got := len(m.Contacts()); got != 0 {
		t.Errorf("contacts = %d, want 0 after cascade", got)
	}
	if got := len(m.Customers()); got != 0 {
		t.Errorf("customers = %d, want 0", got)
	}
}

func TestAddCustomerLeadLinkValidation(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	if m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Orphan", LeadID: "missing"}) {
		t.Fatal("expected create with unknown leadId to fail")
	}

	lead := addLead(t, m, "Alice", "Acme")
	if !m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Acme", LeadID: lead.ID}) {
		t.Fatalf("AddCustomer failed: %s", m.LastError())
	}
	if m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Acme 2", LeadID: lead.ID}) {
		t.Fatal("expected second customer for the same lead to be rejected")
	}
}

func TestAddContactRequiresCustomer(t *testing.T) {
	m := newLocalManager()
	if m.AddContact(context.Background(), "u-1", ContactInput{CustomerID: "missing", Name: "X"}) {
		t.Fatal("expected contact create with unknown customerId to fail")
	}
}

func TestDeleteProductCascadesModels(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	if !m.AddProduct(ctx, "u-1", ProductInput{Name: "Widget", Category: "hardware"}) {
		t.Fatalf("AddProduct failed: %s", m.LastError())
	}
	product := m.Products()[0]

	if !m.AddModel(ctx, "u-1", ModelInput{ProductID: product.ID, Name: "Widget S", SKU: "W-S", Stock: 4, Price: 9.99}) {
		t.Fatalf("AddModel failed: %s", m.LastError())
	}
	if !m.AddModel(ctx, "u-1", ModelInput{ProductID: product.ID, Name: "Widget L", SKU: "W-L", Stock: 2, Price: 19.99}) {
		t.Fatalf("AddModel failed: %s", m.LastError())
	}

	if !m.DeleteProduct(ctx, "u-1", product.ID) {
		t.Fatalf("DeleteProduct failed: %s", m.LastError())
	}
	if got := len(m.Models()); got != 0 {
		t.Errorf("models = %d, want 0 after cascade", got)
	}
}

func TestAddModelRequiresProduct(t *testing.T) {
	m := newLocalManager()
	if m.AddModel(context.Background(), "u-1", ModelInput{ProductID: "missing", Name: "X"}) {
		t.Fatal("expected model create with unknown productId to fail")
	}
}

func TestAddProductDerivesSlugAndSanitizesDescription(t *testing.T) {
	m := newLocalManager()
	if !m.AddProduct(context.Background(), "u-1", ProductInput{
		Name:        "Café Widget Pro",
		Description: `<p>Good</p><script>alert(1)</script>`,
	}) {
		t.Fatalf("AddProduct failed: %s", m.LastError())
	}

	product := m.Products()[0]
	if product.Slug != "cafe-widget-pro" {
		t.Errorf("slug = %q, want cafe-widget-pro", product.Slug)
	}
	if strings.Contains(product.Description, "<script>") {
		t.Errorf("description = %q, script must be stripped", product.Description)
	}
	if !strings.Contains(product.Description, "<p>Good</p>") {
		t.Errorf("description = %q, safe markup must survive", product.Description)
	}
}

func TestErrorSlotClearedOnSuccess(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	if m.DeleteLead(ctx, "u-1", "missing") {
		t.Fatal("expected delete of missing lead to fail")
	}
	if m.LastError() == "" {
		t.Fatal("expected error slot to be populated")
	}

	addLead(t, m, "Alice", "Acme")
	if m.LastError() != "" {
		t.Errorf("LastError = %q, want empty after a successful mutation", m.LastError())
	}
}

func TestGettersReturnCopies(t *testing.T) {
	m := newLocalManager()
	addLead(t, m, "Alice", "Acme")

	leads := m.Leads()
	leads[0].Name = "Mutated"

	got, _ := m.GetLead(leads[0].ID)
	if got.Name != "Alice" {
		t.Error("mutating a returned slice must not affect internal state")
	}
}
