// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pipecrm/internal/model"
	"pipecrm/internal/remote"
)

// fakeBackend is an in-memory stand-in for the remote records store.
type fakeBackend struct {
	records map[string][]remote.Record

	failCreate map[string]error
	failDelete map[string]error
	failList   map[string]error

	creates []string
	deletes []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		records:    make(map[string][]remote.Record),
		failCreate: make(map[string]error),
		failDelete: make(map[string]error),
		failList:   make(map[string]error),
	}
}

func (f *fakeBackend) List(_ context.Context, resource string) ([]remote.Record, error) {
	if err := f.failList[resource]; err != nil {
		return nil, err
	}
	return append([]remote.Record(nil), f.records[resource]...), nil
}

func (f *fakeBackend) Create(_ context.Context, resource string, body remote.Record) (remote.Record, error) {
	f.creates = append(f.creates, resource)
	if err := f.failCreate[resource]; err != nil {
		return nil, err
	}
	f.records[resource] = append(f.records[resource], body)
	return body, nil
}

func (f *fakeBackend) Update(_ context.Context, resource, id string, partial remote.Record) (remote.Record, error) {
	for i, rec := range f.records[resource] {
		if rec["id"] == id {
			for k, v := range partial {
				rec[k] = v
			}
			f.records[resource][i] = rec
			return rec, nil
		}
	}
	return nil, remote.ErrNotFound
}

func (f *fakeBackend) Delete(_ context.Context, resource, id string) error {
	f.deletes = append(f.deletes, resource+"/"+id)
	if err := f.failDelete[resource]; err != nil {
		return err
	}
	for i, rec := range f.records[resource] {
		if rec["id"] == id {
			f.records[resource] = append(f.records[resource][:i], f.records[resource][i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func newRemoteManager(backend *fakeBackend, cascades bool) *Manager {
	m := NewManager(Options{Backend: backend, RemoteCascades: cascades})
	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("rid-%d", seq)
	}
	m.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return m
}

func TestRemoteAddLeadPersistsThroughBackend(t *testing.T) {
	backend := newFakeBackend()
	m := newRemoteManager(backend, false)
	ctx := context.Background()

	if !m.AddLead(ctx, "u-1", LeadInput{Name: "Alice", Company: "Acme"}) {
		t.Fatalf("AddLead failed: %s", m.LastError())
	}
	if len(backend.records[resourceLeads]) != 1 {
		t.Fatal("expected lead to be created in the backend")
	}
	if len(m.Leads()) != 1 {
		t.Fatal("expected lead in local collection")
	}
}

func TestRemoteCreateFailureLeavesStateUntouched(t *testing.T) {
	backend := newFakeBackend()
	backend.failCreate[resourceLeads] = errors.New("boom")
	m := newRemoteManager(backend, false)

	if m.AddLead(context.Background(), "u-1", LeadInput{Name: "Alice"}) {
		t.Fatal("expected AddLead to fail")
	}
	if len(m.Leads()) != 0 {
		t.Error("failed create must not mutate local state")
	}
	if m.LastError() == "" {
		t.Error("expected error slot to be populated")
	}
}

func TestRemoteConversionClientSideCascade(t *testing.T) {
	backend := newFakeBackend()
	m := newRemoteManager(backend, false)
	ctx := context.Background()

	if !m.AddLead(ctx, "u-1", LeadInput{Name: "Alice", Email: "alice@example.com", Company: "Acme"}) {
		t.Fatalf("AddLead failed: %s", m.LastError())
	}
	lead := m.Leads()[0]

	if !m.UpdateLead(ctx, "u-1", lead.ID, LeadPatch{Status: strPtr(model.LeadStatusConverted)}) {
		t.Fatalf("converting update failed: %s", m.LastError())
	}

	if len(backend.records[resourceCustomers]) != 1 {
		t.Fatal("expected customer created in backend")
	}
	if len(backend.records[resourceContacts]) != 1 {
		t.Fatal("expected contact created in backend")
	}

	customers := m.Customers()
	if len(customers) != 1 || customers[0].LeadID != lead.ID {
		t.Fatalf("customers = %+v, want one linked to %s", customers, lead.ID)
	}
	contacts := m.ContactsByCustomer(customers[0].ID)
	if len(contacts) != 1 || contacts[0].Role != model.PrimaryContactRole {
		t.Fatalf("contacts = %+v, want one primary contact", contacts)
	}
}

func TestRemoteConversionServerSideCascadeRefetches(t *testing.T) {
	backend := newFakeBackend()
	m := newRemoteManager(backend, true)
	ctx := context.Background()

	if !m.AddLead(ctx, "u-1", LeadInput{Name: "Alice", Company: "Acme"}) {
		t.Fatalf("AddLead failed: %s", m.LastError())
	}
	lead := m.Leads()[0]

	// Simulate the store's own cascade: it grows the customer and
	// contact collections as a side effect of the converting update.
	backend.records[resourceCustomers] = []remote.Record{{
		"id": "srv-cust-1", "name": "Acme", "status": "active", "leadId": lead.ID,
	}}
	backend.records[resourceContacts] = []remote.Record{{
		"id": "srv-cont-1", "customerId": "srv-cust-1", "name": "Alice", "role": model.PrimaryContactRole,
	}}

	if !m.UpdateLead(ctx, "u-1", lead.ID, LeadPatch{Status: strPtr(model.LeadStatusConverted)}) {
		t.Fatalf("converting update failed: %s", m.LastError())
	}

	// The manager must not have created anything itself.
	if len(backend.creates) != 1 || backend.creates[0] != resourceLeads {
		t.Errorf("creates = %v, want only the initial lead create", backend.creates)
	}

	customers := m.Customers()
	if len(customers) != 1 || customers[0].ID != "srv-cust-1" {
		t.Fatalf("customers = %+v, want the server-created one", customers)
	}
	if len(m.Contacts()) != 1 {
		t.Fatal("expected the server-created contact after refetch")
	}
}

func TestRemoteDeleteCustomerCascadeDeletesContactsFirst(t *testing.T) {
	backend := newFakeBackend()
	m := newRemoteManager(backend, false)
	ctx := context.Background()

	if !m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Acme"}) {
		t.Fatalf("AddCustomer failed: %s", m.LastError())
	}
	customer := m.Customers()[0]
	if !m.AddContact(ctx, "u-1", ContactInput{CustomerID: customer.ID, Name: "Alice"}) {
		t.Fatalf("AddContact failed: %s", m.LastError())
	}
	contact := m.Contacts()[0]

	if !m.DeleteCustomer(ctx, "u-1", customer.ID) {
		t.Fatalf("DeleteCustomer failed: %s", m.LastError())
	}

	want := []string{
		resourceContacts + "/" + contact.ID,
		resourceCustomers + "/" + customer.ID,
	}
	if len(backend.deletes) != 2 || backend.deletes[0] != want[0] || backend.deletes[1] != want[1] {
		t.Errorf("deletes = %v, want %v", backend.deletes, want)
	}
}

func TestRemoteDeleteContactFailureAbortsCustomerDelete(t *testing.T) {
	backend := newFakeBackend()
	m := newRemoteManager(backend, false)
	ctx := context.Background()

	if !m.AddCustomer(ctx, "u-1", CustomerInput{Name: "Acme"}) {
		t.Fatalf("AddCustomer failed: %s", m.LastError())
	}
	customer := m.Customers()[0]
	if !m.AddContact(ctx, "u-1", ContactInput{CustomerID: customer.ID, Name: "Alice"}) {
		t.Fatalf("AddContact failed: %s", m.LastError())
	}

	backend.failDelete[resourceContacts] = errors.New("boom")
	if m.DeleteCustomer(ctx, "u-1", customer.ID) {
		t.Fatal("expected cascade delete to fail")
	}
	if _, ok := m.GetCustomer(customer.ID); !ok {
		t.Error("customer must survive an aborted cascade")
	}
}

func TestRefreshSwapsCollectionsAtomically(t *testing.T) {
	backend := newFakeBackend()
	backend.records[resourceLeads] = []remote.Record{{"id": "l-1", "name": "Alice", "status": "new"}}
	backend.records[resourceProducts] = []remote.Record{{"id": "p-1", "name": "Widget"}}

	m := newRemoteManager(backend, false)
	m.Refresh(context.Background())

	if m.LastError() != "" {
		t.Fatalf("Refresh failed: %s", m.LastError())
	}
	if len(m.Leads()) != 1 || len(m.Products()) != 1 {
		t.Fatal("expected fetched collections")
	}

	// A failing fetch leaves all previous collections in place.
	backend.failList[resourceCustomers] = errors.New("boom")
	backend.records[resourceLeads] = nil
	m.Refresh(context.Background())

	if m.LastError() == "" {
		t.Error("expected error slot after failed refresh")
	}
	if len(m.Leads()) != 1 {
		t.Error("failed refresh must keep previous collections")
	}
}
