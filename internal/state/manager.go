// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package state implements the entity state manager: the single source
// of truth for the six CRM collections (users, leads, customers,
// contacts, products, models). Every collection supports add, update,
// delete and filtered reads, backed either by local memory or by the
// remote records store, selected once at construction.
//
// The manager enforces relational invariants (cascades, referential
// protection, the at-most-once lead conversion) but performs no
// permission checks: authorization is the caller's responsibility and
// is enforced at the API trigger layer.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"pipecrm/internal/model"
	"pipecrm/internal/remote"
	"pipecrm/internal/store"
)

// Resource names used against the remote records store. They match the
// permission resource constants.
const (
	resourceLeads     = model.ResourceLeads
	resourceCustomers = model.ResourceCustomers
	resourceContacts  = model.ResourceContacts
	resourceProducts  = model.ResourceProducts
	resourceModels    = model.ResourceModels
)

// Backend is the remote records store surface the manager depends on.
// *remote.Client satisfies it.
type Backend interface {
	List(ctx context.Context, resource string) ([]remote.Record, error)
	Create(ctx context.Context, resource string, body remote.Record) (remote.Record, error)
	Update(ctx context.Context, resource, id string, partial remote.Record) (remote.Record, error)
	Delete(ctx context.Context, resource, id string) error
}

// Options configures a Manager.
type Options struct {
	// Backend is the remote records store. Nil selects local in-memory
	// mode.
	Backend Backend

	// DB is the local database used for the user identity collection.
	// User credentials never travel to the remote store.
	DB *sql.DB

	// RemoteCascades indicates the remote store performs the lead
	// conversion cascade server-side. When set, the manager re-fetches
	// the full collection set after a converting update instead of
	// creating the customer and contact itself.
	RemoteCascades bool
}

// Manager owns the in-memory collections and serializes all writes to
// them. Remote calls run outside the lock, so two in-flight mutations
// of the same entity resolve in response-arrival order (last write
// wins); that race is accepted and documented.
type Manager struct {
	backend        Backend
	queries        *store.Queries
	remoteCascades bool
	sanitizer      *bluemonday.Policy

	newID func() string
	now   func() time.Time

	mu        sync.Mutex
	users     []model.User
	leads     []model.Lead
	customers []model.Customer
	contacts  []model.Contact
	products  []model.Product
	models    []model.Model
	lastErr   string
}

// NewManager creates an entity state manager. Construct one per process
// (or per session) and inject it; the collections are not ambient
// globals.
func NewManager(opts Options) *Manager {
	m := &Manager{
		backend:        opts.Backend,
		remoteCascades: opts.RemoteCascades,
		sanitizer:      bluemonday.UGCPolicy(),
		newID:          uuid.NewString,
		now:            time.Now,
	}
	if opts.DB != nil {
		m.queries = store.New(opts.DB)
	}
	return m
}

// remoteMode reports whether collections sync with the remote store.
func (m *Manager) remoteMode() bool {
	return m.backend != nil
}

// LastError returns the latest recorded operation error, or "" when the
// last mutation succeeded. The UI surfaces this message.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ClearError clears the shared error slot.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = ""
}

// setErr records a user-visible error message, overwriting any prior
// one. Caller must not hold the lock.
func (m *Manager) setErr(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("state operation failed", "error", msg)
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

// clearErrLocked resets the error slot after a successful mutation.
func (m *Manager) clearErrLocked() {
	m.lastErr = ""
}

// Load performs the initial bulk load. In local mode only the user
// collection is read (from the local database); in remote mode all
// record collections are fetched. Failures never surface to the
// caller: previous (possibly empty) collections stay in place and the
// error slot is populated.
func (m *Manager) Load(ctx context.Context) {
	m.loadUsers(ctx)
	if m.remoteMode() {
		m.Refresh(ctx)
	}
}

// loadUsers reads the user collection from the local database.
func (m *Manager) loadUsers(ctx context.Context) {
	if m.queries == nil {
		return
	}
	users, err := m.queries.ListUsers(ctx)
	if err != nil {
		m.setErr("loading users: %v", err)
		return
	}
	m.mu.Lock()
	m.users = users
	m.mu.Unlock()
}

// Refresh re-fetches every record collection from the remote store and
// swaps them in atomically. Any fetch failure leaves all previous
// collections untouched and records the error. No-op in local mode.
func (m *Manager) Refresh(ctx context.Context) {
	if !m.remoteMode() {
		return
	}

	var (
		leads     []model.Lead
		customers []model.Customer
		contacts  []model.Contact
		products  []model.Product
		models    []model.Model
	)

	steps := []struct {
		resource string
		decode   func([]remote.Record) error
	}{
		{resourceLeads, func(recs []remote.Record) error { return decodeAll(recs, &leads) }},
		{resourceCustomers, func(recs []remote.Record) error { return decodeAll(recs, &customers) }},
		{resourceContacts, func(recs []remote.Record) error { return decodeAll(recs, &contacts) }},
		{resourceProducts, func(recs []remote.Record) error { return decodeAll(recs, &products) }},
		{resourceModels, func(recs []remote.Record) error { return decodeAll(recs, &models) }},
	}

	for _, step := range steps {
		recs, err := m.backend.List(ctx, step.resource)
		if err != nil {
			m.setErr("fetching %s: %v", step.resource, err)
			return
		}
		if err := step.decode(recs); err != nil {
			m.setErr("decoding %s: %v", step.resource, err)
			return
		}
	}

	m.mu.Lock()
	m.leads = leads
	m.customers = customers
	m.contacts = contacts
	m.products = products
	m.models = models
	m.clearErrLocked()
	m.mu.Unlock()
}

// decodeAll converts normalized records into a typed slice.
func decodeAll[T any](recs []remote.Record, out *[]T) error {
	result := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := remote.Decode(rec, &v); err != nil {
			return err
		}
		result = append(result, v)
	}
	*out = result
	return nil
}

// Users returns a copy of the user collection.
func (m *Manager) Users() []model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.User(nil), m.users...)
}

// Leads returns a copy of the lead collection.
func (m *Manager) Leads() []model.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Lead(nil), m.leads...)
}

// Customers returns a copy of the customer collection.
func (m *Manager) Customers() []model.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Customer(nil), m.customers...)
}

// Contacts returns a copy of the contact collection.
func (m *Manager) Contacts() []model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Contact(nil), m.contacts...)
}

// Products returns a copy of the product collection.
func (m *Manager) Products() []model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Product(nil), m.products...)
}

// Models returns a copy of the model collection.
func (m *Manager) Models() []model.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Model(nil), m.models...)
}

// ContactsByCustomer returns the contacts belonging to a customer.
// Pure filter, no side effects; order is not significant.
func (m *Manager) ContactsByCustomer(customerID string) []model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Contact
	for _, c := range m.contacts {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	return out
}

// ModelsByProduct returns the models belonging to a product.
func (m *Manager) ModelsByProduct(productID string) []model.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Model
	for _, mod := range m.models {
		if mod.ProductID == productID {
			out = append(out, mod)
		}
	}
	return out
}

// CustomerByLead returns the customer converted from the given lead, if
// any.
func (m *Manager) CustomerByLead(leadID string) (model.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customerByLeadLocked(leadID)
}

func (m *Manager) customerByLeadLocked(leadID string) (model.Customer, bool) {
	if leadID == "" {
		return model.Customer{}, false
	}
	for _, c := range m.customers {
		if c.LeadID == leadID {
			return c, true
		}
	}
	return model.Customer{}, false
}

// GetLead returns the lead with the given id.
func (m *Manager) GetLead(id string) (model.Lead, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.ID == id {
			return l, true
		}
	}
	return model.Lead{}, false
}

// GetCustomer returns the customer with the given id.
func (m *Manager) GetCustomer(id string) (model.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id {
			return c, true
		}
	}
	return model.Customer{}, false
}

// GetContact returns the contact with the given id.
func (m *Manager) GetContact(id string) (model.Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return model.Contact{}, false
}

// GetProduct returns the product with the given id.
func (m *Manager) GetProduct(id string) (model.Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// GetModel returns the model with the given id.
func (m *Manager) GetModel(id string) (model.Model, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mod := range m.models {
		if mod.ID == id {
			return mod, true
		}
	}
	return model.Model{}, false
}

// GetUser returns the user with the given id.
func (m *Manager) GetUser(id string) (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

// stamp returns the last-modified marker fields for the acting user.
func (m *Manager) stamp(actor string) (string, *time.Time) {
	t := m.now()
	return actor, &t
}
