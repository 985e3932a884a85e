// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package perm

import (
	"context"
	"testing"
	"time"

	"pipecrm/internal/model"
	"pipecrm/internal/store"
	"pipecrm/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func storeDenyAll(userID, resource string) store.UpsertPermissionParams {
	return store.UpsertPermissionParams{
		UserID:    userID,
		Resource:  resource,
		UpdatedAt: time.Now(),
	}
}

func TestEffectiveBaseline(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)

	p := e.Effective(context.Background(), "nobody", model.ResourceLeads)
	if !p.Read || p.Edit || p.Delete {
		t.Errorf("baseline = %+v, want {read:true edit:false delete:false}", p)
	}
}

func TestAdminBypass(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, "admin@example.com", model.RoleAdmin)

	// Even an explicit all-false override must not restrict an admin.
	err := e.queries.UpsertPermission(ctx, storeDenyAll(admin.ID, model.ResourceLeads))
	if err != nil {
		t.Fatalf("UpsertPermission: %v", err)
	}

	if !e.CanRead(ctx, &admin, model.ResourceLeads) ||
		!e.CanEdit(ctx, &admin, model.ResourceLeads) ||
		!e.CanDelete(ctx, &admin, model.ResourceLeads) {
		t.Error("admin must bypass stored overrides")
	}
}

func TestNilUserDeniedEverything(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	if e.CanRead(ctx, nil, model.ResourceLeads) ||
		e.CanEdit(ctx, nil, model.ResourceLeads) ||
		e.CanDelete(ctx, nil, model.ResourceLeads) ||
		e.CanAdd(ctx, nil, model.ResourceLeads) {
		t.Error("nil user must be denied everything")
	}
}

func TestCanAddEqualsCanEdit(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, "admin@example.com", model.RoleAdmin)
	sales := testutil.CreateTestUser(t, db, "sales@example.com", model.RoleSales)

	if e.CanAdd(ctx, &sales, model.ResourceLeads) {
		t.Error("baseline user must not add")
	}

	err := e.UpdateUserPermissions(ctx, &admin, sales.ID, model.ResourceLeads, model.PermissionPatch{
		Edit: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpdateUserPermissions: %v", err)
	}

	if !e.CanAdd(ctx, &sales, model.ResourceLeads) {
		t.Error("edit grant must also grant add")
	}
}

func TestUpdateUserPermissionsPartialMerge(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, "admin@example.com", model.RoleAdmin)
	sales := testutil.CreateTestUser(t, db, "sales@example.com", model.RoleSales)

	if err := e.UpdateUserPermissions(ctx, &admin, sales.ID, model.ResourceProducts, model.PermissionPatch{
		Edit: boolPtr(true),
	}); err != nil {
		t.Fatalf("UpdateUserPermissions: %v", err)
	}
	if err := e.UpdateUserPermissions(ctx, &admin, sales.ID, model.ResourceProducts, model.PermissionPatch{
		Delete: boolPtr(true),
	}); err != nil {
		t.Fatalf("UpdateUserPermissions: %v", err)
	}

	p := e.Effective(ctx, sales.ID, model.ResourceProducts)
	if !p.Read || !p.Edit || !p.Delete {
		t.Errorf("effective = %+v, want all true after two partial grants", p)
	}
}

func TestUpdateUserPermissionsNonAdminSilentNoop(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	sales := testutil.CreateTestUser(t, db, "sales@example.com", model.RoleSales)
	other := testutil.CreateTestUser(t, db, "other@example.com", model.RoleSales)

	if err := e.UpdateUserPermissions(ctx, &sales, other.ID, model.ResourceLeads, model.PermissionPatch{
		Edit: boolPtr(true),
	}); err != nil {
		t.Fatalf("expected silent no-op, got error: %v", err)
	}

	p := e.Effective(ctx, other.ID, model.ResourceLeads)
	if p.Edit {
		t.Error("non-admin grant must not take effect")
	}
}

func TestUpdateUserPermissionsRevoke(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, "admin@example.com", model.RoleAdmin)
	sales := testutil.CreateTestUser(t, db, "sales@example.com", model.RoleSales)

	if err := e.UpdateUserPermissions(ctx, &admin, sales.ID, model.ResourceCustomers, model.PermissionPatch{
		Read: boolPtr(false),
	}); err != nil {
		t.Fatalf("UpdateUserPermissions: %v", err)
	}

	if e.CanRead(ctx, &sales, model.ResourceCustomers) {
		t.Error("revoked read must deny")
	}
}

func TestEffectiveAllCoversEveryResource(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	e := NewEngine(db)

	all := e.EffectiveAll(context.Background(), "nobody")
	if len(all) != len(model.Resources) {
		t.Fatalf("resources = %d, want %d", len(all), len(model.Resources))
	}
	for resource, p := range all {
		if !p.Read || p.Edit || p.Delete {
			t.Errorf("%s = %+v, want baseline", resource, p)
		}
	}
}
