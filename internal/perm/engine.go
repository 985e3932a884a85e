// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package perm implements the permission engine: per-user, per-resource
// read/edit/delete overrides on top of a read-only baseline, with an
// unconditional admin bypass.
package perm

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"pipecrm/internal/model"
	"pipecrm/internal/store"
)

// Engine answers permission questions for (user, resource) pairs and
// lets admins maintain other users' override tables. Overrides are
// persisted and take effect immediately after UpdateUserPermissions
// returns; nothing is cached across writes.
type Engine struct {
	queries *store.Queries
}

// NewEngine creates a permission engine backed by the given database.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{queries: store.New(db)}
}

// Effective returns the stored override for a (user, resource) pair
// merged over the baseline {read: true, edit: false, delete: false}.
// All three fields are always populated; a missing override yields the
// baseline. Storage errors fall back to the baseline as well.
func (e *Engine) Effective(ctx context.Context, userID, resource string) model.ResourcePermissions {
	p, err := e.queries.GetPermission(ctx, userID, resource)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("loading permission override", "error", err, "user_id", userID, "resource", resource)
		}
		return model.DefaultPermissions()
	}
	return p
}

// CanRead reports whether the user may read the resource type.
// A nil user (no authenticated session) can do nothing; admins can do
// everything.
func (e *Engine) CanRead(ctx context.Context, user *model.User, resource string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return e.Effective(ctx, user.ID, resource).Read
}

// CanEdit reports whether the user may edit the resource type.
func (e *Engine) CanEdit(ctx context.Context, user *model.User, resource string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return e.Effective(ctx, user.ID, resource).Edit
}

// CanDelete reports whether the user may delete records of the resource
// type.
func (e *Engine) CanDelete(ctx context.Context, user *model.User, resource string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return e.Effective(ctx, user.ID, resource).Delete
}

// CanAdd reports whether the user may create records of the resource
// type. There is no independent add permission; add capability is
// defined as edit capability.
func (e *Engine) CanAdd(ctx context.Context, user *model.User, resource string) bool {
	return e.CanEdit(ctx, user, resource)
}

// CanManagePermissions reports whether the user may update other users'
// permission overrides. Admin only.
func (e *Engine) CanManagePermissions(user *model.User) bool {
	return user.IsAdmin()
}

// UpdateUserPermissions merges the patch onto the target user's
// existing-or-default override for the resource and persists the full
// row. Non-admin actors are silently ignored. Unknown target users get
// an override created lazily.
func (e *Engine) UpdateUserPermissions(ctx context.Context, actor *model.User, targetUserID, resource string, patch model.PermissionPatch) error {
	if !actor.IsAdmin() {
		return nil
	}

	merged := patch.Apply(e.Effective(ctx, targetUserID, resource))

	return e.queries.UpsertPermission(ctx, store.UpsertPermissionParams{
		UserID:    targetUserID,
		Resource:  resource,
		Read:      merged.Read,
		Edit:      merged.Edit,
		Delete:    merged.Delete,
		UpdatedAt: time.Now(),
	})
}

// EffectiveAll returns the effective permissions for every resource
// type, merging stored overrides over the baseline.
func (e *Engine) EffectiveAll(ctx context.Context, userID string) map[string]model.ResourcePermissions {
	stored, err := e.queries.ListPermissionsByUser(ctx, userID)
	if err != nil {
		slog.Error("loading permission overrides", "error", err, "user_id", userID)
		stored = nil
	}

	all := make(map[string]model.ResourcePermissions, len(model.Resources))
	for _, resource := range model.Resources {
		if p, ok := stored[resource]; ok {
			all[resource] = p
		} else {
			all[resource] = model.DefaultPermissions()
		}
	}
	return all
}
