// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"
	"strings"

	"pipecrm/internal/auth"
	"pipecrm/internal/model"
	"pipecrm/internal/store"
)

// UserInput holds the caller-supplied fields for a new user account.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserPatch is a partial user update. Password changes go through
// ChangePassword, not through the patch.
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (p UserPatch) apply(u model.User) model.User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}

// AddUser creates a user account. Accounts live in the local database
// in both backing modes; credentials never travel to the remote store.
func (m *Manager) AddUser(ctx context.Context, actor string, in UserInput) bool {
	if m.queries == nil {
		m.setErr("user store not configured")
		return false
	}
	if in.Role == "" {
		in.Role = model.RoleSales
	}
	if !model.ValidRole(in.Role) {
		m.setErr("invalid user role %q", in.Role)
		return false
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		m.setErr("user email is required")
		return false
	}
	if in.Password == "" {
		m.setErr("user password is required")
		return false
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		m.setErr("hashing password: %v", err)
		return false
	}

	_, at := m.stamp(actor)
	user, err := m.queries.CreateUser(ctx, store.CreateUserParams{
		ID:           m.newID(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    *at,
	})
	if err != nil {
		m.setErr("creating user: %v", err)
		return false
	}

	m.mu.Lock()
	m.users = append(m.users, user)
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// UpdateUser merges partial profile fields onto the user and persists
// the row.
func (m *Manager) UpdateUser(ctx context.Context, actor, id string, patch UserPatch) bool {
	if m.queries == nil {
		m.setErr("user store not configured")
		return false
	}
	if patch.Role != nil && !model.ValidRole(*patch.Role) {
		m.setErr("invalid user role %q", *patch.Role)
		return false
	}

	m.mu.Lock()
	var current model.User
	found := false
	for _, u := range m.users {
		if u.ID == id {
			current, found = u, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("user %s not found", id)
		return false
	}

	merged := patch.apply(current)
	merged.LastModifiedBy, merged.LastModifiedAt = m.stamp(actor)

	saved, err := m.queries.UpdateUser(ctx, store.UpdateUserParams{
		ID:             id,
		Name:           merged.Name,
		Email:          merged.Email,
		Role:           merged.Role,
		LastModifiedBy: merged.LastModifiedBy,
		LastModifiedAt: *merged.LastModifiedAt,
	})
	if err != nil {
		m.setErr("updating user: %v", err)
		return false
	}

	m.mu.Lock()
	for i, u := range m.users {
		if u.ID == id {
			m.users[i] = saved
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// ChangePassword replaces a user's password hash.
func (m *Manager) ChangePassword(ctx context.Context, id, password string) bool {
	if m.queries == nil {
		m.setErr("user store not configured")
		return false
	}
	if password == "" {
		m.setErr("user password is required")
		return false
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		m.setErr("hashing password: %v", err)
		return false
	}
	if err := m.queries.UpdateUserPassword(ctx, id, hash); err != nil {
		m.setErr("updating password: %v", err)
		return false
	}

	m.mu.Lock()
	for i, u := range m.users {
		if u.ID == id {
			m.users[i].PasswordHash = hash
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}

// DeleteUser removes a user account along with its stored permission
// overrides. A user cannot delete their own account.
func (m *Manager) DeleteUser(ctx context.Context, actor, id string) bool {
	if m.queries == nil {
		m.setErr("user store not configured")
		return false
	}
	if actor == id {
		m.setErr("cannot delete own account")
		return false
	}

	m.mu.Lock()
	found := false
	for _, u := range m.users {
		if u.ID == id {
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		m.setErr("user %s not found", id)
		return false
	}

	if err := m.queries.DeleteUser(ctx, id); err != nil {
		m.setErr("deleting user: %v", err)
		return false
	}

	m.mu.Lock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			break
		}
	}
	m.clearErrLocked()
	m.mu.Unlock()
	return true
}
