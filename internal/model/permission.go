// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Resource types subject to permission checks.
const (
	ResourceLeads     = "leads"
	ResourceCustomers = "customers"
	ResourceContacts  = "contacts"
	ResourceProducts  = "products"
	ResourceModels    = "models"
	ResourceUsers     = "users"
)

// Resources lists every resource type in a stable order.
var Resources = []string{
	ResourceLeads,
	ResourceCustomers,
	ResourceContacts,
	ResourceProducts,
	ResourceModels,
	ResourceUsers,
}

// ValidResource reports whether resource is a known resource type.
func ValidResource(resource string) bool {
	for _, r := range Resources {
		if r == resource {
			return true
		}
	}
	return false
}

// ResourcePermissions holds the effective read/edit/delete flags for one
// (user, resource) pair. The "add" capability is derived from Edit and is
// never stored independently.
type ResourcePermissions struct {
	Read   bool `json:"read"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// DefaultPermissions is the baseline applied when no override is stored:
// everyone can read, nobody can edit or delete.
func DefaultPermissions() ResourcePermissions {
	return ResourcePermissions{Read: true, Edit: false, Delete: false}
}

// PermissionPatch is a partial permission update. Nil fields are left
// unchanged by a merge.
type PermissionPatch struct {
	Read   *bool `json:"read,omitempty"`
	Edit   *bool `json:"edit,omitempty"`
	Delete *bool `json:"delete,omitempty"`
}

// Apply merges the patch onto p and returns the result.
func (patch PermissionPatch) Apply(p ResourcePermissions) ResourcePermissions {
	if patch.Read != nil {
		p.Read = *patch.Read
	}
	if patch.Edit != nil {
		p.Edit = *patch.Edit
	}
	if patch.Delete != nil {
		p.Delete = *patch.Delete
	}
	return p
}
