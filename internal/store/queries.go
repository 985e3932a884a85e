// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"pipecrm/internal/model"
)

// Queries wraps a database handle with typed query methods.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance for the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateUserParams holds the fields required to create a user.
type CreateUserParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

const userColumns = `id, name, email, password_hash, role, created_at, last_modified_by, last_modified_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var modBy sql.NullString
	var modAt sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &modBy, &modAt)
	if err != nil {
		return model.User{}, err
	}
	u.LastModifiedBy = modBy.String
	if modAt.Valid {
		t := modAt.Time
		u.LastModifiedAt = &t
	}
	return u, nil
}

// CreateUser inserts a new user and returns it.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.Name, arg.Email, arg.PasswordHash, arg.Role, arg.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	return q.GetUserByID(ctx, arg.ID)
}

// GetUserByID returns the user with the given ID.
func (q *Queries) GetUserByID(ctx context.Context, id string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (q *Queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserParams holds the mutable user fields.
type UpdateUserParams struct {
	ID             string
	Name           string
	Email          string
	Role           string
	LastModifiedBy string
	LastModifiedAt time.Time
}

// UpdateUser updates a user's profile fields and returns the new row.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (model.User, error) {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, role = ?, last_modified_by = ?, last_modified_at = ? WHERE id = ?`,
		arg.Name, arg.Email, arg.Role, arg.LastModifiedBy, arg.LastModifiedAt, arg.ID)
	if err != nil {
		return model.User{}, err
	}
	return q.GetUserByID(ctx, arg.ID)
}

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	return err
}

// DeleteUser removes a user and any permission overrides stored for it.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = ?`, id); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// GetPermission returns the stored permission override for a (user,
// resource) pair. sql.ErrNoRows means no override is stored.
func (q *Queries) GetPermission(ctx context.Context, userID, resource string) (model.ResourcePermissions, error) {
	var p model.ResourcePermissions
	row := q.db.QueryRowContext(ctx,
		`SELECT can_read, can_edit, can_delete FROM user_permissions WHERE user_id = ? AND resource = ?`,
		userID, resource)
	if err := row.Scan(&p.Read, &p.Edit, &p.Delete); err != nil {
		return model.ResourcePermissions{}, err
	}
	return p, nil
}

// UpsertPermissionParams holds a full permission override row.
type UpsertPermissionParams struct {
	UserID    string
	Resource  string
	Read      bool
	Edit      bool
	Delete    bool
	UpdatedAt time.Time
}

// UpsertPermission creates or replaces a permission override row.
func (q *Queries) UpsertPermission(ctx context.Context, arg UpsertPermissionParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO user_permissions (user_id, resource, can_read, can_edit, can_delete, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, resource) DO UPDATE SET
		   can_read = excluded.can_read,
		   can_edit = excluded.can_edit,
		   can_delete = excluded.can_delete,
		   updated_at = excluded.updated_at`,
		arg.UserID, arg.Resource, arg.Read, arg.Edit, arg.Delete, arg.UpdatedAt)
	return err
}

// ListPermissionsByUser returns every stored override for a user keyed
// by resource type.
func (q *Queries) ListPermissionsByUser(ctx context.Context, userID string) (map[string]model.ResourcePermissions, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT resource, can_read, can_edit, can_delete FROM user_permissions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	perms := make(map[string]model.ResourcePermissions)
	for rows.Next() {
		var resource string
		var p model.ResourcePermissions
		if err := rows.Scan(&resource, &p.Read, &p.Edit, &p.Delete); err != nil {
			return nil, err
		}
		perms[resource] = p
	}
	return perms, rows.Err()
}

// CreateEventParams holds the fields for an event log entry.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullString
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent inserts an event log entry.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (model.Event, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO events (level, category, message, user_id, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Level, arg.Category, arg.Message, arg.UserID, arg.Metadata, arg.CreatedAt)
	if err != nil {
		return model.Event{}, err
	}
	id, _ := res.LastInsertId()
	return model.Event{
		ID:        id,
		Level:     arg.Level,
		Category:  arg.Category,
		Message:   arg.Message,
		UserID:    arg.UserID,
		Metadata:  arg.Metadata,
		CreatedAt: arg.CreatedAt,
	}, nil
}

// ListRecentEvents returns the most recent events, newest first.
func (q *Queries) ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, level, category, message, user_id, metadata, created_at
		 FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOldEvents removes events created before the cutoff time.
func (q *Queries) DeleteOldEvents(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	return err
}
