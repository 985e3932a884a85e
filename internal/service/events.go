// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic and service layer functionality
// including event logging for audit trails.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"pipecrm/internal/model"
	"pipecrm/internal/store"
)

// EventService provides event logging functionality.
type EventService struct {
	queries *store.Queries
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{
		queries: store.New(db),
	}
}

// LogEvent creates a new event log entry. userID may be empty for
// system actions.
func (s *EventService) LogEvent(ctx context.Context, level, category, message, userID string, metadata map[string]any) error {
	var nullUserID sql.NullString
	if userID != "" {
		nullUserID = sql.NullString{String: userID, Valid: true}
	}

	metadataJSON := "{}"
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(jsonBytes)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err, "category", category)
		return err
	}

	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, userID, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, userID, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, userID, metadata)
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, metadata)
}

// LogPermissionEvent logs a permission-change event.
func (s *EventService) LogPermissionEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryPermission, message, userID, metadata)
}

// LogLeadEvent logs a lead-related event.
func (s *EventService) LogLeadEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryLead, message, userID, metadata)
}

// LogUserEvent logs a user-account management event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message, userID string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, metadata)
}

// LogSyncEvent logs a remote-store synchronization event.
func (s *EventService) LogSyncEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySync, message, "", metadata)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.queries.DeleteOldEvents(ctx, cutoff)
}
