// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the background maintenance jobs: periodic
// resync of entity collections from the remote records store, and
// event log retention cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pipecrm/internal/cache"
	"pipecrm/internal/model"
	"pipecrm/internal/service"
	"pipecrm/internal/state"
)

// Event retention cleanup runs nightly; the schedule is fixed.
const cleanupSpec = "0 3 * * *"

// Options configures a Scheduler.
type Options struct {
	State       *state.Manager
	Events      *service.EventService
	Collections *cache.Collections
	Logger      *slog.Logger

	// Resync enables the periodic remote resync job. Leave false in
	// local backing mode, where there is nothing to sync from.
	Resync     bool
	ResyncSpec string

	// EventRetention is how long event log entries are kept. Zero
	// disables the cleanup job.
	EventRetention time.Duration
}

// Scheduler owns the cron instance and the job set.
type Scheduler struct {
	cron           *cron.Cron
	state          *state.Manager
	events         *service.EventService
	collections    *cache.Collections
	logger         *slog.Logger
	resync         bool
	resyncSpec     string
	eventRetention time.Duration
}

// New creates a scheduler. Cron specs are validated here so a bad
// configuration fails at startup, not at first tick.
func New(opts Options) (*Scheduler, error) {
	if opts.Resync {
		if err := ValidateSpec(opts.ResyncSpec); err != nil {
			return nil, fmt.Errorf("resync schedule: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:           cron.New(),
		state:          opts.State,
		events:         opts.Events,
		collections:    opts.Collections,
		logger:         logger,
		resync:         opts.Resync,
		resyncSpec:     opts.ResyncSpec,
		eventRetention: opts.EventRetention,
	}, nil
}

// Start registers the jobs and begins the cron loop.
func (s *Scheduler) Start() error {
	if s.resync {
		if _, err := s.cron.AddFunc(s.resyncSpec, func() {
			if err := s.ResyncNow(context.Background()); err != nil {
				s.logger.Error("scheduled resync failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("adding resync job: %w", err)
		}
	}

	if s.eventRetention > 0 {
		if _, err := s.cron.AddFunc(cleanupSpec, func() {
			if err := s.CleanupNow(context.Background()); err != nil {
				s.logger.Error("event cleanup failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("adding cleanup job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// ResyncNow re-fetches all collections from the remote store and drops
// cached list payloads. Also usable as a manual trigger.
func (s *Scheduler) ResyncNow(ctx context.Context) error {
	s.state.Refresh(ctx)
	if msg := s.state.LastError(); msg != "" {
		if s.events != nil {
			_ = s.events.LogSyncEvent(ctx, model.EventLevelError, "Scheduled resync failed", map[string]any{
				"error": msg,
			})
		}
		return fmt.Errorf("refreshing collections: %s", msg)
	}
	if s.collections != nil {
		s.collections.InvalidateAll(ctx)
	}
	if s.events != nil {
		_ = s.events.LogSyncEvent(ctx, model.EventLevelInfo, "Collections resynced", nil)
	}
	return nil
}

// CleanupNow deletes event log entries older than the retention window.
func (s *Scheduler) CleanupNow(ctx context.Context) error {
	if s.events == nil || s.eventRetention <= 0 {
		return nil
	}
	if err := s.events.DeleteOldEvents(ctx, s.eventRetention); err != nil {
		return fmt.Errorf("deleting old events: %w", err)
	}
	s.logger.Debug("event log cleaned", "retention", s.eventRetention)
	return nil
}
