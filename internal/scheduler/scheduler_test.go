// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"testing"
	"time"

	"pipecrm/internal/remote"
	"pipecrm/internal/service"
	"pipecrm/internal/state"
	"pipecrm/internal/store"
	"pipecrm/internal/testutil"
)

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 3 * * *", false},
		{"@hourly", false},
		{"", true},
		{"not a cron spec", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		err := ValidateSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
	}
}

func TestNewRejectsBadResyncSpec(t *testing.T) {
	_, err := New(Options{Resync: true, ResyncSpec: "nope"})
	if err == nil {
		t.Fatal("expected error for invalid resync spec")
	}
}

// staticBackend serves fixed collections for resync tests.
type staticBackend struct {
	records map[string][]remote.Record
	fail    bool
}

func (b *staticBackend) List(_ context.Context, resource string) ([]remote.Record, error) {
	if b.fail {
		return nil, context.DeadlineExceeded
	}
	return b.records[resource], nil
}

func (b *staticBackend) Create(_ context.Context, _ string, body remote.Record) (remote.Record, error) {
	return body, nil
}

func (b *staticBackend) Update(_ context.Context, _, _ string, partial remote.Record) (remote.Record, error) {
	return partial, nil
}

func (b *staticBackend) Delete(_ context.Context, _, _ string) error {
	return nil
}

func TestResyncNow(t *testing.T) {
	backend := &staticBackend{records: map[string][]remote.Record{
		"leads": {{"id": "l1", "name": "Ann", "status": "new"}},
	}}
	mgr := state.NewManager(state.Options{Backend: backend})

	s, err := New(Options{State: mgr, Resync: true, ResyncSpec: "*/5 * * * *"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.ResyncNow(context.Background()); err != nil {
		t.Fatalf("ResyncNow: %v", err)
	}
	leads := mgr.Leads()
	if len(leads) != 1 || leads[0].ID != "l1" {
		t.Fatalf("leads after resync = %+v", leads)
	}

	backend.fail = true
	if err := s.ResyncNow(context.Background()); err == nil {
		t.Fatal("expected error when backend fetch fails")
	}
	// A failed refresh keeps the previous collections.
	if got := len(mgr.Leads()); got != 1 {
		t.Fatalf("leads after failed resync = %d, want 1", got)
	}
}

func TestCleanupNow(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	queries := store.New(db)

	// One stale entry, one fresh.
	if _, err := queries.CreateEvent(ctx, store.CreateEventParams{
		Level: "info", Category: "system", Message: "old", Metadata: "{}",
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := queries.CreateEvent(ctx, store.CreateEventParams{
		Level: "info", Category: "system", Message: "new", Metadata: "{}",
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	events := service.NewEventService(db)
	s, err := New(Options{Events: events, EventRetention: 30 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.CleanupNow(ctx); err != nil {
		t.Fatalf("CleanupNow: %v", err)
	}

	remaining, err := queries.ListRecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Message != "new" {
		t.Fatalf("remaining events = %+v", remaining)
	}
}
