// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-token", srv.Client())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestListSendsAuthAndDecodes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/leads" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"records": [{"id": 1, "name": "Alice"}]}`))
	}))

	records, err := c.List(context.Background(), "leads")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0]["id"] != "1" {
		t.Errorf("records = %v", records)
	}
}

func TestRateLimitRetriedExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	var waited time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	if _, err := c.List(context.Background(), "leads"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if waited != 2*time.Second {
		t.Errorf("waited = %v, want 2s from Retry-After", waited)
	}
}

func TestRateLimitSecondFailureSurfaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.List(context.Background(), "leads")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("err = %v, want StatusError 429", err)
	}
}

func TestRateLimitDefaultBackoff(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	var waited time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	if _, err := c.List(context.Background(), "leads"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if waited != defaultRetryWait {
		t.Errorf("waited = %v, want default %v", waited, defaultRetryWait)
	}
}

func TestGetNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	if _, err := c.Get(context.Background(), "leads", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSendsSnakeCaseBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if got := string(body); !strings.Contains(got, `"customer_id"`) {
			t.Errorf("body = %s, want snake_case customer_id", got)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 9, "customer_id": 3}`))
	}))

	rec, err := c.Create(context.Background(), "contacts", Record{"customerId": "3", "name": "Alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec["id"] != "9" || rec["customerId"] != "3" {
		t.Errorf("rec = %v", rec)
	}
}

func TestCreateEmptyResponseReturnsNil(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec, err := c.Create(context.Background(), "leads", Record{"name": "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %v, want nil for empty response", rec)
	}
}

func TestLoginSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"token": "tok-123"}`))
	}))

	res, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.Success || res.Token != "tok-123" {
		t.Errorf("res = %+v", res)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	res, err := c.Login(context.Background(), "a@example.com", "wrong")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("res = %+v, want failure with message", res)
	}
}

func TestMeUsesProvidedToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer session-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"id": 5, "email": "a@example.com", "role": "sales"}`))
	}))

	rec, err := c.Me(context.Background(), "session-token")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if rec["id"] != "5" {
		t.Errorf("rec = %v", rec)
	}
}

func TestMeUnauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.Me(context.Background(), "expired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
