// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGlobalRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 3)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after burst", rr.Code)
	}
}

func TestGlobalRateLimiterPerIP(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 1)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	// A different IP gets its own budget.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, second)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for distinct IP", rr.Code)
	}
}

func TestGetClientIPHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := getClientIP(req); got != "10.0.0.1:1234" {
		t.Errorf("ip = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := getClientIP(req); got != "203.0.113.9" {
		t.Errorf("ip = %q, want X-Forwarded-For value", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.4")
	if got := getClientIP(req); got != "198.51.100.4" {
		t.Errorf("ip = %q, want X-Real-IP value", got)
	}
}
