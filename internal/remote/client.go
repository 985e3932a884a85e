// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package remote implements the client for the SQL-backed records API.
// It normalizes field naming between the store's snake_case convention
// and the application's lowerCamel convention, tolerates the store's
// three list response shapes, coerces identifier fields to strings and
// retries rate-limited requests once.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound indicates the store has no record with the requested id.
var ErrNotFound = errors.New("remote: record not found")

// defaultRetryWait is the backoff applied after a rate-limit response
// when the store does not suggest one via Retry-After.
const defaultRetryWait = time.Second

// StatusError reports a non-success HTTP status from the store.
type StatusError struct {
	Method   string
	Resource string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: status %d", e.Method, e.Resource, e.Code)
}

// Client talks to the remote records store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a records store client. A nil httpClient falls back
// to http.DefaultClient's transport defaults with no extra timeout, per
// the store contract.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do performs one request, retrying exactly once after a rate-limit
// response. The returned body is fully read and the response closed.
func (c *Client) do(ctx context.Context, method, path string, body map[string]any) (int, []byte, error) {
	return c.doWithToken(ctx, method, path, body, c.token)
}

func (c *Client) doWithToken(ctx context.Context, method, path string, body map[string]any, token string) (int, []byte, error) {
	payload, err := c.encodeBody(body)
	if err != nil {
		return 0, nil, err
	}

	status, data, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return 0, nil, err
	}

	if status == http.StatusTooManyRequests {
		wait := retryAfter(data)
		if err := c.sleep(ctx, wait); err != nil {
			return 0, nil, err
		}
		status, data, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return 0, nil, err
		}
	}

	return status, data, nil
}

func (c *Client) encodeBody(body map[string]any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return payload, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// Carry the Retry-After hint to the caller inside a synthetic
		// payload so do() can honor a server-suggested delay.
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			data = []byte(ra)
		}
	}

	return resp.StatusCode, data, nil
}

// retryAfter parses the store's suggested backoff, falling back to the
// default delay.
func retryAfter(data []byte) time.Duration {
	if secs, err := strconv.Atoi(string(bytes.TrimSpace(data))); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryWait
}

// List returns all records of a resource type.
func (c *Client) List(ctx context.Context, resource string) ([]Record, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/"+resource, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: http.MethodGet, Resource: resource, Code: status}
	}
	return unwrapList(data)
}

// Get returns a single record, or ErrNotFound when absent.
func (c *Client) Get(ctx context.Context, resource, id string) (Record, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/"+resource+"/"+id, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: http.MethodGet, Resource: resource, Code: status}
	}
	return unwrapRecord(data)
}

// Create inserts a record. Returns the store's view of the new record,
// or nil when the store does not echo one back.
func (c *Client) Create(ctx context.Context, resource string, body Record) (Record, error) {
	status, data, err := c.do(ctx, http.MethodPost, "/"+resource, denormalizeBody(body))
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: http.MethodPost, Resource: resource, Code: status}
	}
	return unwrapRecord(data)
}

// Update applies a partial update. Returns the store's view of the
// updated record, or nil when the store does not echo one back.
func (c *Client) Update(ctx context.Context, resource, id string, partial Record) (Record, error) {
	status, data, err := c.do(ctx, http.MethodPatch, "/"+resource+"/"+id, denormalizeBody(partial))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: http.MethodPatch, Resource: resource, Code: status}
	}
	return unwrapRecord(data)
}

// Delete removes a record. Fails when the store returns a non-success
// status, including not-found.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	status, _, err := c.do(ctx, http.MethodDelete, "/"+resource+"/"+id, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &StatusError{Method: http.MethodDelete, Resource: resource, Code: status}
	}
	return nil
}

// LoginResult is the uniform outcome of a login attempt, regardless of
// backing mode.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Login authenticates against the store's auth sub-interface.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	status, data, err := c.do(ctx, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	if status == http.StatusUnauthorized {
		return LoginResult{Success: false, Error: "invalid credentials"}, nil
	}
	if status < 200 || status > 299 {
		return LoginResult{}, &StatusError{Method: http.MethodPost, Resource: "auth/login", Code: status}
	}

	rec, err := unwrapRecord(data)
	if err != nil {
		return LoginResult{}, err
	}
	token, _ := rec["token"].(string)
	if token == "" {
		return LoginResult{Success: false, Error: "store returned no token"}, nil
	}
	return LoginResult{Success: true, Token: token}, nil
}

// Me returns the user record for a token, or ErrNotFound when the token
// resolves to no user.
func (c *Client) Me(ctx context.Context, token string) (Record, error) {
	status, data, err := c.doWithToken(ctx, http.MethodGet, "/auth/me", nil, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusUnauthorized {
		return nil, ErrNotFound
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Method: http.MethodGet, Resource: "auth/me", Code: status}
	}
	rec, err := unwrapRecord(data)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}
