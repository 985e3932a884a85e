// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/pipecrm.db", cfg.DBPath)
	assert.Equal(t, "localhost:8080", cfg.ServerAddr())
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.False(t, cfg.UseRemote())
	assert.False(t, cfg.UseRedisCache())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 90, cfg.EventRetentionDays)
}

func TestLoadRemoteBackend(t *testing.T) {
	t.Setenv("PIPECRM_BACKEND", "remote")
	t.Setenv("PIPECRM_REMOTE_URL", "https://records.example.com/api")
	t.Setenv("PIPECRM_REMOTE_CASCADES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseRemote())
	assert.True(t, cfg.RemoteCascades)
}

func TestLoadRemoteBackendRequiresURL(t *testing.T) {
	t.Setenv("PIPECRM_BACKEND", "remote")
	t.Setenv("PIPECRM_REMOTE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPECRM_REMOTE_URL")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PIPECRM_BACKEND", "cloud")

	_, err := Load()
	require.Error(t, err)
}

func TestRedisCacheDetection(t *testing.T) {
	t.Setenv("PIPECRM_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseRedisCache())
}
