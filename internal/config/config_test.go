// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/catalog"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, catalog.DefaultModelID(), cfg.DefaultModel)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "claude-3-5-sonnet"
	cfg.UI.Theme = "light"
	cfg.UI.ShowTokens = false
	cfg.Providers = map[string]ProviderEntry{
		"openai": {Endpoint: "http://localhost:9999/v1"},
	}
	require.NoError(t, SaveFile(cfg, path))

	loaded := Default()
	require.NoError(t, LoadFile(loaded, path))
	assert.Equal(t, "claude-3-5-sonnet", loaded.DefaultModel)
	assert.Equal(t, "light", loaded.UI.Theme)
	assert.False(t, loaded.UI.ShowTokens)
	assert.Equal(t, "http://localhost:9999/v1", loaded.Providers["openai"].Endpoint)
}

func TestSavedFileHasOwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveFile(Default(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestValidateRejectsUnknownModel(t *testing.T) {
	cfg := Default()
	cfg.DefaultModel = "gpt-9000"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_model")
}

func TestValidateAcceptsAutoSentinel(t *testing.T) {
	cfg := Default()
	cfg.DefaultModel = catalog.AutoModelID
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadTheme(t *testing.T) {
	cfg := Default()
	cfg.UI.Theme = "neon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestValidateRejectsUnknownProviderAndBadEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]ProviderEntry{
		"acme":   {},
		"openai": {Endpoint: "not a url"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.acme")
	assert.Contains(t, err.Error(), "providers.openai.endpoint")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_MODEL", "mistral-large")
	t.Setenv("PARLEY_THEME", "light")
	t.Setenv("PARLEY_PLAIN", "true")
	t.Setenv("PARLEY_DB_PATH", "/tmp/other.db")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "mistral-large", cfg.DefaultModel)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.True(t, cfg.UI.Plain)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Path)
}

func TestDatabasePathHonorsOverride(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/tmp/elsewhere.db"
	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.db", path)
}
