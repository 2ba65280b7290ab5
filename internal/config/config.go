// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Configuration lives in TOML at ~/.parley/config.toml, with sensible
// defaults, environment variable overrides, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/catalog"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// Version is the config schema version.
	Version string `toml:"version"`

	// DefaultModel is the model used when no conversation preference
	// exists. May be a concrete model id or the auto sentinel.
	DefaultModel string `toml:"default_model"`

	// FeedDefaultKnowledge feeds the first knowledgebase into
	// conversations when none is explicitly active.
	FeedDefaultKnowledge bool `toml:"feed_default_knowledge"`

	Storage   StorageConfig            `toml:"storage"`
	UI        UIConfig                 `toml:"ui"`
	Providers map[string]ProviderEntry `toml:"providers"`
}

// StorageConfig contains durable-storage configuration.
type StorageConfig struct {
	// Path is the SQLite database path (empty = ~/.parley/parley.db).
	Path string `toml:"path"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowTokens displays per-turn token estimates in the status bar
	ShowTokens bool `toml:"show_tokens"`
	// CompactMode uses a denser transcript layout
	CompactMode bool `toml:"compact_mode"`
	// Plain disables the full-screen UI in favor of a line-based REPL
	Plain bool `toml:"plain"`
}

// ProviderEntry carries per-provider overrides.
type ProviderEntry struct {
	// Endpoint overrides the catalog endpoint, for proxies and tests.
	Endpoint string `toml:"endpoint"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: catalog.DefaultModelID(),

		Storage: StorageConfig{
			Path: "",
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowTokens:  true,
			CompactMode: false,
			Plain:       false,
		},

		Providers: map[string]ProviderEntry{},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath resolves the SQLite database path, honoring the
// configured override.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions fixes overly permissive modes on files that
// may hold secrets.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadFile(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a TOML config file over cfg.
func LoadFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// Save writes the configuration to the default TOML file with owner-only
// permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(cfg, path)
}

// SaveFile writes the configuration as TOML to path.
func SaveFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# parley configuration file")
	fmt.Fprintln(file, "# Generated by parley - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()
	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderEntry{}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.DefaultModel != catalog.AutoModelID {
		if _, ok := catalog.GetModel(c.DefaultModel); !ok {
			errs = append(errs, ValidationError{
				Field:   "default_model",
				Message: fmt.Sprintf("unknown model %q", c.DefaultModel),
			})
		}
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	for id, entry := range c.Providers {
		if _, ok := catalog.GetProvider(id); !ok {
			errs = append(errs, ValidationError{
				Field:   "providers." + id,
				Message: "unknown provider",
			})
			continue
		}
		if entry.Endpoint != "" {
			if u, err := url.Parse(entry.Endpoint); err != nil || u.Scheme == "" {
				errs = append(errs, ValidationError{
					Field:   "providers." + id + ".endpoint",
					Message: fmt.Sprintf("invalid URL %q", entry.Endpoint),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_MODEL: overrides default_model
//   - PARLEY_THEME: overrides ui.theme
//   - PARLEY_DB_PATH: overrides storage.path
//   - PARLEY_PLAIN: set to "1" or "true" to force the line-based REPL
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if theme := os.Getenv("PARLEY_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if path := os.Getenv("PARLEY_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if plain := os.Getenv("PARLEY_PLAIN"); plain != "" {
		c.UI.Plain = plain == "1" || strings.ToLower(plain) == "true"
	}
}
