// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key-value store backing parley.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// STORAGE KEYS
// =============================================================================

// Well-known keys. Values are JSON strings except credentials and flags.
const (
	KeyConversations    = "conversations"
	KeyLastConversation = "last_conversation"
	KeyAgents           = "agents"
	KeyKnowledgebases   = "knowledgebases"
	KeyActiveKnowledge  = "active_knowledge"
	KeyFeedDefaultKB    = "feed_default_knowledge"

	// CredentialKeyPrefix prefixes per-provider credential keys.
	CredentialKeyPrefix = "credential/"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by Get for an absent key.
// Use errors.Is(err, ErrKeyNotFound) to check for this error.
var ErrKeyNotFound = errors.New("storage: key not found")

// =============================================================================
// KV STORE
// =============================================================================

// Schema creates the single key-value table.
const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// KV is a SQLite-backed string key-value store. All parley state that
// must survive a restart goes through it: conversation list, agents,
// knowledgebases, credentials, and flags.
//
// Writes are synchronous but callers treat failures as non-fatal: state
// stays correct in memory and the error is logged, not surfaced.
type KV struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	// Single writer; the store is used from the UI event loop.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &KV{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory() (*KV, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &KV{db: db}, nil
}

// Close closes the underlying database.
func (s *KV) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *KV) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any existing value.
func (s *KV) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("storage delete %q: %w", key, err)
	}
	return nil
}

// Has reports whether key exists.
func (s *KV) Has(key string) bool {
	_, err := s.Get(key)
	return err == nil
}
