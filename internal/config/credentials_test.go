// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/storage"
)

func newCredStore(t *testing.T) (*CredentialStore, *storage.KV, string) {
	t.Helper()
	kv, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	keyfile := filepath.Join(t.TempDir(), "credentials.key")
	cs, err := NewCredentialStore(kv, keyfile)
	require.NoError(t, err)
	return cs, kv, keyfile
}

func TestCredentialRoundTrip(t *testing.T) {
	cs, _, _ := newCredStore(t)

	require.NoError(t, cs.Set("openai", "sk-live-abcdef"))
	got, ok := cs.Credential("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-live-abcdef", got)
	assert.True(t, cs.Has("openai"))
}

func TestCredentialStoredEncrypted(t *testing.T) {
	cs, kv, _ := newCredStore(t)
	require.NoError(t, cs.Set("openai", "sk-live-abcdef"))

	raw, err := kv.Get("credential/openai")
	require.NoError(t, err)
	assert.NotContains(t, raw, "sk-live-abcdef", "plaintext must never reach storage")
}

func TestCredentialAbsent(t *testing.T) {
	cs, _, _ := newCredStore(t)
	_, ok := cs.Credential("anthropic")
	assert.False(t, ok)
	assert.False(t, cs.Has("anthropic"))
}

func TestDeleteCredential(t *testing.T) {
	cs, _, _ := newCredStore(t)
	require.NoError(t, cs.Set("mistral", "key"))
	require.NoError(t, cs.Delete("mistral"))
	assert.False(t, cs.Has("mistral"))
}

func TestUnknownProviderRejected(t *testing.T) {
	cs, _, _ := newCredStore(t)
	assert.Error(t, cs.Set("acme", "key"))
	assert.Error(t, cs.Delete("acme"))
	_, ok := cs.Credential("acme")
	assert.False(t, ok)
}

func TestKeyfileCreatedWithOwnerOnlyPermissions(t *testing.T) {
	_, _, keyfile := newCredStore(t)
	info, err := os.Stat(keyfile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestKeyfileReusedAcrossOpens(t *testing.T) {
	kv, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer kv.Close()

	keyfile := filepath.Join(t.TempDir(), "credentials.key")
	cs1, err := NewCredentialStore(kv, keyfile)
	require.NoError(t, err)
	require.NoError(t, cs1.Set("openai", "sk-persist"))

	cs2, err := NewCredentialStore(kv, keyfile)
	require.NoError(t, err)
	got, ok := cs2.Credential("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-persist", got)
}

func TestReplacedKeyfileTreatsCredentialAsAbsent(t *testing.T) {
	kv, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer kv.Close()

	dir := t.TempDir()
	cs1, err := NewCredentialStore(kv, filepath.Join(dir, "a.key"))
	require.NoError(t, err)
	require.NoError(t, cs1.Set("openai", "sk-old"))

	// A different keyfile cannot decrypt the stored ciphertext.
	cs2, err := NewCredentialStore(kv, filepath.Join(dir, "b.key"))
	require.NoError(t, err)
	_, ok := cs2.Credential("openai")
	assert.False(t, ok)
}
