// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/util"
)

// scrypt parameters for deriving the cipher key from the machine
// secret. Interactive-grade cost; the secret is already high entropy.
const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	keyLen        = chacha20poly1305.KeySize
	saltLen       = 16
	secretFileLen = 32
)

// ErrCredentialCorrupt indicates a stored credential that could not be
// decrypted, usually because the keyfile was replaced.
var ErrCredentialCorrupt = errors.New("stored credential is corrupt or the keyfile changed")

// =============================================================================
// CREDENTIAL STORE
// =============================================================================

// CredentialStore keeps provider API keys encrypted at rest. Ciphertext
// lives in durable storage under the provider's credential key; the
// cipher key is derived from a random machine-local secret file, so the
// database alone does not reveal the keys.
//
// CredentialStore implements provider.CredentialSource.
type CredentialStore struct {
	kv     *storage.KV
	secret []byte
}

// KeyfilePath returns the default machine secret path.
func KeyfilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.key"), nil
}

// NewCredentialStore opens the credential store, creating the machine
// secret file on first use.
func NewCredentialStore(kv *storage.KV, keyfilePath string) (*CredentialStore, error) {
	secret, err := loadOrCreateSecret(keyfilePath)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{kv: kv, secret: secret}, nil
}

func loadOrCreateSecret(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != secretFileLen {
			return nil, fmt.Errorf("keyfile %s has unexpected size %d", path, len(data))
		}
		return data, nil
	}

	secret := make([]byte, secretFileLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate machine secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("failed to write keyfile: %w", err)
	}
	return secret, nil
}

// Set encrypts and stores an API key for a provider.
func (s *CredentialStore) Set(providerID, apiKey string) error {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q", providerID)
	}

	sealed, err := s.seal([]byte(apiKey))
	if err != nil {
		return err
	}
	return s.kv.Set(p.CredentialKey, sealed)
}

// Delete removes the stored API key for a provider.
func (s *CredentialStore) Delete(providerID string) error {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q", providerID)
	}
	return s.kv.Delete(p.CredentialKey)
}

// Credential implements provider.CredentialSource. Corrupt entries are
// treated as absent so the environment fallback still applies.
func (s *CredentialStore) Credential(providerID string) (string, bool) {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return "", false
	}
	sealed, err := s.kv.Get(p.CredentialKey)
	if err != nil {
		return "", false
	}
	plain, err := s.open(sealed)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// Has reports whether an API key is stored (and readable) for a provider.
func (s *CredentialStore) Has(providerID string) bool {
	_, ok := s.Credential(providerID)
	return ok
}

// =============================================================================
// SEALING
// =============================================================================

// seal encrypts plaintext as base64(salt || nonce || ciphertext).
func (s *CredentialStore) seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *CredentialStore) open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrCredentialCorrupt
	}

	aead, err := s.aead(nil)
	if err != nil {
		return nil, err
	}
	minLen := saltLen + aead.NonceSize() + aead.Overhead()
	if len(raw) < minLen {
		return nil, ErrCredentialCorrupt
	}

	salt := raw[:saltLen]
	aead, err = s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := raw[saltLen : saltLen+aead.NonceSize()]
	ciphertext := raw[saltLen+aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCredentialCorrupt
	}
	return plain, nil
}

func (s *CredentialStore) aead(salt []byte) (cipher.AEAD, error) {
	if salt == nil {
		salt = make([]byte, saltLen)
	}
	key, err := scrypt.Key(s.secret, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
