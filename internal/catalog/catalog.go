// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog holds the static registry of providers and models.
package catalog

import (
	"strconv"
	"strings"
)

// =============================================================================
// CAPABILITY TAGS
// =============================================================================

// Capability tags describe what a model is good at. The auto-router
// matches keyword hits in the outbound text against these tags.
const (
	CapCode        = "code"
	CapCreative    = "creative"
	CapFast        = "fast"
	CapVision      = "vision"
	CapLongContext = "long-context"
)

// AutoModelID is the sentinel model id meaning "pick a model for me".
const AutoModelID = "auto"

// =============================================================================
// PROVIDER TYPE
// =============================================================================

// Provider is an external AI service exposing a chat-completion endpoint.
// Static, read-only reference data.
type Provider struct {
	// ID is the stable provider identifier used in requests and
	// credential keys.
	ID string

	// Name is the human-readable display name.
	Name string

	// Endpoint is the chat completions URL requests are POSTed to.
	Endpoint string

	// CredentialKey is the durable-storage key holding the API key.
	CredentialKey string

	// CredentialEnv is the environment variable consulted when no
	// stored credential exists.
	CredentialEnv string
}

// =============================================================================
// MODEL TYPE
// =============================================================================

// Model is a specific provider offering with its own token limit and
// capability tags. Static, read-only reference data.
type Model struct {
	ID           string
	Name         string
	ProviderID   string
	Capabilities []string
	TokenLimit   int
}

// HasCapability reports whether the model carries the given tag.
func (m Model) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ContextString returns a formatted context window string for display.
func (m Model) ContextString() string {
	if m.TokenLimit >= 1000 {
		return strconv.Itoa(m.TokenLimit/1000) + "K tokens"
	}
	return strconv.Itoa(m.TokenLimit) + " tokens"
}

// =============================================================================
// REGISTRY
// =============================================================================

// Providers is the registry of known providers.
var Providers = map[string]Provider{
	"openai": {
		ID:            "openai",
		Name:          "OpenAI",
		Endpoint:      "https://api.openai.com/v1/chat/completions",
		CredentialKey: "credential/openai",
		CredentialEnv: "PARLEY_OPENAI_KEY",
	},
	"anthropic": {
		ID:            "anthropic",
		Name:          "Anthropic",
		Endpoint:      "https://api.anthropic.com/v1/chat/completions",
		CredentialKey: "credential/anthropic",
		CredentialEnv: "PARLEY_ANTHROPIC_KEY",
	},
	"mistral": {
		ID:            "mistral",
		Name:          "Mistral",
		Endpoint:      "https://api.mistral.ai/v1/chat/completions",
		CredentialKey: "credential/mistral",
		CredentialEnv: "PARLEY_MISTRAL_KEY",
	},
}

// Models is the registry of known models, ordered for display.
var Models = []Model{
	{
		ID:           "gpt-4o",
		Name:         "GPT-4o",
		ProviderID:   "openai",
		Capabilities: []string{CapCode, CapVision, CapLongContext},
		TokenLimit:   128000,
	},
	{
		ID:           "gpt-4o-mini",
		Name:         "GPT-4o Mini",
		ProviderID:   "openai",
		Capabilities: []string{CapFast},
		TokenLimit:   128000,
	},
	{
		ID:           "claude-3-5-sonnet",
		Name:         "Claude 3.5 Sonnet",
		ProviderID:   "anthropic",
		Capabilities: []string{CapCode, CapCreative, CapLongContext},
		TokenLimit:   200000,
	},
	{
		ID:           "claude-3-haiku",
		Name:         "Claude 3 Haiku",
		ProviderID:   "anthropic",
		Capabilities: []string{CapFast},
		TokenLimit:   200000,
	},
	{
		ID:           "mistral-large",
		Name:         "Mistral Large",
		ProviderID:   "mistral",
		Capabilities: []string{CapCode},
		TokenLimit:   32768,
	},
	{
		ID:           "mistral-small",
		Name:         "Mistral Small",
		ProviderID:   "mistral",
		Capabilities: []string{CapFast, CapCreative},
		TokenLimit:   32768,
	},
}

// =============================================================================
// LOOKUP FUNCTIONS
// =============================================================================

// GetModel looks up a model by id. The second return is false when the
// id is unknown or the auto sentinel.
func GetModel(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// GetProvider looks up a provider by id.
func GetProvider(id string) (Provider, bool) {
	p, ok := Providers[id]
	return p, ok
}

// ProviderForModel resolves the provider that serves a model.
func ProviderForModel(modelID string) (Provider, bool) {
	m, ok := GetModel(modelID)
	if !ok {
		return Provider{}, false
	}
	return GetProvider(m.ProviderID)
}

// FirstWithCapability returns the first registry model carrying the tag.
func FirstWithCapability(tag string) (Model, bool) {
	for _, m := range Models {
		if m.HasCapability(tag) {
			return m, true
		}
	}
	return Model{}, false
}

// ModelsByProvider returns all models served by a provider.
func ModelsByProvider(providerID string) []Model {
	result := []Model{}
	for _, m := range Models {
		if strings.EqualFold(m.ProviderID, providerID) {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModelID is the model used when nothing is configured.
func DefaultModelID() string {
	return "gpt-4o-mini"
}
