// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router resolves the "auto" model sentinel to a concrete model
// by scanning the outbound text for intent keywords.
package router

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/parley/internal/catalog"
)

// =============================================================================
// KEYWORD SETS
// =============================================================================

// codeKeywords indicate programming-related requests.
var codeKeywords = []string{
	"code", "function", "bug", "error", "debug", "compile",
	"refactor", "sql", "query", "script", "regex", "api",
	"implement", "algorithm", "stack trace", "exception",
}

// creativeKeywords indicate writing and ideation requests.
var creativeKeywords = []string{
	"story", "poem", "write a", "creative", "brainstorm",
	"imagine", "fiction", "lyrics", "slogan", "essay",
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve maps the selected model id to the concrete model to use for a
// request. Non-auto selections pass through unchanged.
//
// For the auto sentinel, the text decides: code keywords route to the
// first model tagged "code", creative keywords to the first tagged
// "creative", anything else to the first tagged "fast". If the registry
// carries no matching model at all, the sentinel itself is returned and
// the caller will fail to resolve a provider for it.
func Resolve(text, selectedModelID string) string {
	if selectedModelID != catalog.AutoModelID {
		return selectedModelID
	}

	q := normalize(text)

	if matchesAny(q, codeKeywords) {
		if m, ok := catalog.FirstWithCapability(catalog.CapCode); ok {
			return m.ID
		}
	}
	if matchesAny(q, creativeKeywords) {
		if m, ok := catalog.FirstWithCapability(catalog.CapCreative); ok {
			return m.ID
		}
	}
	if m, ok := catalog.FirstWithCapability(catalog.CapFast); ok {
		return m.ID
	}
	return catalog.AutoModelID
}

// normalize lowercases text after NFC normalization so composed and
// decomposed forms of the same characters match the same keywords.
func normalize(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

func matchesAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
