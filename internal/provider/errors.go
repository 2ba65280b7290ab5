// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the outbound chat-completion client.
package provider

import (
	"errors"
	"fmt"
)

// Error variables for the outbound request taxonomy. All of these are
// surfaced to the user as assistant-authored error messages, never as
// panics or unhandled failures.
var (
	// ErrMissingCredential indicates no API key is configured for the
	// provider, neither stored nor via its environment fallback.
	ErrMissingCredential = errors.New("no API key configured")

	// ErrRateLimited indicates the provider answered HTTP 429 (or the
	// local pacing limiter refused the request).
	ErrRateLimited = errors.New("rate limited")

	// ErrRequestFailed indicates any other non-2xx response or a
	// network-level failure.
	ErrRequestFailed = errors.New("request failed")

	// ErrUnknownProvider indicates a provider id missing from the catalog.
	ErrUnknownProvider = errors.New("unknown provider")
)

// RequestError carries the HTTP status of a failed request.
type RequestError struct {
	ProviderID string
	Status     int
	Message    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s error (HTTP %d): %s", e.ProviderID, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s error: %s", e.ProviderID, e.Message)
}
