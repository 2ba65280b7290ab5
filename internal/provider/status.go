// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the outbound chat-completion client.
package provider

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitCooldown is how long a provider stays marked rate-limited
// after a 429 before sends are attempted again.
const RateLimitCooldown = 30 * time.Second

// =============================================================================
// STATUS TRACKER
// =============================================================================

// Status is the observable health of a provider, shown by the UI as a
// warning banner while a provider is cooling down.
type Status struct {
	ProviderID  string
	RateLimited bool
	RetryAt     time.Time
}

// StatusTracker records per-provider rate-limit state and paces
// outbound requests with a client-side token bucket so a misbehaving
// loop cannot hammer an endpoint.
type StatusTracker struct {
	mu sync.Mutex

	limitedUntil map[string]time.Time
	limiters     map[string]*rate.Limiter

	// pacing applied per provider; generous enough to never matter in
	// interactive use.
	limit rate.Limit
	burst int
}

// NewStatusTracker creates a tracker with default pacing.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		limitedUntil: make(map[string]time.Time),
		limiters:     make(map[string]*rate.Limiter),
		limit:        rate.Every(time.Second),
		burst:        5,
	}
}

func (t *StatusTracker) limiter(providerID string) *rate.Limiter {
	if l, ok := t.limiters[providerID]; ok {
		return l
	}
	l := rate.NewLimiter(t.limit, t.burst)
	t.limiters[providerID] = l
	return l
}

// Allow reports whether a request to the provider may be dispatched
// now: the provider must not be in a 429 cooldown and the local pacing
// limiter must have a token.
func (t *StatusTracker) Allow(providerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if until, ok := t.limitedUntil[providerID]; ok {
		if time.Now().Before(until) {
			return false
		}
		delete(t.limitedUntil, providerID)
	}
	return t.limiter(providerID).Allow()
}

// MarkRateLimited records a 429 from the provider; Status reports the
// provider limited until the cooldown elapses.
func (t *StatusTracker) MarkRateLimited(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limitedUntil[providerID] = time.Now().Add(RateLimitCooldown)
}

// Clear removes any rate-limit mark for the provider.
func (t *StatusTracker) Clear(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limitedUntil, providerID)
}

// Status returns the current observable status of a provider.
func (t *StatusTracker) Status(providerID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{ProviderID: providerID}
	if until, ok := t.limitedUntil[providerID]; ok && time.Now().Before(until) {
		s.RateLimited = true
		s.RetryAt = until
	}
	return s
}
