// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the outbound chat-completion client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/model"
)

// maxErrorBodyBytes caps how much of an error response body is read for
// the error message.
const maxErrorBodyBytes = 4096

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one entry of the outbound message array.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	ProviderID string        `json:"providerId"`
	ModelID    string        `json:"modelId"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// WireMessage converts a stored message to its outbound form. Text
// attachments are inlined below the message body; image analysis text
// stands in for image pixels.
func WireMessage(m *model.Message) ChatMessage {
	content := m.Content
	if m.Attachment != nil && !m.Attachment.IsImage() && m.Attachment.Content != "" {
		content += "\n\n--- attachment: " + m.Attachment.Name + " ---\n" + m.Attachment.Content
	}
	if m.ImageAnalysis != "" {
		content += "\n\n[image: " + m.ImageAnalysis + "]"
	}
	return ChatMessage{Role: m.Role.String(), Content: content}
}

// =============================================================================
// CREDENTIALS
// =============================================================================

// CredentialSource resolves a stored API key for a provider. The
// configured source is consulted first; the provider's environment
// variable is the fallback.
type CredentialSource interface {
	Credential(providerID string) (string, bool)
}

// CredentialFunc adapts a function to the CredentialSource interface.
type CredentialFunc func(providerID string) (string, bool)

// Credential implements CredentialSource.
func (f CredentialFunc) Credential(providerID string) (string, bool) {
	return f(providerID)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends chat-completion requests. One request per send: no
// retries, no streaming. Cancellation and deadlines come from the
// caller's context.
type Client struct {
	httpClient *http.Client
	creds      CredentialSource
	tracker    *StatusTracker

	// endpoints overrides catalog endpoints per provider id, used by
	// configuration and tests.
	endpoints map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint overrides the endpoint for one provider.
func WithEndpoint(providerID, url string) Option {
	return func(c *Client) { c.endpoints[providerID] = url }
}

// WithTracker replaces the status tracker, so callers can share one
// tracker between the client and the UI.
func WithTracker(t *StatusTracker) Option {
	return func(c *Client) { c.tracker = t }
}

// NewClient creates a provider client.
func NewClient(creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		creds:     creds,
		tracker:   NewStatusTracker(),
		endpoints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tracker returns the client's status tracker.
func (c *Client) Tracker() *StatusTracker {
	return c.tracker
}

// HasCredential reports whether a usable API key exists for the
// provider, without sending anything.
func (c *Client) HasCredential(providerID string) bool {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return false
	}
	return c.resolveCredential(p) != ""
}

func (c *Client) resolveCredential(p catalog.Provider) string {
	if c.creds != nil {
		if key, ok := c.creds.Credential(p.ID); ok && key != "" {
			return key
		}
	}
	if p.CredentialEnv != "" {
		return os.Getenv(p.CredentialEnv)
	}
	return ""
}

func (c *Client) endpoint(p catalog.Provider) string {
	if url, ok := c.endpoints[p.ID]; ok {
		return url
	}
	return p.Endpoint
}

// Chat sends one completion request and returns the assistant's reply
// text. Errors are classified with the package sentinel errors so the
// caller can select the user-facing message with errors.Is.
func (c *Client) Chat(ctx context.Context, providerID, modelID string, messages []ChatMessage) (string, error) {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	key := c.resolveCredential(p)
	if key == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingCredential, p.Name)
	}

	if !c.tracker.Allow(p.ID) {
		return "", fmt.Errorf("%w: %s is cooling down", ErrRateLimited, p.Name)
	}

	body, err := json.Marshal(chatRequest{
		Messages:   messages,
		ProviderID: providerID,
		ModelID:    modelID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(p), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.tracker.MarkRateLimited(p.ID)
		return "", fmt.Errorf("%w: %s answered HTTP 429", ErrRateLimited, p.Name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, &RequestError{
			ProviderID: p.ID,
			Status:     resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		})
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from %s", ErrRequestFailed, p.Name)
	}

	c.tracker.Clear(p.ID)
	return parsed.Choices[0].Message.Content, nil
}

// readErrorMessage extracts a human-readable message from an error
// response body, falling back to the raw (truncated) body text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}
	var parsed chatResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(bytes.TrimSpace(raw))
}
