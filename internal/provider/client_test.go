// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
)

func staticCreds(key string) CredentialSource {
	return CredentialFunc(func(string) (string, bool) {
		if key == "" {
			return "", false
		}
		return key, true
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(staticCreds(key),
		WithEndpoint("openai", srv.URL),
		WithHTTPClient(srv.Client()))
}

func reply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
}

func TestChatSendsExpectedRequestShape(t *testing.T) {
	var got chatRequest
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, "hello back")
	}, "sk-test")

	out, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", []ChatMessage{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "openai", got.ProviderID)
	assert.Equal(t, "gpt-4o-mini", got.ModelID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestMissingCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent without a credential")
	}, "")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	assert.True(t, errors.Is(err, ErrMissingCredential))
}

func TestUnknownProvider(t *testing.T) {
	c := NewClient(staticCreds("sk-test"))
	_, err := c.Chat(context.Background(), "nonexistent", "gpt-4o-mini", nil)
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestRateLimitedResponseMarksProvider(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, "sk-test")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	require.True(t, errors.Is(err, ErrRateLimited))

	status := c.Tracker().Status("openai")
	assert.True(t, status.RateLimited)
	assert.True(t, status.RetryAt.After(time.Now()))

	// Subsequent sends are refused locally during the cooldown.
	_, err = c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestServerErrorIsRequestFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
	}, "sk-test")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	require.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.False(t, c.Tracker().Status("openai").RateLimited,
		"only 429 marks the provider rate limited")
}

func TestEmptyChoicesIsRequestFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, "sk-test")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestSuccessClearsRateLimitMark(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, "ok")
	}, "sk-test")

	c.Tracker().MarkRateLimited("openai")
	c.Tracker().Clear("openai")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	require.NoError(t, err)
	assert.False(t, c.Tracker().Status("openai").RateLimited)
}

func TestEnvFallbackCredential(t *testing.T) {
	t.Setenv("PARLEY_OPENAI_KEY", "sk-env")
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reply(w, "ok")
	}, "")

	_, err := c.Chat(context.Background(), "openai", "gpt-4o-mini", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-env", auth)
}

func TestWireMessageInlinesTextAttachment(t *testing.T) {
	msg := model.NewUserMessage("review this")
	msg.Attachment = &model.Attachment{Name: "main.go", Content: "package main"}

	wm := WireMessage(msg)
	assert.Contains(t, wm.Content, "review this")
	assert.Contains(t, wm.Content, "--- attachment: main.go ---")
	assert.Contains(t, wm.Content, "package main")
}

func TestWireMessageUsesImageAnalysis(t *testing.T) {
	msg := model.NewUserMessage("what is this")
	msg.Attachment = &model.Attachment{Name: "photo.png", Content: "data:image/png;base64,xxxx", MimeType: "image/png"}
	msg.ImageAnalysis = "a lighthouse at dusk"

	wm := WireMessage(msg)
	assert.NotContains(t, wm.Content, "base64", "image bytes are never inlined")
	assert.Contains(t, wm.Content, "a lighthouse at dusk")
}
