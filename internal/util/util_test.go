// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 10))
	assert.Equal(t, "hel...", TruncateRunes("hello world", 6))
	assert.Equal(t, "", TruncateRunes("hello", 0))
	assert.Equal(t, "he", TruncateRunes("hello", 2))

	// Multi-byte characters must not be split.
	assert.Equal(t, "日本...", TruncateRunes("日本語のテキスト", 5))
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunesNoEllipsis("hello world", 5))
	assert.Equal(t, "short", TruncateRunesNoEllipsis("short", 10))
	assert.Equal(t, "", TruncateRunesNoEllipsis("x", 0))
}

func TestTruncateWidth(t *testing.T) {
	// CJK characters occupy two columns.
	assert.Equal(t, 4, StringWidth("日本"))
	assert.Equal(t, "日本", TruncateWidth("日本語", 5))
	assert.Equal(t, "abc", TruncateWidth("abc", 10))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("a\nb\r\nc"))
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "data.json")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// Overwrite is atomic and replaces content fully.
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
