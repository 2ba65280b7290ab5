// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// agents, and knowledgebases.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// AGENT TYPE
// =============================================================================

// Agent is a named persona whose system prompt is applied to all of a
// conversation's outbound requests.
//
// Icon is a terminal glyph attached for display only. It is never
// serialized; it is re-derived from the agent's ID at load time so the
// stored form stays a plain string record.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`

	Icon string `json:"-"`
}

// NewAgent creates an agent with a generated ID and the given fields.
func NewAgent(name, description, systemPrompt string) *Agent {
	return &Agent{
		ID:           "agent_" + uuid.NewString(),
		Name:         name,
		Description:  description,
		SystemPrompt: systemPrompt,
	}
}

// =============================================================================
// KNOWLEDGEBASE TYPE
// =============================================================================

// KnowledgeFile is a named context file inside a knowledgebase.
// Path, when set, points at the on-disk source the content was read
// from, which lets the store refresh it when the file changes.
type KnowledgeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Path    string `json:"path,omitempty"`
}

// Knowledgebase is a user-authored context blob (plus optional files)
// optionally injected into every outbound request.
//
// Invariant: at most one knowledgebase in a collection has Active set;
// activating one deactivates all others.
type Knowledgebase struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content string          `json:"content"`
	Files   []KnowledgeFile `json:"files"`
	Active  bool            `json:"active"`
}

// NewKnowledgebase creates a knowledgebase with a generated ID.
func NewKnowledgebase(name string) *Knowledgebase {
	return &Knowledgebase{
		ID:    "kb_" + uuid.NewString(),
		Name:  name,
		Files: make([]KnowledgeFile, 0),
	}
}

// CombinedContent returns the content plus every file's content,
// delimited per file. This is the string fed to the system prompt when
// the knowledgebase is active.
func (k *Knowledgebase) CombinedContent() string {
	var sb strings.Builder
	if k.Content != "" {
		sb.WriteString(k.Content)
	}
	for _, f := range k.Files {
		if f.Content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("--- file: " + f.Name + " ---\n")
		sb.WriteString(f.Content)
	}
	return sb.String()
}
