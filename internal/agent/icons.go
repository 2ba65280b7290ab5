// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the persistent store for agent personas and
// knowledgebases.
package agent

// DefaultAgentID is the id of the built-in assistant persona. It is
// fixed so its icon mapping survives restarts.
const DefaultAgentID = "agent_default"

// DefaultIcon is the glyph used for agents without a table entry.
const DefaultIcon = "◆"

// icons maps well-known agent ids to their display glyphs. Icons are
// display-only state: they are stripped before serialization and
// re-attached from this table at load time.
var icons = map[string]string{
	DefaultAgentID:  "◆",
	"agent_coder":   "λ",
	"agent_writer":  "✎",
	"agent_analyst": "Σ",
}

// IconForID returns the glyph for an agent id, falling back to
// DefaultIcon for unknown ids.
func IconForID(id string) string {
	if icon, ok := icons[id]; ok {
		return icon
	}
	return DefaultIcon
}
