// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// PICKER COMPONENT
// =============================================================================

// PickerItem is one selectable row.
type PickerItem struct {
	ID          string
	Title       string
	Description string
	Badge       string
}

// Picker is a simple cursor-driven selection list used for agents,
// models, and conversations.
type Picker struct {
	Title  string
	Items  []PickerItem
	Cursor int
	Width  int
}

// NewPicker creates a picker over items.
func NewPicker(title string, items []PickerItem) *Picker {
	return &Picker{Title: title, Items: items, Width: 60}
}

// MoveUp moves the cursor up, clamping at the top.
func (p *Picker) MoveUp() {
	if p.Cursor > 0 {
		p.Cursor--
	}
}

// MoveDown moves the cursor down, clamping at the bottom.
func (p *Picker) MoveDown() {
	if p.Cursor < len(p.Items)-1 {
		p.Cursor++
	}
}

// Selected returns the item under the cursor, or nil when empty.
func (p *Picker) Selected() *PickerItem {
	if len(p.Items) == 0 || p.Cursor < 0 || p.Cursor >= len(p.Items) {
		return nil
	}
	return &p.Items[p.Cursor]
}

// SelectID moves the cursor to the item with the given id if present.
func (p *Picker) SelectID(id string) {
	for i, item := range p.Items {
		if item.ID == id {
			p.Cursor = i
			return
		}
	}
}

// View renders the picker.
func (p *Picker) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Bold(true).
		Render(p.Title)
	b.WriteString(title)
	b.WriteString("\n\n")

	if len(p.Items) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Render("nothing here yet"))
	}

	for i, item := range p.Items {
		line := item.Title
		if item.Badge != "" {
			line += " " + lipgloss.NewStyle().Foreground(styles.Amber).Render(item.Badge)
		}
		if item.Description != "" {
			line += lipgloss.NewStyle().Foreground(styles.TextMuted).
				Render("  " + util.TruncateWidth(item.Description, 40))
		}

		if i == p.Cursor {
			line = lipgloss.NewStyle().
				Foreground(styles.Cyan).
				Bold(true).
				Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		if i < len(p.Items)-1 {
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(1, 2).
		MaxWidth(p.Width).
		Render(b.String())
}
