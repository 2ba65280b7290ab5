// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar renders the bottom status line: active agent, model in use,
// token estimate for the draft, and transient warnings.
type StatusBar struct {
	Width int

	AgentIcon string
	AgentName string
	ModelName string

	// TokenEstimate is the estimated cost of the current draft; shown
	// only when ShowTokens is set.
	TokenEstimate int
	ShowTokens    bool

	// RateLimited and RetryAt drive the provider cooldown warning.
	RateLimited bool
	RetryAt     time.Time

	// TrimNote describes context loss on the last turn, e.g.
	// "3 older messages dropped".
	TrimNote string

	// Generating indicates a turn in flight; a frame of the spinner is
	// supplied by the caller.
	Generating   bool
	SpinnerFrame string
}

// View renders the status bar.
func (s *StatusBar) View() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" │ ")

	var left []string
	if s.AgentName != "" {
		agent := lipgloss.NewStyle().Foreground(styles.Purple).Render(
			strings.TrimSpace(s.AgentIcon + " " + s.AgentName))
		left = append(left, agent)
	}
	if s.ModelName != "" {
		left = append(left, lipgloss.NewStyle().Foreground(styles.Cyan).Render(s.ModelName))
	}
	if s.ShowTokens {
		left = append(left, lipgloss.NewStyle().Foreground(styles.TextMuted).
			Render("~"+strconv.Itoa(s.TokenEstimate)+" tok"))
	}
	line := strings.Join(left, sep)

	if s.Generating {
		line = s.SpinnerFrame + " " + line
	}

	if warning := s.warning(); warning != "" {
		line += sep + warning
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Width(s.Width).
		Padding(0, 1).
		Render(util.TruncateWidth(line, s.Width-2))
}

func (s *StatusBar) warning() string {
	if s.RateLimited {
		msg := "rate limited"
		if wait := time.Until(s.RetryAt); wait > 0 {
			msg += ", retry in " + wait.Round(time.Second).String()
		}
		return styles.RenderWarning(msg)
	}
	if s.TrimNote != "" {
		return styles.RenderWarning(s.TrimNote)
	}
	return ""
}
