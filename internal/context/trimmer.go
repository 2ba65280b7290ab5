// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package context fits conversation histories into model token budgets.
package context

import (
	"unicode/utf8"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/token"
)

// TruncationMarker is appended to a message whose content had to be cut
// to fit the context window.
const TruncationMarker = "\n[message truncated to fit context window]"

// =============================================================================
// TRIM REPORT
// =============================================================================

// TrimReport describes what TrimToBudget kept and dropped, so callers
// can surface the loss instead of hiding it.
type TrimReport struct {
	// Included is the number of messages in the returned sequence.
	Included int

	// Dropped is the number of older messages excluded entirely.
	Dropped int

	// DroppedTokens is the estimated cost of the excluded messages.
	DroppedTokens int

	// TruncatedLast is true when the most recent message alone exceeded
	// the budget and had its content cut to fit.
	TruncatedLast bool
}

// WasTrimmed reports whether anything was dropped or truncated.
func (r TrimReport) WasTrimmed() bool {
	return r.Dropped > 0 || r.TruncatedLast
}

// =============================================================================
// TRIMMING
// =============================================================================

// TrimToBudget selects the suffix of messages whose estimated cost fits
// within maxTokens minus reservedTokens.
//
// The scan runs newest to oldest and stops at the first message that
// would overflow; recency wins over message count. This greedy suffix
// is a policy choice, not an optimal selection.
//
// If the most recent message alone exceeds the budget it is still
// included, with its content truncated to the longest prefix that fits
// and TruncationMarker appended. Its attachment is preserved. The
// returned sequence is in chronological order and never aliases a
// mutated input message: truncation operates on a copy.
//
// A budget of zero or less yields an empty result.
func TrimToBudget(messages []*model.Message, maxTokens, reservedTokens int) ([]*model.Message, TrimReport) {
	report := TrimReport{}
	budget := maxTokens - reservedTokens

	if len(messages) == 0 || budget <= 0 {
		report.Dropped = len(messages)
		report.DroppedTokens = token.HistoryCost(messages)
		return []*model.Message{}, report
	}

	last := messages[len(messages)-1]
	if token.MessageCost(last) > budget {
		// Everything older is dropped; the newest message is truncated.
		report.Dropped = len(messages) - 1
		report.DroppedTokens = token.HistoryCost(messages[:len(messages)-1])

		truncated, ok := truncateToFit(last, budget)
		if !ok {
			report.Dropped = len(messages)
			report.DroppedTokens = token.HistoryCost(messages)
			return []*model.Message{}, report
		}
		report.Included = 1
		report.TruncatedLast = true
		return []*model.Message{truncated}, report
	}

	// Greedy newest-first accumulation.
	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := token.MessageCost(messages[i])
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}

	report.Included = len(messages) - start
	report.Dropped = start
	report.DroppedTokens = token.HistoryCost(messages[:start])
	return messages[start:], report
}

// truncateToFit returns a copy of msg whose content is cut to the
// longest prefix that keeps the full message cost (marker and
// attachment included) within budget. Returns false when even an empty
// content cannot fit, e.g. an image surcharge larger than the budget.
func truncateToFit(msg *model.Message, budget int) (*model.Message, bool) {
	fixed := token.MessageOverhead + token.Estimate(TruncationMarker)
	if msg.Attachment != nil {
		if msg.Attachment.IsImage() {
			fixed += token.ImageTokenCost
		} else {
			fixed += token.Estimate(msg.Attachment.Content)
		}
	}
	if msg.ImageAnalysis != "" {
		fixed += token.Estimate(msg.ImageAnalysis)
	}

	available := budget - fixed
	if available < 0 {
		return nil, false
	}

	// Estimate is ceil(bytes/CharsPerToken), so a prefix fits exactly
	// when its byte length is at most available*CharsPerToken.
	maxBytes := available * token.CharsPerToken
	content := msg.Content
	if len(content) > maxBytes {
		content = truncateBytesRuneSafe(content, maxBytes)
	}

	clone := *msg
	clone.Content = content + TruncationMarker
	return &clone, true
}

// truncateBytesRuneSafe cuts s to at most maxBytes without splitting a
// UTF-8 sequence.
func truncateBytesRuneSafe(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
