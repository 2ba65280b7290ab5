// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package token provides approximate token counting for budget checks.
package token

import "github.com/jeranaias/parley/internal/model"

// CharsPerToken is the character-to-token ratio used everywhere budgets
// are checked. A heuristic, not a tokenizer: absolute counts are rough,
// but relative comparisons stay valid because the same ratio is applied
// consistently.
const CharsPerToken = 4

// ImageTokenCost is the flat surcharge for an attached image.
const ImageTokenCost = 768

// MessageOverhead is the structural cost per message (role, separators).
const MessageOverhead = 4

// Estimate returns ceil(len(text) / CharsPerToken).
func Estimate(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// MessageCost estimates the token cost of a full message: text plus a
// per-attachment surcharge (flat for images, estimated text size for
// everything else) plus structural overhead.
func MessageCost(msg *model.Message) int {
	cost := Estimate(msg.Content) + MessageOverhead
	if msg.Attachment != nil {
		if msg.Attachment.IsImage() {
			cost += ImageTokenCost
		} else {
			cost += Estimate(msg.Attachment.Content)
		}
	}
	if msg.ImageAnalysis != "" {
		cost += Estimate(msg.ImageAnalysis)
	}
	return cost
}

// HistoryCost estimates the total token cost of a message sequence.
func HistoryCost(messages []*model.Message) int {
	total := 0
	for _, msg := range messages {
		total += MessageCost(msg)
	}
	return total
}
