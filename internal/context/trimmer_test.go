// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/token"
)

func msgOf(role model.Role, content string) *model.Message {
	return model.NewMessage(role, content)
}

func TestTrimKeepsEverythingWhenUnderBudget(t *testing.T) {
	msgs := []*model.Message{
		msgOf(model.RoleUser, "hello"),
		msgOf(model.RoleAssistant, "hi there"),
		msgOf(model.RoleUser, "how are you?"),
	}

	kept, report := TrimToBudget(msgs, 8192, 1000)
	assert.Len(t, kept, 3)
	assert.False(t, report.WasTrimmed())
}

func TestTrimNeverExceedsBudget(t *testing.T) {
	// Many mid-sized messages against a small budget.
	var msgs []*model.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, msgOf(model.RoleUser, strings.Repeat("w", 400)))
	}

	for _, budget := range []int{50, 200, 500, 2000, 5000} {
		kept, _ := TrimToBudget(msgs, budget, 0)
		assert.LessOrEqual(t, token.HistoryCost(kept), budget,
			"budget %d exceeded", budget)
	}
}

func TestTrimPrefersRecency(t *testing.T) {
	old := msgOf(model.RoleUser, strings.Repeat("a", 4000))
	mid := msgOf(model.RoleAssistant, strings.Repeat("b", 4000))
	new1 := msgOf(model.RoleUser, "short question")
	new2 := msgOf(model.RoleAssistant, "short answer")

	// Budget fits the two short messages plus one long one.
	budget := token.MessageCost(new1) + token.MessageCost(new2) + token.MessageCost(mid)
	kept, report := TrimToBudget([]*model.Message{old, mid, new1, new2}, budget, 0)

	require.Len(t, kept, 3)
	assert.Equal(t, mid.ID, kept[0].ID)
	assert.Equal(t, new1.ID, kept[1].ID)
	assert.Equal(t, new2.ID, kept[2].ID)
	assert.Equal(t, 1, report.Dropped)
}

func TestTrimStopsAtFirstOverflow(t *testing.T) {
	// A huge message in the middle must stop the scan even if older
	// messages would individually fit.
	tiny1 := msgOf(model.RoleUser, "a")
	huge := msgOf(model.RoleAssistant, strings.Repeat("x", 100000))
	tiny2 := msgOf(model.RoleUser, "b")

	kept, _ := TrimToBudget([]*model.Message{tiny1, huge, tiny2}, 100, 0)
	require.Len(t, kept, 1)
	assert.Equal(t, tiny2.ID, kept[0].ID)
}

func TestTrimPreservesChronologicalOrder(t *testing.T) {
	var msgs []*model.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, msgOf(model.RoleUser, strings.Repeat("m", 100)))
	}

	kept, _ := TrimToBudget(msgs, 200, 0)
	for i := 1; i < len(kept); i++ {
		prev := indexOf(msgs, kept[i-1].ID)
		cur := indexOf(msgs, kept[i].ID)
		assert.Less(t, prev, cur)
	}
}

func TestOversizedFinalMessageIsTruncatedNotDropped(t *testing.T) {
	// A final message far beyond an 8192-token limit with a 1000-token
	// reserve must come back truncated to fit the remaining budget.
	content := strings.Repeat("q", 40000)
	last := msgOf(model.RoleUser, content)

	kept, report := TrimToBudget([]*model.Message{last}, 8192, 1000)
	require.Len(t, kept, 1)
	assert.True(t, report.TruncatedLast)
	assert.True(t, strings.HasSuffix(kept[0].Content, TruncationMarker))
	assert.LessOrEqual(t, token.MessageCost(kept[0]), 8192-1000)

	// The original message is untouched.
	assert.Equal(t, content, last.Content)
}

func TestOversizedFinalMessageKeepsAttachment(t *testing.T) {
	last := msgOf(model.RoleUser, strings.Repeat("q", 40000))
	last.Attachment = &model.Attachment{Name: "notes.txt", Content: "small", MimeType: "text/plain"}

	kept, report := TrimToBudget([]*model.Message{last}, 2000, 0)
	require.Len(t, kept, 1)
	assert.True(t, report.TruncatedLast)
	require.NotNil(t, kept[0].Attachment)
	assert.Equal(t, "notes.txt", kept[0].Attachment.Name)
	assert.LessOrEqual(t, token.MessageCost(kept[0]), 2000)
}

func TestOversizedTruncationIsRuneSafe(t *testing.T) {
	last := msgOf(model.RoleUser, strings.Repeat("日本語テキスト", 10000))
	kept, _ := TrimToBudget([]*model.Message{last}, 500, 0)
	require.Len(t, kept, 1)
	body := strings.TrimSuffix(kept[0].Content, TruncationMarker)
	assert.True(t, strings.HasPrefix(body, "日本語"))
	assert.True(t, validUTF8(body))
}

func TestBudgetAtOrBelowReserveYieldsEmpty(t *testing.T) {
	msgs := []*model.Message{msgOf(model.RoleUser, "anything")}

	kept, report := TrimToBudget(msgs, 1000, 1000)
	assert.Empty(t, kept)
	assert.Equal(t, 1, report.Dropped)

	kept, _ = TrimToBudget(msgs, 500, 1000)
	assert.Empty(t, kept)
}

func TestImageSurchargeLargerThanBudgetDropsMessage(t *testing.T) {
	last := msgOf(model.RoleUser, "see image")
	last.Attachment = &model.Attachment{Name: "big.png", MimeType: "image/png"}

	// Budget below the flat image cost: nothing can fit.
	kept, report := TrimToBudget([]*model.Message{last}, token.ImageTokenCost/2, 0)
	assert.Empty(t, kept)
	assert.Equal(t, 1, report.Dropped)
}

func indexOf(msgs []*model.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func validUTF8(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}
