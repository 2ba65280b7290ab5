// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates a full send turn: routing, credential
// checks, context trimming, dispatch, and persistence of the outcome.
package chat

import (
	stdctx "context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/agent"
	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/context"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
	"github.com/jeranaias/parley/internal/router"
)

// ReservedSystemTokens is held back from every model's context window
// for the system prompt, knowledge content, and the reply itself.
const ReservedSystemTokens = 1000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned for a send with no text and no
	// attachment. Nothing is appended to the conversation.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTurnInFlight is returned when the conversation already has a
	// send in progress. The new message is not appended.
	ErrTurnInFlight = errors.New("a response is already being generated")

	// ErrNotUserMessage is returned when rerun or edit targets a
	// message the user did not author.
	ErrNotUserMessage = errors.New("not a user message")
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// SendResult describes a completed turn. Reply is always non-nil: on
// provider failure it is the persisted error notice, with Failed set.
type SendResult struct {
	UserMessage *model.Message
	Reply       *model.Message
	ModelID     string
	TrimReport  context.TrimReport
	Failed      bool
}

// Orchestrator runs send turns against the stores and provider client.
// Safe for concurrent use; each conversation allows one turn in flight.
type Orchestrator struct {
	conversations *conversation.Store
	agents        *agent.Store
	client        *provider.Client

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewOrchestrator wires an orchestrator over the given stores and client.
func NewOrchestrator(convs *conversation.Store, agents *agent.Store, client *provider.Client) *Orchestrator {
	return &Orchestrator{
		conversations: convs,
		agents:        agents,
		client:        client,
		inFlight:      make(map[string]bool),
	}
}

// IsGenerating reports whether a turn is in flight for the conversation.
func (o *Orchestrator) IsGenerating(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[conversationID]
}

// ProviderStatus returns the observable status of the provider serving
// the given model, for the UI's rate-limit banner.
func (o *Orchestrator) ProviderStatus(modelID string) provider.Status {
	p, ok := catalog.ProviderForModel(modelID)
	if !ok {
		return provider.Status{}
	}
	return o.client.Tracker().Status(p.ID)
}

func (o *Orchestrator) begin(conversationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[conversationID] {
		return ErrTurnInFlight
	}
	o.inFlight[conversationID] = true
	return nil
}

func (o *Orchestrator) end(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, conversationID)
}

// =============================================================================
// SEND
// =============================================================================

// Post validates the draft, claims the conversation's turn, and appends
// the user message so callers can show it before any network work
// starts. Every successful Post must be followed by Generate, which
// releases the turn. Only precondition violations (empty message, turn
// in flight, unknown conversation) return an error.
func (o *Orchestrator) Post(conversationID, text string, attachment *model.Attachment) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachment == nil {
		return nil, ErrEmptyMessage
	}

	if err := o.begin(conversationID); err != nil {
		return nil, err
	}

	if o.conversations.Get(conversationID) == nil {
		o.end(conversationID)
		return nil, conversation.ErrConversationNotFound
	}

	userMsg := model.NewUserMessage(text)
	userMsg.Attachment = attachment
	if err := o.conversations.AppendMessage(conversationID, userMsg); err != nil {
		o.end(conversationID)
		return nil, err
	}
	return userMsg, nil
}

// Generate resolves a posted turn and releases it. Provider failures
// are not returned as errors; they become persisted error notices with
// Failed set on the result.
func (o *Orchestrator) Generate(ctx stdctx.Context, conversationID string, userMsg *model.Message) (*SendResult, error) {
	defer o.end(conversationID)

	conv := o.conversations.Get(conversationID)
	if conv == nil {
		return nil, conversation.ErrConversationNotFound
	}

	result := o.dispatch(ctx, conv, userMsg.Content)
	result.UserMessage = userMsg
	return result, nil
}

// Send runs one full turn: the user message is appended immediately so
// it is never lost, then the reply (or an error notice) is appended
// when the turn resolves.
func (o *Orchestrator) Send(ctx stdctx.Context, conversationID, text string, attachment *model.Attachment) (*SendResult, error) {
	userMsg, err := o.Post(conversationID, text, attachment)
	if err != nil {
		return nil, err
	}
	return o.Generate(ctx, conversationID, userMsg)
}

// Rerun discards everything after the given user message and generates
// a fresh reply from the history ending at it.
func (o *Orchestrator) Rerun(ctx stdctx.Context, conversationID, messageID string) (*SendResult, error) {
	if err := o.begin(conversationID); err != nil {
		return nil, err
	}
	defer o.end(conversationID)

	conv := o.conversations.Get(conversationID)
	if conv == nil {
		return nil, conversation.ErrConversationNotFound
	}

	target, err := o.conversations.Message(conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if !target.IsUser() {
		return nil, ErrNotUserMessage
	}
	if err := o.conversations.TruncateAfter(conversationID, messageID); err != nil {
		return nil, err
	}

	result := o.dispatch(ctx, conv, target.Content)
	result.UserMessage = target
	return result, nil
}

// Edit replaces the text of a user message, discards everything after
// it, and generates a fresh reply from the edited history. The stale
// reply never outlives the text it answered.
func (o *Orchestrator) Edit(ctx stdctx.Context, conversationID, messageID, newText string) (*SendResult, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, ErrEmptyMessage
	}

	if err := o.begin(conversationID); err != nil {
		return nil, err
	}
	defer o.end(conversationID)

	conv := o.conversations.Get(conversationID)
	if conv == nil {
		return nil, conversation.ErrConversationNotFound
	}

	target, err := o.conversations.Message(conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if !target.IsUser() {
		return nil, ErrNotUserMessage
	}
	if err := o.conversations.RewriteMessage(conversationID, messageID, newText); err != nil {
		return nil, err
	}
	if err := o.conversations.TruncateAfter(conversationID, messageID); err != nil {
		return nil, err
	}

	result := o.dispatch(ctx, conv, newText)
	result.UserMessage = target
	return result, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// dispatch resolves the model, checks credentials, trims history, calls
// the provider, and persists the outcome. The user message is already
// in the conversation.
func (o *Orchestrator) dispatch(ctx stdctx.Context, conv *model.Conversation, text string) *SendResult {
	modelID := router.Resolve(text, o.conversations.SelectedModelID())

	mdl, ok := catalog.GetModel(modelID)
	if !ok {
		return o.fail(conv, modelID, fmt.Sprintf("Unknown model %q. Pick a model from the model list and try again.", modelID), context.TrimReport{})
	}
	prov, ok := catalog.GetProvider(mdl.ProviderID)
	if !ok {
		return o.fail(conv, modelID, fmt.Sprintf("No provider serves %s.", mdl.Name), context.TrimReport{})
	}

	if !o.client.HasCredential(prov.ID) {
		notice := fmt.Sprintf("No API key configured for %s. Store one with `parley key set %s` or export %s.",
			prov.Name, prov.ID, prov.CredentialEnv)
		return o.fail(conv, modelID, notice, context.TrimReport{})
	}

	history := outboundHistory(o.conversations.Messages(conv.ID))
	trimmed, report := context.TrimToBudget(history, mdl.TokenLimit, ReservedSystemTokens)

	wire := make([]provider.ChatMessage, 0, len(trimmed)+1)
	if sys := o.systemPrompt(conv.AgentID); sys != "" {
		wire = append(wire, provider.ChatMessage{Role: model.RoleSystem.String(), Content: sys})
	}
	for _, m := range trimmed {
		wire = append(wire, provider.WireMessage(m))
	}

	replyText, err := o.client.Chat(ctx, prov.ID, modelID, wire)
	if err != nil {
		return o.fail(conv, modelID, errorNotice(err, prov), report)
	}

	reply := model.NewAssistantMessage(replyText)
	reply.ModelID = modelID
	reply.AgentName = o.agentName(conv.AgentID)
	if err := o.conversations.AppendMessage(conv.ID, reply); err != nil {
		return o.fail(conv, modelID, "The reply could not be saved: "+err.Error(), report)
	}
	// Remember the concrete model the turn used, so auto selections
	// stick to the thread.
	_ = o.conversations.SetConversationModel(conv.ID, modelID)

	return &SendResult{Reply: reply, ModelID: modelID, TrimReport: report}
}

// fail persists an assistant-authored error notice and returns it.
func (o *Orchestrator) fail(conv *model.Conversation, modelID, notice string, report context.TrimReport) *SendResult {
	msg := model.NewAssistantMessage(notice)
	msg.IsError = true
	msg.ModelID = modelID
	_ = o.conversations.AppendMessage(conv.ID, msg)
	return &SendResult{Reply: msg, ModelID: modelID, TrimReport: report, Failed: true}
}

// systemPrompt composes the agent persona and the active knowledge
// content, skipping whichever parts are empty.
func (o *Orchestrator) systemPrompt(agentID string) string {
	a := o.agents.GetAgent(agentID)
	if a == nil {
		a = o.agents.GetAgent(agent.DefaultAgentID)
	}

	var parts []string
	if a != nil && strings.TrimSpace(a.SystemPrompt) != "" {
		parts = append(parts, a.SystemPrompt)
	}
	if knowledge := o.agents.ActiveKnowledgeContent(); strings.TrimSpace(knowledge) != "" {
		parts = append(parts, "Reference material:\n\n"+knowledge)
	}
	return strings.Join(parts, "\n\n")
}

func (o *Orchestrator) agentName(agentID string) string {
	if a := o.agents.GetAgent(agentID); a != nil {
		return a.Name
	}
	if a := o.agents.GetAgent(agent.DefaultAgentID); a != nil {
		return a.Name
	}
	return ""
}

// outboundHistory filters the transcript down to what the provider
// should see: error notices never go back out.
func outboundHistory(messages []*model.Message) []*model.Message {
	out := make([]*model.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsError {
			continue
		}
		out = append(out, m)
	}
	return out
}

// errorNotice maps a provider error to the user-facing notice text.
func errorNotice(err error, prov catalog.Provider) string {
	switch {
	case errors.Is(err, provider.ErrMissingCredential):
		return fmt.Sprintf("No API key configured for %s. Store one with `parley key set %s` or export %s.",
			prov.Name, prov.ID, prov.CredentialEnv)
	case errors.Is(err, provider.ErrRateLimited):
		return fmt.Sprintf("%s is rate limiting requests. Wait a moment before sending again.", prov.Name)
	default:
		return fmt.Sprintf("The request to %s failed: %v", prov.Name, err)
	}
}
