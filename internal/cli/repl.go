// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line-based chat loop for terminals where the full-screen UI
// is unwanted (pipes, screen readers, --plain).
//
// Slash commands:
//   /new               Start a new conversation
//   /model [id]        Show or change the selected model
//   /models            List known models
//   /agents            List agents; /agent <id> switches
//   /attach <path>     Attach a file to the next message
//   /edit <text>       Rewrite the last user message and regenerate
//   /rerun             Regenerate the last reply
//   /quit              Exit

package cli

import (
	stdctx "context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/agent"
	"github.com/jeranaias/parley/internal/catalog"
	chatsvc "github.com/jeranaias/parley/internal/chat"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/components"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// REPL is the plain-text chat loop.
type REPL struct {
	cfg           *config.Config
	conversations *conversation.Store
	agents        *agent.Store
	orchestrator  *chatsvc.Orchestrator

	selectedAgentID string
	markdown        *components.Markdown

	// pending rides along with the next message, then clears.
	pending *model.Attachment
}

// NewREPL wires a plain chat loop over the stores and orchestrator.
func NewREPL(cfg *config.Config, convs *conversation.Store, agents *agent.Store, orch *chatsvc.Orchestrator) *REPL {
	md, _ := components.NewMarkdown(styles.GlamourStyle(cfg.UI.Theme), 100)
	return &REPL{
		cfg:             cfg,
		conversations:   convs,
		agents:          agents,
		orchestrator:    orch,
		selectedAgentID: agent.DefaultAgentID,
		markdown:        md,
	}
}

// Run drives the loop until /quit or EOF.
func (r *REPL) Run(ctx stdctx.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := r.historyPath()
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory(line, historyPath)

	fmt.Println("parley (plain mode). /quit to exit, /model to switch models.")

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.command(input); quit {
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

func (r *REPL) send(ctx stdctx.Context, text string) {
	convID := r.conversations.ActiveID()
	res, err := r.orchestrator.Send(ctx, convID, text, r.pending)
	if err != nil {
		fmt.Println(styles.RenderError(err.Error()))
		return
	}
	r.pending = nil

	if res.Failed {
		fmt.Println(styles.RenderError(res.Reply.Content))
		return
	}
	if note := trimNote(res); note != "" {
		fmt.Println(styles.RenderWarning(note))
	}
	fmt.Println(r.markdown.Render(res.Reply.Content))
}

// command handles a slash command; returns true to exit.
func (r *REPL) command(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true

	case "/new":
		r.conversations.Create(r.selectedAgentID)
		fmt.Println("Started a new conversation.")

	case "/model":
		if len(args) == 0 {
			fmt.Printf("Current model: %s\n", r.conversations.SelectedModelID())
			break
		}
		id := args[0]
		if _, ok := catalog.GetModel(id); !ok && id != catalog.AutoModelID {
			fmt.Println(styles.RenderError("unknown model " + id))
			break
		}
		r.conversations.SetSelectedModel(id)
		fmt.Printf("Model set to %s.\n", id)

	case "/models":
		fmt.Printf("  %-20s auto-pick per message\n", catalog.AutoModelID)
		for _, m := range catalog.Models {
			fmt.Printf("  %-20s %s (%s, %s)\n", m.ID, m.Name, m.ProviderID, m.ContextString())
		}

	case "/agents":
		for _, a := range r.agents.Agents() {
			marker := " "
			if a.ID == r.selectedAgentID {
				marker = "*"
			}
			fmt.Printf("%s %s %s - %s\n", marker, a.Icon, a.ID, a.Name)
		}

	case "/agent":
		if len(args) == 0 {
			fmt.Println("usage: /agent <id>")
			break
		}
		if r.agents.GetAgent(args[0]) == nil {
			fmt.Println(styles.RenderError("unknown agent " + args[0]))
			break
		}
		r.selectedAgentID = args[0]
		fmt.Printf("Agent set to %s.\n", args[0])

	case "/attach":
		if len(args) == 0 {
			fmt.Println("usage: /attach <path>")
			break
		}
		path := strings.TrimSpace(strings.TrimPrefix(input, "/attach"))
		att, err := loadAttachment(path)
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			break
		}
		r.pending = att
		fmt.Printf("Attached %s (%d bytes). It goes out with your next message.\n", att.Name, att.Size)
		if preview := attachmentPreview(att); preview != "" {
			fmt.Println(preview)
		}

	case "/edit":
		if len(args) == 0 {
			fmt.Println("usage: /edit <new text>")
			break
		}
		convID := r.conversations.ActiveID()
		text := strings.TrimSpace(strings.TrimPrefix(input, "/edit"))
		msgs := r.conversations.Messages(convID)
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].IsUser() {
				res, err := r.orchestrator.Edit(stdctx.Background(), convID, msgs[i].ID, text)
				r.printOutcome(res, err)
				return false
			}
		}
		fmt.Println("Nothing to edit yet.")

	case "/rerun":
		convID := r.conversations.ActiveID()
		msgs := r.conversations.Messages(convID)
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].IsUser() {
				res, err := r.orchestrator.Rerun(stdctx.Background(), convID, msgs[i].ID)
				r.printOutcome(res, err)
				return false
			}
		}
		fmt.Println("Nothing to rerun yet.")

	default:
		fmt.Printf("Unknown command %s\n", cmd)
	}
	return false
}

// printOutcome renders a rerun or edit result the same way send does.
func (r *REPL) printOutcome(res *chatsvc.SendResult, err error) {
	switch {
	case err != nil:
		fmt.Println(styles.RenderError(err.Error()))
	case res.Failed:
		fmt.Println(styles.RenderError(res.Reply.Content))
	default:
		fmt.Println(r.markdown.Render(res.Reply.Content))
	}
}

// loadAttachment reads a file into an attachment, deriving the MIME
// type from the extension. Unknown extensions are treated as text,
// which matches how attachments are inlined on the wire.
func loadAttachment(path string) (*model.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attachment: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return &model.Attachment{
		Name:     filepath.Base(path),
		Content:  string(data),
		Size:     int64(len(data)),
		MimeType: mimeType,
	}, nil
}

// attachmentPreview renders the first few lines of a text attachment
// with syntax highlighting. Images have nothing useful to show.
func attachmentPreview(att *model.Attachment) string {
	if att.IsImage() {
		return ""
	}
	lines := strings.Split(att.Content, "\n")
	if len(lines) > 8 {
		lines = lines[:8]
	}
	return components.Highlight(strings.Join(lines, "\n"), components.LanguageForFile(att.Name))
}

func trimNote(res *chatsvc.SendResult) string {
	rep := res.TrimReport
	switch {
	case rep.TruncatedLast:
		return "message truncated to fit the context window"
	case rep.Dropped > 0:
		return fmt.Sprintf("%d older messages left out of context", rep.Dropped)
	default:
		return ""
	}
}

func (r *REPL) historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

func (r *REPL) saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
