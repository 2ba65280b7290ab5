// parley - A terminal chat client for LLM providers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/agent"
	chatsvc "github.com/jeranaias/parley/internal/chat"
	"github.com/jeranaias/parley/internal/cli"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/provider"
	"github.com/jeranaias/parley/internal/storage"
	uichat "github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	plain := flag.Bool("plain", false, "line-based REPL instead of the full-screen UI")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("parley %s (%s)\n", Version, GitCommit)
		return
	}

	if err := run(*plain, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	styles.ApplyTheme(cfg.UI.Theme)

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	kv, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("could not open storage: %w", err)
	}
	defer kv.Close()

	keyfile, err := config.KeyfilePath()
	if err != nil {
		return err
	}
	creds, err := config.NewCredentialStore(kv, keyfile)
	if err != nil {
		return fmt.Errorf("could not open credential store: %w", err)
	}

	// Subcommands that do not start a chat session.
	if len(args) > 0 && args[0] == "key" {
		return cli.RunKeyCommand(creds, args[1:])
	}

	clientOpts := []provider.Option{}
	for id, entry := range cfg.Providers {
		if entry.Endpoint != "" {
			clientOpts = append(clientOpts, provider.WithEndpoint(id, entry.Endpoint))
		}
	}
	client := provider.NewClient(creds, clientOpts...)

	convs := conversation.NewStore(kv)
	// The configured default applies until a conversation has a model
	// of its own.
	if active := convs.Active(); active != nil && active.ModelID == "" {
		convs.SetSelectedModel(cfg.DefaultModel)
	}
	agents := agent.NewStore(kv)
	agents.SetFeedDefaultKnowledge(cfg.FeedDefaultKnowledge)
	orch := chatsvc.NewOrchestrator(convs, agents, client)

	// Knowledgebase files tracked on disk refresh in the background.
	if watcher, err := agent.NewWatcher(agents, 500*time.Millisecond); err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	if plain || cfg.UI.Plain {
		repl := cli.NewREPL(cfg, convs, agents, orch)
		return repl.Run(context.Background())
	}

	m := uichat.NewModel(cfg, convs, agents, orch)
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}
