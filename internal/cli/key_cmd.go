// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// key_cmd.go - API key management commands.
//
// Command: key [subcommand]
//
// Subcommands:
//   set <provider>      Prompt for and store an API key (encrypted at rest)
//   status              Show which providers have a key configured
//   delete <provider>   Remove a stored API key
//
// Examples:
//   parley key set openai        Store an OpenAI key
//   parley key status            List configured providers
//   parley key delete mistral    Forget the Mistral key

package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/config"
)

// RunKeyCommand executes the `key` subcommand tree.
func RunKeyCommand(creds *config.CredentialStore, args []string) error {
	if len(args) == 0 {
		return keyStatus(creds)
	}

	switch args[0] {
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: parley key set <provider>")
		}
		return keySet(creds, args[1])
	case "status", "list":
		return keyStatus(creds)
	case "delete", "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: parley key delete <provider>")
		}
		return keyDelete(creds, args[1])
	default:
		return fmt.Errorf("unknown key subcommand %q (want set, status, or delete)", args[0])
	}
}

func keySet(creds *config.CredentialStore, providerID string) error {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q (known: %s)", providerID, knownProviders())
	}

	fmt.Printf("API key for %s (input hidden): ", p.Name)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("could not read key: %w", err)
	}

	key := strings.TrimSpace(string(raw))
	if key == "" {
		return fmt.Errorf("empty key, nothing stored")
	}

	if err := creds.Set(p.ID, key); err != nil {
		return fmt.Errorf("could not store key: %w", err)
	}
	fmt.Printf("Stored key for %s.\n", p.Name)
	return nil
}

func keyStatus(creds *config.CredentialStore) error {
	ids := make([]string, 0, len(catalog.Providers))
	for id := range catalog.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := catalog.Providers[id]
		switch {
		case creds.Has(id):
			fmt.Printf("  %-10s configured\n", p.ID)
		case os.Getenv(p.CredentialEnv) != "":
			fmt.Printf("  %-10s from %s\n", p.ID, p.CredentialEnv)
		default:
			fmt.Printf("  %-10s not configured\n", p.ID)
		}
	}
	return nil
}

func keyDelete(creds *config.CredentialStore, providerID string) error {
	p, ok := catalog.GetProvider(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q (known: %s)", providerID, knownProviders())
	}
	if err := creds.Delete(p.ID); err != nil {
		return fmt.Errorf("could not delete key: %w", err)
	}
	fmt.Printf("Deleted key for %s.\n", p.Name)
	return nil
}

func knownProviders() string {
	ids := make([]string, 0, len(catalog.Providers))
	for id := range catalog.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
