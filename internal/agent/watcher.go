// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the persistent store for agent personas and
// knowledgebases.
package agent

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// KNOWLEDGE FILE WATCHER
// =============================================================================

// Watcher refreshes knowledgebase files from disk when their source
// paths change, so an active knowledgebase keeps feeding current file
// content into outbound requests.
//
// Events are debounced: editors often emit several writes in quick
// succession for a single save.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher over every knowledgebase file that has
// an on-disk source path.
func NewWatcher(store *Store, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		store:    store,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}
	return w, nil
}

// Watch registers the current knowledgebase file paths and starts the
// event loop.
func (w *Watcher) Watch() error {
	for _, kb := range w.store.Knowledgebases() {
		for _, f := range kb.Files {
			if f.Path == "" {
				continue
			}
			if err := w.watcher.Add(f.Path); err != nil {
				// Missing files are not fatal; the stored content stands.
				log.Printf("knowledge watcher: cannot watch %s: %v", f.Path, err)
			}
		}
	}

	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("knowledge watcher: %v", err)
		}
	}
}

func (w *Watcher) processPending() {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reloads files whose last event is older than the
// debounce window.
func (w *Watcher) flushPending() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.reloadFile(path)
	}
}

// reloadFile re-reads a changed source file into every knowledgebase
// entry referencing it, then persists through the store so the active
// combined content stays current.
func (w *Watcher) reloadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("knowledge watcher: reload %s: %v", path, err)
		return
	}

	for _, kb := range w.store.Knowledgebases() {
		changed := false
		files := kb.Files
		for i := range files {
			if files[i].Path == path {
				files[i].Content = string(data)
				changed = true
			}
		}
		if changed {
			if err := w.store.UpdateKnowledgebase(kb.ID, kb.Content, files); err != nil {
				log.Printf("knowledge watcher: update %s: %v", kb.ID, err)
			}
		}
	}
}
