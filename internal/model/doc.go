// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the core data types shared across parley:
// messages and their attachments, conversations, agent personas, and
// knowledgebases.
//
// The types here are plain data with small invariant-preserving
// methods; persistence lives in the store packages and the catalog of
// providers and models lives in internal/catalog.
package model
