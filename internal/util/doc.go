// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides shared helpers used across parley:
//
//   - AtomicWriteFile: crash-safe file replacement (write temp, fsync,
//     rename), used for the credential keyfile and exports.
//   - Rune- and width-aware string truncation for previews and the TUI.
//
// Nothing here knows about conversations, models, or providers.
package util
