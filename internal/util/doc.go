// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the ragchat application.
//
// This package contains common helper functions used throughout the
// application for string handling, text normalization, file operations,
// and the debug log.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TitleFromInput: topic title derivation from the first user message
//   - TruncateWidth: display-width truncation (CJK aware, go-runewidth)
//
// Text:
//   - NormalizeText: NFC normalization of user input and filenames
//   - WordCount: whitespace-separated word counting
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// Logging:
//   - InitLog, Debugf, Warnf, Errorf: file-backed diagnostics
//     (the TUI owns the terminal, so nothing may print to stdout)
//
// # Usage
//
//	// Truncate long strings safely for display
//	display := util.TruncateRunes(longText, 50)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
