// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the ragchat application.
package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns the NFC normalization of s. User input and upload
// filenames are normalized before they reach the wire so that visually
// identical strings compare equal on the backend.
func NormalizeText(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// WordCount counts whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
