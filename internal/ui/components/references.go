// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the ragchat TUI.
package components

import (
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// REFERENCE FOOTNOTES
// =============================================================================

// RenderReferences renders retrieval citations as footnotes under a bot
// message. Duplicate titles are collapsed at render time; the stored
// message keeps every reference.
func RenderReferences(theme *styles.Theme, refs []model.Reference, maxWidth int) string {
	deduped := model.DedupReferencesByTitle(refs)
	if len(deduped) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, theme.ReferenceNote.Render("References:"))

	for i, r := range deduped {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		// Truncate before styling so ANSI sequences stay intact
		if maxWidth > 8 {
			title = util.TruncateWidth(title, maxWidth-8)
		}
		line := "[" + util.IntToString(i+1) + "] " + theme.ReferenceTitle.Render(title)
		if r.CollectionName != "" {
			line += theme.ReferenceNote.Render(" (" + r.CollectionName + ")")
		}
		lines = append(lines, "  "+line)
	}

	return strings.Join(lines, "\n")
}
