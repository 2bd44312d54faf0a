// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the ragchat TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// UPLOAD PROGRESS BAR
// =============================================================================

// UploadBar renders the attachment upload state carried on a user message:
// a percent bar while the upload is in flight, a completed badge at 100,
// and an error badge for a failed or aborted upload.
type UploadBar struct {
	Percent int
	Width   int
}

// NewUploadBar creates an upload bar with a sensible default width.
func NewUploadBar(percent int) UploadBar {
	return UploadBar{Percent: percent, Width: 24}
}

// Render renders the upload bar, or an empty string when the message
// carries no upload.
func (u UploadBar) Render() string {
	switch {
	case u.Percent == model.UploadNone:
		return ""
	case u.Percent == model.UploadFailed:
		badge := lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
		return badge.Render(styles.StatusIndicators.Error + " upload failed")
	case u.Percent >= model.UploadDone:
		badge := lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true)
		return badge.Render(styles.StatusIndicators.Success + " uploaded")
	}

	width := u.Width
	if width < 8 {
		width = 8
	}
	bar := styles.RenderProgressBar(width, float64(u.Percent))
	barStyle := lipgloss.NewStyle().Foreground(styles.Amber)
	pctStyle := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true)
	return barStyle.Render(bar) + " " + pctStyle.Render(fmt.Sprintf("%d%%", u.Percent))
}

// =============================================================================
// REASONING PROGRESS
// =============================================================================

// ReasoningBar renders the estimated reasoning progress shown while the
// backend thinks before answering. A percent of -1 means no reasoning is
// in flight and nothing is rendered.
type ReasoningBar struct {
	Percent int
	Width   int
}

// NewReasoningBar creates a reasoning bar with a sensible default width.
func NewReasoningBar(percent int) ReasoningBar {
	return ReasoningBar{Percent: percent, Width: 24}
}

// Render renders the reasoning progress line.
func (r ReasoningBar) Render() string {
	if r.Percent < 0 {
		return ""
	}
	pct := r.Percent
	if pct > 100 {
		pct = 100
	}

	width := r.Width
	if width < 8 {
		width = 8
	}

	label := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("thinking")
	bar := styles.RenderProgressBar(width, float64(pct))
	barStyle := lipgloss.NewStyle().Foreground(styles.Purple)
	pctStyle := lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	return label + " " + barStyle.Render(bar) + " " + pctStyle.Render(fmt.Sprintf("%d%%", pct))
}

// =============================================================================
// STORAGE USAGE
// =============================================================================

// RenderUsageLine renders a one-line storage usage summary for the
// eviction confirmation prompt.
func RenderUsageLine(usage, ceiling int64) string {
	if ceiling <= 0 {
		return ""
	}
	pct := float64(usage) / float64(ceiling) * 100
	bar := styles.RenderProgressBar(20, pct)

	style := lipgloss.NewStyle().Foreground(styles.Amber)
	var sb strings.Builder
	sb.WriteString(style.Render(bar))
	sb.WriteString(fmt.Sprintf(" %.0f%% of local storage used", pct))
	return sb.String()
}
