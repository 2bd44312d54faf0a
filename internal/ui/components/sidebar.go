// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the ragchat TUI.
package components

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// TOPIC SIDEBAR
// =============================================================================

// Sidebar renders the saved-topic list with keyboard selection.
type Sidebar struct {
	theme *styles.Theme

	topics   []*model.Topic
	selected int

	width  int
	height int
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{
		theme: theme,
		width: 28,
	}
}

// SetSize sets the sidebar dimensions.
func (s *Sidebar) SetSize(width, height int) {
	if width < 16 {
		width = 16
	}
	s.width = width
	s.height = height
}

// SetTopics replaces the topic list, clamping the selection.
func (s *Sidebar) SetTopics(topics []*model.Topic) {
	s.topics = topics
	if s.selected >= len(topics) {
		s.selected = len(topics) - 1
	}
	if s.selected < 0 {
		s.selected = 0
	}
}

// Topics returns the current topic list.
func (s *Sidebar) Topics() []*model.Topic {
	return s.topics
}

// Selected returns the currently highlighted topic, or nil when empty.
func (s *Sidebar) Selected() *model.Topic {
	if len(s.topics) == 0 {
		return nil
	}
	return s.topics[s.selected]
}

// MoveUp moves the selection up one entry.
func (s *Sidebar) MoveUp() {
	if s.selected > 0 {
		s.selected--
	}
}

// MoveDown moves the selection down one entry.
func (s *Sidebar) MoveDown() {
	if s.selected < len(s.topics)-1 {
		s.selected++
	}
}

// View renders the sidebar pane.
func (s *Sidebar) View() string {
	var lines []string
	lines = append(lines, s.theme.SidebarTitle.Render("Topics"))

	if len(s.topics) == 0 {
		lines = append(lines, s.theme.SidebarItemTimestamp.Render("(no saved topics)"))
	}

	// Inner width after the item padding
	itemWidth := s.width - 4
	if itemWidth < 8 {
		itemWidth = 8
	}

	visible := s.height - 2
	if visible < 1 {
		visible = len(s.topics)
	}
	start := 0
	if s.selected >= visible {
		start = s.selected - visible + 1
	}

	for i := start; i < len(s.topics) && i-start < visible; i++ {
		t := s.topics[i]
		line := formatTopicLine(t, itemWidth)
		if i == s.selected {
			lines = append(lines, s.theme.SidebarItemSelected.Render(line))
		} else {
			lines = append(lines, s.theme.SidebarItem.Render(line))
		}
	}

	content := strings.Join(lines, "\n")
	return s.theme.Sidebar.Width(s.width).Render(content)
}

// formatTopicLine renders one topic entry: the title truncated to the
// column width, with a relative timestamp when room allows.
func formatTopicLine(t *model.Topic, width int) string {
	title := t.Title
	if title == "" {
		title = "New chat"
	}

	stamp := relativeTime(t.LastMessage)
	stampWidth := runewidth.StringWidth(stamp) + 1

	if width > stampWidth+8 {
		titleWidth := width - stampWidth
		title = util.TruncateWidth(title, titleWidth)
		pad := width - runewidth.StringWidth(title) - runewidth.StringWidth(stamp)
		if pad < 1 {
			pad = 1
		}
		return title + strings.Repeat(" ", pad) + stamp
	}

	return util.TruncateWidth(title, width)
}

// relativeTime renders a compact age for a topic's last activity.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return util.IntToString(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return util.IntToString(int(d.Hours())) + "h"
	default:
		return util.IntToString(int(d.Hours()/24)) + "d"
	}
}
