// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// rebuildRenderer recreates the glamour renderer for the current width.
func (m *Model) rebuildRenderer() {
	wrap := m.viewport.Width - 6
	if wrap < 20 {
		wrap = 20
	}

	style := "dark"
	if m.cfg.UI.Theme == "light" {
		style = "light"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		util.Warnf("markdown renderer unavailable: %v", err)
		m.renderer = nil
		return
	}
	m.renderer = r
}

// renderMarkdown renders finalized bot content, falling back to the chroma
// code-block pass when glamour is unavailable.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return components.ParseCodeBlocks(content, m.viewport.Width-4)
}

// =============================================================================
// VIEWPORT CONTENT
// =============================================================================

// refreshViewport rebuilds the conversation transcript and keeps the view
// pinned to the bottom while a turn streams.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom || m.turnActive {
		m.viewport.GotoBottom()
	}
}

// renderConversation renders the active topic plus any in-flight reply.
// The transcript is a snapshot; the turn goroutine may be appending to the
// topic while this runs.
func (m *Model) renderConversation() string {
	msgs := m.manager.Transcript()

	bubbleWidth := m.viewport.Width - 8
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var blocks []string
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleUser:
			blocks = append(blocks, m.renderUserMessage(msg, bubbleWidth))
		case model.RoleAssistant:
			blocks = append(blocks, m.renderBotMessage(msg, bubbleWidth))
		}
	}

	if m.turnActive {
		blocks = append(blocks, m.renderPendingReply(bubbleWidth))
	}

	return strings.Join(blocks, "\n\n")
}

// renderUserMessage renders a user bubble with attachment tags and the
// upload state.
func (m *Model) renderUserMessage(msg *model.Message, width int) string {
	var parts []string
	parts = append(parts, msg.Content)

	body := m.theme.UserBubble.MaxWidth(width).Render(strings.Join(parts, "\n"))

	var extras []string
	for _, name := range msg.Filenames {
		extras = append(extras, m.theme.AttachmentTag.Render("+ "+name))
	}
	if bar := components.NewUploadBar(msg.UploadPct()).Render(); bar != "" {
		extras = append(extras, bar)
	}

	if len(extras) == 0 {
		return alignRight(body, m.viewport.Width)
	}
	extra := lipgloss.NewStyle().MarginLeft(4).Render(strings.Join(extras, " "))
	return alignRight(body, m.viewport.Width) + "\n" + alignRight(extra, m.viewport.Width)
}

// renderBotMessage renders a finalized bot bubble with reasoning, feedback
// and reference footnotes.
func (m *Model) renderBotMessage(msg *model.Message, width int) string {
	var sections []string

	if msg.Reasoning != "" {
		label := m.theme.ReasoningLabel.Render("reasoning")
		panel := m.theme.ReasoningPanel.MaxWidth(width).Render(msg.Reasoning)
		sections = append(sections, label+"\n"+panel)
	}

	content := m.renderMarkdown(msg.Content)
	bubble := m.theme.BotBubble.MaxWidth(width).Render(content)
	if mark := feedbackMark(msg.Feedback); mark != "" {
		bubble += " " + m.theme.FeedbackMark.Render(mark)
	}
	sections = append(sections, bubble)

	if refs := components.RenderReferences(m.theme, msg.References, width); refs != "" {
		sections = append(sections, refs)
	}

	return strings.Join(sections, "\n")
}

// renderPendingReply renders the in-flight turn: the reasoning progress
// while the backend thinks, then the typewriter-revealed answer.
func (m *Model) renderPendingReply(width int) string {
	var sections []string

	pending := m.manager.Pending()
	progress := m.manager.Progress()

	if progress >= 0 {
		bar := components.NewReasoningBar(progress).Render()
		line := m.spinner.View() + " " + bar
		if pending != nil {
			if tail := lastLine(pending.GetDisplayReasoning()); tail != "" {
				line += "\n" + m.theme.ReasoningPanel.MaxWidth(width).Render(tail)
			}
		}
		sections = append(sections, line)
	}

	if m.shown != "" {
		sections = append(sections, m.theme.BotBubble.MaxWidth(width).Render(m.shown))
	} else if progress < 0 {
		sections = append(sections, m.spinner.View()+" waiting for reply...")
	}

	return strings.Join(sections, "\n")
}

// =============================================================================
// TOP-LEVEL VIEW
// =============================================================================

// View renders the whole chat screen.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	header := m.renderHeader()

	var body string
	switch {
	case m.evictPending:
		body = m.renderEvictPrompt()
	case m.focus == focusPartitions:
		body = m.renderPartitionsMenu()
	case m.showHelp:
		body = m.renderHelp()
	default:
		body = m.renderMain()
	}

	input := m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
	status := m.renderStatusBar()

	return strings.Join([]string{header, body, input, status}, "\n")
}

func (m Model) renderMain() string {
	if m.showSidebar && m.sidebar != nil && m.viewport.Width < m.width {
		return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), m.viewport.View())
	}
	return m.viewport.View()
}

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("ragchat")
	module := m.theme.HeaderModule.Render(m.manager.Module().DisplayName() + " module")
	return m.theme.Header.Width(m.width).Render(brand + "  " + module)
}

func (m Model) renderStatusBar() string {
	var parts []string

	if m.turnActive {
		parts = append(parts, m.theme.StatusBusy.Render(m.spinner.View()+" "+m.manager.State().String()))
	} else {
		parts = append(parts, m.theme.StatusIdle.Render("ready"))
	}

	enabled := 0
	for _, p := range m.manager.Partitions() {
		if p.Enabled {
			enabled++
		}
	}
	parts = append(parts, util.IntToString(enabled)+" partitions")

	if len(m.staged) > 0 {
		parts = append(parts, util.IntToString(len(m.staged))+" staged files")
	}

	if m.status != "" {
		parts = append(parts, m.status)
	} else {
		var hints []string
		for _, b := range m.keyMap.ShortHelp() {
			hints = append(hints,
				m.theme.ShortcutKey.Render(b.Help().Key)+" "+
					m.theme.ShortcutDesc.Render(b.Help().Desc))
		}
		parts = append(parts, strings.Join(hints, "  "))
	}

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, " | "))
}

func (m Model) renderPartitionsMenu() string {
	parts := m.manager.Partitions()

	var lines []string
	lines = append(lines, m.theme.SidebarTitle.Render("Partitions — "+m.manager.Module().DisplayName()))
	lines = append(lines, "")

	if len(parts) == 0 {
		lines = append(lines, m.theme.MenuItemDisabled.Render("(none available)"))
	}

	for i, p := range parts {
		check := "[ ]"
		if p.Enabled {
			check = "[x]"
		}
		line := check + " " + p.Name
		if i == m.partitionCursor {
			lines = append(lines, m.theme.MenuItemSelected.Render(line))
		} else if p.Enabled {
			lines = append(lines, m.theme.MenuItem.Render(line))
		} else {
			lines = append(lines, m.theme.MenuItemDisabled.Render(line))
		}
	}

	lines = append(lines, "")
	lines = append(lines, m.theme.ShortcutDesc.Render("space toggle, Esc close"))

	box := m.theme.MenuBox.Render(strings.Join(lines, "\n"))
	return padToHeight(box, m.viewport.Height)
}

func (m Model) renderEvictPrompt() string {
	var lines []string
	lines = append(lines, m.theme.PromptTitle.Render("Local storage is full"))
	lines = append(lines, "")
	lines = append(lines, components.RenderUsageLine(m.evictUsage, m.cfg.CeilingBytes()))
	lines = append(lines, "Chat history uses "+util.FormatBytes(m.evictUsage)+".")
	lines = append(lines, "Delete the oldest topics to free space?")
	lines = append(lines, "")
	lines = append(lines, m.theme.ShortcutKey.Render("y")+" delete oldest   "+
		m.theme.ShortcutKey.Render("n")+" keep everything")

	box := m.theme.PromptBox.Render(strings.Join(lines, "\n"))
	return padToHeight(box, m.viewport.Height)
}

func (m Model) renderHelp() string {
	var lines []string
	lines = append(lines, m.theme.SidebarTitle.Render("Keyboard shortcuts"))
	lines = append(lines, "")

	for _, group := range m.keyMap.FullHelp() {
		for _, b := range group {
			lines = append(lines,
				m.theme.ShortcutKey.Render(util.PadRight(b.Help().Key, 10))+
					m.theme.ShortcutDesc.Render(b.Help().Desc))
		}
		lines = append(lines, "")
	}
	lines = append(lines, m.theme.ShortcutDesc.Render("C-h to close"))

	box := m.theme.MenuBox.Render(strings.Join(lines, "\n"))
	return padToHeight(box, m.viewport.Height)
}

// =============================================================================
// HELPERS
// =============================================================================

// feedbackMark maps stored feedback to a display marker.
func feedbackMark(fb model.Feedback) string {
	switch fb {
	case model.FeedbackUp:
		return "+1"
	case model.FeedbackDown:
		return "-1"
	}
	return ""
}

// lastLine returns the trailing non-empty line of a block of text.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// alignRight pushes a block to the right edge of the given width.
func alignRight(block string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
}

// padToHeight pads a block with blank lines so the layout stays stable.
func padToHeight(block string, height int) string {
	lines := strings.Count(block, "\n") + 1
	if lines >= height {
		return block
	}
	return block + strings.Repeat("\n", height-lines)
}
