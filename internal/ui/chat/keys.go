// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Submit       key.Binding
	Stop         key.Binding
	Quit         key.Binding
	NewChat      key.Binding
	Topics       key.Binding
	DeleteTopic  key.Binding
	CycleModule  key.Binding
	Partitions   key.Binding
	FeedbackUp   key.Binding
	FeedbackDown key.Binding
	Help         key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop generation"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Topics: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "topics"),
		),
		DeleteTopic: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete topic"),
		),
		CycleModule: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "switch module"),
		),
		Partitions: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "partitions"),
		),
		FeedbackUp: key.NewBinding(
			key.WithKeys("alt+u"),
			key.WithHelp("M-u", "thumbs up"),
		),
		FeedbackDown: key.NewBinding(
			key.WithKeys("alt+d"),
			key.WithHelp("M-d", "thumbs down"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "toggle help"),
		),
	}
}

// ShortHelp returns the key bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Stop, k.NewChat, k.Topics, k.Quit}
}

// FullHelp returns the key bindings shown in the help overlay.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Navigation
		{k.Up, k.Down, k.PageUp, k.PageDown},
		// Turn control
		{k.Submit, k.Stop, k.FeedbackUp, k.FeedbackDown},
		// Topics and modules
		{k.NewChat, k.Topics, k.DeleteTopic, k.CycleModule, k.Partitions},
		// Misc
		{k.Help, k.Quit},
	}
}
