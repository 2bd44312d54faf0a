// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS AREAS
// =============================================================================

// focusArea identifies which pane receives keyboard input.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
	focusPartitions
	focusEvictPrompt
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme *styles.Theme

	// Conversation orchestration
	manager *convo.Manager
	cfg     *config.Config

	// Dimensions
	width  int
	height int

	// Focus and panes
	focus       focusArea
	showSidebar bool

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	sidebar  *components.Sidebar

	// Markdown rendering for finalized bot messages
	renderer *glamour.TermRenderer

	// Key bindings
	keyMap KeyMap

	// In-flight turn state
	turnActive bool
	turnCh     chan tea.Msg
	shown      string // typewriter text revealed so far
	uploadPct  int

	// Staged attachments for the next turn
	staged []api.UploadFile

	// Partition menu selection
	partitionCursor int

	// Eviction prompt
	gate         *EvictGate
	evictUsage   int64
	evictModule  model.Module
	evictPending bool

	// Transient status line notice
	status string

	// Help overlay
	showHelp bool
}

// New creates a new chat model wired to the conversation manager. The gate
// must be the same one passed to the manager as its eviction confirmer.
func New(theme *styles.Theme, manager *convo.Manager, cfg *config.Config, gate *EvictGate) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message... (/attach <path> to add a file)"
	ta.Prompt = "> "
	ta.SetHeight(3)
	ta.CharLimit = 8192
	ta.ShowLineNumbers = false
	ta.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}

	return Model{
		theme:       theme,
		manager:     manager,
		cfg:         cfg,
		viewport:    vp,
		input:       ta,
		spinner:     sp,
		sidebar:     components.NewSidebar(theme),
		gate:        gate,
		keyMap:      DefaultKeyMap(),
		showSidebar: true,
		uploadPct:   model.UploadNone,
	}
}

// Init starts the background loads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadTopicsCmd(m.manager),
		refreshPartitionsCmd(m.manager),
		m.spinner.Tick,
	)
}

// typewriterInterval returns the reveal tick interval from config.
func (m Model) typewriterInterval() time.Duration {
	ms := m.cfg.UI.TypewriterIntervalMs
	if ms < 1 {
		ms = 33
	}
	return time.Duration(ms) * time.Millisecond
}
