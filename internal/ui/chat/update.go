// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// EVICTION GATE
// =============================================================================

// EvictGate bridges the conversation manager's synchronous eviction
// confirmation to the asynchronous TUI prompt. The UI asks the user first,
// arms the gate, and only then triggers the operation that may evict.
type EvictGate struct {
	mu      sync.Mutex
	allowed bool
}

// NewEvictGate creates a gate that declines until armed.
func NewEvictGate() *EvictGate {
	return &EvictGate{}
}

// Allow arms the gate for the next confirmation.
func (g *EvictGate) Allow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed = true
}

// Confirm consumes the armed state. Unarmed gates decline.
func (g *EvictGate) Confirm(usage int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.allowed
	g.allowed = false
	return ok
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// loadTopicsCmd lists the saved topics for the sidebar.
func loadTopicsCmd(m *convo.Manager) tea.Cmd {
	return func() tea.Msg {
		topics, err := m.Topics()
		return TopicsLoadedMsg{Topics: topics, Err: err}
	}
}

// refreshPartitionsCmd fetches the partition list for the active module.
func refreshPartitionsCmd(m *convo.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return PartitionsMsg{Err: m.RefreshPartitions(ctx)}
	}
}

// typewriterTickCmd schedules the next typewriter reveal.
func typewriterTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TypewriterTickMsg{Time: t}
	})
}

// statusExpireCmd clears a transient status notice after a short delay.
func statusExpireCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusExpireMsg{}
	})
}

// startTurn launches the turn goroutine and returns the command that waits
// for its first event. The manager callback runs on the turn goroutine;
// events cross into Bubble Tea through the channel.
func (m *Model) startTurn(input string) tea.Cmd {
	ch := make(chan tea.Msg, 64)
	m.turnCh = ch
	m.turnActive = true
	m.shown = ""
	m.uploadPct = model.UploadNone

	mgr := m.manager
	go func() {
		err := mgr.Send(context.Background(), input, func(ev convo.TurnEvent) {
			switch ev.Kind {
			case convo.TurnUploadProgress:
				ch <- UploadProgressMsg{Percent: ev.UploadPct}
			case convo.TurnDone:
				ch <- TurnDoneMsg{}
			case convo.TurnAborted:
				ch <- TurnDoneMsg{Aborted: true}
			case convo.TurnFailed:
				// turnClosedMsg carries the error after Send returns
			default:
				ch <- StreamEventMsg{Event: ev}
			}
		})
		ch <- turnClosedMsg{err: err}
		close(ch)
	}()

	return tea.Batch(waitTurn(ch), typewriterTickCmd(m.typewriterInterval()))
}

// waitTurn blocks on the next turn event.
func waitTurn(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TypewriterTickMsg:
		if !m.turnActive {
			return m, nil
		}
		text, _ := m.manager.Typewriter().Tick()
		m.shown = text
		m.refreshViewport()
		return m, typewriterTickCmd(m.typewriterInterval())

	case StreamEventMsg:
		// Content and reasoning accumulate inside the manager; the
		// typewriter tick picks them up. References show at finalize.
		m.refreshViewport()
		return m, waitTurn(m.turnCh)

	case UploadProgressMsg:
		m.uploadPct = msg.Percent
		m.refreshViewport()
		return m, waitTurn(m.turnCh)

	case TurnDoneMsg:
		m.turnActive = false
		m.shown = ""
		m.uploadPct = model.UploadNone
		m.refreshViewport()
		cmds := []tea.Cmd{waitTurn(m.turnCh), loadTopicsCmd(m.manager)}
		if msg.Aborted {
			m.status = "generation stopped"
			cmds = append(cmds, statusExpireCmd())
		}
		return m, tea.Batch(cmds...)

	case turnClosedMsg:
		m.turnActive = false
		m.turnCh = nil
		if msg.err != nil {
			return m.reportTurnError(msg.err)
		}
		m.refreshViewport()
		return m, loadTopicsCmd(m.manager)

	case TopicsLoadedMsg:
		if msg.Err != nil {
			util.Warnf("topic list failed: %v", msg.Err)
			return m, nil
		}
		m.sidebar.SetTopics(msg.Topics)
		return m, nil

	case TopicSelectedMsg:
		if msg.Err != nil {
			return m.notify("could not open topic: " + msg.Err.Error())
		}
		m.refreshViewport()
		return m, refreshPartitionsCmd(m.manager)

	case TopicDeletedMsg:
		if msg.Err != nil {
			return m.notify("could not delete topic: " + msg.Err.Error())
		}
		m.refreshViewport()
		return m, loadTopicsCmd(m.manager)

	case PartitionsMsg:
		if msg.Err != nil {
			util.Warnf("partition refresh failed: %v", msg.Err)
		}
		return m, nil

	case EvictPromptMsg:
		m.evictUsage = msg.Usage
		m.evictPending = true
		m.focus = focusEvictPrompt
		return m, nil

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		return m.notify("configuration reloaded")

	case statusMsg:
		m.status = msg.text
		return m, statusExpireCmd()

	case statusExpireMsg:
		m.status = ""
		return m, nil
	}

	return m, nil
}

// resize propagates new terminal dimensions to every pane.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	sidebarWidth := 0
	if m.showSidebar && m.theme.GetLayoutMode() != styles.LayoutNarrow {
		sidebarWidth = width / 4
		if sidebarWidth > 36 {
			sidebarWidth = 36
		}
		m.sidebar.SetSize(sidebarWidth, height-7)
	}

	m.viewport.Width = width - sidebarWidth
	m.viewport.Height = height - 7
	m.input.SetWidth(width - 4)

	m.rebuildRenderer()
	m.refreshViewport()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	switch m.focus {
	case focusSidebar:
		return m.handleSidebarKey(msg)
	case focusPartitions:
		return m.handlePartitionsKey(msg)
	case focusEvictPrompt:
		return m.handleEvictKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Stop):
		if m.turnActive {
			m.manager.StopGeneration()
			return m, nil
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		// Alt+Enter inserts a newline instead of submitting
		if msg.Alt {
			break
		}
		return m.submitInput()

	case key.Matches(msg, m.keyMap.NewChat):
		return m.requestNewChat(m.manager.Module())

	case key.Matches(msg, m.keyMap.CycleModule):
		return m.requestNewChat(nextModule(m.manager.Module()))

	case key.Matches(msg, m.keyMap.Topics):
		if m.showSidebar {
			m.focus = focusSidebar
		}
		return m, loadTopicsCmd(m.manager)

	case key.Matches(msg, m.keyMap.Partitions):
		m.focus = focusPartitions
		m.partitionCursor = 0
		return m, nil

	case key.Matches(msg, m.keyMap.FeedbackUp):
		return m.rateLastReply(model.FeedbackUp)

	case key.Matches(msg, m.keyMap.FeedbackDown):
		return m.rateLastReply(model.FeedbackDown)

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Up):
		m.sidebar.MoveUp()
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		m.sidebar.MoveDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		t := m.sidebar.Selected()
		if t == nil {
			return m, nil
		}
		m.focus = focusInput
		id := t.ID
		mgr := m.manager
		return m, func() tea.Msg {
			return TopicSelectedMsg{ID: id, Err: mgr.SelectTopic(id)}
		}

	case key.Matches(msg, m.keyMap.DeleteTopic):
		t := m.sidebar.Selected()
		if t == nil {
			return m, nil
		}
		id := t.ID
		mgr := m.manager
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return TopicDeletedMsg{ID: id, Err: mgr.DeleteTopic(ctx, id)}
		}

	case key.Matches(msg, m.keyMap.Stop), key.Matches(msg, m.keyMap.Topics):
		m.focus = focusInput
		return m, nil
	}
	return m, nil
}

func (m Model) handlePartitionsKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	parts := m.manager.Partitions()

	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.partitionCursor > 0 {
			m.partitionCursor--
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Down):
		if m.partitionCursor < len(parts)-1 {
			m.partitionCursor++
		}
		return m, nil

	case msg.String() == " ", key.Matches(msg, m.keyMap.Submit):
		if m.partitionCursor < len(parts) {
			m.manager.TogglePartition(parts[m.partitionCursor].Name)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Stop), key.Matches(msg, m.keyMap.Partitions):
		m.focus = focusInput
		return m, nil
	}
	return m, nil
}

func (m Model) handleEvictKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.evictPending = false
		m.focus = focusInput
		m.gate.Allow()
		return m.doNewChat(m.evictModule)
	case "n", "N", "esc":
		// Declined: the gate stays unarmed, so no topics are evicted.
		m.evictPending = false
		m.focus = focusInput
		return m.doNewChat(m.evictModule)
	}
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// submitInput sends the typed message, or runs it as a slash command.
func (m Model) submitInput() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runSlashCommand(text)
	}

	if m.turnActive {
		return m.notify("still answering; press Esc to stop first")
	}

	m.input.Reset()
	if len(m.staged) > 0 {
		m.manager.StageAttachments(m.staged)
		m.staged = nil
	}
	return m, m.startTurn(text)
}

// runSlashCommand dispatches /attach, /new, and /help.
func (m Model) runSlashCommand(text string) (Model, tea.Cmd) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/attach":
		if len(fields) < 2 {
			return m.notify("usage: /attach <path>")
		}
		return m.attachFile(strings.TrimSpace(strings.TrimPrefix(text, "/attach")))
	case "/new":
		return m.requestNewChat(m.manager.Module())
	case "/help":
		m.showHelp = !m.showHelp
		return m, nil
	default:
		return m.notify("unknown command: " + fields[0])
	}
}

// attachFile stages a local file for the next turn.
func (m Model) attachFile(path string) (Model, tea.Cmd) {
	data, err := os.ReadFile(path)
	if err != nil {
		return m.notify("cannot read " + path)
	}
	limit := int64(m.cfg.Backend.MaxFileMB) << 20
	if limit > 0 && int64(len(data)) > limit {
		return m.notify(filepath.Base(path) + " exceeds the upload limit")
	}
	m.staged = append(m.staged, api.UploadFile{
		Name: filepath.Base(path),
		Data: data,
	})
	return m.notify("attached " + filepath.Base(path))
}

// requestNewChat starts a new chat, asking about eviction first when the
// topic store is over its ceiling.
func (m Model) requestNewChat(module model.Module) (Model, tea.Cmd) {
	if m.turnActive {
		return m.notify("still answering; press Esc to stop first")
	}

	usage, err := m.manager.Store().Usage()
	ceiling := m.cfg.CeilingBytes()
	if err == nil && ceiling > 0 && usage > ceiling {
		m.evictModule = module
		return m, func() tea.Msg {
			return EvictPromptMsg{Usage: usage, Ceiling: ceiling}
		}
	}
	return m.doNewChat(module)
}

// doNewChat performs the switch. The eviction gate has already been armed
// or left declined by the prompt.
func (m Model) doNewChat(module model.Module) (Model, tea.Cmd) {
	if err := m.manager.NewChat(module); err != nil {
		if errors.Is(err, convo.ErrBusy) {
			return m.notify("still answering; press Esc to stop first")
		}
		return m.notify("new chat failed: " + err.Error())
	}
	m.refreshViewport()
	return m, tea.Batch(loadTopicsCmd(m.manager), refreshPartitionsCmd(m.manager))
}

// rateLastReply records feedback on the newest bot message.
func (m Model) rateLastReply(fb model.Feedback) (Model, tea.Cmd) {
	msgs := m.manager.Transcript()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role != model.RoleAssistant {
			continue
		}
		if err := m.manager.SetFeedback(msg.ID, fb); err != nil {
			return m.notify("feedback failed: " + err.Error())
		}
		m.refreshViewport()
		return m.notify("feedback recorded")
	}
	return m, nil
}

// reportTurnError surfaces a turn failure on the status line. The fallback
// bot message is already in the topic.
func (m Model) reportTurnError(err error) (Model, tea.Cmd) {
	if errors.Is(err, convo.ErrBusy) {
		return m.notify("still answering; press Esc to stop first")
	}
	m.refreshViewport()
	return m.notify("error: " + err.Error())
}

// notify shows a transient status line notice.
func (m Model) notify(text string) (Model, tea.Cmd) {
	m.status = text
	return m, statusExpireCmd()
}

// nextModule cycles through the available chat modules.
func nextModule(current model.Module) model.Module {
	for i, mod := range model.Modules {
		if mod == current {
			return model.Modules[(i+1)%len(model.Modules)]
		}
	}
	return model.ModuleGeneral
}
