// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"
	"sync"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/reason"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the slice of the API client the turn engine needs.
// *api.Client satisfies it.
type Backend interface {
	ChatStream(ctx context.Context, req *api.ChatRequest, callback api.EventCallback) error
	Upload(ctx context.Context, sessionID string, files []api.UploadFile, onProgress api.ProgressFunc) error
	DeleteSessions(ctx context.Context, ids []string) error
	GetPartitions(ctx context.Context, module string) ([]api.PartitionInfo, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Options configures a Manager.
type Options struct {
	// User is the identity that namespaces topic keys.
	User string
	// Module is the module selected at startup.
	Module model.Module
	// UsePrompt enables the backend's system prompt.
	UsePrompt bool
	// TypewriterBatch is how many runes each render tick reveals.
	TypewriterBatch int
	// ConfirmEvict is asked before eviction runs; nil means always evict.
	ConfirmEvict func(usage int64) bool
}

// Manager owns the active topic and orchestrates turns against the backend.
// All exported methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	backend Backend
	store   *storage.TopicStore
	opts    Options

	module     model.Module
	current    *model.Topic
	partitions map[model.Module][]model.Partition

	// Per-turn scratch, reset at turn boundaries
	pending   *model.Message
	staged    []api.UploadFile
	estimator *reason.Estimator

	state      *machine
	cancelMgr  *cancelManager
	typewriter *Typewriter
}

// NewManager creates a manager with a fresh Welcome topic for the
// configured module.
func NewManager(backend Backend, store *storage.TopicStore, opts Options) *Manager {
	if opts.Module == "" {
		opts.Module = model.ModuleGeneral
	}
	m := &Manager{
		backend:    backend,
		store:      store,
		opts:       opts,
		module:     opts.Module,
		partitions: make(map[model.Module][]model.Partition),
		estimator:  reason.NewEstimator(1),
		state:      &machine{},
		cancelMgr:  newCancelManager(),
		typewriter: NewTypewriter(opts.TypewriterBatch),
	}
	m.current = model.NewTopic(opts.User, m.module)
	return m
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Busy reports whether a turn is in flight.
func (m *Manager) Busy() bool {
	return m.state.busy()
}

// State returns the current turn state.
func (m *Manager) State() State {
	return m.state.current()
}

// Current returns the active topic.
func (m *Manager) Current() *model.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Module returns the active module.
func (m *Manager) Module() model.Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.module
}

// Pending returns the in-flight assistant message, or nil.
func (m *Manager) Pending() *model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Transcript returns a copy of the active topic's message list for
// rendering. The turn goroutine appends to the topic while a turn is in
// flight; renderers must iterate this copy, not topic.Messages.
func (m *Manager) Transcript() []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	msgs := make([]*model.Message, len(m.current.Messages))
	copy(msgs, m.current.Messages)
	return msgs
}

// Typewriter returns the display buffer for the active turn.
func (m *Manager) Typewriter() *Typewriter {
	return m.typewriter
}

// Progress returns the reasoning progress percentage, or -1 when no
// reasoning phase is in progress.
func (m *Manager) Progress() int {
	m.mu.Lock()
	est := m.estimator
	m.mu.Unlock()
	return est.Progress()
}

// Store returns the underlying topic store.
func (m *Manager) Store() *storage.TopicStore {
	return m.store
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// StageAttachments replaces the staged attachment set for the next send.
func (m *Manager) StageAttachments(files []api.UploadFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = files
}

// StagedNames returns the filenames currently staged.
func (m *Manager) StagedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.staged))
	for i, f := range m.staged {
		names[i] = f.Name
	}
	return names
}

// =============================================================================
// PARTITIONS
// =============================================================================

// RefreshPartitions fetches partition metadata for the active module,
// preserving any local enabled/disabled toggles.
func (m *Manager) RefreshPartitions(ctx context.Context) error {
	module := m.Module()
	infos, err := m.backend.GetPartitions(ctx, string(module))
	if err != nil {
		return err
	}

	parts := make([]model.Partition, len(infos))
	for i, info := range infos {
		docs := info.DocNames
		if len(docs) == 0 {
			// The backend names single-document partitions after the file.
			docs = []string{info.PartitionName}
		}
		parts[i] = model.Partition{Name: info.PartitionName, DocNames: docs}
	}
	parts = model.SortPartitions(module, parts)

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := make(map[string]bool)
	for _, p := range m.partitions[module] {
		prev[p.Name] = p.Enabled
	}
	for i := range parts {
		if enabled, ok := prev[parts[i].Name]; ok {
			parts[i].Enabled = enabled
		}
	}
	m.partitions[module] = parts
	return nil
}

// Partitions returns a copy of the active module's partitions.
func (m *Manager) Partitions() []model.Partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := make([]model.Partition, len(m.partitions[m.module]))
	copy(parts, m.partitions[m.module])
	return parts
}

// TogglePartition flips a partition's enabled flag. It returns the new
// state and whether the partition was found.
func (m *Manager) TogglePartition(name string) (enabled, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := m.partitions[m.module]
	for i := range parts {
		if parts[i].Name == name {
			parts[i].Enabled = !parts[i].Enabled
			return parts[i].Enabled, true
		}
	}
	return false, false
}

// enabledPartitions flattens the enabled partitions' document names; this
// is what the chat request carries as partition fields.
func (m *Manager) enabledPartitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.EnabledDocNames(m.partitions[m.module])
}

// =============================================================================
// TOPIC OPERATIONS
// =============================================================================

// Topics returns the user's stored topics, most recent first.
func (m *Manager) Topics() ([]*model.Topic, error) {
	return m.store.List()
}

// NewChat switches to a fresh Welcome topic for the given module. The
// current topic is reused when it is still an untouched placeholder for the
// same module. No-op while a turn is in flight.
func (m *Manager) NewChat(module model.Module) error {
	if m.Busy() {
		return ErrBusy
	}
	if !module.IsValid() {
		module = model.ModuleGeneral
	}

	if _, err := m.store.Maintain(m.opts.ConfirmEvict); err != nil {
		util.Warnf("convo: eviction check failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.IsWelcome() && m.current.Module == module {
		m.resetScratchLocked()
		return nil
	}
	m.module = module
	m.current = model.NewTopic(m.opts.User, module)
	m.resetScratchLocked()
	return nil
}

// SelectTopic loads a stored topic and makes it active. No-op while a turn
// is in flight.
func (m *Manager) SelectTopic(id string) error {
	if m.Busy() {
		return ErrBusy
	}
	topic, err := m.store.Load(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = topic
	m.module = topic.Module
	m.resetScratchLocked()
	return nil
}

// DeleteTopic removes a stored topic locally and on the backend. Welcome
// placeholders are not deletable. Deleting the active topic synthesizes a
// fresh one so the UI is never left without a topic. No-op while a turn is
// in flight.
func (m *Manager) DeleteTopic(ctx context.Context, id string) error {
	if m.Busy() {
		return ErrBusy
	}

	topic, err := m.store.Load(id)
	if err != nil {
		return err
	}
	if topic.IsWelcome() {
		return nil
	}

	if err := m.store.Delete(id); err != nil {
		return err
	}
	if err := m.backend.DeleteSessions(ctx, []string{id}); err != nil {
		// Local removal already happened; the backend session going stale
		// is harmless.
		util.Warnf("convo: backend session delete failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		m.current = model.NewTopic(m.opts.User, m.module)
		m.resetScratchLocked()
	}
	return nil
}

// SetFeedback records thumbs up/down on an assistant message of the active
// topic and persists the topic.
func (m *Manager) SetFeedback(messageID string, fb model.Feedback) error {
	m.mu.Lock()
	topic := m.current
	ok := topic.SetFeedback(messageID, fb)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.store.Save(topic)
}

// resetScratchLocked clears per-turn state so no stale partial text leaks
// into a newly selected topic's view. Caller holds m.mu.
func (m *Manager) resetScratchLocked() {
	m.pending = nil
	m.staged = nil
	m.estimator = reason.NewEstimator(1)
	m.typewriter.Reset()
}
