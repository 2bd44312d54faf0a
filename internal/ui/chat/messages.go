// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat
// interface. Messages are organized into the following categories:
//   - Turn lifecycle: stream events, upload progress, completion, errors
//   - Typewriter: reveal ticks
//   - Topics: list loading and selection
//   - Partitions: refresh results
//   - Storage: eviction prompts
//   - Config: live reload
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// TURN LIFECYCLE MESSAGES
// =============================================================================

// StreamEventMsg carries a content, reasoning, or reference event from the
// in-flight turn.
type StreamEventMsg struct {
	Event convo.TurnEvent
}

// UploadProgressMsg reports attachment upload progress for the current
// turn: 0-100 in flight, -1 on failure.
type UploadProgressMsg struct {
	Percent int
}

// TurnDoneMsg signals that the turn finished. Aborted is true when the
// user stopped generation; the turn then left no bot message behind.
type TurnDoneMsg struct {
	Aborted bool
}

// TurnErrorMsg signals that the turn failed. The fallback bot message has
// already been appended by the conversation manager.
type TurnErrorMsg struct {
	Err error
}

// turnClosedMsg is the internal sentinel that ends the event-wait loop
// after the turn goroutine returns.
type turnClosedMsg struct {
	err error
}

// =============================================================================
// TYPEWRITER MESSAGES
// =============================================================================

// TypewriterTickMsg advances the typewriter reveal.
type TypewriterTickMsg struct {
	Time time.Time
}

// =============================================================================
// TOPIC MESSAGES
// =============================================================================

// TopicsLoadedMsg delivers the saved-topic list for the sidebar.
type TopicsLoadedMsg struct {
	Topics []*model.Topic
	Err    error
}

// TopicSelectedMsg confirms that a stored topic became the active one.
type TopicSelectedMsg struct {
	ID  string
	Err error
}

// TopicDeletedMsg confirms a topic deletion.
type TopicDeletedMsg struct {
	ID  string
	Err error
}

// =============================================================================
// PARTITION MESSAGES
// =============================================================================

// PartitionsMsg reports a partition refresh for the active module.
type PartitionsMsg struct {
	Err error
}

// =============================================================================
// STORAGE MESSAGES
// =============================================================================

// EvictPromptMsg asks the user to approve deleting old topics because
// local storage exceeded its ceiling.
type EvictPromptMsg struct {
	Usage   int64
	Ceiling int64
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a freshly reloaded configuration from the
// file watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// UI STATE MESSAGES
// =============================================================================

// statusMsg shows a transient status line notice.
type statusMsg struct {
	text string
}

// statusExpireMsg clears a transient status notice.
type statusExpireMsg struct{}
