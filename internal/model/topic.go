// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// TOPIC CONSTANTS
// =============================================================================

const (
	// WelcomeTitle is the placeholder title of a topic that has not yet
	// received a user message. Welcome topics are reused instead of
	// stacked, are skipped by eviction, and cannot be deleted.
	WelcomeTitle = "Welcome"

	// TitleMaxRunes is the number of characters of the first user message
	// used as the topic title.
	TitleMaxRunes = 30

	// topicKeyInfix separates the user part of a topic ID from the module
	// and session parts.
	topicKeyInfix = "_chatHistory_"
)

// =============================================================================
// TOPIC TYPE
// =============================================================================

// Topic is one conversation with the backend. The ID doubles as the
// backend session ID and the local store key.
type Topic struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Module      Module     `json:"module"`
	LastMessage time.Time  `json:"last_message"`
	Messages    []*Message `json:"messages"`
}

// TopicID composes a topic/session identifier from its parts:
// {user}_chatHistory_{module}_{uuid}.
func TopicID(user string, module Module, session string) string {
	return user + topicKeyInfix + string(module) + "_" + session
}

// TopicKeyPrefix returns the store key prefix under which all of a user's
// topics live.
func TopicKeyPrefix(user string) string {
	return user + topicKeyInfix
}

// NewTopic creates a fresh Welcome topic for the module, seeded with the
// module's greeting.
func NewTopic(user string, module Module) *Topic {
	greeting := NewMessage(RoleAssistant, module.WelcomeMessage())
	return &Topic{
		ID:          TopicID(user, module, uuid.NewString()),
		Title:       WelcomeTitle,
		Module:      module,
		LastMessage: time.Now(),
		Messages:    []*Message{greeting},
	}
}

// =============================================================================
// TOPIC METHODS
// =============================================================================

// IsWelcome reports whether the topic is an untouched placeholder.
func (t *Topic) IsWelcome() bool {
	return t.Title == WelcomeTitle
}

// Persistable reports whether the topic should be written to the store.
// A topic holding only the greeting is not persisted.
func (t *Topic) Persistable() bool {
	return len(t.Messages) > 1
}

// Append adds a message and bumps LastMessage.
func (t *Topic) Append(msg *Message) {
	t.Messages = append(t.Messages, msg)
	t.LastMessage = time.Now()
}

// DeriveTitle sets the title from the first user message. Only a Welcome
// placeholder is retitled; later messages never change the title.
func (t *Topic) DeriveTitle(input string) {
	if !t.IsWelcome() {
		return
	}
	title := util.TitleFromInput(strings.TrimSpace(input), TitleMaxRunes)
	if title != "" {
		t.Title = title
	}
}

// MessageByID returns the message with the given ID, or nil.
func (t *Topic) MessageByID(id string) *Message {
	for _, m := range t.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SetFeedback records feedback on the identified assistant message.
// Returns false when the message does not exist.
func (t *Topic) SetFeedback(messageID string, fb Feedback) bool {
	m := t.MessageByID(messageID)
	if m == nil || m.Role != RoleAssistant {
		return false
	}
	m.Feedback = fb
	return true
}

// ReferenceKeys returns the distinct reference-content cache keys named by
// the topic's messages. Deleting a topic cascades over these keys.
func (t *Topic) ReferenceKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range t.Messages {
		for _, r := range m.References {
			if r.Content == "" || seen[r.Content] {
				continue
			}
			seen[r.Content] = true
			keys = append(keys, r.Content)
		}
	}
	return keys
}

// History returns the role/content pairs of all finalized messages, in
// order, for serialization to the backend.
func (t *Topic) History() []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m.IsStreaming {
			continue
		}
		entries = append(entries, HistoryEntry{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return entries
}

// HistoryEntry is one element of the serialized chat history.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
