// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message. The values match the role
// strings the backend expects in the serialized history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// FEEDBACK TYPE
// =============================================================================

// Feedback is the user's rating of an assistant message.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// =============================================================================
// UPLOAD PROGRESS SENTINELS
// =============================================================================

const (
	// UploadNone marks a message with no attached upload.
	UploadNone = 0
	// UploadFailed marks a failed or aborted upload on a message.
	UploadFailed = -1
	// UploadDone marks a completed upload.
	UploadDone = 100
)

// =============================================================================
// REFERENCE TYPE
// =============================================================================

// Reference is a retrieval citation attached to an assistant message.
type Reference struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	CollectionName string `json:"collection_name"`
}

// DedupReferencesByTitle returns references with duplicate titles removed,
// preserving first-seen order. Storage keeps every reference; dedup happens
// at render time only.
func DedupReferencesByTitle(refs []Reference) []Reference {
	if len(refs) < 2 {
		return refs
	}
	seen := make(map[string]bool, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if seen[r.Title] {
			continue
		}
		seen[r.Title] = true
		out = append(out, r)
	}
	return out
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat topic.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Reasoning text produced before the answer (assistant messages).
	Reasoning string `json:"reasoning,omitempty"`

	// Retrieval citations (assistant messages).
	References []Reference `json:"references,omitempty"`

	// Files attached to a user message (names only; binaries are uploaded
	// out of band).
	Filenames []string `json:"filenames,omitempty"`

	// UploadPercentage tracks the attachment upload on the pending
	// assistant message: 0-100 while in flight, UploadFailed on error.
	UploadPercentage int `json:"upload_percentage,omitempty"`

	// Feedback is the user's rating of an assistant message.
	Feedback Feedback `json:"feedback,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming     bool            `json:"-"`
	streamContent   strings.Builder `json:"-"`
	streamReasoning strings.Builder `json:"-"`

	// CONCURRENCY: the turn goroutine appends tokens while a renderer
	// reads display text from another goroutine. mu guards the streaming
	// builders, IsStreaming and UploadPercentage.
	mu sync.Mutex `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends an answer token to a streaming message.
func (m *Message) AppendToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// AppendReasoning appends a reasoning token to a streaming message.
func (m *Message) AppendReasoning(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsStreaming {
		m.streamReasoning.WriteString(token)
	}
}

// AddReferences attaches retrieval citations to the message.
func (m *Message) AddReferences(refs []Reference) {
	m.References = append(m.References, refs...)
}

// FinalizeStream merges streamed text into the persisted fields.
func (m *Message) FinalizeStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.Reasoning = m.streamReasoning.String()
	m.streamContent.Reset()
	m.streamReasoning.Reset()
	m.IsStreaming = false
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// GetDisplayReasoning returns the reasoning text (streaming or final).
func (m *Message) GetDisplayReasoning() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsStreaming {
		return m.streamReasoning.String()
	}
	return m.Reasoning
}

// SetUploadPct records attachment progress on the gating user message.
func (m *Message) SetUploadPct(pct int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadPercentage = pct
}

// UploadPct returns the recorded attachment progress.
func (m *Message) UploadPct() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UploadPercentage
}

// ReasoningLen returns the accumulated reasoning length in runes.
// The progress estimator consumes this.
func (m *Message) ReasoningLen() int {
	return len([]rune(m.GetDisplayReasoning()))
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
