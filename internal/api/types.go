// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
package api

import (
	"encoding/json"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind tags the variants produced by the stream decoder.
type EventKind int

const (
	// EventContent carries one answer text delta.
	EventContent EventKind = iota
	// EventReasoning carries one reasoning text delta. Reasoning text is
	// never rendered verbatim; only its length feeds the progress bar.
	EventReasoning
	// EventReferences carries the parsed citations of a reference block.
	EventReferences
	// EventUploadDone fires once, before the first payload event: the
	// backend has started answering, so any attachment upload is complete.
	EventUploadDone
	// EventEnd marks natural stream termination.
	EventEnd
)

// Event is one decoded unit of the response stream.
type Event struct {
	Kind       EventKind
	Text       string
	References []model.Reference

	// StartsReasoning is set on the first reasoning delta of a phase.
	StartsReasoning bool
	// EndsReasoning is set on the content delta that closes a reasoning
	// phase, and on EventEnd when the stream finishes inside one.
	EndsReasoning bool
}

// EventCallback receives decoded events in arrival order.
type EventCallback func(Event)

// =============================================================================
// CHAT REQUEST
// =============================================================================

// ChatRequest describes one streamed chat turn.
type ChatRequest struct {
	// Module selects the knowledge module; it is sent as both "module"
	// and "collection_name".
	Module model.Module

	// SessionID is the topic ID, reused as the backend session key.
	SessionID string

	// History is the full visible message history, oldest first.
	History []model.HistoryEntry

	// UsePrompt toggles the backend system prompt ("1"/"0" on the wire).
	UsePrompt bool

	// Partitions are the names of the enabled retrieval partitions.
	Partitions []string

	// Filenames lists the attachments of this turn. Binaries are sent
	// beforehand via Upload; the chat request carries names only.
	Filenames []string
}

// MessagesJSON serializes the history exactly as the backend expects it.
// The same string feeds the reasoning budget prediction.
func (r *ChatRequest) MessagesJSON() (string, error) {
	history := r.History
	if history == nil {
		history = []model.HistoryEntry{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to serialize history", Cause: err}
	}
	return string(b), nil
}

// =============================================================================
// UPLOAD TYPES
// =============================================================================

// UploadFile is one attachment to pre-upload.
type UploadFile struct {
	Name string
	Data []byte
}

// ProgressFunc observes upload progress as a percentage in [0, 100].
// Values are monotonically non-decreasing.
type ProgressFunc func(percent int)

// =============================================================================
// PARTITION METADATA
// =============================================================================

// PartitionInfo is the backend's description of one retrieval partition.
type PartitionInfo struct {
	PartitionName string   `json:"partition_name"`
	DocNames      []string `json:"doc_names,omitempty"`
}

// partitionsResponse is the wire shape of the partition listing.
type partitionsResponse struct {
	Partitions []PartitionInfo `json:"partitions"`
}
