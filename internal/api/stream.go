// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// STREAM DECODER
// =============================================================================

// Frame markers of the response stream.
const (
	frameDelimiter = "\n\n"
	dataPrefix     = "data: "
	doneMarker     = "[DONE]"
	referenceOpen  = "<reference>"
	referenceClose = "</reference>"
)

// Decoder turns the raw response stream into typed events. Frames are
// separated by blank lines; a frame is never interpreted until its
// delimiter has been seen, so chunking across network reads cannot split
// an interpretation. The decoder is single-pass and cannot be restarted.
type Decoder struct {
	reader     io.Reader
	collection string

	pending         []byte
	insideReasoning bool
	sawPayload      bool
}

// NewDecoder creates a decoder for one response stream. collection is
// stamped onto every parsed reference as its source collection.
func NewDecoder(r io.Reader, collection string) *Decoder {
	return &Decoder{
		reader:     r,
		collection: collection,
	}
}

// Process reads the stream and calls the callback for each event.
// Blocks until the stream terminates or the context is cancelled.
func (d *Decoder) Process(ctx context.Context, callback EventCallback) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := d.reader.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, buf[:n]...)
			if stop := d.drainFrames(callback); stop {
				d.finish(callback)
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				// Flush any residual buffered frame through the same
				// classification, then terminate.
				d.handleFrame(d.pending, callback)
				d.pending = nil
				d.finish(callback)
				return nil
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
	}
}

// drainFrames processes every complete frame in the pending buffer,
// keeping the trailing partial segment. Returns true on the terminator.
func (d *Decoder) drainFrames(callback EventCallback) bool {
	for {
		idx := bytes.Index(d.pending, []byte(frameDelimiter))
		if idx < 0 {
			return false
		}
		frame := d.pending[:idx]
		d.pending = d.pending[idx+len(frameDelimiter):]
		if stop := d.handleFrame(frame, callback); stop {
			return true
		}
	}
}

// finish closes an open reasoning phase and emits the end marker.
func (d *Decoder) finish(callback EventCallback) {
	end := Event{Kind: EventEnd}
	if d.insideReasoning {
		d.insideReasoning = false
		end.EndsReasoning = true
	}
	callback(end)
}

// handleFrame classifies and emits one complete frame.
// Returns true when the frame is the stream terminator.
func (d *Decoder) handleFrame(raw []byte, callback EventCallback) bool {
	frame := strings.TrimSpace(string(raw))
	if frame == "" {
		return false
	}

	// The first non-empty frame means the backend is answering: any
	// attachment upload is complete.
	if !d.sawPayload {
		d.sawPayload = true
		callback(Event{Kind: EventUploadDone})
	}

	if strings.HasPrefix(frame, referenceOpen) {
		d.handleReferenceFrame(frame, callback)
		return false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(frame, dataPrefix))
	if payload == doneMarker {
		return true
	}

	var record struct {
		Choices []struct {
			Delta struct {
				Content          string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		// One bad frame must not abort the stream.
		util.Debugf("stream: skipping malformed frame: %v", err)
		return false
	}
	if len(record.Choices) == 0 {
		return false
	}

	delta := record.Choices[0].Delta

	// A single frame can carry both fields; reasoning is emitted first.
	if delta.ReasoningContent != "" {
		ev := Event{Kind: EventReasoning, Text: delta.ReasoningContent}
		if !d.insideReasoning {
			d.insideReasoning = true
			ev.StartsReasoning = true
		}
		callback(ev)
	}
	if delta.Content != "" {
		ev := Event{Kind: EventContent, Text: delta.Content}
		if d.insideReasoning {
			d.insideReasoning = false
			ev.EndsReasoning = true
		}
		callback(ev)
	}
	return false
}

// handleReferenceFrame parses a <reference>...</reference> block.
func (d *Decoder) handleReferenceFrame(frame string, callback EventCallback) {
	inner := strings.TrimPrefix(frame, referenceOpen)
	inner = strings.TrimSuffix(inner, referenceClose)
	inner = strings.TrimSpace(inner)

	// An empty citation block is silently absorbed.
	if inner == "" || inner == "{}" {
		return
	}

	var block map[string]struct {
		Title    string `json:"title"`
		ChunkUID string `json:"chunk_uid"`
	}
	if err := json.Unmarshal([]byte(inner), &block); err != nil {
		util.Debugf("stream: skipping malformed reference block: %v", err)
		return
	}
	if len(block) == 0 {
		return
	}

	// Deterministic order: sort the arbitrary block keys.
	keys := make([]string, 0, len(block))
	for k := range block {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make([]model.Reference, 0, len(keys))
	for _, k := range keys {
		entry := block[k]
		refs = append(refs, model.Reference{
			Title:          entry.Title,
			Content:        entry.ChunkUID,
			CollectionName: d.collection,
		})
	}
	callback(Event{Kind: EventReferences, References: refs})
}

// =============================================================================
// CHANNEL ADAPTER
// =============================================================================

// ProcessChan runs Process in a goroutine and delivers events over a
// channel. The error channel receives exactly one value; both channels
// are closed when the stream ends.
func (d *Decoder) ProcessChan(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		err := d.Process(ctx, func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		errc <- err
	}()

	return events, errc
}
