// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
//
// The backend speaks multipart form requests and answers chat turns with
// a chunked text stream of blank-line-delimited frames. This package owns
// the whole wire surface:
//
//   - Client: chat stream, file pre-upload, session deletion, partition
//     metadata (rate-limited)
//   - Decoder: turns the raw response stream into typed events
//     (content / reasoning / references / end) with full-frame buffering,
//     so chunk boundaries never split an interpretation
//   - ClientError: typed errors with IsCancelled / IsUploadCancelled /
//     IsConnectionError helpers; an aborted upload is distinguishable
//     from a stopped generation
//
// # Usage
//
//	client := api.NewClient()
//	err := client.ChatStream(ctx, &api.ChatRequest{
//	    Module:    model.ModuleGeneral,
//	    SessionID: topic.ID,
//	    History:   topic.History(),
//	}, func(ev api.Event) {
//	    // merge ev into the turn state
//	})
package api
