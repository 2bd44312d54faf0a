// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// FILE PRE-UPLOAD
// =============================================================================

// Upload transmits attachment binaries ahead of the chat turn. Progress is
// reported as the request body is consumed, 0-100, monotonically
// non-decreasing; 100 is always reported on success. Cancellation via ctx
// yields ErrUploadCancelled, distinguishable from other failures.
func (c *Client) Upload(ctx context.Context, sessionID string, files []UploadFile, onProgress ProgressFunc) error {
	if len(files) == 0 {
		return nil
	}
	if onProgress == nil {
		onProgress = func(int) {}
	}

	for _, f := range files {
		if int64(len(f.Data)) > c.config.MaxFileBytes {
			return &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: "file too large: " + f.Name,
			}
		}
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, f := range files {
		part, err := w.CreateFormFile("document_"+strconv.Itoa(i), util.NormalizeText(f.Name))
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
		}
		if _, err := part.Write(f.Data); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to write file part", Cause: err}
		}
	}
	if err := w.WriteField("num_documents", strconv.Itoa(len(files))); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
	}
	if err := w.WriteField("session_id", sessionID); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
	}
	if err := w.Close(); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to finalize form", Cause: err}
	}

	uploadCtx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	reader := &progressReader{
		reader:     bytes.NewReader(body.Bytes()),
		total:      int64(body.Len()),
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, c.config.BaseURL+uploadPath, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.ContentLength = int64(body.Len())

	// The dedicated stream client has no overall timeout; the upload is
	// bounded by uploadCtx instead.
	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return ErrUploadCancelled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "upload failed", Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:    ErrTypeHTTP,
			Message: "upload rejected: " + resp.Status,
		}
	}

	onProgress(100)
	return nil
}

// =============================================================================
// PROGRESS READER
// =============================================================================

// progressReader reports consumption of the request body as a percentage.
// Reported values never decrease and never exceed 100.
type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	last       int
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.onProgress(pct)
		}
	}
	return n, err
}
