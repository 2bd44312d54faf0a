// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// Backend endpoints.
const (
	chatStreamPath = "/rag/qa_stream_url_local_rag"
	uploadPath     = "/rag/upload_documents"
	removePath     = "/rag/remove_chats"
	partitionsPath = "/rag/get_partitions"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// UploadTimeout bounds the file pre-upload (default: 5m)
	UploadTimeout time.Duration

	// MaxFileBytes caps a single attachment (default: 50MB)
	MaxFileBytes int64

	// PartitionRefreshRate throttles partition metadata fetches
	// (default: one every 10s, burst 2)
	PartitionRefreshRate rate.Limit
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:              "http://127.0.0.1:8000",
		Timeout:              30 * time.Second,
		UploadTimeout:        5 * time.Minute,
		MaxFileBytes:         50 << 20,
		PartitionRefreshRate: rate.Every(10 * time.Second),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the RAG backend.
// It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// Streaming responses have no overall deadline; a dedicated client
	// without a timeout keeps long generations alive.
	streamClient *http.Client

	// partLimiter keeps the periodic partition refresh from stampeding
	// the backend.
	partLimiter *rate.Limiter
}

// NewClient creates a new backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new backend client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = 5 * time.Minute
	}
	if config.MaxFileBytes == 0 {
		config.MaxFileBytes = 50 << 20
	}
	if config.PartitionRefreshRate == 0 {
		config.PartitionRefreshRate = rate.Every(10 * time.Second)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		streamClient: &http.Client{},
		partLimiter:  rate.NewLimiter(config.PartitionRefreshRate, 2),
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream opens a streamed chat turn and feeds decoded events to the
// callback. Blocks until the stream terminates, the context is cancelled,
// or an error occurs.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest, callback EventCallback) error {
	messagesJSON, err := req.MessagesJSON()
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := [][2]string{
		{"module", req.Module.String()},
		{"collection_name", req.Module.String()},
		{"session_id", req.SessionID},
		{"messages", messagesJSON},
		{"temperature", req.Module.Temperature()},
		{"use_prompt", boolField(req.UsePrompt)},
		{"num_rag", strconv.Itoa(len(req.Partitions))},
	}
	for i, name := range req.Partitions {
		fields = append(fields, [2]string{"partition_" + strconv.Itoa(i), name})
	}
	fields = append(fields, [2]string{"num_upload_documents", strconv.Itoa(len(req.Filenames))})
	for i, name := range req.Filenames {
		fields = append(fields, [2]string{"document_" + strconv.Itoa(i), name})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to finalize form", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+chatStreamPath, &body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrCancelled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "failed to reach backend", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:    ErrTypeHTTP,
			Message: "chat stream rejected: " + resp.Status,
		}
	}

	decoder := NewDecoder(resp.Body, req.Module.String())
	return decoder.Process(ctx, callback)
}

// =============================================================================
// SESSION DELETION
// =============================================================================

// DeleteSessions asks the backend to forget the given session IDs.
// Call sites treat failures as non-fatal; the local store is authoritative.
func (c *Client) DeleteSessions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, id := range ids {
		if err := w.WriteField("session_id_"+strconv.Itoa(i), id); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
		}
	}
	if err := w.WriteField("num_sessions", strconv.Itoa(len(ids))); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
	}
	if err := w.Close(); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to finalize form", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+removePath, &body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "failed to reach backend", Cause: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:    ErrTypeHTTP,
			Message: "session deletion rejected: " + resp.Status,
		}
	}
	return nil
}

// =============================================================================
// PARTITION METADATA
// =============================================================================

// GetPartitions fetches the selectable retrieval partitions of a module.
// Calls are rate-limited; a refresh loop can call this freely.
func (c *Client) GetPartitions(ctx context.Context, module string) ([]PartitionInfo, error) {
	if err := c.partLimiter.Wait(ctx); err != nil {
		return nil, ErrCancelled
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("module", module); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build form", Cause: err}
	}
	if err := w.Close(); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to finalize form", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+partitionsPath, &body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to reach backend", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ClientError{
			Type:    ErrTypeHTTP,
			Message: "partition listing rejected: " + resp.Status,
		}
	}

	var result partitionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode partitions", Cause: err}
	}

	util.Debugf("api: fetched %d partitions for module %s", len(result.Partitions), module)
	return result.Partitions, nil
}

// boolField renders a boolean the way the backend expects it.
func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
