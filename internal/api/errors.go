// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chat backend.
package api

import (
	"context"
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeHTTP
	ErrTypeInvalidResponse
	ErrTypeCancelled
	ErrTypeUploadCancelled
)

// Sentinel errors for easy checking.
var (
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCancelled       = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}
	ErrUploadCancelled = &ClientError{Type: ErrTypeUploadCancelled, Message: "upload cancelled"}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// errType extracts the ErrorType from an error chain, or ErrTypeUnknown.
func errType(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsCancelled reports whether the error stems from a cancelled context or
// an explicit stop, upload aborts included.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	t := errType(err)
	return t == ErrTypeCancelled || t == ErrTypeUploadCancelled
}

// IsUploadCancelled reports whether the error is specifically an aborted
// upload, as opposed to a stopped generation.
func IsUploadCancelled(err error) bool {
	return errType(err) == ErrTypeUploadCancelled
}

// IsConnectionError reports whether the backend was unreachable.
func IsConnectionError(err error) bool {
	return errType(err) == ErrTypeConnection
}

// IsTimeout reports whether the request timed out.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errType(err) == ErrTypeTimeout
}
