// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat history persistence for ragchat.
package storage

import "errors"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrKeyNotFound is returned when a key has no stored value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store closed")
)

// =============================================================================
// KEY-VALUE INTERFACE
// =============================================================================

// KV is the persistence contract shared by the file and sqlite backends.
// Keys are opaque strings; chat topics and cached reference content share
// one namespace, distinguished by key prefix.
type KV interface {
	// Keys returns every stored key that starts with prefix,
	// in unspecified order. An empty prefix matches everything.
	Keys(prefix string) ([]string, error)

	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error

	// Usage reports the stored footprint in bytes.
	Usage() (int64, error)

	// Close releases backend resources.
	Close() error
}
