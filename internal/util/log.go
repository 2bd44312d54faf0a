// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the ragchat application.
package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// =============================================================================
// DEBUG LOG
// =============================================================================

// The TUI owns stdout and stderr, so diagnostics go to a log file instead.
// The logger is a no-op until InitLog is called with debug enabled.

var (
	logMu      sync.Mutex
	logOut     *log.Logger
	logFile    *os.File
	logVerbose bool
)

// InitLog opens (or creates) the debug log file at path. When debug is
// false only warnings and errors are written. Safe to call more than once;
// the previous file is closed.
func InitLog(path string, debug bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
		logOut = nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logOut = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	logVerbose = debug
	return nil
}

// SetLogOutput redirects logging to an arbitrary writer. Used by tests.
func SetLogOutput(w io.Writer, debug bool) {
	logMu.Lock()
	defer logMu.Unlock()
	logOut = log.New(w, "", 0)
	logVerbose = debug
}

// CloseLog closes the log file if one is open.
func CloseLog() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
		logOut = nil
	}
}

// Debugf writes a debug-level line. Dropped unless debug was enabled.
func Debugf(format string, args ...any) {
	logMu.Lock()
	defer logMu.Unlock()
	if logOut == nil || !logVerbose {
		return
	}
	logOut.Printf("DEBUG "+format, args...)
}

// Warnf writes a warning-level line.
func Warnf(format string, args ...any) {
	logMu.Lock()
	defer logMu.Unlock()
	if logOut == nil {
		return
	}
	logOut.Printf("WARN  "+format, args...)
}

// Errorf writes an error-level line.
func Errorf(format string, args ...any) {
	logMu.Lock()
	defer logMu.Unlock()
	if logOut == nil {
		return
	}
	logOut.Printf("ERROR "+format, args...)
}
