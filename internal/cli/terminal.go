// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal capability detection for the plain front end.
//
// Decides whether the process is attached to an interactive terminal and
// how wide it is, so the REPL and one-shot commands can pick between
// rendered markdown and plain piped output.
package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTerminalWidth is assumed when the width cannot be detected.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the floor below which wrapping gives up.
	MinTerminalWidth = 40
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY reports whether stdin is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is attached to a terminal.
// Piped output must stay free of ANSI sequences and rendered markdown.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the current terminal width in columns,
// clamped to MinTerminalWidth, or DefaultTerminalWidth when stdout is
// not a terminal.
func GetTerminalWidth() int {
	if !IsStdoutTTY() {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR SUPPORT
// =============================================================================

var (
	colorsOnce    sync.Once
	colorsEnabled bool
)

// ColorsEnabled reports whether colored output should be produced.
// Honors NO_COLOR (https://no-color.org) and FORCE_COLOR; otherwise
// colors are enabled only on a TTY. Computed once per process.
func ColorsEnabled() bool {
	colorsOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// =============================================================================
// TEXT WRAPPING
// =============================================================================

// WrapText wraps text at word boundaries to the given width. Words longer
// than the width are emitted on their own line unbroken. Existing newlines
// are preserved.
func WrapText(text string, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	if len(line) <= width {
		return line
	}

	var out strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := len(word)
		if lineLen > 0 && lineLen+1+wordLen > width {
			out.WriteByte('\n')
			lineLen = 0
		} else if lineLen > 0 {
			out.WriteByte(' ')
			lineLen++
		}
		out.WriteString(word)
		lineLen += wordLen
	}
	return out.String()
}

// =============================================================================
// ERRORS
// =============================================================================

// TTYRequiredError is returned when an interactive command runs without
// a terminal attached.
type TTYRequiredError struct {
	Command string
}

func (e *TTYRequiredError) Error() string {
	return fmt.Sprintf("%s requires an interactive terminal; run it directly, not through a pipe", e.Command)
}

// RequiresTTY returns an error unless stdin is a terminal.
func RequiresTTY(command string) error {
	if !IsTTY() {
		return &TTYRequiredError{Command: command}
	}
	return nil
}
