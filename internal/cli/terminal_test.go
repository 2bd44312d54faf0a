// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"testing"
)

func TestWrapTextShortLineUntouched(t *testing.T) {
	in := "a short line"
	if got := WrapText(in, 40); got != in {
		t.Errorf("WrapText(%q) = %q, want unchanged", in, got)
	}
}

func TestWrapTextBreaksAtWordBoundaries(t *testing.T) {
	in := strings.Repeat("word ", 20)
	got := WrapText(strings.TrimSpace(in), 40)
	for i, line := range strings.Split(got, "\n") {
		if len(line) > 40 {
			t.Errorf("line %d is %d cols, want <= 40: %q", i, len(line), line)
		}
		if strings.HasSuffix(line, " ") || strings.HasPrefix(line, " ") {
			t.Errorf("line %d has stray whitespace: %q", i, line)
		}
	}
}

func TestWrapTextPreservesExistingNewlines(t *testing.T) {
	in := "first\nsecond\nthird"
	got := WrapText(in, 40)
	if got != in {
		t.Errorf("WrapText(%q) = %q, want newlines preserved", in, got)
	}
}

func TestWrapTextLongWordUnbroken(t *testing.T) {
	long := strings.Repeat("x", 60)
	got := WrapText("tiny "+long, 40)
	if !strings.Contains(got, long) {
		t.Errorf("long word was split: %q", got)
	}
}

func TestWrapTextClampsNarrowWidth(t *testing.T) {
	in := strings.Repeat("ab ", 30)
	got := WrapText(strings.TrimSpace(in), 10)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > MinTerminalWidth {
			t.Errorf("line exceeds clamped width: %q", line)
		}
	}
}

func TestTTYRequiredErrorNamesCommand(t *testing.T) {
	err := &TTYRequiredError{Command: "chat"}
	if !strings.Contains(err.Error(), "chat") {
		t.Errorf("error %q should name the command", err.Error())
	}
}
