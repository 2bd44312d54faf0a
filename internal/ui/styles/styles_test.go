// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestRenderProgressBarBounds(t *testing.T) {
	if got := RenderProgressBar(0, 50); got != "" {
		t.Errorf("zero width bar = %q", got)
	}
	if got := RenderProgressBar(10, -5); got != strings.Repeat(ProgressEmpty, 10) {
		t.Errorf("negative percent bar = %q", got)
	}
	if got := RenderProgressBar(10, 150); got != strings.Repeat(ProgressFull, 10) {
		t.Errorf("overflow percent bar = %q", got)
	}
}

func TestRenderProgressBarWidth(t *testing.T) {
	for _, pct := range []float64{0, 13, 50, 99, 100} {
		bar := RenderProgressBar(20, pct)
		if len(bar) != 20 {
			t.Errorf("pct %.0f: bar width = %d", pct, len(bar))
		}
	}
}

func TestRenderProgressBarHalf(t *testing.T) {
	bar := RenderProgressBar(10, 50)
	if !strings.HasPrefix(bar, strings.Repeat(ProgressFull, 5)) {
		t.Errorf("half bar = %q", bar)
	}
	if !strings.HasSuffix(bar, strings.Repeat(ProgressEmpty, 5)) {
		t.Errorf("half bar = %q", bar)
	}
}

func TestLayoutModeThresholds(t *testing.T) {
	theme := &Theme{}
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: layout = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestRenderStatusHelpers(t *testing.T) {
	if !strings.Contains(RenderError("boom"), StatusIndicators.Error) {
		t.Error("error render missing indicator")
	}
	if !strings.Contains(RenderWarning("careful"), StatusIndicators.Warning) {
		t.Error("warning render missing indicator")
	}
	if !strings.Contains(RenderInfo("fyi"), StatusIndicators.Info) {
		t.Error("info render missing indicator")
	}
}
