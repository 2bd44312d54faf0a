// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

func TestParseCodeBlocksRendersFences(t *testing.T) {
	text := "before\n```go\nfmt.Println(1)\n```\nafter"
	out := ParseCodeBlocks(text, 80)

	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Error("surrounding prose lost")
	}
	if strings.Contains(out, "```") {
		t.Error("fence markers leaked into output")
	}
	if !strings.Contains(out, "go") {
		t.Error("language badge missing")
	}
}

func TestParseCodeBlocksUnclosedFence(t *testing.T) {
	text := "intro\n```python\nprint(42)"
	out := ParseCodeBlocks(text, 80)
	if !strings.Contains(out, "42") {
		t.Error("unclosed fence content dropped")
	}
}

func TestParseCodeBlocksPlainText(t *testing.T) {
	text := "just some prose\nwith two lines"
	if got := ParseCodeBlocks(text, 80); got != text {
		t.Errorf("prose altered: %q", got)
	}
}

func TestUploadBarStates(t *testing.T) {
	if got := NewUploadBar(model.UploadNone).Render(); got != "" {
		t.Errorf("no-upload bar = %q", got)
	}
	if got := NewUploadBar(model.UploadFailed).Render(); !strings.Contains(got, "upload failed") {
		t.Errorf("failed bar = %q", got)
	}
	if got := NewUploadBar(model.UploadDone).Render(); !strings.Contains(got, "uploaded") {
		t.Errorf("done bar = %q", got)
	}
	if got := NewUploadBar(42).Render(); !strings.Contains(got, "42%") {
		t.Errorf("in-flight bar = %q", got)
	}
}

func TestReasoningBarIdleHidden(t *testing.T) {
	if got := NewReasoningBar(-1).Render(); got != "" {
		t.Errorf("idle reasoning bar = %q", got)
	}
	if got := NewReasoningBar(37).Render(); !strings.Contains(got, "37%") {
		t.Errorf("reasoning bar = %q", got)
	}
	if got := NewReasoningBar(250).Render(); !strings.Contains(got, "100%") {
		t.Errorf("clamped reasoning bar = %q", got)
	}
}

func TestRenderReferencesDedupByTitle(t *testing.T) {
	theme := styles.NewTheme()
	refs := []model.Reference{
		{Title: "Doc A", CollectionName: "general"},
		{Title: "Doc B"},
		{Title: "Doc A", CollectionName: "other"},
	}
	out := RenderReferences(theme, refs, 80)

	if strings.Count(out, "Doc A") != 1 {
		t.Errorf("duplicate title not collapsed:\n%s", out)
	}
	if !strings.Contains(out, "Doc B") {
		t.Error("second reference missing")
	}
	if !strings.Contains(out, "[1]") || !strings.Contains(out, "[2]") {
		t.Error("footnote numbering missing")
	}
}

func TestRenderReferencesEmpty(t *testing.T) {
	theme := styles.NewTheme()
	if got := RenderReferences(theme, nil, 80); got != "" {
		t.Errorf("empty references rendered %q", got)
	}
}

func TestFormatTopicLineTruncates(t *testing.T) {
	topic := &model.Topic{
		Title:       strings.Repeat("a", 60),
		LastMessage: time.Now().Add(-2 * time.Hour),
	}
	line := formatTopicLine(topic, 24)
	if runewidth.StringWidth(line) > 24 {
		t.Errorf("line width = %d", runewidth.StringWidth(line))
	}
	if !strings.Contains(line, "2h") {
		t.Errorf("timestamp missing from %q", line)
	}
}

func TestFormatTopicLineCJKWidth(t *testing.T) {
	topic := &model.Topic{Title: strings.Repeat("工程", 20)}
	line := formatTopicLine(topic, 20)
	if runewidth.StringWidth(line) > 20 {
		t.Errorf("CJK line width = %d", runewidth.StringWidth(line))
	}
}

func TestSidebarSelectionClamped(t *testing.T) {
	theme := styles.NewTheme()
	sb := NewSidebar(theme)

	sb.SetTopics([]*model.Topic{{Title: "one"}, {Title: "two"}, {Title: "three"}})
	sb.MoveDown()
	sb.MoveDown()
	sb.MoveDown() // past the end
	if got := sb.Selected().Title; got != "three" {
		t.Errorf("selected = %q", got)
	}

	sb.SetTopics([]*model.Topic{{Title: "only"}})
	if got := sb.Selected().Title; got != "only" {
		t.Errorf("selection not clamped after shrink: %q", got)
	}

	sb.SetTopics(nil)
	if sb.Selected() != nil {
		t.Error("empty sidebar should have nil selection")
	}
}

func TestRenderUsageLine(t *testing.T) {
	out := RenderUsageLine(100<<20, 200<<20)
	if !strings.Contains(out, "50%") {
		t.Errorf("usage line = %q", out)
	}
	if RenderUsageLine(10, 0) != "" {
		t.Error("zero ceiling should render nothing")
	}
}
