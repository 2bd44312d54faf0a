// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// stubBackend emits one reasoning delta, then holds the stream open until
// released so a test can inspect the in-flight view.
type stubBackend struct {
	reasoningSeen chan struct{}
	release       chan struct{}
}

func (b *stubBackend) ChatStream(ctx context.Context, req *api.ChatRequest, cb api.EventCallback) error {
	cb(api.Event{Kind: api.EventReasoning, Text: "checking clause 5", StartsReasoning: true})
	close(b.reasoningSeen)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	cb(api.Event{Kind: api.EventContent, Text: "done", EndsReasoning: true})
	cb(api.Event{Kind: api.EventEnd})
	return nil
}

func (b *stubBackend) Upload(ctx context.Context, sessionID string, files []api.UploadFile, onProgress api.ProgressFunc) error {
	return nil
}

func (b *stubBackend) DeleteSessions(ctx context.Context, ids []string) error { return nil }

func (b *stubBackend) GetPartitions(ctx context.Context, module string) ([]api.PartitionInfo, error) {
	return nil, nil
}

func TestPendingReplyShowsLiveReasoningTail(t *testing.T) {
	backend := &stubBackend{
		reasoningSeen: make(chan struct{}),
		release:       make(chan struct{}),
	}
	kv, err := storage.NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	store := storage.NewTopicStore(kv, "u@example.com")
	manager := convo.NewManager(backend, store, convo.Options{User: "u@example.com"})

	m := New(styles.NewTheme(), manager, &config.Config{}, NewEvictGate())

	done := make(chan error, 1)
	go func() { done <- manager.Send(context.Background(), "why?", nil) }()
	<-backend.reasoningSeen

	out := m.renderPendingReply(60)
	if !strings.Contains(out, "checking clause 5") {
		t.Errorf("in-flight view should show the reasoning tail, got %q", out)
	}

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestEvictGateDeclinesUntilArmed(t *testing.T) {
	gate := NewEvictGate()
	if gate.Confirm(1 << 30) {
		t.Error("unarmed gate must decline")
	}

	gate.Allow()
	if !gate.Confirm(1 << 30) {
		t.Error("armed gate must approve")
	}
	if gate.Confirm(1 << 30) {
		t.Error("approval must be consumed by the first confirm")
	}
}

func TestNextModuleCycles(t *testing.T) {
	seen := map[model.Module]bool{}
	cur := model.ModuleGeneral
	for range model.Modules {
		seen[cur] = true
		cur = nextModule(cur)
	}
	if len(seen) != len(model.Modules) {
		t.Errorf("cycle visited %d of %d modules", len(seen), len(model.Modules))
	}
	if cur != model.ModuleGeneral {
		t.Errorf("cycle did not wrap, ended on %s", cur)
	}
	if nextModule(model.Module("bogus")) != model.ModuleGeneral {
		t.Error("unknown module should reset to general")
	}
}

func TestFeedbackMark(t *testing.T) {
	if got := feedbackMark(model.FeedbackUp); got != "+1" {
		t.Errorf("up mark = %q", got)
	}
	if got := feedbackMark(model.FeedbackDown); got != "-1" {
		t.Errorf("down mark = %q", got)
	}
	if got := feedbackMark(model.FeedbackNone); got != "" {
		t.Errorf("none mark = %q", got)
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("one\ntwo\nthree"); got != "three" {
		t.Errorf("lastLine = %q", got)
	}
	if got := lastLine("single"); got != "single" {
		t.Errorf("lastLine = %q", got)
	}
	if got := lastLine("tail\n  \n\n"); got != "tail" {
		t.Errorf("trailing blanks: %q", got)
	}
	if got := lastLine(""); got != "" {
		t.Errorf("empty input: %q", got)
	}
}

func TestPadToHeight(t *testing.T) {
	out := padToHeight("a\nb", 5)
	if got := strings.Count(out, "\n") + 1; got != 5 {
		t.Errorf("padded height = %d", got)
	}
	tall := "1\n2\n3\n4\n5\n6"
	if padToHeight(tall, 3) != tall {
		t.Error("tall block should be untouched")
	}
}
