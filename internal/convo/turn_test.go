// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/storage"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu sync.Mutex

	// Scripted stream
	events    []api.Event
	streamErr error

	// blockStream, when non-nil, makes ChatStream wait for cancellation
	// after closing streamStarted.
	blockStream   bool
	streamStarted chan struct{}

	// Scripted upload
	uploadPcts  []int
	uploadErr   error
	blockUpload bool
	uploadedTo  string

	deleted    [][]string
	partitions []api.PartitionInfo

	// Last chat request's partition fields, as sent on the wire.
	gotPartitions []string
}

func (f *fakeBackend) ChatStream(ctx context.Context, req *api.ChatRequest, cb api.EventCallback) error {
	f.mu.Lock()
	f.gotPartitions = req.Partitions
	f.mu.Unlock()
	if f.streamStarted != nil {
		close(f.streamStarted)
	}
	if f.blockStream {
		<-ctx.Done()
		return &api.ClientError{Type: api.ErrTypeCancelled, Message: "request cancelled", Cause: ctx.Err()}
	}
	for _, ev := range f.events {
		cb(ev)
	}
	return f.streamErr
}

func (f *fakeBackend) Upload(ctx context.Context, sessionID string, files []api.UploadFile, onProgress api.ProgressFunc) error {
	f.mu.Lock()
	f.uploadedTo = sessionID
	f.mu.Unlock()
	for _, pct := range f.uploadPcts {
		if onProgress != nil {
			onProgress(pct)
		}
	}
	if f.blockUpload {
		if f.streamStarted != nil {
			close(f.streamStarted)
		}
		<-ctx.Done()
		return &api.ClientError{Type: api.ErrTypeUploadCancelled, Message: "upload cancelled", Cause: ctx.Err()}
	}
	return f.uploadErr
}

func (f *fakeBackend) DeleteSessions(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids)
	return nil
}

func (f *fakeBackend) GetPartitions(ctx context.Context, module string) ([]api.PartitionInfo, error) {
	return f.partitions, nil
}

// =============================================================================
// TEST SETUP
// =============================================================================

func testManager(t *testing.T, backend Backend) *Manager {
	t.Helper()
	kv, err := storage.NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	store := storage.NewTopicStore(kv, "alice@example.com")
	return NewManager(backend, store, Options{
		User:      "alice@example.com",
		Module:    model.ModuleGeneral,
		UsePrompt: true,
	})
}

func answerEvents(text string) []api.Event {
	return []api.Event{
		{Kind: api.EventUploadDone},
		{Kind: api.EventContent, Text: text},
		{Kind: api.EventEnd},
	}
}

func collect(events *[]TurnEvent, mu *sync.Mutex) TurnCallback {
	return func(ev TurnEvent) {
		mu.Lock()
		*events = append(*events, ev)
		mu.Unlock()
	}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendFullTurn(t *testing.T) {
	backend := &fakeBackend{events: answerEvents("The answer.")}
	m := testManager(t, backend)

	var mu sync.Mutex
	var events []TurnEvent
	if err := m.Send(context.Background(), "What is clause 5?", collect(&events, &mu)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	topic := m.Current()
	if len(topic.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (greeting, user, reply)", len(topic.Messages))
	}
	reply := topic.Messages[2]
	if reply.Role != model.RoleAssistant || reply.Content != "The answer." {
		t.Errorf("reply = %q (%s)", reply.Content, reply.Role)
	}
	if reply.IsStreaming {
		t.Error("reply should be finalized")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle", m.State())
	}
	if m.Pending() != nil {
		t.Error("pending should be cleared")
	}

	// Persisted
	stored, err := m.Store().Load(topic.ID)
	if err != nil {
		t.Fatalf("topic not persisted: %v", err)
	}
	if len(stored.Messages) != 3 {
		t.Errorf("stored messages = %d", len(stored.Messages))
	}

	last := events[len(events)-1]
	if last.Kind != TurnDone || last.Message == nil {
		t.Errorf("last event = %+v, want TurnDone with message", last)
	}
}

func TestSendDerivesTitle(t *testing.T) {
	backend := &fakeBackend{events: answerEvents("ok")}
	m := testManager(t, backend)

	if err := m.Send(context.Background(), "Hello world", nil); err != nil {
		t.Fatal(err)
	}
	if got := m.Current().Title; got != "Hello world" {
		t.Errorf("title = %q", got)
	}
}

func TestSendTruncatesLongTitle(t *testing.T) {
	backend := &fakeBackend{events: answerEvents("ok")}
	m := testManager(t, backend)

	input := strings.Repeat("a", 40)
	if err := m.Send(context.Background(), input, nil); err != nil {
		t.Fatal(err)
	}
	want := strings.Repeat("a", 30) + "..."
	if got := m.Current().Title; got != want {
		t.Errorf("title = %q, want %q", got, want)
	}
}

func TestSendEmptyInputIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	m := testManager(t, backend)

	if err := m.Send(context.Background(), "   ", nil); err != nil {
		t.Fatal(err)
	}
	if len(m.Current().Messages) != 1 {
		t.Error("empty input must not append messages")
	}
}

func TestSecondSendRejectedWhileBusy(t *testing.T) {
	backend := &fakeBackend{blockStream: true, streamStarted: make(chan struct{})}
	m := testManager(t, backend)

	done := make(chan error, 1)
	go func() {
		done <- m.Send(context.Background(), "first", nil)
	}()
	<-backend.streamStarted

	if err := m.Send(context.Background(), "second", nil); err != ErrBusy {
		t.Errorf("second Send = %v, want ErrBusy", err)
	}
	if err := m.NewChat(model.ModuleGeneral); err != ErrBusy {
		t.Errorf("NewChat while busy = %v, want ErrBusy", err)
	}
	if err := m.SelectTopic("x"); err != ErrBusy {
		t.Errorf("SelectTopic while busy = %v, want ErrBusy", err)
	}
	if err := m.DeleteTopic(context.Background(), "x"); err != ErrBusy {
		t.Errorf("DeleteTopic while busy = %v, want ErrBusy", err)
	}

	m.StopGeneration()
	<-done

	// The gating user message is still present after the abort.
	if got := len(m.Current().Messages); got != 2 {
		t.Errorf("messages = %d, want 2 (greeting + user)", got)
	}
}

func TestAbortDuringStreamingIsSilent(t *testing.T) {
	backend := &fakeBackend{blockStream: true, streamStarted: make(chan struct{})}
	m := testManager(t, backend)

	var mu sync.Mutex
	var events []TurnEvent
	done := make(chan error, 1)
	go func() {
		done <- m.Send(context.Background(), "tell me everything", collect(&events, &mu))
	}()
	<-backend.streamStarted
	m.StopGeneration()

	if err := <-done; err != nil {
		t.Fatalf("aborted Send must not return an error, got %v", err)
	}

	topic := m.Current()
	for _, msg := range topic.Messages {
		if msg.Role == model.RoleAssistant && msg.Content == ErrorFallbackMessage {
			t.Error("abort must not append an error message")
		}
	}
	if got := len(topic.Messages); got != 2 {
		t.Errorf("messages = %d, want 2", got)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle", m.State())
	}

	mu.Lock()
	defer mu.Unlock()
	var sawAborted bool
	for _, ev := range events {
		if ev.Kind == TurnAborted {
			sawAborted = true
		}
		if ev.Kind == TurnFailed || ev.Kind == TurnDone {
			t.Errorf("unexpected terminal event %+v", ev)
		}
	}
	if !sawAborted {
		t.Error("expected a TurnAborted event")
	}
}

func TestAbortDuringUploadMarksUploadFailed(t *testing.T) {
	backend := &fakeBackend{
		uploadPcts:    []int{25, 50},
		blockUpload:   true,
		streamStarted: make(chan struct{}),
	}
	m := testManager(t, backend)
	m.StageAttachments([]api.UploadFile{{Name: "spec.pdf", Data: []byte("pdf bytes")}})

	done := make(chan error, 1)
	go func() {
		done <- m.Send(context.Background(), "summarize the attachment", nil)
	}()
	<-backend.streamStarted
	m.StopGeneration()
	if err := <-done; err != nil {
		t.Fatalf("aborted Send must not return an error, got %v", err)
	}

	topic := m.Current()
	userMsg := topic.Messages[1]
	if userMsg.UploadPercentage != model.UploadFailed {
		t.Errorf("uploadPercentage = %d, want %d", userMsg.UploadPercentage, model.UploadFailed)
	}
	if got := len(topic.Messages); got != 2 {
		t.Errorf("messages = %d, want 2 (no bot message after abort)", got)
	}
}

func TestStreamErrorAppendsFallbackMessage(t *testing.T) {
	backend := &fakeBackend{
		streamErr: &api.ClientError{Type: api.ErrTypeHTTP, Message: "server returned status 500"},
	}
	m := testManager(t, backend)

	var mu sync.Mutex
	var events []TurnEvent
	err := m.Send(context.Background(), "hello", collect(&events, &mu))
	if err == nil {
		t.Fatal("Send should surface the stream error")
	}

	topic := m.Current()
	last := topic.Messages[len(topic.Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != ErrorFallbackMessage {
		t.Errorf("last message = %q (%s)", last.Content, last.Role)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, want idle", m.State())
	}

	var sawFailed bool
	for _, ev := range events {
		if ev.Kind == TurnFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Error("expected a TurnFailed event")
	}
}

func TestUploadCompletionFlagsFirstFrame(t *testing.T) {
	backend := &fakeBackend{
		uploadPcts: []int{100},
		events:     answerEvents("done"),
	}
	m := testManager(t, backend)
	m.StageAttachments([]api.UploadFile{{Name: "doc.pdf", Data: []byte("x")}})

	if err := m.Send(context.Background(), "read this", nil); err != nil {
		t.Fatal(err)
	}

	topic := m.Current()
	userMsg := topic.Messages[1]
	if userMsg.UploadPercentage != model.UploadDone {
		t.Errorf("uploadPercentage = %d, want 100", userMsg.UploadPercentage)
	}
	if got := userMsg.Filenames; len(got) != 1 || got[0] != "doc.pdf" {
		t.Errorf("filenames = %v", got)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.uploadedTo != topic.ID {
		t.Errorf("uploaded to %q, want topic id", backend.uploadedTo)
	}
}

func TestReasoningDrivesProgress(t *testing.T) {
	backend := &fakeBackend{events: []api.Event{
		{Kind: api.EventUploadDone},
		{Kind: api.EventReasoning, Text: "thinking...", StartsReasoning: true},
		{Kind: api.EventReasoning, Text: " more"},
		{Kind: api.EventContent, Text: "answer", EndsReasoning: true},
		{Kind: api.EventEnd},
	}}
	m := testManager(t, backend)

	var mu sync.Mutex
	var events []TurnEvent
	if err := m.Send(context.Background(), "why?", collect(&events, &mu)); err != nil {
		t.Fatal(err)
	}

	var progress []int
	for _, ev := range events {
		if ev.Kind == TurnReasoningProgress {
			progress = append(progress, ev.Progress)
		}
	}
	if len(progress) < 3 {
		t.Fatalf("progress events = %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress regressed: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("final progress = %d, want 100", progress[len(progress)-1])
	}

	reply := m.Current().Messages[2]
	if reply.Reasoning != "thinking... more" {
		t.Errorf("reasoning = %q", reply.Reasoning)
	}
	if reply.Content != "answer" {
		t.Errorf("content = %q", reply.Content)
	}

	// Scratch resets to the idle sentinel after the turn.
	if m.Progress() != -1 {
		t.Errorf("post-turn progress = %d, want -1", m.Progress())
	}
}

func TestReferencesAttachedToReply(t *testing.T) {
	backend := &fakeBackend{events: []api.Event{
		{Kind: api.EventUploadDone},
		{Kind: api.EventReferences, References: []model.Reference{
			{Title: "Doc A", Content: "c1", CollectionName: "general"},
		}},
		{Kind: api.EventContent, Text: "see Doc A"},
		{Kind: api.EventEnd},
	}}
	m := testManager(t, backend)

	if err := m.Send(context.Background(), "cite something", nil); err != nil {
		t.Fatal(err)
	}

	reply := m.Current().Messages[2]
	if len(reply.References) != 1 || reply.References[0].Content != "c1" {
		t.Errorf("references = %+v", reply.References)
	}
}

func TestTypewriterTracksAccumulator(t *testing.T) {
	backend := &fakeBackend{events: answerEvents("abcdefghij")}
	m := testManager(t, backend)

	if err := m.Send(context.Background(), "type it", nil); err != nil {
		t.Fatal(err)
	}
	// Finalization flushes the display buffer to the full answer.
	if got := m.Typewriter().Shown(); got != "abcdefghij" {
		t.Errorf("shown = %q", got)
	}
}
