// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat topics and messages.
package model

import (
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
	if msg.ID == "" {
		t.Error("ID should be generated")
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", msg.ID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestMessageIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewUserMessage("x")
		if seen[msg.ID] {
			t.Fatalf("Duplicate message ID: %s", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestMessageStreaming(t *testing.T) {
	msg := NewAssistantMessage()

	if !msg.IsStreaming {
		t.Fatal("New assistant message should be streaming")
	}

	msg.AppendToken("Hello")
	msg.AppendToken(", world")
	msg.AppendReasoning("thinking about it")

	if got := msg.GetDisplayContent(); got != "Hello, world" {
		t.Errorf("GetDisplayContent = %q, want %q", got, "Hello, world")
	}
	if got := msg.GetDisplayReasoning(); got != "thinking about it" {
		t.Errorf("GetDisplayReasoning = %q", got)
	}

	msg.FinalizeStream()

	if msg.IsStreaming {
		t.Error("Message should no longer be streaming")
	}
	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q after finalize", msg.Content)
	}
	if msg.Reasoning != "thinking about it" {
		t.Errorf("Reasoning = %q after finalize", msg.Reasoning)
	}

	// Appends after finalize are dropped
	msg.AppendToken(" extra")
	if msg.Content != "Hello, world" {
		t.Errorf("AppendToken after finalize changed content: %q", msg.Content)
	}
}

func TestMessageReasoningLen(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendReasoning("日本語テキスト") // 7 runes, 21 bytes

	if got := msg.ReasoningLen(); got != 7 {
		t.Errorf("ReasoningLen = %d, want 7 (runes, not bytes)", got)
	}
}

// Display reads happen on the render goroutine while the turn goroutine
// appends tokens; the two must be able to interleave safely.
func TestMessageConcurrentStreamReads(t *testing.T) {
	msg := NewAssistantMessage()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			msg.AppendToken("a")
			msg.AppendReasoning("r")
		}
	}()
	for i := 0; i < 500; i++ {
		_ = msg.GetDisplayContent()
		_ = msg.GetDisplayReasoning()
		_ = msg.UploadPct()
	}
	<-done

	msg.FinalizeStream()
	if len(msg.Content) != 500 {
		t.Errorf("content length = %d, want 500", len(msg.Content))
	}
	if len(msg.Reasoning) != 500 {
		t.Errorf("reasoning length = %d, want 500", len(msg.Reasoning))
	}
}

// =============================================================================
// REFERENCE TESTS
// =============================================================================

func TestDedupReferencesByTitle(t *testing.T) {
	refs := []Reference{
		{Title: "Spec A", Content: "uid-1"},
		{Title: "Spec B", Content: "uid-2"},
		{Title: "Spec A", Content: "uid-3"},
		{Title: "Spec C", Content: "uid-4"},
		{Title: "Spec B", Content: "uid-5"},
	}

	got := DedupReferencesByTitle(refs)

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// First occurrence wins, order preserved
	if got[0].Content != "uid-1" || got[1].Content != "uid-2" || got[2].Content != "uid-4" {
		t.Errorf("Dedup did not preserve first-seen order: %+v", got)
	}
}

func TestDedupReferencesByTitle_Short(t *testing.T) {
	if got := DedupReferencesByTitle(nil); got != nil {
		t.Errorf("nil input should pass through")
	}
	one := []Reference{{Title: "X"}}
	if got := DedupReferencesByTitle(one); len(got) != 1 {
		t.Errorf("single element should pass through")
	}
}

// =============================================================================
// TOPIC TESTS
// =============================================================================

func TestNewTopic(t *testing.T) {
	topic := NewTopic("alice@example.com", ModuleContract)

	if !strings.HasPrefix(topic.ID, "alice@example.com_chatHistory_contract_") {
		t.Errorf("ID = %q, want user_chatHistory_module_uuid format", topic.ID)
	}
	if topic.Title != WelcomeTitle {
		t.Errorf("Title = %q, want %q", topic.Title, WelcomeTitle)
	}
	if !topic.IsWelcome() {
		t.Error("Fresh topic should be a Welcome placeholder")
	}
	if len(topic.Messages) != 1 {
		t.Fatalf("Fresh topic should hold only the greeting, got %d messages", len(topic.Messages))
	}
	if topic.Messages[0].Content != ModuleContract.WelcomeMessage() {
		t.Errorf("Greeting = %q", topic.Messages[0].Content)
	}
	if topic.Persistable() {
		t.Error("Greeting-only topic must not be persistable")
	}
}

func TestTopicIDsUnique(t *testing.T) {
	a := NewTopic("u", ModuleGeneral)
	b := NewTopic("u", ModuleGeneral)
	if a.ID == b.ID {
		t.Error("Two topics for the same user/module must get distinct IDs")
	}
}

func TestTopicKeyPrefix(t *testing.T) {
	topic := NewTopic("bob", ModuleTender)
	if !strings.HasPrefix(topic.ID, TopicKeyPrefix("bob")) {
		t.Errorf("Topic ID %q not under prefix %q", topic.ID, TopicKeyPrefix("bob"))
	}
}

func TestDeriveTitle(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"short", "hello there", "hello there"},
		{"exactly 30", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"31 chars", strings.Repeat("a", 31), strings.Repeat("a", 30) + "..."},
		{"long", strings.Repeat("z", 200), strings.Repeat("z", 30) + "..."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			topic := NewTopic("u", ModuleGeneral)
			topic.DeriveTitle(tc.input)
			if topic.Title != tc.expected {
				t.Errorf("Title = %q, want %q", topic.Title, tc.expected)
			}
		})
	}
}

func TestDeriveTitle_OnlyOnce(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	topic.DeriveTitle("first question")
	topic.DeriveTitle("second question")

	if topic.Title != "first question" {
		t.Errorf("Title = %q, later messages must not retitle", topic.Title)
	}
}

func TestTopicPersistable(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	topic.Append(NewUserMessage("question"))
	if !topic.Persistable() {
		t.Error("Topic with a user message should be persistable")
	}
}

func TestTopicAppendBumpsLastMessage(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	before := topic.LastMessage
	topic.Append(NewUserMessage("q"))
	if topic.LastMessage.Before(before) {
		t.Error("Append must not move LastMessage backwards")
	}
}

func TestTopicSetFeedback(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	bot := NewMessage(RoleAssistant, "answer")
	topic.Append(bot)

	if !topic.SetFeedback(bot.ID, FeedbackUp) {
		t.Fatal("SetFeedback on existing assistant message failed")
	}
	if bot.Feedback != FeedbackUp {
		t.Errorf("Feedback = %q, want up", bot.Feedback)
	}

	user := NewUserMessage("q")
	topic.Append(user)
	if topic.SetFeedback(user.ID, FeedbackDown) {
		t.Error("SetFeedback must reject user messages")
	}
	if topic.SetFeedback("missing", FeedbackDown) {
		t.Error("SetFeedback must reject unknown IDs")
	}
}

func TestTopicReferenceKeys(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	a := NewMessage(RoleAssistant, "first")
	a.References = []Reference{
		{Title: "X", Content: "chunk-1"},
		{Title: "Y", Content: "chunk-2"},
	}
	b := NewMessage(RoleAssistant, "second")
	b.References = []Reference{
		{Title: "X again", Content: "chunk-1"}, // duplicate key
		{Title: "Z", Content: "chunk-3"},
		{Title: "Untracked", Content: ""}, // empty key skipped
	}
	topic.Append(a)
	topic.Append(b)

	keys := topic.ReferenceKeys()
	if len(keys) != 3 {
		t.Fatalf("ReferenceKeys = %v, want 3 distinct keys", keys)
	}
}

func TestTopicHistory(t *testing.T) {
	topic := NewTopic("u", ModuleGeneral)
	topic.Append(NewUserMessage("question"))
	streaming := NewAssistantMessage()
	streaming.AppendToken("partial")
	topic.Messages = append(topic.Messages, streaming)

	history := topic.History()

	// Greeting + user question; the in-flight message is excluded.
	if len(history) != 2 {
		t.Fatalf("History len = %d, want 2", len(history))
	}
	if history[0].Role != RoleAssistant || history[1].Role != RoleUser {
		t.Errorf("History order wrong: %+v", history)
	}
	if history[1].Content != "question" {
		t.Errorf("History content = %q", history[1].Content)
	}
}

// =============================================================================
// MODULE TESTS
// =============================================================================

func TestModuleTemperature(t *testing.T) {
	testCases := []struct {
		module   Module
		expected string
	}{
		{ModuleGeneral, "0.9"},
		{ModuleConsultancy, "0.9"},
		{ModuleTender, "0.9"},
		{ModuleContract, "0.1"},
		{Module("unknown"), "0.6"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.module), func(t *testing.T) {
			if got := tc.module.Temperature(); got != tc.expected {
				t.Errorf("Temperature() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestModuleWelcomeMessage(t *testing.T) {
	got := ModuleTender.WelcomeMessage()
	if got != "Hi, this is CEDD chatbot Tender module." {
		t.Errorf("WelcomeMessage = %q", got)
	}
}

func TestParseModule(t *testing.T) {
	if ParseModule("Contract") != ModuleContract {
		t.Error("ParseModule should be case-insensitive")
	}
	if ParseModule("bogus") != ModuleGeneral {
		t.Error("ParseModule should fall back to general")
	}
	if ParseModule("  tender ") != ModuleTender {
		t.Error("ParseModule should trim whitespace")
	}
}

// =============================================================================
// PARTITION TESTS
// =============================================================================

func TestSortPartitions_Ranked(t *testing.T) {
	parts := SortPartitions(ModuleContract, []Partition{
		{Name: "09_CEDD NEC Playbook.pdf"},
		{Name: "01_Pratice Notes for NEC4 ECC.pdf"},
		{Name: "02_NEC4 ECC.pdf"},
	})

	want := []string{
		"02_NEC4 ECC.pdf",
		"01_Pratice Notes for NEC4 ECC.pdf",
		"09_CEDD NEC Playbook.pdf",
	}
	for i, p := range parts {
		if p.Name != want[i] {
			t.Errorf("parts[%d] = %q, want %q", i, p.Name, want[i])
		}
		if !p.Enabled {
			t.Errorf("contract partition %q should default to enabled", p.Name)
		}
	}
}

func TestSortPartitions_UnrankedKeepFetchOrder(t *testing.T) {
	parts := SortPartitions(ModuleGeneral, []Partition{
		{Name: "zeta.pdf"},
		{Name: "alpha.pdf"},
		{Name: "mid.pdf"},
	})

	want := []string{"zeta.pdf", "alpha.pdf", "mid.pdf"}
	for i, p := range parts {
		if p.Name != want[i] {
			t.Errorf("parts[%d] = %q, want %q", i, p.Name, want[i])
		}
		if p.Enabled {
			t.Errorf("general partition %q should default to disabled", p.Name)
		}
	}
}

func TestSortPartitions_RankedBeforeUnranked(t *testing.T) {
	parts := SortPartitions(ModuleContract, []Partition{
		{Name: "aaa_extra.pdf"},
		{Name: "04_TC2_2023.pdf"},
	})
	if parts[0].Name != "04_TC2_2023.pdf" {
		t.Errorf("ranked partition should sort before unranked: %+v", parts)
	}
}

func TestSortPartitions_KeepsDocNames(t *testing.T) {
	parts := SortPartitions(ModuleGeneral, []Partition{
		{Name: "PAH", DocNames: []string{"PAH_Ch1.pdf", "PAH_Ch2.pdf"}},
	})
	if got := parts[0].DocNames; len(got) != 2 || got[0] != "PAH_Ch1.pdf" {
		t.Errorf("DocNames = %v", got)
	}
}

func TestEnabledDocNames(t *testing.T) {
	parts := []Partition{
		{Name: "a", DocNames: []string{"a1.pdf", "a2.pdf"}, Enabled: true},
		{Name: "b", DocNames: []string{"b1.pdf"}, Enabled: false},
		{Name: "c", DocNames: []string{"c1.pdf"}, Enabled: true},
	}
	got := EnabledDocNames(parts)
	want := []string{"a1.pdf", "a2.pdf", "c1.pdf"}
	if len(got) != len(want) {
		t.Fatalf("EnabledDocNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EnabledDocNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
