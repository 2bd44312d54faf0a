// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

const testUser = "alice@example.com"

func testStore(t *testing.T) *TopicStore {
	t.Helper()
	kv, err := NewFileKVWithDir(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewTopicStore(kv, testUser)
}

// activeTopic builds a topic that has moved past its greeting.
func activeTopic(t *testing.T, store *TopicStore, module model.Module, input string) *model.Topic {
	t.Helper()
	topic := model.NewTopic(testUser, module)
	topic.DeriveTitle(input)
	topic.Append(model.NewUserMessage(input))
	reply := model.NewMessage(model.RoleAssistant, "answer to "+input)
	topic.Append(reply)
	require.NoError(t, store.Save(topic))
	return topic
}

// =============================================================================
// SAVE / LOAD / LIST
// =============================================================================

func TestTopicStore_SaveAndLoad(t *testing.T) {
	store := testStore(t)
	topic := activeTopic(t, store, model.ModuleContract, "what is clause 5?")

	got, err := store.Load(topic.ID)
	require.NoError(t, err)
	assert.Equal(t, topic.ID, got.ID)
	assert.Equal(t, "what is clause 5?", got.Title)
	assert.Equal(t, model.ModuleContract, got.Module)
	assert.Len(t, got.Messages, 3)
}

func TestTopicStore_GreetingOnlyTopicNotPersisted(t *testing.T) {
	store := testStore(t)

	topic := model.NewTopic(testUser, model.ModuleGeneral)
	require.NoError(t, store.Save(topic))

	_, err := store.Load(topic.ID)
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestTopicStore_ListMostRecentFirst(t *testing.T) {
	store := testStore(t)

	old := activeTopic(t, store, model.ModuleGeneral, "first question")
	old.LastMessage = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(old))

	recent := activeTopic(t, store, model.ModuleGeneral, "second question")

	topics, err := store.List()
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, recent.ID, topics[0].ID)
	assert.Equal(t, old.ID, topics[1].ID)
}

func TestTopicStore_ListIgnoresOtherUsers(t *testing.T) {
	store := testStore(t)
	activeTopic(t, store, model.ModuleGeneral, "mine")

	other := model.NewTopic("bob@example.com", model.ModuleGeneral)
	require.NoError(t, store.kv.Set(other.ID, []byte(`{"id":"`+other.ID+`"}`)))

	topics, err := store.List()
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "mine", topics[0].Title)
}

func TestTopicStore_LoadMissing(t *testing.T) {
	store := testStore(t)
	_, err := store.Load("nope")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

// =============================================================================
// DELETE AND REFERENCE CASCADE
// =============================================================================

func TestTopicStore_DeleteCascadesReferences(t *testing.T) {
	store := testStore(t)

	topic := model.NewTopic(testUser, model.ModuleTender)
	topic.DeriveTitle("tender deadline?")
	topic.Append(model.NewUserMessage("tender deadline?"))
	reply := model.NewMessage(model.RoleAssistant, "see section 2")
	reply.References = []model.Reference{
		{Title: "tender.pdf", Content: "chunk-1", CollectionName: "tender"},
		{Title: "annex.pdf", Content: "chunk-2", CollectionName: "tender"},
	}
	topic.Append(reply)
	require.NoError(t, store.Save(topic))
	require.NoError(t, store.SetReference("chunk-1", "chunk one text"))
	require.NoError(t, store.SetReference("chunk-2", "chunk two text"))

	assert.Equal(t, "chunk one text", store.Reference("chunk-1"))

	require.NoError(t, store.Delete(topic.ID))

	_, err := store.Load(topic.ID)
	assert.ErrorIs(t, err, ErrTopicNotFound)
	assert.Empty(t, store.Reference("chunk-1"))
	assert.Empty(t, store.Reference("chunk-2"))
}

func TestTopicStore_ReferenceCacheRoundTrip(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.SetReference("", "ignored"))
	assert.Empty(t, store.Reference(""))

	require.NoError(t, store.SetReference("chunk-x", "retrieved text"))
	assert.Equal(t, "retrieved text", store.Reference("chunk-x"))
	assert.Empty(t, store.Reference("chunk-y"))
}

// =============================================================================
// EVICTION
// =============================================================================

// bulkyTopic persists a topic padded to roughly size bytes.
func bulkyTopic(t *testing.T, store *TopicStore, title string, age time.Duration, size int) *model.Topic {
	t.Helper()
	topic := model.NewTopic(testUser, model.ModuleGeneral)
	topic.DeriveTitle(title)
	topic.Append(model.NewUserMessage(title))
	padding := make([]byte, size)
	for i := range padding {
		padding[i] = 'x'
	}
	topic.Append(model.NewMessage(model.RoleAssistant, string(padding)))
	topic.LastMessage = time.Now().Add(-age)
	require.NoError(t, store.Save(topic))
	return topic
}

func TestTopicStore_MaintainUnderCeilingDoesNothing(t *testing.T) {
	store := testStore(t)
	bulkyTopic(t, store, "small topic", time.Hour, 100)

	called := false
	evicted, err := store.Maintain(func(int64) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.False(t, called, "confirm must not fire under the ceiling")
}

func TestTopicStore_MaintainDeclinedLeavesStore(t *testing.T) {
	store := testStore(t)
	store.CeilingBytes = 1024
	bulkyTopic(t, store, "big topic", time.Hour, 4096)

	evicted, err := store.Maintain(func(usage int64) bool {
		assert.Greater(t, usage, int64(1024))
		return false
	})
	require.NoError(t, err)
	assert.Empty(t, evicted)

	topics, err := store.List()
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestTopicStore_MaintainEvictsOldestFirst(t *testing.T) {
	store := testStore(t)
	store.CeilingBytes = 8 * 1024

	oldest := bulkyTopic(t, store, "oldest topic", 3*time.Hour, 4096)
	middle := bulkyTopic(t, store, "middle topic", 2*time.Hour, 4096)
	newest := bulkyTopic(t, store, "newest topic", 1*time.Hour, 700)

	evicted, err := store.Maintain(func(int64) bool { return true })
	require.NoError(t, err)
	require.NotEmpty(t, evicted)
	assert.Equal(t, oldest.ID, evicted[0])

	// Newer topics survive; usage is back at or under the target.
	_, err = store.Load(middle.ID)
	assert.NoError(t, err)
	_, err = store.Load(newest.ID)
	assert.NoError(t, err)
	usage, err := store.Usage()
	require.NoError(t, err)
	assert.LessOrEqual(t, usage, store.CeilingBytes*80/100)
}

func TestTopicStore_MaintainSkipsWelcomeTopics(t *testing.T) {
	store := testStore(t)
	store.CeilingBytes = 512

	// A Welcome-titled topic that somehow grew large enough to persist.
	welcome := model.NewTopic(testUser, model.ModuleGeneral)
	welcome.Append(model.NewMessage(model.RoleAssistant, string(make([]byte, 2048))))
	welcome.LastMessage = time.Now().Add(-10 * time.Hour)
	require.NoError(t, store.Save(welcome))

	victim := bulkyTopic(t, store, "evictable topic", time.Hour, 2048)

	evicted, err := store.Maintain(func(int64) bool { return true })
	require.NoError(t, err)

	assert.NotContains(t, evicted, welcome.ID)
	assert.Contains(t, evicted, victim.ID)
	_, err = store.Load(welcome.ID)
	assert.NoError(t, err)
}

func TestTopicStore_MaintainTerminatesWhenNothingEvictable(t *testing.T) {
	store := testStore(t)
	store.CeilingBytes = 256

	welcome := model.NewTopic(testUser, model.ModuleGeneral)
	welcome.Append(model.NewMessage(model.RoleAssistant, string(make([]byte, 4096))))
	require.NoError(t, store.Save(welcome))

	evicted, err := store.Maintain(func(int64) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, evicted)
}
