// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// TOPIC STORE
// =============================================================================

const (
	// DefaultCeilingBytes is the store size above which eviction is offered.
	DefaultCeilingBytes = 200 << 20 // 200MB

	// evictTargetPercent is the fill level eviction shrinks the store to.
	evictTargetPercent = 80
)

// ErrTopicNotFound is returned when a topic ID has no stored entry.
var ErrTopicNotFound = errors.New("topic not found")

// TopicStore persists chat topics and their cached reference content on a
// shared KV backend. Topic entries live under the user's key prefix;
// reference content lives under its chunk key.
type TopicStore struct {
	kv   KV
	user string

	// CeilingBytes is the eviction threshold (default: 200MB).
	CeilingBytes int64
}

// NewTopicStore wraps kv for the given user's topics.
func NewTopicStore(kv KV, user string) *TopicStore {
	return &TopicStore{
		kv:           kv,
		user:         user,
		CeilingBytes: DefaultCeilingBytes,
	}
}

// =============================================================================
// TOPIC OPERATIONS
// =============================================================================

// Save persists the topic. Topics holding only the greeting are skipped so
// abandoned Welcome placeholders never reach the store.
func (s *TopicStore) Save(t *model.Topic) error {
	if !t.Persistable() {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.kv.Set(t.ID, data)
}

// Load retrieves a topic by ID.
func (s *TopicStore) Load(id string) (*model.Topic, error) {
	data, err := s.kv.Get(id)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	var t model.Topic
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the user's stored topics, most recently active first.
// Corrupted entries are skipped.
func (s *TopicStore) List() ([]*model.Topic, error) {
	keys, err := s.kv.Keys(model.TopicKeyPrefix(s.user))
	if err != nil {
		return nil, err
	}

	topics := make([]*model.Topic, 0, len(keys))
	for _, key := range keys {
		t, err := s.Load(key)
		if err != nil {
			util.Warnf("storage: skipping unreadable topic %s: %v", key, err)
			continue
		}
		topics = append(topics, t)
	}

	sort.Slice(topics, func(i, j int) bool {
		return topics[i].LastMessage.After(topics[j].LastMessage)
	})
	return topics, nil
}

// Delete removes a topic and cascades over the reference content its
// messages cached.
func (s *TopicStore) Delete(id string) error {
	t, err := s.Load(id)
	if err != nil {
		return err
	}
	for _, key := range t.ReferenceKeys() {
		if err := s.kv.Remove(key); err != nil {
			return err
		}
	}
	return s.kv.Remove(id)
}

// =============================================================================
// REFERENCE CONTENT CACHE
// =============================================================================

// SetReference caches retrieved chunk text under its chunk key.
func (s *TopicStore) SetReference(key, text string) error {
	if key == "" {
		return nil
	}
	return s.kv.Set(key, []byte(text))
}

// Reference returns cached chunk text, or "" when absent.
func (s *TopicStore) Reference(key string) string {
	data, err := s.kv.Get(key)
	if err != nil {
		return ""
	}
	return string(data)
}

// =============================================================================
// EVICTION
// =============================================================================

// Usage reports the backend's stored footprint in bytes.
func (s *TopicStore) Usage() (int64, error) {
	return s.kv.Usage()
}

// Maintain checks the store against the ceiling and, with the user's
// consent, evicts least recently active topics until usage drops to the
// target level. Welcome placeholders are never evicted. The confirm
// callback receives the current usage; returning false leaves the store
// untouched. Returns the IDs of evicted topics.
func (s *TopicStore) Maintain(confirm func(usage int64) bool) ([]string, error) {
	ceiling := s.CeilingBytes
	if ceiling <= 0 {
		ceiling = DefaultCeilingBytes
	}

	usage, err := s.kv.Usage()
	if err != nil {
		return nil, err
	}
	if usage <= ceiling {
		return nil, nil
	}
	if confirm != nil && !confirm(usage) {
		return nil, nil
	}

	topics, err := s.List()
	if err != nil {
		return nil, err
	}

	// Oldest activity first; the candidate list is finite so the loop
	// terminates even if usage never reaches the target.
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].LastMessage.Before(topics[j].LastMessage)
	})

	target := ceiling * evictTargetPercent / 100
	var evicted []string
	for _, t := range topics {
		if usage <= target {
			break
		}
		if t.IsWelcome() {
			continue
		}
		if err := s.Delete(t.ID); err != nil {
			return evicted, err
		}
		evicted = append(evicted, t.ID)
		if usage, err = s.kv.Usage(); err != nil {
			return evicted, err
		}
	}

	if len(evicted) > 0 {
		util.Debugf("storage: evicted %d topics, usage now %s",
			len(evicted), util.FormatBytes(usage))
	}
	return evicted, nil
}
