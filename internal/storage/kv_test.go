// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every KV implementation.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKVWithDir(filepath.Join(t.TempDir(), "topics"))
	require.NoError(t, err)

	sqliteKV, err := NewSQLiteKV(filepath.Join(t.TempDir(), "ragchat.db"))
	require.NoError(t, err)

	return map[string]KV{
		"file":   fileKV,
		"sqlite": sqliteKV,
	}
}

func TestKV_SetGetRemove(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()

			_, err := kv.Get("missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, kv.Set("a", []byte("one")))
			got, err := kv.Get("a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			// Overwrite
			require.NoError(t, kv.Set("a", []byte("two")))
			got, err = kv.Get("a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, kv.Remove("a"))
			_, err = kv.Get("a")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			// Removing a missing key is not an error
			assert.NoError(t, kv.Remove("a"))
		})
	}
}

func TestFileKV_SetRecreatesRemovedBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "topics")
	kv, err := NewFileKVWithDir(dir)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, os.RemoveAll(dir))

	require.NoError(t, kv.Set("a", []byte("one")))
	got, err := kv.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)
}

func TestKV_KeysPrefix(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()

			require.NoError(t, kv.Set("alice_chatHistory_general_1", []byte("x")))
			require.NoError(t, kv.Set("alice_chatHistory_contract_2", []byte("x")))
			require.NoError(t, kv.Set("bob_chatHistory_general_3", []byte("x")))
			require.NoError(t, kv.Set("chunk-uid-9", []byte("reference text")))

			keys, err := kv.Keys("alice_chatHistory_")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"alice_chatHistory_general_1",
				"alice_chatHistory_contract_2",
			}, keys)

			all, err := kv.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestKV_KeysWithSpecialCharacters(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()

			key := "alice@example.com_chatHistory_general_ab/cd"
			require.NoError(t, kv.Set(key, []byte("v")))

			got, err := kv.Get(key)
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			keys, err := kv.Keys("alice@example.com_chatHistory_")
			require.NoError(t, err)
			assert.Equal(t, []string{key}, keys)
		})
	}
}

func TestKV_UsageGrowsAndShrinks(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()

			before, err := kv.Usage()
			require.NoError(t, err)

			require.NoError(t, kv.Set("big", make([]byte, 8192)))
			mid, err := kv.Usage()
			require.NoError(t, err)
			assert.Greater(t, mid, before)

			require.NoError(t, kv.Remove("big"))
			after, err := kv.Usage()
			require.NoError(t, err)
			assert.Less(t, after, mid)
		})
	}
}

func TestKV_EmptyStore(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer kv.Close()

			keys, err := kv.Keys("")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestFileKV_ClosedStore(t *testing.T) {
	kv, err := NewFileKVWithDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	assert.ErrorIs(t, kv.Set("k", []byte("v")), ErrStoreClosed)
	_, err = kv.Get("k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = kv.Keys("")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestSQLiteKV_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragchat.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("persisted", []byte("survives")))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get("persisted")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives"), got)
}
