// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import "sync"

// =============================================================================
// TYPEWRITER
// =============================================================================

// Typewriter reveals accumulated answer text a few characters per tick so
// the UI shows a strict prefix of what has actually arrived. The revealed
// prefix never shrinks within a turn and never runs ahead of the target.
//
// Thread-safety: stream goroutines append while the render loop ticks, so
// all operations are mutex-protected.
type Typewriter struct {
	mu     sync.Mutex
	target []rune
	shown  int
	batch  int
}

// NewTypewriter creates a typewriter revealing batch runes per tick.
func NewTypewriter(batch int) *Typewriter {
	if batch <= 0 {
		batch = 3
	}
	return &Typewriter{batch: batch}
}

// Append extends the target text with newly arrived content.
func (t *Typewriter) Append(text string) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = append(t.target, []rune(text)...)
}

// Tick reveals up to batch more runes and returns the revealed prefix plus
// whether undisclosed text remains.
func (t *Typewriter) Tick() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shown += t.batch
	if t.shown > len(t.target) {
		t.shown = len(t.target)
	}
	return string(t.target[:t.shown]), t.shown < len(t.target)
}

// Shown returns the currently revealed prefix without advancing.
func (t *Typewriter) Shown() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.target[:t.shown])
}

// Done reports whether everything accumulated so far has been revealed.
func (t *Typewriter) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown == len(t.target)
}

// Flush reveals everything at once and returns the full text. Used at
// finalization so the display matches the complete answer.
func (t *Typewriter) Flush() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shown = len(t.target)
	return string(t.target)
}

// Reset clears all state for a new turn.
func (t *Typewriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = t.target[:0]
	t.shown = 0
}
