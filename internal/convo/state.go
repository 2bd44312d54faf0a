// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convo implements the conversation turn engine: one authoritative
// state machine per manager drives send, upload, streaming and finalization,
// and owns the active topic's message list.
package convo

import (
	"errors"
	"fmt"
	"sync"
)

// =============================================================================
// TURN STATES
// =============================================================================

// State is the phase of the active turn.
type State int

const (
	// StateIdle means no turn is in flight.
	StateIdle State = iota
	// StateSending means the user message has been accepted.
	StateSending
	// StateUploading means staged attachments are being transmitted.
	StateUploading
	// StateStreaming means the response stream is being consumed.
	StateStreaming
	// StateFinalizing means the turn is being committed to the topic.
	StateFinalizing
	// StateAborted means the user stopped the turn before completion.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateUploading:
		return "uploading"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// ErrBusy is returned when an operation requires an idle manager while a
// turn is in flight. Callers treat it as a no-op, not a failure.
var ErrBusy = errors.New("a turn is already in flight")

// StateError reports an illegal state transition.
type StateError struct {
	From State
	To   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// transitions is the set of legal state changes. Aborted is reachable only
// from the two phases that observe the abort signal.
var transitions = map[State][]State{
	StateIdle:       {StateSending},
	StateSending:    {StateUploading, StateStreaming},
	StateUploading:  {StateStreaming, StateFinalizing, StateAborted},
	StateStreaming:  {StateFinalizing, StateAborted},
	StateFinalizing: {StateIdle},
	StateAborted:    {StateIdle},
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// machine holds the current turn state behind a mutex. Update and stream
// goroutines both touch it.
type machine struct {
	mu    sync.Mutex
	state State
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) busy() bool {
	return m.current() != StateIdle
}

// to moves the machine to next, or returns a StateError.
func (m *machine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if next == allowed {
			m.state = next
			return nil
		}
	}
	return &StateError{From: m.state, To: next}
}

// reset returns to Idle unconditionally. Turn cleanup runs from any state.
func (m *machine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
}

// begin is the turn entry gate: it moves Idle to Sending, or reports ErrBusy.
func (m *machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return ErrBusy
	}
	m.state = StateSending
	return nil
}
