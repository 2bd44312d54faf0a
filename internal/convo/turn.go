// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package convo

import (
	"context"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/reason"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// ErrorFallbackMessage is the bot-visible text appended when a turn fails
// for any reason other than a user-initiated stop.
const ErrorFallbackMessage = "Sorry, there was an error processing your message."

// =============================================================================
// TURN EVENTS
// =============================================================================

// TurnEventKind identifies a turn progress notification.
type TurnEventKind int

const (
	// TurnUploadProgress reports attachment transmission progress (0-100,
	// or -1 after a failed/stopped upload).
	TurnUploadProgress TurnEventKind = iota
	// TurnReasoningProgress reports the reasoning percentage.
	TurnReasoningProgress
	// TurnContent reports newly arrived answer text.
	TurnContent
	// TurnReferences reports that citations arrived.
	TurnReferences
	// TurnDone reports natural completion; Message is the finalized reply.
	TurnDone
	// TurnAborted reports a user-initiated stop; no bot message is appended.
	TurnAborted
	// TurnFailed reports a non-abort failure; Message is the synthetic
	// error reply appended to the topic.
	TurnFailed
)

// TurnEvent is one progress notification from a turn in flight.
type TurnEvent struct {
	Kind      TurnEventKind
	UploadPct int
	Progress  int
	Text      string
	Message   *model.Message
}

// TurnCallback receives turn events. Invoked from the turn's goroutine.
type TurnCallback func(TurnEvent)

// =============================================================================
// SEND
// =============================================================================

// Send runs one complete turn: append the user message, upload staged
// attachments, stream the reply, finalize and persist. It blocks until the
// turn ends; progress is delivered through callback. A second Send while a
// turn is in flight returns ErrBusy and has no other effect.
func (m *Manager) Send(ctx context.Context, input string, callback TurnCallback) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if err := m.state.begin(); err != nil {
		return err
	}
	if callback == nil {
		callback = func(TurnEvent) {}
	}

	m.mu.Lock()
	topic := m.current
	files := m.staged
	m.staged = nil

	topic.DeriveTitle(input)
	userMsg := model.NewUserMessage(input)
	if len(files) > 0 {
		for _, f := range files {
			userMsg.Filenames = append(userMsg.Filenames, f.Name)
		}
		userMsg.UploadPercentage = model.UploadNone
	}
	topic.Append(userMsg)

	m.pending = model.NewAssistantMessage()
	m.typewriter.Reset()
	pending := m.pending

	history := topic.History()
	serialized := historyText(history)
	m.estimator = reason.NewEstimator(reason.BudgetFor(serialized, totalBytes(files)))
	est := m.estimator
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancelMgr.set(cancel)
	defer m.finishTurn()

	// Upload phase
	if len(files) > 0 {
		if err := m.state.to(StateUploading); err != nil {
			return err
		}
		err := m.backend.Upload(ctx, topic.ID, files, func(pct int) {
			userMsg.SetUploadPct(pct)
			callback(TurnEvent{Kind: TurnUploadProgress, UploadPct: pct})
		})
		if err != nil {
			return m.failTurn(err, topic, userMsg, callback)
		}
	}

	// Streaming phase
	if err := m.state.to(StateStreaming); err != nil {
		return err
	}
	req := &api.ChatRequest{
		Module:     topic.Module,
		SessionID:  topic.ID,
		History:    history,
		UsePrompt:  m.opts.UsePrompt,
		Partitions: m.enabledPartitions(),
		Filenames:  userMsg.Filenames,
	}

	err := m.backend.ChatStream(ctx, req, func(ev api.Event) {
		switch ev.Kind {
		case api.EventUploadDone:
			if len(userMsg.Filenames) > 0 {
				userMsg.SetUploadPct(model.UploadDone)
			}
			callback(TurnEvent{Kind: TurnUploadProgress, UploadPct: model.UploadDone})

		case api.EventReasoning:
			if ev.StartsReasoning {
				est.Start()
			}
			pending.AppendReasoning(ev.Text)
			est.Observe(pending.ReasoningLen())
			if ev.EndsReasoning {
				est.Close()
			}
			callback(TurnEvent{Kind: TurnReasoningProgress, Progress: est.Progress()})

		case api.EventContent:
			if ev.EndsReasoning {
				est.Close()
				callback(TurnEvent{Kind: TurnReasoningProgress, Progress: est.Progress()})
			}
			pending.AppendToken(ev.Text)
			m.typewriter.Append(ev.Text)
			callback(TurnEvent{Kind: TurnContent, Text: ev.Text})

		case api.EventReferences:
			pending.AddReferences(ev.References)
			callback(TurnEvent{Kind: TurnReferences})

		case api.EventEnd:
			if ev.EndsReasoning {
				est.Close()
				callback(TurnEvent{Kind: TurnReasoningProgress, Progress: est.Progress()})
			}
		}
	})
	if err != nil {
		return m.failTurn(err, topic, userMsg, callback)
	}

	// Finalizing phase
	if err := m.state.to(StateFinalizing); err != nil {
		return err
	}
	m.typewriter.Flush()
	pending.FinalizeStream()

	m.mu.Lock()
	topic.Append(pending)
	m.pending = nil
	m.mu.Unlock()

	if err := m.store.Save(topic); err != nil {
		util.Errorf("convo: failed to persist topic %s: %v", topic.ID, err)
	}
	callback(TurnEvent{Kind: TurnDone, Message: pending})
	return nil
}

// StopGeneration aborts the turn in flight, if any. The turn observes the
// cancellation and ends silently.
func (m *Manager) StopGeneration() {
	m.cancelMgr.cancel()
}

// =============================================================================
// TURN TERMINATION
// =============================================================================

// failTurn handles the abort and error exits from the upload and streaming
// phases. Aborts end the turn silently; other failures append a synthetic
// bot error message. Either way the user message stays in the topic.
func (m *Manager) failTurn(err error, topic *model.Topic, userMsg *model.Message, callback TurnCallback) error {
	aborted := api.IsCancelled(err)

	// An upload that never completed is marked failed, abort or not.
	uploadFailed := len(userMsg.Filenames) > 0 && userMsg.UploadPct() < model.UploadDone
	if uploadFailed {
		userMsg.SetUploadPct(model.UploadFailed)
	}
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	if uploadFailed {
		callback(TurnEvent{Kind: TurnUploadProgress, UploadPct: model.UploadFailed})
	}

	if aborted {
		if serr := m.state.to(StateAborted); serr != nil {
			util.Debugf("convo: %v", serr)
		}
		util.Debugf("convo: turn stopped by user (state %s)", m.state.current())
		callback(TurnEvent{Kind: TurnAborted})
		return nil
	}

	if serr := m.state.to(StateFinalizing); serr != nil {
		util.Debugf("convo: %v", serr)
	}
	util.Errorf("convo: turn failed: %v", err)

	errMsg := model.NewMessage(model.RoleAssistant, ErrorFallbackMessage)
	m.mu.Lock()
	topic.Append(errMsg)
	m.mu.Unlock()
	if serr := m.store.Save(topic); serr != nil {
		util.Errorf("convo: failed to persist topic %s: %v", topic.ID, serr)
	}
	callback(TurnEvent{Kind: TurnFailed, Message: errMsg})
	return err
}

// finishTurn is the always-finally cleanup: release the abort controller,
// reset per-turn scratch and return to Idle.
func (m *Manager) finishTurn() {
	m.cancelMgr.clear()

	m.mu.Lock()
	m.pending = nil
	m.estimator = reason.NewEstimator(1)
	m.mu.Unlock()

	m.state.reset()
}

// =============================================================================
// HELPERS
// =============================================================================

// historyText flattens the serialized history for budget estimation.
func historyText(entries []model.HistoryEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Content)
		sb.WriteByte(' ')
	}
	return sb.String()
}

func totalBytes(files []api.UploadFile) int64 {
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	return total
}
