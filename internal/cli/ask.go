// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler.
//
// Sends one question through the conversation manager and prints the
// answer: rendered markdown on a TTY, raw streamed text when piped.
//
// Examples:
//   ragchat ask "What is the notice period under clause 4.2?"
//   cat question.txt | ragchat ask
//   ragchat ask --module contract "Summarize the variations procedure"
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
)

// Ask runs one question/answer exchange and exits. When question is
// empty and stdin is a pipe, the question is read from stdin.
func Ask(manager *convo.Manager, cfg *config.Config, question string) error {
	question = strings.TrimSpace(question)

	if question == "" && !IsTTY() {
		reader := bufio.NewReader(os.Stdin)
		data, err := io.ReadAll(reader)
		if err == nil && len(data) > 0 {
			question = strings.TrimSpace(string(data))
		}
	}
	if question == "" {
		return errors.New("no question provided; usage: ragchat ask \"your question\"")
	}

	var answer strings.Builder
	var refs []model.Reference

	err := manager.Send(context.Background(), question, func(ev convo.TurnEvent) {
		switch ev.Kind {
		case convo.TurnUploadProgress:
			if ev.UploadPct < 0 {
				fmt.Fprintln(os.Stderr, errorStyle.Render("[upload] failed"))
			}
		case convo.TurnContent:
			answer.WriteString(ev.Text)
			if !IsStdoutTTY() {
				fmt.Print(ev.Text)
			}
		case convo.TurnDone, convo.TurnFailed:
			if ev.Message != nil {
				refs = ev.Message.References
			}
		}
	})
	if err != nil {
		return err
	}

	printAnswer(newMarkdownRenderer(cfg), answer.String(), refs)
	return nil
}
