// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive plain-terminal chat loop.
//
// Provides a readline-style alternative to the full-screen TUI, sharing
// the same conversation manager. Useful over slow links and inside
// terminal multiplexers where an alternate screen is unwelcome.
//
// Ctrl-C during generation stops the in-flight answer; Ctrl-C at the
// prompt exits the session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// deleteTimeout bounds the backend session-delete call.
	deleteTimeout = 10 * time.Second
	// partitionTimeout bounds the partition metadata refresh.
	partitionTimeout = 10 * time.Second
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader wraps liner with persistent history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader() *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	r := &lineReader{
		line:        line,
		historyFile: filepath.Join(configDir, "repl_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// close saves history and restores the terminal.
func (r *lineReader) close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// Repl is an interactive plain-terminal session over a shared manager.
type Repl struct {
	manager  *convo.Manager
	cfg      *config.Config
	reader   *lineReader
	renderer *glamour.TermRenderer
	staged   []api.UploadFile
}

// NewRepl builds a REPL around an existing conversation manager.
func NewRepl(manager *convo.Manager, cfg *config.Config) *Repl {
	return &Repl{
		manager:  manager,
		cfg:      cfg,
		renderer: newMarkdownRenderer(cfg),
	}
}

// newMarkdownRenderer builds a glamour renderer sized to the terminal,
// or nil when rendering is unavailable (plain text is used instead).
func newMarkdownRenderer(cfg *config.Config) *glamour.TermRenderer {
	style := "dark"
	if cfg != nil && cfg.UI.Theme == "light" {
		style = "light"
	}
	width := GetTerminalWidth()
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		util.Warnf("repl: markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

// ConfirmEvict asks on stdin whether old chats may be deleted to make
// room. Suitable as the manager's eviction confirmer in plain-terminal
// modes.
func ConfirmEvict(usage int64) bool {
	if !IsTTY() {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s local storage holds %s; delete oldest chats? [y/N] ",
		warningStyle.Render("[storage]"),
		util.FormatBytes(usage))
	var answer string
	fmt.Scanln(&answer)
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// Run executes the REPL until exit. Requires an interactive terminal.
func (r *Repl) Run() error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	r.reader = newLineReader()
	defer r.reader.close()

	r.printWelcome()

	// Ctrl-C during generation stops the answer; at the prompt liner
	// raises ErrPromptAborted, which exits below.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if r.manager.Busy() {
				r.manager.StopGeneration()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[stopped]"))
			}
		}
	}()

	for {
		input, err := r.reader.read(promptStyle.Render("ragchat> "))
		if err != nil {
			// Ctrl-C or Ctrl-D at the prompt ends the session.
			fmt.Println()
			if errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.handleCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := r.sendTurn(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
		}
	}
}

func (r *Repl) printWelcome() {
	fmt.Println(welcomeStyle.Render("ragchat") + infoStyle.Render(" - "+r.manager.Module().DisplayName()+" module"))
	fmt.Println(infoStyle.Render("Type a question, or /help for commands. Ctrl-C stops a running answer."))
	fmt.Println()
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

// sendTurn runs one question/answer exchange, streaming progress to
// stderr and the finished answer to stdout.
func (r *Repl) sendTurn(input string) error {
	if len(r.staged) > 0 {
		r.manager.StageAttachments(r.staged)
		r.staged = nil
	}

	var answer strings.Builder
	var refs []model.Reference
	progressShown := false

	err := r.manager.Send(context.Background(), input, func(ev convo.TurnEvent) {
		switch ev.Kind {
		case convo.TurnUploadProgress:
			if ev.UploadPct < 0 {
				fmt.Fprintf(os.Stderr, "\r%s upload failed            \n", errorStyle.Render("[upload]"))
			} else {
				fmt.Fprintf(os.Stderr, "\r%s %d%%   ", infoStyle.Render("[upload]"), ev.UploadPct)
				if ev.UploadPct >= model.UploadDone {
					fmt.Fprintln(os.Stderr)
				}
			}
		case convo.TurnReasoningProgress:
			fmt.Fprintf(os.Stderr, "\r%s %d%%   ", infoStyle.Render("[thinking]"), ev.Progress)
			progressShown = true
		case convo.TurnContent:
			if progressShown {
				fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 20))
				progressShown = false
			}
			answer.WriteString(ev.Text)
			// Stream raw deltas when piped; on a TTY the finished
			// answer is rendered once below.
			if !IsStdoutTTY() {
				fmt.Print(ev.Text)
			}
		case convo.TurnDone, convo.TurnAborted, convo.TurnFailed:
			if progressShown {
				fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 20))
			}
			if ev.Message != nil {
				refs = ev.Message.References
			}
		}
	})
	if err != nil {
		if errors.Is(err, convo.ErrBusy) {
			return fmt.Errorf("still answering; press Ctrl-C to stop first")
		}
		return err
	}

	printAnswer(r.renderer, answer.String(), refs)
	return nil
}

// printAnswer renders a finished answer (markdown on a TTY, the raw
// text was already streamed otherwise) plus deduplicated references.
func printAnswer(renderer *glamour.TermRenderer, text string, refs []model.Reference) {
	if IsStdoutTTY() {
		if renderer != nil {
			if rendered, err := renderer.Render(text); err == nil {
				fmt.Print(rendered)
			} else {
				fmt.Println(text)
			}
		} else {
			fmt.Println(text)
		}
	} else {
		fmt.Println()
	}

	deduped := model.DedupReferencesByTitle(refs)
	if len(deduped) > 0 {
		fmt.Println(infoStyle.Render("References:"))
		for i, ref := range deduped {
			line := "  [" + util.IntToString(i+1) + "] " + ref.Title
			if ref.CollectionName != "" {
				line += " (" + ref.CollectionName + ")"
			}
			fmt.Println(infoStyle.Render(line))
		}
	}
	fmt.Println()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand dispatches a /command. Returns false when the session
// should end.
func (r *Repl) handleCommand(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/exit", "/quit":
		return false, nil

	case "/help":
		r.printHelp()
		return true, nil

	case "/new":
		module := r.manager.Module()
		if len(args) > 0 {
			module = model.Module(strings.ToLower(args[0]))
			if !module.IsValid() {
				return true, fmt.Errorf("unknown module %q", args[0])
			}
		}
		if err := r.manager.NewChat(module); err != nil {
			return true, err
		}
		fmt.Println(infoStyle.Render("Started a new " + module.DisplayName() + " chat."))
		return true, nil

	case "/module":
		if len(args) == 0 {
			fmt.Println(infoStyle.Render("Current module: " + r.manager.Module().DisplayName()))
			for _, m := range model.Modules {
				fmt.Println(infoStyle.Render("  " + m.String()))
			}
			return true, nil
		}
		module := model.Module(strings.ToLower(args[0]))
		if !module.IsValid() {
			return true, fmt.Errorf("unknown module %q", args[0])
		}
		if err := r.manager.NewChat(module); err != nil {
			return true, err
		}
		fmt.Println(infoStyle.Render("Switched to " + module.DisplayName() + "."))
		return true, nil

	case "/topics":
		return true, r.listTopics()

	case "/select":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /select <number>")
		}
		return true, r.selectTopic(args[0])

	case "/delete":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /delete <number>")
		}
		return true, r.deleteTopic(args[0])

	case "/attach":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /attach <path>")
		}
		return true, r.attachFile(strings.Join(args, " "))

	case "/partitions":
		return true, r.listPartitions()

	case "/toggle":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /toggle <partition>")
		}
		name := strings.Join(args, " ")
		enabled, ok := r.manager.TogglePartition(name)
		if !ok {
			return true, fmt.Errorf("unknown partition %q; see /partitions", name)
		}
		if enabled {
			fmt.Println(infoStyle.Render("Enabled partition " + name + "."))
		} else {
			fmt.Println(infoStyle.Render("Disabled partition " + name + "."))
		}
		return true, nil

	case "/feedback":
		if len(args) == 0 || (args[0] != "up" && args[0] != "down") {
			return true, fmt.Errorf("usage: /feedback up|down")
		}
		fb := model.FeedbackUp
		if args[0] == "down" {
			fb = model.FeedbackDown
		}
		return true, r.rateLastReply(fb)

	default:
		return true, fmt.Errorf("unknown command %s; try /help", cmd)
	}
}

func (r *Repl) printHelp() {
	rows := [][2]string{
		{"/new [module]", "start a fresh chat, optionally switching module"},
		{"/module [name]", "show or switch the active module"},
		{"/topics", "list saved chats"},
		{"/select N", "resume chat number N from /topics"},
		{"/delete N", "delete chat number N from /topics"},
		{"/attach PATH", "stage a document for the next question"},
		{"/partitions", "list document partitions for this module"},
		{"/toggle NAME", "enable or disable a partition"},
		{"/feedback up|down", "rate the last answer"},
		{"/exit", "leave the session"},
	}
	for _, row := range rows {
		fmt.Printf("  %s %s\n",
			commandStyle.Render(util.PadRight(row[0], 18)),
			infoStyle.Render(row[1]))
	}
}

func (r *Repl) listTopics() error {
	topics, err := r.manager.Topics()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		fmt.Println(infoStyle.Render("No saved chats."))
		return nil
	}
	current := r.manager.Current()
	for i, t := range topics {
		marker := "  "
		if current != nil && t.ID == current.ID {
			marker = "* "
		}
		title := t.Title
		if title == "" {
			title = "New chat"
		}
		fmt.Printf("%s%s %s %s\n",
			marker,
			commandStyle.Render(util.PadRight(util.IntToString(i+1), 3)),
			util.PadRight(title, 34),
			infoStyle.Render(t.Module.DisplayName()))
	}
	return nil
}

// topicByIndex resolves a 1-based /topics listing number.
func (r *Repl) topicByIndex(arg string) (*model.Topic, error) {
	topics, err := r.manager.Topics()
	if err != nil {
		return nil, err
	}
	n := 0
	for _, c := range arg {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("not a chat number: %s", arg)
		}
		n = n*10 + int(c-'0')
	}
	if n < 1 || n > len(topics) {
		return nil, fmt.Errorf("no chat %d; run /topics", n)
	}
	return topics[n-1], nil
}

func (r *Repl) selectTopic(arg string) error {
	topic, err := r.topicByIndex(arg)
	if err != nil {
		return err
	}
	if err := r.manager.SelectTopic(topic.ID); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("Resumed: " + topic.Title))
	r.replayTopic()
	return nil
}

// replayTopic prints the restored conversation so the user has context.
func (r *Repl) replayTopic() {
	topic := r.manager.Current()
	if topic == nil {
		return
	}
	for _, msg := range topic.Messages {
		switch msg.Role {
		case model.RoleUser:
			fmt.Println(promptStyle.Render("you> ") + msg.Content)
		case model.RoleAssistant:
			printAnswer(r.renderer, msg.Content, msg.References)
		}
	}
}

func (r *Repl) deleteTopic(arg string) error {
	topic, err := r.topicByIndex(arg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := r.manager.DeleteTopic(ctx, topic.ID); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("Deleted: " + topic.Title))
	return nil
}

func (r *Repl) attachFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	limit := int64(r.cfg.Backend.MaxFileMB) << 20
	if limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%s is %s; the limit is %s",
			path, util.FormatBytes(int64(len(data))), util.FormatBytes(limit))
	}
	r.staged = append(r.staged, api.UploadFile{
		Name: filepath.Base(path),
		Data: data,
	})
	fmt.Println(infoStyle.Render("Staged " + filepath.Base(path) + " for the next question."))
	return nil
}

func (r *Repl) listPartitions() error {
	ctx, cancel := context.WithTimeout(context.Background(), partitionTimeout)
	defer cancel()
	if err := r.manager.RefreshPartitions(ctx); err != nil {
		util.Warnf("repl: partition refresh: %v", err)
	}
	parts := r.manager.Partitions()
	if len(parts) == 0 {
		fmt.Println(infoStyle.Render("No partitions for this module."))
		return nil
	}
	for _, p := range parts {
		box := "[ ]"
		if p.Enabled {
			box = "[x]"
		}
		fmt.Printf("  %s %s\n", commandStyle.Render(box), p.Name)
	}
	return nil
}

func (r *Repl) rateLastReply(fb model.Feedback) error {
	topic := r.manager.Current()
	if topic == nil {
		return fmt.Errorf("nothing to rate yet")
	}
	for i := len(topic.Messages) - 1; i >= 0; i-- {
		if topic.Messages[i].Role == model.RoleAssistant {
			if err := r.manager.SetFeedback(topic.Messages[i].ID, fb); err != nil {
				return err
			}
			fmt.Println(infoStyle.Render("Feedback recorded."))
			return nil
		}
	}
	return fmt.Errorf("nothing to rate yet")
}
