// ragchat TUI - a terminal client for the CEDD RAG chatbot backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ragchat-tui/internal/api"
	"github.com/jeranaias/ragchat-tui/internal/cli"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/convo"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/ui/chat"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const usageText = `ragchat - terminal client for the CEDD RAG chatbot

Usage:
  ragchat              start the full-screen TUI
  ragchat chat         start the plain readline-style REPL
  ragchat ask [Q]      ask one question and exit (reads stdin when piped)
  ragchat version      print version information
  ragchat help         show this help

Flags:
  -m, --module NAME    knowledge module: general, contract, consultancy, tender
  --backend URL        override the backend base URL
  --debug              verbose logging to the debug log file
`

// cliArgs holds the parsed command line.
type cliArgs struct {
	command string
	query   string
	module  string
	backend string
	debug   bool
}

// parseArgs splits os.Args into a command, its flags, and a trailing
// question for ask.
func parseArgs(argv []string) (cliArgs, error) {
	args := cliArgs{command: "tui"}
	var positional []string

	i := 0
	if len(argv) > 0 && !strings.HasPrefix(argv[0], "-") {
		switch argv[0] {
		case "chat", "ask", "version", "help":
			args.command = argv[0]
			i = 1
		case "tui":
			i = 1
		default:
			return args, fmt.Errorf("unknown command %q; run 'ragchat help'", argv[0])
		}
	}

	for ; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-m", "--module":
			i++
			if i >= len(argv) {
				return args, fmt.Errorf("%s requires a value", arg)
			}
			args.module = argv[i]
		case "--backend":
			i++
			if i >= len(argv) {
				return args, fmt.Errorf("--backend requires a value")
			}
			args.backend = argv[i]
		case "--debug":
			args.debug = true
		case "-h", "--help":
			args.command = "help"
		case "-v", "--version":
			args.command = "version"
		default:
			if strings.HasPrefix(arg, "-") {
				return args, fmt.Errorf("unknown flag %q", arg)
			}
			positional = append(positional, arg)
		}
	}

	args.query = strings.Join(positional, " ")
	return args, nil
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	switch args.command {
	case "help":
		fmt.Print(usageText)
		return
	case "version":
		fmt.Printf("ragchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if args.backend != "" {
		cfg.Backend.BaseURL = args.backend
	}
	if args.debug {
		cfg.Debug = true
	}
	if args.module != "" {
		m := model.Module(strings.ToLower(args.module))
		if !m.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown module %q\n", args.module)
			os.Exit(2)
		}
		cfg.User.DefaultModule = m.String()
	}
	config.SetGlobal(cfg)

	if logPath, err := cfg.DebugLogPath(); err == nil {
		if err := util.InitLog(logPath, cfg.Debug); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: debug log unavailable: %v\n", err)
		}
		defer util.CloseLog()
	}

	if err := run(args, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args cliArgs, cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:              cfg.Backend.BaseURL,
		Timeout:              time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		UploadTimeout:        time.Duration(cfg.Backend.UploadTimeoutSecs) * time.Second,
		MaxFileBytes:         int64(cfg.Backend.MaxFileMB) << 20,
		PartitionRefreshRate: rate.Every(time.Duration(cfg.Backend.PartitionRefreshSecs) * time.Second),
	})

	opts := convo.Options{
		User:            cfg.User.Email,
		Module:          model.ParseModule(cfg.User.DefaultModule),
		UsePrompt:       cfg.User.UsePrompt,
		TypewriterBatch: cfg.UI.TypewriterBatch,
	}

	switch args.command {
	case "ask":
		opts.ConfirmEvict = cli.ConfirmEvict
		manager := convo.NewManager(client, store, opts)
		return cli.Ask(manager, cfg, args.query)

	case "chat":
		opts.ConfirmEvict = cli.ConfirmEvict
		manager := convo.NewManager(client, store, opts)
		return cli.NewRepl(manager, cfg).Run()

	default:
		return runTUI(cfg, client, store, opts)
	}
}

// openStore builds the topic store over the configured persistence
// backend.
func openStore(cfg *config.Config) (*storage.TopicStore, error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve storage path: %w", err)
	}

	var kv storage.KV
	switch cfg.Storage.Backend {
	case "sqlite":
		kv, err = storage.NewSQLiteKV(path)
	default:
		kv, err = storage.NewFileKVWithDir(path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open chat storage: %w", err)
	}

	store := storage.NewTopicStore(kv, cfg.User.Email)
	if ceiling := cfg.CeilingBytes(); ceiling > 0 {
		store.CeilingBytes = ceiling
	}
	return store, nil
}

// runTUI starts the full-screen interface.
func runTUI(cfg *config.Config, client *api.Client, store *storage.TopicStore, opts convo.Options) error {
	if err := cli.RequiresTTY("the TUI"); err != nil {
		return err
	}

	// The gate bridges the store's synchronous eviction confirmation to
	// the TUI's asynchronous prompt: the UI arms it before retrying the
	// operation that needs space.
	gate := chat.NewEvictGate()
	opts.ConfirmEvict = gate.Confirm

	manager := convo.NewManager(client, store, opts)
	theme := styles.NewTheme()

	program := tea.NewProgram(
		chat.New(theme, manager, cfg, gate),
		tea.WithAltScreen(),
	)

	// Live config reload: edits to the config file reach the running UI.
	watcher, err := config.NewWatcher(func(next *config.Config) {
		program.Send(chat.ConfigReloadedMsg{Config: next})
	})
	if err != nil {
		util.Warnf("main: config watcher unavailable: %v", err)
	} else {
		if err := watcher.Watch(); err != nil {
			util.Warnf("main: config watcher failed to start: %v", err)
		}
		defer watcher.Close()
	}

	_, err = program.Run()
	return err
}
