// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The "chat" command.
//
// Opens the conversation with the configured agent, registering the
// visitor first when no session is stored. Runs the full-screen window
// when stdin and stdout are terminals, the plain REPL otherwise.
//
// Examples:
//   widgetsync chat
//   widgetsync chat --plain
//   echo "What changed in Q3?" | widgetsync chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/logging"
	"github.com/jeranaias/widgetsync/internal/storage"
	"github.com/jeranaias/widgetsync/internal/ui/chat"
	"github.com/jeranaias/widgetsync/internal/ui/styles"
	"github.com/jeranaias/widgetsync/internal/widget"
)

// HandleChat handles the "chat" command.
func HandleChat(args Args) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, cfgPath, err := loadConfig(args)
	if err != nil {
		return err
	}
	if args.Theme != "" {
		cfg.UI.Theme = args.Theme
	}
	if cfg.Agent.AgentID == "" || cfg.Agent.APIURL == "" {
		return fmt.Errorf("%w: set agent.agent_id and agent.api_url with 'widgetsync config set'", api.ErrNotConfigured)
	}

	fullScreen := useFullScreen(args, IsTTY(), IsStdoutTTY())

	logger, err := chatLogger(cfg, args, fullScreen)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore("chat", cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	theme := styles.NewTheme(cfg.UI.Theme)
	var renderer engine.Renderer
	var bridge *chat.Bridge
	if fullScreen {
		bridge = chat.NewBridge()
		renderer = bridge
	} else {
		style := ""
		if ColorsEnabled() {
			style = theme.GlamourStyle()
		}
		renderer = newPlainRenderer(os.Stdout, style, GetTerminalWidth())
	}

	w, err := widget.Init(ctx, widget.Options{
		Config:          cfg,
		Renderer:        renderer,
		Store:           store,
		Logger:          logger,
		AppendFootnotes: !fullScreen,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	in := NewChatCLI(historyPath())
	defer in.Close()

	if _, err := w.LoadAgent(ctx); err != nil && !args.Quiet {
		StderrPrint("Warning: could not load the agent profile: %v\n", err)
	}

	if !w.Registered() {
		if !args.Quiet {
			fmt.Println(RenderConditional(TitleStyle, w.Title()))
			fmt.Println(RenderConditional(DimStyle, "Introduce yourself to start chatting."))
		}
		lead, err := completeLead(in, w.LeadFromConfig())
		if err != nil {
			return NewCommandError("chat", "register", "registration cancelled", err)
		}
		if err := w.Register(ctx, lead); err != nil {
			return err
		}
	}

	if err := w.Open(ctx); err != nil {
		return err
	}
	if args.NewConversation {
		if err := w.NewConversation(ctx); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if err := w.WatchConfig(cfgPath); err != nil {
			logger.Warn("config watch failed", zap.Error(err))
		}
	}

	if fullScreen {
		// The window needs the terminal that line editing holds.
		in.Close()
		return runWindow(ctx, w, bridge, theme)
	}

	if !args.Quiet {
		fmt.Println(RenderConditional(TitleStyle, w.Title()))
		fmt.Println(RenderConditional(DimStyle, plainHelp))
	}
	return runPlain(ctx, w, in, os.Stdout, 0)
}

// runWindow runs the full-screen chat until the visitor quits.
func runWindow(ctx context.Context, w *widget.Widget, bridge *chat.Bridge, theme *styles.Theme) error {
	m := chat.New(chat.Options{
		Theme:           theme,
		Title:           w.Title(),
		Subtitle:        w.Config().Agent.APIURL,
		Send:            w.Send,
		NewConversation: w.NewConversation,
		SetHidden: func(hidden bool) {
			if hidden {
				w.Hide()
			} else {
				w.Show()
			}
		},
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	defer bridge.Close()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat window: %w", err)
	}
	return nil
}

// chatLogger writes to the log file, except in plain mode with --verbose
// where debug output goes to stderr.
func chatLogger(cfg *config.Config, args Args, fullScreen bool) (*zap.Logger, error) {
	opts := logging.Options{Level: cfg.Logging.Level}
	if args.Verbose {
		opts.Level = "debug"
	}
	if fullScreen || !args.Verbose {
		path, err := cfg.LogPath()
		if err != nil {
			return nil, err
		}
		opts.File = path
	}
	return logging.New(opts)
}

// openStore opens the session database, or returns nil when persistence
// is disabled.
func openStore(command string, cfg *config.Config, logger *zap.Logger) (*storage.DB, error) {
	if !cfg.Storage.PersistSession {
		return nil, nil
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Options{
		Path:       path,
		Passphrase: cfg.Storage.Secret,
	}, logger.Named("storage"))
	if err != nil {
		return nil, NewCommandError(command, "open", "could not open "+path, err)
	}
	return store, nil
}

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chat_history")
}
