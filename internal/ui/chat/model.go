// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/ui/styles"
)

// NoticeDuration is how long a notice stays on screen.
const NoticeDuration = 5 * time.Second

// SendTimeout bounds one send call started from the input line.
const SendTimeout = 30 * time.Second

// Options configures the chat window.
type Options struct {
	Theme    *styles.Theme
	Title    string
	Subtitle string
	// Send delivers a user message. Failures reach the user as engine
	// notices, so the window ignores the returned error.
	Send func(ctx context.Context, text string) error
	// NewConversation starts a fresh conversation. Optional.
	NewConversation func(ctx context.Context) error
	// SetHidden reports minimise and restore. Optional.
	SetHidden func(hidden bool)
	// Markdown is the glamour style name. Defaults to the theme's.
	Markdown string
}

// Model is the bubbletea model of the chat window.
type Model struct {
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	help  help.Model

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	md       *markdown

	entries []*model.Message
	index   map[string]int

	typing    bool
	notice    *engine.Notice
	noticeSeq int
	hidden    bool
	sending   int

	width  int
	height int
}

// New creates the chat window model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	if opts.Title == "" {
		opts.Title = "Chat"
	}
	style := opts.Markdown
	if style == "" {
		style = theme.GlamourStyle()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.Prompt
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Typing

	return Model{
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		md:       newMarkdown(style),
		index:    make(map[string]int),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Entries returns the shown messages in order.
func (m Model) Entries() []*model.Message {
	out := make([]*model.Message, len(m.entries))
	copy(out, m.entries)
	return out
}

// Notice returns the current banner, or nil.
func (m Model) Notice() *engine.Notice { return m.notice }

// Typing reports whether the typing indicator is on.
func (m Model) Typing() bool { return m.typing }

// Hidden reports whether the window is minimised.
func (m Model) Hidden() bool { return m.hidden }
