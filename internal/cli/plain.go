// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// plain.go - Line-oriented chat for terminals that cannot host the
// full-screen window, and for piped input.

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/util"
)

// =============================================================================
// RENDERER
// =============================================================================

// plainRenderer prints the conversation as it happens. Output is append
// only, so updates to printed entries are not shown again.
type plainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	md     *glamour.TermRenderer
	shown  map[string]struct{}
	typing bool
}

var _ engine.Renderer = (*plainRenderer)(nil)

// newPlainRenderer prints to out. An empty style prints markdown as is.
func newPlainRenderer(out io.Writer, style string, width int) *plainRenderer {
	r := &plainRenderer{out: out, shown: make(map[string]struct{})}
	if style != "" {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

func (r *plainRenderer) RenderMessage(m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown[m.LocalID] = struct{}{}
	// The visitor's own line is already on screen at the prompt.
	if m.Role == model.RoleUser && m.Temporary {
		return
	}
	r.typing = false

	label := RenderConditional(AssistantLabelStyle, m.Role.DisplayName()+":")
	if m.Role == model.RoleUser {
		label = RenderConditional(UserLabelStyle, m.Role.DisplayName()+":")
	}
	fmt.Fprintf(r.out, "\n%s\n%s\n", label, r.body(m))
}

func (r *plainRenderer) body(m *model.Message) string {
	text := m.Body()
	if r.md == nil || m.Role == model.RoleUser {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (r *plainRenderer) UpdateMessage(*model.Message) {}

func (r *plainRenderer) RemoveMessage(localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shown, localID)
}

func (r *plainRenderer) IsRendered(localID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.shown[localID]
	return ok
}

func (r *plainRenderer) ShowNotice(n engine.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag := RenderConditional(InfoStyle, "[INFO]")
	if n.Kind == engine.NoticeError {
		tag = RenderConditional(ErrorStyle, "[ERROR]")
	}
	fmt.Fprintf(r.out, "%s %s\n", tag, n.Text)
}

func (r *plainRenderer) SetTyping(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on && !r.typing {
		fmt.Fprintln(r.out, RenderConditional(DimStyle, "Assistant is typing..."))
	}
	r.typing = on
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line after printing a prompt. *liner.State and
// *ChatCLI implement it.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// ChatCLI provides line editing and input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
	closeOnce   sync.Once
}

// NewChatCLI takes over the terminal for line editing. History is loaded
// from historyFile when it is set.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	c := &ChatCLI{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return c
}

// Prompt reads a line and records it in the history.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history and gives the terminal back. Safe to call more
// than once.
func (c *ChatCLI) Close() {
	c.closeOnce.Do(func() {
		if c.historyFile != "" {
			var buf bytes.Buffer
			if _, err := c.line.WriteHistory(&buf); err == nil {
				_ = util.WriteFileAtomic(c.historyFile, buf.Bytes(), util.PrivateFilePerm)
			}
		}
		_ = c.line.Close()
	})
}

// completeLead prompts for the registration fields the configuration left
// empty. Phone is optional.
func completeLead(in lineReader, lead api.Lead) (api.Lead, error) {
	fields := []struct {
		label    string
		dst      *string
		required bool
	}{
		{"First name", &lead.FirstName, true},
		{"Last name", &lead.LastName, true},
		{"Email", &lead.Email, true},
		{"Phone (optional)", &lead.Phone, false},
	}
	for _, f := range fields {
		if strings.TrimSpace(*f.dst) != "" {
			continue
		}
		for {
			v, err := in.Prompt(f.label + ": ")
			if err != nil {
				return lead, err
			}
			v = strings.TrimSpace(v)
			if v != "" || !f.required {
				*f.dst = v
				break
			}
		}
	}
	return lead, nil
}

// =============================================================================
// REPL
// =============================================================================

// chatSession is the part of *widget.Widget the REPL drives.
type chatSession interface {
	Send(ctx context.Context, text string) error
	NewConversation(ctx context.Context) error
	Pending() int
}

const plainHelp = "Commands: /new starts a new conversation, /quit exits."

// settleInterval is how often the REPL checks for outstanding replies
// after input ends.
const settleInterval = 250 * time.Millisecond

// runPlain reads lines until /quit, ctrl+c or end of input. At end of
// input it waits up to wait for outstanding replies, so piped questions
// get their answers. A zero wait uses the response timeout of the global
// config as it stands then, so a live edit of the file applies.
func runPlain(ctx context.Context, s chatSession, in lineReader, out io.Writer, wait time.Duration) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.Prompt("> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			return nil
		case errors.Is(err, io.EOF):
			if wait <= 0 {
				wait = config.Global().Realtime.ResponseTimeout()
			}
			waitForReplies(ctx, s, wait)
			return nil
		case err != nil:
			return err
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "/quit", "/q", "/exit":
			return nil
		case "/help", "/h":
			fmt.Fprintln(out, RenderConditional(DimStyle, plainHelp))
			continue
		case "/new":
			if err := s.NewConversation(ctx); err != nil {
				DisplayError(out, err, false)
			}
			continue
		}

		// Delivery failures are shown as notices by the engine.
		if err := s.Send(ctx, text); errors.Is(err, context.Canceled) {
			return nil
		}
	}
}

func waitForReplies(ctx context.Context, s chatSession, wait time.Duration) {
	if s.Pending() == 0 {
		return
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(settleInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
			if s.Pending() == 0 {
				return
			}
		}
	}
}
