// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/widgetsync/internal/model"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case RenderMsg:
		m.addEntry(msg.Message)
		m.refresh(true)
		return m, nil

	case UpdateMsg:
		if i, ok := m.index[msg.Message.LocalID]; ok {
			m.entries[i] = msg.Message
			m.refresh(false)
		}
		return m, nil

	case RemoveMsg:
		m.removeEntry(msg.LocalID)
		m.refresh(false)
		return m, nil

	case NoticeMsg:
		n := msg.Notice
		m.notice = &n
		m.noticeSeq++
		seq := m.noticeSeq
		m.layout()
		return m, tea.Tick(NoticeDuration, func(time.Time) tea.Msg { return dismissNoticeMsg{seq: seq} })

	case dismissNoticeMsg:
		// A newer notice restarts the clock.
		if msg.seq == m.noticeSeq {
			m.notice = nil
			m.layout()
		}
		return m, nil

	case TypingMsg:
		wasTyping := m.typing
		m.typing = msg.On
		m.layout()
		if msg.On && !wasTyping {
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.typing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sentMsg:
		if m.sending > 0 {
			m.sending--
		}
		return m, nil

	case visibilityMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Hide):
		m.hidden = !m.hidden
		hidden := m.hidden
		m.layout()
		if m.opts.SetHidden == nil {
			return nil, true
		}
		set := m.opts.SetHidden
		return func() tea.Msg {
			set(hidden)
			return visibilityMsg{hidden: hidden}
		}, true

	case m.hidden:
		// Minimised: every other key is ignored.
		return nil, true

	case key.Matches(msg, m.keys.Submit):
		return m.submit(), true

	case key.Matches(msg, m.keys.NewChat):
		if m.opts.NewConversation == nil {
			return nil, true
		}
		fn := m.opts.NewConversation
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
			defer cancel()
			return sentMsg{err: fn(ctx)}
		}, true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil, true
	}
	return nil, false
}

// submit clears the input and sends its text off the update loop.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.opts.Send == nil {
		return nil
	}
	m.input.Reset()
	m.sending++
	send := m.opts.Send
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
		defer cancel()
		return sentMsg{err: send(ctx, text)}
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Model) addEntry(msg *model.Message) {
	if i, ok := m.index[msg.LocalID]; ok {
		m.entries[i] = msg
		return
	}
	m.index[msg.LocalID] = len(m.entries)
	m.entries = append(m.entries, msg)
}

func (m *Model) removeEntry(localID string) {
	i, ok := m.index[localID]
	if !ok {
		return
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, localID)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].LocalID] = j
	}
	m.md.forget(localID)
}
