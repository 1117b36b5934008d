// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/util"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.hidden {
		return m.renderMinimised()
	}

	parts := []string{m.renderHeader(), m.viewport.View()}
	if m.notice != nil {
		parts = append(parts, m.renderNotice())
	}
	if m.typing {
		parts = append(parts, m.renderTyping())
	}
	parts = append(parts, m.theme.Input.Width(m.width).Render(m.input.View()), m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// layout sizes the viewport to what the fixed rows leave over.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	fixed := 1 + 2 + 1 // header, input with its border, help
	if m.notice != nil {
		fixed += lipgloss.Height(m.renderNotice())
	}
	if m.typing {
		fixed++
	}
	h := m.height - fixed
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - 4
	m.md.setWidth(m.width - 8)
	m.refresh(false)
}

// refresh re-renders the transcript. follow scrolls to the end when the
// reader was already there.
func (m *Model) refresh(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderHeader() string {
	title := m.opts.Title
	if m.opts.Subtitle != "" {
		title += "  " + m.theme.Subtitle.Render(m.opts.Subtitle)
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m Model) renderMinimised() string {
	line := m.theme.Header.Render(m.opts.Title) + " " +
		m.theme.StatusBar.Render("minimised, press ctrl+h to open")
	if m.notice != nil {
		line += "\n" + m.renderNotice()
	}
	return line
}

func (m Model) renderNotice() string {
	style := m.theme.NoticeInfo
	if m.notice.Kind == engine.NoticeError {
		style = m.theme.NoticeError
	}
	return style.Width(m.width).Render(m.notice.Text)
}

func (m Model) renderTyping() string {
	return m.spinner.View() + " " + m.theme.Typing.Render("Assistant is typing...")
}

func (m Model) renderHelp() string {
	return m.theme.StatusBar.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return m.theme.Pending.Render("No messages yet.")
	}
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderEntry(e *model.Message) string {
	width := m.width - 6
	if width < 20 {
		width = 20
	}
	if e.Role == model.RoleUser {
		label := m.theme.UserLabel.Render(e.Role.DisplayName())
		if e.Temporary {
			label += " " + m.theme.Pending.Render("(sending)")
		}
		return label + "\n" + m.theme.UserBubble.Width(width).Render(e.Body())
	}

	label := m.theme.AssistantLabel.Render(e.Role.DisplayName())
	body := m.md.render(e.LocalID, e.Body())
	out := label + "\n" + m.theme.AssistantBubble.Width(width).Render(body)
	if refs := m.renderReferences(e.References, width); refs != "" {
		out += "\n" + refs
	}
	return out
}

func (m Model) renderReferences(refs []model.Reference, width int) string {
	if len(refs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(refs))
	for _, r := range refs {
		name := r.DisplayName
		if r.IsFileAsset {
			name = fmt.Sprintf("%s [%s]", name, r.FileKind.Label())
		}
		line := "  " + m.theme.ReferenceIndex.Render(r.Superscript) + " " +
			m.theme.ReferenceName.Render(util.Preview(name, width/2))
		if r.URL != "" {
			line += "  " + m.theme.ReferenceURL.Render(util.Preview(r.URL, width/2))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
