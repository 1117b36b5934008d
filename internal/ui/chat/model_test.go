// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/ui/styles"
)

func newTestModel(t *testing.T, opts Options) Model {
	t.Helper()
	opts.Theme = styles.NewTheme("dark")
	m := New(opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_RenderUpdateRemoveKeepOrder(t *testing.T) {
	m := newTestModel(t, Options{Title: "Support"})

	a := model.NewConfirmedMessage("1", model.RoleAssistant, "Hello", time.Time{})
	u := model.NewUserMessage("question")
	b := model.NewConfirmedMessage("2", model.RoleAssistant, "Answer", time.Time{})
	for _, msg := range []*model.Message{a, u, b} {
		m, _ = step(t, m, RenderMsg{Message: msg})
	}
	require.Len(t, m.Entries(), 3)

	confirmed := u.Clone()
	confirmed.ID = "9"
	confirmed.Temporary = false
	m, _ = step(t, m, UpdateMsg{Message: confirmed})
	assert.Equal(t, "9", m.Entries()[1].ID)
	assert.Equal(t, u.LocalID, m.Entries()[1].LocalID)

	m, _ = step(t, m, RemoveMsg{LocalID: a.LocalID})
	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, u.LocalID, entries[0].LocalID)
	assert.Equal(t, b.LocalID, entries[1].LocalID)

	// Index stays consistent after removal.
	m, _ = step(t, m, UpdateMsg{Message: b})
	assert.Len(t, m.Entries(), 2)
	assert.Contains(t, m.View(), "Support")
}

func TestModel_NoticeDismissedAfterTimeout(t *testing.T) {
	m := newTestModel(t, Options{})
	m, cmd := step(t, m, NoticeMsg{Notice: engine.Notice{Kind: engine.NoticeError, Text: engine.TextTimeout}})
	require.NotNil(t, cmd)
	require.NotNil(t, m.Notice())
	assert.Contains(t, m.View(), engine.TextTimeout)

	// A second notice supersedes the first one's timer.
	m, _ = step(t, m, NoticeMsg{Notice: engine.Notice{Kind: engine.NoticeInfo, Text: "later"}})
	m, _ = step(t, m, dismissNoticeMsg{seq: 1})
	require.NotNil(t, m.Notice())
	assert.Equal(t, "later", m.Notice().Text)

	m, _ = step(t, m, dismissNoticeMsg{seq: 2})
	assert.Nil(t, m.Notice())
}

func TestModel_SubmitSendsTrimmedText(t *testing.T) {
	var mu sync.Mutex
	var got []string
	m := newTestModel(t, Options{Send: func(_ context.Context, text string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, text)
		return nil
	}})

	m.input.SetValue("  hi there  ")
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	assert.Equal(t, sentMsg{}, msg)
	assert.Equal(t, []string{"hi there"}, got)

	m.input.SetValue("   ")
	_, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_TypingIndicator(t *testing.T) {
	m := newTestModel(t, Options{})
	m, cmd := step(t, m, TypingMsg{On: true})
	assert.True(t, m.Typing())
	assert.NotNil(t, cmd, "spinner starts ticking")
	assert.Contains(t, m.View(), "typing")

	m, _ = step(t, m, TypingMsg{On: false})
	assert.False(t, m.Typing())
	assert.NotContains(t, m.View(), "typing")
}

func TestModel_HideReportsVisibility(t *testing.T) {
	var hidden []bool
	m := newTestModel(t, Options{SetHidden: func(h bool) { hidden = append(hidden, h) }})

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlH})
	require.NotNil(t, cmd)
	cmd()
	assert.True(t, m.Hidden())
	assert.Contains(t, m.View(), "minimised")

	m, cmd = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlH})
	cmd()
	assert.False(t, m.Hidden())
	assert.Equal(t, []bool{true, false}, hidden)
}

func TestModel_ReferencesListed(t *testing.T) {
	m := newTestModel(t, Options{})
	a := model.NewConfirmedMessage("1", model.RoleAssistant, "Revenue grew ¹.", time.Time{})
	a.References = []model.Reference{{
		Index: 1, Superscript: "¹", DisplayName: "Q3.pdf",
		URL: "https://minio.knowrithm.org/b/Q3.pdf", FileKind: model.FileKindDocument, IsFileAsset: true,
	}}
	m, _ = step(t, m, RenderMsg{Message: a})
	view := m.View()
	assert.Contains(t, view, "Q3.pdf")
	assert.Contains(t, view, "¹")
}
