// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
)

type collector struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *collector) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestBridge_QueuesUntilAttached(t *testing.T) {
	b := NewBridge()
	m := model.NewUserMessage("hi")
	b.RenderMessage(m)
	b.SetTyping(true)
	assert.True(t, b.IsRendered(m.LocalID))

	c := &collector{}
	b.Attach(c)
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	b.ShowNotice(engine.Notice{Text: "x"})
	b.RemoveMessage(m.LocalID)
	assert.False(t, b.IsRendered(m.LocalID))
	b.Close()

	require.Len(t, c.msgs, 4)
	assert.IsType(t, RenderMsg{}, c.msgs[0])
	assert.IsType(t, TypingMsg{}, c.msgs[1])
	assert.IsType(t, NoticeMsg{}, c.msgs[2])
	assert.Equal(t, RemoveMsg{LocalID: m.LocalID}, c.msgs[3])
}

func TestBridge_DropsAfterClose(t *testing.T) {
	b := NewBridge()
	c := &collector{}
	b.Attach(c)
	b.Close()
	b.SetTyping(true)
	assert.Zero(t, c.count())
}
