// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
)

// Sender is the part of *tea.Program the Bridge uses.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge implements engine.Renderer for the chat window. Calls never
// block: messages are queued and forwarded in order by a pump goroutine
// once a program is attached.
type Bridge struct {
	mu     sync.Mutex
	cond   *sync.Cond
	target Sender
	queue  []tea.Msg
	shown  map[string]struct{}
	closed bool
	done   chan struct{}
}

var _ engine.Renderer = (*Bridge)(nil)

// NewBridge returns a detached Bridge. Messages queue until Attach.
func NewBridge() *Bridge {
	b := &Bridge{shown: make(map[string]struct{})}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Attach starts forwarding to s. Only the first call has an effect.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.target != nil || b.closed {
		return
	}
	b.target = s
	b.done = make(chan struct{})
	go b.pump(s, b.done)
}

// Close stops the pump after it has delivered what is queued.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	done := b.done
	b.cond.Broadcast()
	b.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (b *Bridge) pump(s Sender, done chan struct{}) {
	defer close(done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		batch := b.queue
		b.queue = nil
		closed := b.closed
		b.mu.Unlock()

		for _, msg := range batch {
			s.Send(msg)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}

func (b *Bridge) enqueue(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, msg)
	b.cond.Signal()
}

// RenderMessage implements engine.Renderer.
func (b *Bridge) RenderMessage(m *model.Message) {
	b.mu.Lock()
	b.shown[m.LocalID] = struct{}{}
	b.mu.Unlock()
	b.enqueue(RenderMsg{Message: m})
}

// UpdateMessage implements engine.Renderer.
func (b *Bridge) UpdateMessage(m *model.Message) {
	b.enqueue(UpdateMsg{Message: m})
}

// RemoveMessage implements engine.Renderer.
func (b *Bridge) RemoveMessage(localID string) {
	b.mu.Lock()
	delete(b.shown, localID)
	b.mu.Unlock()
	b.enqueue(RemoveMsg{LocalID: localID})
}

// IsRendered implements engine.Renderer.
func (b *Bridge) IsRendered(localID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.shown[localID]
	return ok
}

// ShowNotice implements engine.Renderer.
func (b *Bridge) ShowNotice(n engine.Notice) {
	b.enqueue(NoticeMsg{Notice: n})
}

// SetTyping implements engine.Renderer.
func (b *Bridge) SetTyping(on bool) {
	b.enqueue(TypingMsg{On: on})
}
