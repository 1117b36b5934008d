// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/clock"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/push"
	"github.com/jeranaias/widgetsync/internal/transport"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu       sync.Mutex
	history  []*model.Message
	fetchErr error
	sendRes  api.SendResult
	sendErr  error
	sends    []string
	fetches  int
	// onSend runs during the send call, before it returns.
	onSend func(text string)
}

func (b *fakeBackend) SendUserMessage(_ context.Context, _ string, text string) (api.SendResult, error) {
	b.mu.Lock()
	b.sends = append(b.sends, text)
	hook, res, err := b.onSend, b.sendRes, b.sendErr
	b.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return res, err
}

func (b *fakeBackend) FetchMessages(context.Context, string, int, int) ([]*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	// Each fetch yields fresh values, the way decoding a response would.
	out := make([]*model.Message, len(b.history))
	for i, m := range b.history {
		c := model.NewConfirmedMessage(m.ID, m.Role, m.RawContent, m.CreatedAt)
		c.Sources = m.Sources
		out[i] = c
	}
	return out, nil
}

func (b *fakeBackend) setHistory(msgs ...*model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = msgs
}

// =============================================================================
// FAKE RENDERER
// =============================================================================

type fakeRenderer struct {
	mu      sync.Mutex
	view    map[string]*model.Message
	order   []string
	renders map[string]int
	updates int
	removed []string
	notices []Notice
	typing  bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{view: map[string]*model.Message{}, renders: map[string]int{}}
}

func (r *fakeRenderer) RenderMessage(m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.view[m.LocalID]; !ok {
		r.order = append(r.order, m.LocalID)
	}
	r.view[m.LocalID] = m
	r.renders[m.LocalID]++
}

func (r *fakeRenderer) UpdateMessage(m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view[m.LocalID] = m
	r.updates++
}

func (r *fakeRenderer) RemoveMessage(localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(localID)
	r.removed = append(r.removed, localID)
}

// vanish loses an entry without the engine asking.
func (r *fakeRenderer) vanish(localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(localID)
}

func (r *fakeRenderer) drop(localID string) {
	delete(r.view, localID)
	for i, id := range r.order {
		if id == localID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *fakeRenderer) IsRendered(localID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.view[localID]
	return ok
}

func (r *fakeRenderer) ShowNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *fakeRenderer) SetTyping(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = on
}

// visible returns the rendered messages in display order.
func (r *fakeRenderer) visible() []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Message, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.view[id])
	}
	return out
}

// withServerID counts rendered entries carrying id.
func (r *fakeRenderer) withServerID(id string) int {
	n := 0
	for _, m := range r.visible() {
		if m.ID == id {
			n++
		}
	}
	return n
}

func (r *fakeRenderer) noticeTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Text
	}
	return out
}

func (r *fakeRenderer) isTyping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing
}

// =============================================================================
// FAKE PUSH CHANNEL
// =============================================================================

type fakePush struct {
	mu         sync.Mutex
	handlers   push.Handlers
	connected  bool
	connectErr error
	connects   int
	joins      []string
	leaves     []string
}

func (p *fakePush) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePush) Connect(context.Context) error {
	p.mu.Lock()
	p.connects++
	err := p.connectErr
	if err == nil {
		p.connected = true
	}
	h := p.handlers
	p.mu.Unlock()
	if err != nil {
		if h.OnConnectError != nil {
			h.OnConnectError(err)
		}
		return err
	}
	if h.OnConnect != nil {
		h.OnConnect()
	}
	return nil
}

func (p *fakePush) Join(id string) error {
	p.mu.Lock()
	p.joins = append(p.joins, id)
	h := p.handlers
	p.mu.Unlock()
	if h.OnJoined != nil {
		h.OnJoined(id)
	}
	return nil
}

func (p *fakePush) Leave(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves = append(p.leaves, id)
	return nil
}

func (p *fakePush) disconnect(err error) {
	p.mu.Lock()
	p.connected = false
	h := p.handlers
	p.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect(err)
	}
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	eng      *Engine
	backend  *fakeBackend
	renderer *fakeRenderer
	push     *fakePush
	history  *fakeHistory
	clock    *clock.Fake
}

type fakeHistory struct {
	mu    sync.Mutex
	saved map[string]bool
}

func (h *fakeHistory) AppendMessages(_ context.Context, _ string, msgs []*model.Message) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		h.saved[m.ID] = true
	}
	return len(msgs), nil
}

func (h *fakeHistory) PruneHistory(context.Context, string, int) error { return nil }

func (h *fakeHistory) has(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saved[id]
}

type harnessOption func(*Config)

func withoutSocket() harnessOption {
	return func(c *Config) { c.Transport.SocketEnabled = false }
}

func withCacheLimit(n int) harnessOption {
	return func(c *Config) { c.IDCacheLimit = n }
}

func withWelcome(text string) harnessOption {
	return func(c *Config) { c.Welcome = text }
}

// newHarness builds an engine on an inline executor with synchronous
// spawning, so every effect has happened by the time a call returns.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{},
		renderer: newFakeRenderer(),
		push:     &fakePush{},
		history:  &fakeHistory{saved: map[string]bool{}},
		clock:    clock.NewFake(epoch),
	}
	cfg := Config{
		ConversationID:  "conv-1",
		ResponseTimeout: 90 * time.Second,
		Transport:       transport.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.eng = New(cfg, Deps{
		Backend:  h.backend,
		Renderer: h.renderer,
		Resolver: citation.New(citation.Options{Format: citation.Markdown{}}, nil),
		History:  h.history,
		Clock:    h.clock,
		Executor: NewInline(),
		Spawn:    func(f func()) { f() },
	})
	h.push.handlers = h.eng.PushHandlers()
	h.eng.SetPush(h.push)
	t.Cleanup(h.eng.Shutdown)
	return h
}

func assistantAt(id, content string, at time.Time) *model.Message {
	return model.NewConfirmedMessage(id, model.RoleAssistant, content, at)
}

func userAt(id, content string, at time.Time) *model.Message {
	return model.NewConfirmedMessage(id, model.RoleUser, content, at)
}

func wire(id, role, content string, at time.Time) api.WireMessage {
	return api.WireMessage{ID: api.ID(id), Role: role, Content: content, CreatedAt: api.Timestamp{Time: at}}
}
