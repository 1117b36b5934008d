// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/clock"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/pending"
	"github.com/jeranaias/widgetsync/internal/transport"
)

// DefaultPageSize is how many messages one history fetch asks for.
const DefaultPageSize = 100

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoConversation is returned before a conversation is set.
	ErrNoConversation = errors.New("conversation not ready")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("engine closed")

	// ErrSessionExpired is returned once re-authentication has failed.
	ErrSessionExpired = api.ErrSessionExpired
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the HTTP side of the conversation.
type Backend interface {
	SendUserMessage(ctx context.Context, conversationID, text string) (api.SendResult, error)
	FetchMessages(ctx context.Context, conversationID string, page, perPage int) ([]*model.Message, error)
}

// PushChannel is the realtime side. Its events are delivered through the
// handlers returned by Engine.PushHandlers.
type PushChannel interface {
	Connected() bool
	Connect(ctx context.Context) error
	Join(conversationID string) error
	Leave(conversationID string) error
}

// HistoryStore persists confirmed messages. PruneHistory bounds the
// stored conversation after each write that added rows.
type HistoryStore interface {
	AppendMessages(ctx context.Context, conversationID string, msgs []*model.Message) (int, error)
	PruneHistory(ctx context.Context, conversationID string, keep int) error
}

// =============================================================================
// ENGINE
// =============================================================================

// Config tunes an Engine.
type Config struct {
	ConversationID  string
	PageSize        int
	IDCacheLimit    int
	ResponseTimeout time.Duration
	Transport       transport.Config
	// Welcome is shown when the initial history load finds nothing.
	Welcome string
}

// Deps are the Engine's collaborators. Backend and Renderer are required.
type Deps struct {
	Backend  Backend
	Renderer Renderer
	Resolver *citation.Resolver
	// Push may be left nil and supplied later with SetPush. Set
	// Transport.SocketEnabled to false when there is none.
	Push    PushChannel
	History HistoryStore
	Clock   clock.Clock
	// Executor defaults to a Loop started by New.
	Executor Executor
	// Spawn runs blocking work off the executor. Defaults to a goroutine.
	Spawn  func(func())
	Logger *zap.Logger
}

// Engine is the reconciliation engine for one widget.
type Engine struct {
	backend  Backend
	renderer Renderer
	resolver *citation.Resolver
	push     PushChannel
	history  HistoryStore
	clock    clock.Clock
	exec     Executor
	ownLoop  *Loop
	spawn    func(func())
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	pageSize int
	welcome  string

	// Loop-confined state.
	store          *model.Store
	cache          *model.IDCache
	tracker        *pending.Tracker
	arbiter        *transport.Arbiter
	conversationID string
	joinedRoom     string
	socketUp       bool
	started        bool
	expired        bool
	closed         bool
}

// New builds an Engine. Nothing happens until Start.
func New(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = citation.New(citation.Options{}, logger)
	}
	spawn := deps.Spawn
	if spawn == nil {
		spawn = func(f func()) { go f() }
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.IDCacheLimit <= 0 {
		cfg.IDCacheLimit = model.DefaultIDCacheLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend:        deps.Backend,
		renderer:       deps.Renderer,
		resolver:       resolver,
		push:           deps.Push,
		history:        deps.History,
		clock:          c,
		exec:           deps.Executor,
		spawn:          spawn,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		pageSize:       cfg.PageSize,
		welcome:        cfg.Welcome,
		store:          model.NewStore(),
		cache:          model.NewIDCache(cfg.IDCacheLimit),
		conversationID: cfg.ConversationID,
	}
	if e.exec == nil {
		e.ownLoop = StartLoop(logger)
		e.exec = e.ownLoop
	}

	e.tracker = pending.New(c, cfg.ResponseTimeout, func(entry *pending.Entry) {
		e.exec.Post(func() { e.expireLocked(entry) })
	}, logger)

	e.arbiter = transport.New(cfg.Transport, c, func(f func()) { e.exec.Post(f) }, transport.Hooks{
		Connect: e.connectLocked,
		Poll:    e.pollLocked,
	}, logger)
	return e
}

// call runs f on the executor and waits for it. It must not be used from
// the executor itself.
func (e *Engine) call(f func()) error {
	done := make(chan struct{})
	if !e.exec.Post(func() {
		defer close(done)
		f()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// Start begins delivery for the current conversation.
func (e *Engine) Start() error {
	var err error
	if cerr := e.call(func() {
		switch {
		case e.closed:
			err = ErrClosed
		case e.started:
		default:
			e.started = true
			e.arbiter.Start()
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// SetPush installs the push channel. It is usually built with the handlers
// from PushHandlers, so it cannot be passed to New. Call it before Start.
func (e *Engine) SetPush(ch PushChannel) {
	e.exec.Post(func() { e.push = ch })
}

// Hide stops polling while the chat is closed. The push subscription and
// in-flight requests continue, so history keeps being recorded.
func (e *Engine) Hide() {
	e.exec.Post(func() { e.arbiter.Hide() })
}

// Show resumes polling when it is needed.
func (e *Engine) Show() {
	e.exec.Post(func() { e.arbiter.Show() })
}

// SetIdleInterval changes the idle poll cadence.
func (e *Engine) SetIdleInterval(d time.Duration) {
	e.exec.Post(func() { e.arbiter.SetIdleInterval(d) })
}

// ConversationID returns the active conversation.
func (e *Engine) ConversationID() string {
	var id string
	_ = e.call(func() { id = e.conversationID })
	return id
}

// SwitchConversation closes the current conversation and makes id the
// active one. Outstanding round trips are dropped, timers are cleared,
// the view is emptied and the old push room is left.
func (e *Engine) SwitchConversation(id string) error {
	var err error
	if cerr := e.call(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		e.closeConversationLocked()
		e.conversationID = id
		e.expired = false
		if e.started {
			e.arbiter.Start()
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// Shutdown stops every timer and the executor. Later calls return ErrClosed.
func (e *Engine) Shutdown() {
	_ = e.call(func() {
		if e.closed {
			return
		}
		e.closed = true
		e.tracker.Clear()
		e.arbiter.Shutdown()
		if e.push != nil && e.joinedRoom != "" {
			_ = e.push.Leave(e.joinedRoom)
			e.joinedRoom = ""
		}
		e.renderer.SetTyping(false)
	})
	e.cancel()
	if e.ownLoop != nil {
		e.ownLoop.Close()
	}
}

func (e *Engine) closeConversationLocked() {
	e.tracker.Clear()
	e.arbiter.Shutdown()
	e.renderer.SetTyping(false)
	if e.push != nil && e.joinedRoom != "" {
		if err := e.push.Leave(e.joinedRoom); err != nil {
			e.logger.Debug("leave room failed", zap.Error(err))
		}
	}
	e.joinedRoom = ""
	e.clearViewLocked()
}

func (e *Engine) clearViewLocked() {
	for _, m := range e.store.Messages() {
		e.renderer.RemoveMessage(m.LocalID)
	}
	e.store.Reset()
	e.cache.Reset()
}

// expireSessionLocked makes the conversation unusable until restart.
func (e *Engine) expireSessionLocked() {
	if e.expired {
		return
	}
	e.expired = true
	e.logger.Error("session expired; conversation disabled")
	e.tracker.Clear()
	e.arbiter.Shutdown()
	e.renderer.SetTyping(false)
	e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: TextSessionExpired})
}

// syncPendingLocked tells the arbiter and the renderer whether a reply is due.
func (e *Engine) syncPendingLocked() {
	waiting := e.tracker.Len() > 0
	e.arbiter.SetPending(waiting)
	e.renderer.SetTyping(waiting)
}

// =============================================================================
// INSPECTION
// =============================================================================

// Snapshot is a consistent view of engine state.
type Snapshot struct {
	ConversationID string
	Messages       []*model.Message
	Pending        int
	CachedIDs      int
	Transport      transport.State
	PollTimerArmed bool
	PollInterval   time.Duration
	RetryArmed     bool
	JoinedRoom     string
	SessionExpired bool
}

// Snapshot returns copies of the current state.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	_ = e.call(func() {
		msgs := e.store.Messages()
		s = Snapshot{
			ConversationID: e.conversationID,
			Messages:       make([]*model.Message, len(msgs)),
			Pending:        e.tracker.Len(),
			CachedIDs:      e.cache.Len(),
			Transport:      e.arbiter.State(),
			PollTimerArmed: e.arbiter.PollTimerArmed(),
			PollInterval:   e.arbiter.PollInterval(),
			RetryArmed:     e.arbiter.RetryArmed(),
			JoinedRoom:     e.joinedRoom,
			SessionExpired: e.expired,
		}
		for i, m := range msgs {
			s.Messages[i] = m.Clone()
		}
	})
	return s
}

// Pending returns the number of sends still waiting for a reply.
func (e *Engine) Pending() int {
	var n int
	_ = e.call(func() { n = e.tracker.Len() })
	return n
}
