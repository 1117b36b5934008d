// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/clock"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/push"
	"github.com/jeranaias/widgetsync/internal/storage"
	"github.com/jeranaias/widgetsync/internal/transport"
)

var (
	// ErrNotRegistered is returned by Open before a lead has registered.
	ErrNotRegistered = errors.New("visitor not registered")

	// ErrNotOpen is returned by operations that need an open conversation.
	ErrNotOpen = errors.New("conversation not open")

	// ErrIncompleteLead is returned when a required lead field is empty.
	ErrIncompleteLead = errors.New("first name, last name and email are required")
)

// Options configures a Widget.
type Options struct {
	Config   *config.Config
	Renderer engine.Renderer
	// Store persists the session and history. Nil disables persistence.
	Store      *storage.DB
	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     *zap.Logger
	// AppendFootnotes makes the resolver list references in the text.
	AppendFootnotes bool
}

// Widget is one chat with one agent.
type Widget struct {
	cfg      *config.Config
	renderer engine.Renderer
	store    *storage.DB
	client   *api.Client
	resolver *citation.Resolver
	clock    clock.Clock
	logger   *zap.Logger

	mu             sync.Mutex
	agent          *api.Agent
	conversationID string
	engine         *engine.Engine
	channel        *push.Channel
	watcher        *config.Watcher
	closed         bool
}

// New builds a Widget and restores any persisted session. It performs no
// network calls.
func New(ctx context.Context, opts Options) (*Widget, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Agent.AgentID == "" || cfg.Agent.APIURL == "" {
		return nil, fmt.Errorf("widget: %w: agent id and api url must be set", api.ErrNotConfigured)
	}
	if opts.Renderer == nil {
		return nil, errors.New("widget: renderer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("agent", cfg.Agent.AgentID))

	client := api.NewClient(cfg.Agent.APIURL, logger.Named("api")).
		WithRateLimit(cfg.Realtime.RequestsPerSecond, 2)
	if opts.HTTPClient != nil {
		client.WithHTTPClient(opts.HTTPClient)
	}

	w := &Widget{
		cfg:      cfg.Clone(),
		renderer: opts.Renderer,
		store:    opts.Store,
		client:   client,
		resolver: citation.New(citation.Options{
			FileHosts:       cfg.Citations.FileHosts,
			LinkLabel:       cfg.Citations.LinkLabel,
			Format:          citation.FormatterByName(cfg.Citations.Markup),
			AppendFootnotes: opts.AppendFootnotes,
		}, logger.Named("citation")),
		clock:  opts.Clock,
		logger: logger,
	}
	w.restoreSession(ctx)
	client.OnSessionChange(w.sessionChanged)
	return w, nil
}

// restoreSession loads stored tokens and the conversation id.
func (w *Widget) restoreSession(ctx context.Context) {
	if w.store == nil || !w.cfg.Storage.PersistSession {
		return
	}
	rec, err := w.store.LoadSession(ctx, w.cfg.Agent.AgentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNoSession) {
			w.logger.Warn("session restore failed", zap.Error(err))
		}
		return
	}
	w.client.WithSession(rec.Session, rec.Lead)
	w.conversationID = rec.ConversationID
	w.logger.Info("session restored",
		zap.String("conversation", rec.ConversationID),
		zap.String("token", w.client.TokenFingerprint()))
}

// sessionChanged persists renewed tokens and hands them to the push channel.
func (w *Widget) sessionChanged(s api.Session, lead *api.Lead) {
	w.mu.Lock()
	ch := w.channel
	convID := w.conversationID
	w.mu.Unlock()

	if ch != nil {
		ch.SetToken(s.AccessToken)
	}
	w.persistSession(context.Background(), s, lead, convID)
}

func (w *Widget) persistSession(ctx context.Context, s api.Session, lead *api.Lead, convID string) {
	if w.store == nil || !w.cfg.Storage.PersistSession {
		return
	}
	err := w.store.SaveSession(ctx, storage.SessionRecord{
		AgentID:        w.cfg.Agent.AgentID,
		ConversationID: convID,
		Session:        s,
		Lead:           lead,
	})
	if err != nil {
		w.logger.Warn("session persist failed", zap.Error(err))
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Client returns the HTTP client.
func (w *Widget) Client() *api.Client { return w.client }

// Config returns the widget's configuration snapshot.
func (w *Widget) Config() *config.Config { return w.cfg }

// Registered reports whether a session is available.
func (w *Widget) Registered() bool { return w.client.Session().Valid() }

// ConversationID returns the active conversation, or "".
func (w *Widget) ConversationID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conversationID
}

// Engine returns the engine of the open conversation, or nil.
func (w *Widget) Engine() *engine.Engine {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine
}

// Pending is the number of sent messages still waiting for a reply.
func (w *Widget) Pending() int {
	eng := w.Engine()
	if eng == nil {
		return 0
	}
	return eng.Pending()
}

// Title is the configured title, else the agent's name.
func (w *Widget) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg.UI.Title != "" && w.cfg.UI.Title != config.Default().UI.Title {
		return w.cfg.UI.Title
	}
	if w.agent != nil && w.agent.Name != "" {
		return w.agent.Name
	}
	return w.cfg.UI.Title
}

// Welcome is the configured welcome line, else the agent's greeting.
func (w *Widget) Welcome() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg.UI.Welcome != "" {
		return w.cfg.UI.Welcome
	}
	return w.agent.Greeting()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// LoadAgent fetches the agent profile. Failure is not fatal to the chat.
func (w *Widget) LoadAgent(ctx context.Context) (*api.Agent, error) {
	agent, err := w.client.FetchAgent(ctx, w.cfg.Agent.AgentID)
	if err != nil {
		w.logger.Warn("agent lookup failed", zap.Error(err))
		return nil, err
	}
	w.mu.Lock()
	w.agent = agent
	w.mu.Unlock()
	return agent, nil
}

// LeadFromConfig returns the lead prefilled from configuration.
func (w *Widget) LeadFromConfig() api.Lead {
	l := w.cfg.Lead
	return api.Lead{
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Email:     l.Email,
		Phone:     l.Phone,
		AgentID:   w.cfg.Agent.AgentID,
	}
}

// Register registers the visitor. The issued tokens are persisted.
func (w *Widget) Register(ctx context.Context, lead api.Lead) error {
	lead.FirstName = strings.TrimSpace(lead.FirstName)
	lead.LastName = strings.TrimSpace(lead.LastName)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Phone = strings.TrimSpace(lead.Phone)
	if lead.FirstName == "" || lead.LastName == "" || lead.Email == "" {
		return ErrIncompleteLead
	}
	lead.AgentID = w.cfg.Agent.AgentID
	if _, err := w.client.RegisterLead(ctx, lead); err != nil {
		return err
	}
	return nil
}

// Open ensures a conversation exists, builds the engine, loads history
// and starts delivery.
func (w *Widget) Open(ctx context.Context) error {
	if !w.Registered() {
		return ErrNotRegistered
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return engine.ErrClosed
	}
	if w.engine != nil {
		eng := w.engine
		w.mu.Unlock()
		eng.Show()
		return nil
	}
	convID := w.conversationID
	w.mu.Unlock()

	if convID == "" {
		var err error
		if convID, err = w.createConversation(ctx); err != nil {
			return err
		}
	}

	eng := w.buildEngine(convID)
	w.mu.Lock()
	w.engine = eng
	w.mu.Unlock()

	if err := eng.LoadHistory(ctx, true); err != nil {
		w.logger.Warn("initial history load failed", zap.Error(err))
		if errors.Is(err, engine.ErrSessionExpired) {
			return err
		}
	}
	return eng.Start()
}

// createConversation opens a new conversation and records it. A failure
// clears the stored session so the next start registers again.
func (w *Widget) createConversation(ctx context.Context) (string, error) {
	convID, err := w.client.CreateConversation(ctx, w.cfg.Agent.AgentID)
	if err != nil {
		w.logger.Error("conversation creation failed", zap.Error(err))
		if w.store != nil {
			if cerr := w.store.ClearSession(ctx, w.cfg.Agent.AgentID); cerr != nil {
				w.logger.Warn("clear session failed", zap.Error(cerr))
			}
		}
		w.mu.Lock()
		w.conversationID = ""
		w.mu.Unlock()
		return "", err
	}

	w.mu.Lock()
	w.conversationID = convID
	w.mu.Unlock()
	w.persistSession(ctx, w.client.Session(), w.client.Lead(), convID)
	w.logger.Info("conversation created", zap.String("conversation", convID))
	return convID, nil
}

func (w *Widget) buildEngine(convID string) *engine.Engine {
	rt := w.cfg.Realtime
	var history engine.HistoryStore
	if w.store != nil {
		history = w.store
	}
	eng := engine.New(engine.Config{
		ConversationID:  convID,
		PageSize:        rt.HistoryPageSize,
		IDCacheLimit:    rt.IDCacheLimit,
		ResponseTimeout: rt.ResponseTimeout(),
		Welcome:         w.Welcome(),
		Transport: transport.Config{
			SocketEnabled:  rt.SocketEnabled,
			IdleInterval:   rt.PollInterval(),
			ActiveInterval: rt.ActivePollInterval(),
			RetryDelay:     rt.SocketRetry(),
		},
	}, engine.Deps{
		Backend:  w.client,
		Renderer: w.renderer,
		Resolver: w.resolver,
		History:  history,
		Clock:    w.clock,
		Logger:   w.logger.Named("engine"),
	})

	if rt.SocketEnabled {
		endpoint, err := push.EndpointFromBase(w.cfg.Agent.APIURL, rt.SocketPath)
		if err != nil {
			w.logger.Warn("push channel disabled", zap.Error(err))
		} else {
			ch := push.New(endpoint, eng.PushHandlers(), w.logger.Named("push"))
			ch.SetToken(w.client.Session().AccessToken)
			eng.SetPush(ch)
			w.mu.Lock()
			w.channel = ch
			w.mu.Unlock()
		}
	}
	return eng
}

// Send sends a user message in the open conversation.
func (w *Widget) Send(ctx context.Context, text string) error {
	eng := w.Engine()
	if eng == nil {
		return ErrNotOpen
	}
	return eng.SendMessage(ctx, text)
}

// Hide stops polling while the chat is not visible.
func (w *Widget) Hide() {
	if eng := w.Engine(); eng != nil {
		eng.Hide()
	}
}

// Show resumes polling.
func (w *Widget) Show() {
	if eng := w.Engine(); eng != nil {
		eng.Show()
	}
}

// NewConversation abandons the current conversation and starts another.
func (w *Widget) NewConversation(ctx context.Context) error {
	eng := w.Engine()
	if eng == nil {
		return ErrNotOpen
	}
	convID, err := w.createConversation(ctx)
	if err != nil {
		return err
	}
	if err := eng.SwitchConversation(convID); err != nil {
		return err
	}
	return eng.LoadHistory(ctx, true)
}

// WatchConfig publishes each valid edit of the config file at path as the
// global config and applies its poll cadence to the running engine.
func (w *Widget) WatchConfig(path string) error {
	watcher, err := config.Watch(path, func(cfg *config.Config) {
		config.SetGlobal(cfg)
		if eng := w.Engine(); eng != nil {
			eng.SetIdleInterval(cfg.Realtime.PollInterval())
		}
	}, w.logger.Named("config"))
	if err != nil {
		return err
	}
	w.mu.Lock()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.watcher = watcher
	w.mu.Unlock()
	return nil
}

// Close stops the engine, the push channel and the config watcher.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	eng, ch, watcher := w.engine, w.channel, w.watcher
	w.mu.Unlock()

	if eng != nil {
		eng.Shutdown()
	}
	var errs []error
	if ch != nil {
		errs = append(errs, ch.Close())
	}
	if watcher != nil {
		errs = append(errs, watcher.Close())
	}
	return errors.Join(errs...)
}
