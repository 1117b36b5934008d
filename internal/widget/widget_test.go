// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/clock"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/storage"
)

var ctx = context.Background()

// =============================================================================
// FAKES
// =============================================================================

type backend struct {
	registers     atomic.Int32
	creates       atomic.Int32
	sends         atomic.Int32
	failCreate    atomic.Bool
	mu            sync.Mutex
	lastLead      api.Lead
	lastMessage   string
	conversations int
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agent/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"agent": map[string]any{
			"id": r.PathValue("id"), "name": "Ava", "welcome_message": "Hello from Ava",
		}})
	})
	mux.HandleFunc("POST /v1/lead/register", func(w http.ResponseWriter, r *http.Request) {
		n := b.registers.Add(1)
		b.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&b.lastLead)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"tokens": map[string]any{
			"access_token": "tok-" + string(rune('0'+n)), "refresh_token": "ref",
		}})
	})
	mux.HandleFunc("POST /v1/conversation", func(w http.ResponseWriter, r *http.Request) {
		b.creates.Add(1)
		if b.failCreate.Load() {
			http.Error(w, `{"message":"nope"}`, http.StatusInternalServerError)
			return
		}
		b.mu.Lock()
		b.conversations++
		id := "conv-" + string(rune('0'+b.conversations))
		b.mu.Unlock()
		writeJSON(w, map[string]any{"conversation": map[string]any{"id": id}})
	})
	mux.HandleFunc("POST /v1/conversation/{id}/chat", func(w http.ResponseWriter, r *http.Request) {
		b.sends.Add(1)
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.lastMessage = body.Message
		b.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]any{"message_id": 77, "task_id": "t-1"})
	})
	mux.HandleFunc("GET /v1/conversation/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"messages": []any{}})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type recorder struct {
	mu      sync.Mutex
	msgs    map[string]*model.Message
	order   []string
	notices []engine.Notice
}

func newRecorder() *recorder { return &recorder{msgs: map[string]*model.Message{}} }

func (r *recorder) RenderMessage(m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[m.LocalID]; !ok {
		r.order = append(r.order, m.LocalID)
	}
	r.msgs[m.LocalID] = m
}

func (r *recorder) UpdateMessage(m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[m.LocalID] = m
}

func (r *recorder) RemoveMessage(localID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.msgs, localID)
	for i, id := range r.order {
		if id == localID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *recorder) IsRendered(localID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.msgs[localID]
	return ok
}

func (r *recorder) ShowNotice(n engine.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) SetTyping(bool) {}

func (r *recorder) shown() []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Message, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.msgs[id])
	}
	return out
}

// =============================================================================
// HARNESS
// =============================================================================

type env struct {
	backend *backend
	server  *httptest.Server
	store   *storage.DB
	cfg     *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	db, err := storage.Open(storage.Options{Path: filepath.Join(t.TempDir(), "widget.db"), Passphrase: "pw"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.Agent.AgentID = "agent-1"
	cfg.Agent.APIURL = srv.URL
	cfg.Realtime.SocketEnabled = false
	cfg.Realtime.RequestsPerSecond = 0
	cfg.Lead = config.LeadConfig{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	return &env{backend: b, server: srv, store: db, cfg: cfg}
}

func (e *env) widget(t *testing.T, r engine.Renderer) *Widget {
	t.Helper()
	w, err := New(ctx, Options{
		Config:   e.cfg,
		Renderer: r,
		Store:    e.store,
		Clock:    clock.NewFake(time.Now()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RequiresAgent(t *testing.T) {
	cfg := config.Default()
	_, err := New(ctx, Options{Config: cfg, Renderer: newRecorder()})
	assert.ErrorIs(t, err, api.ErrNotConfigured)
}

func TestOpen_RequiresRegistration(t *testing.T) {
	e := newEnv(t)
	w := e.widget(t, newRecorder())
	assert.False(t, w.Registered())
	assert.ErrorIs(t, w.Open(ctx), ErrNotRegistered)
}

func TestRegister_ValidatesLead(t *testing.T) {
	e := newEnv(t)
	w := e.widget(t, newRecorder())
	err := w.Register(ctx, api.Lead{FirstName: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrIncompleteLead)
	assert.Zero(t, e.backend.registers.Load())
}

func TestOpen_CreatesAndPersists(t *testing.T) {
	e := newEnv(t)
	r := newRecorder()
	w := e.widget(t, r)

	require.NoError(t, w.Register(ctx, w.LeadFromConfig()))
	assert.Equal(t, "agent-1", e.backend.lastLead.AgentID)
	require.NoError(t, w.Open(ctx))
	assert.Equal(t, "conv-1", w.ConversationID())

	rec, err := e.store.LoadSession(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, "tok-1", rec.Session.AccessToken)
	require.NotNil(t, rec.Lead)
	assert.Equal(t, "Ada", rec.Lead.FirstName)

	// A second widget over the same store resumes without the network.
	require.NoError(t, w.Close())
	w2 := e.widget(t, newRecorder())
	assert.True(t, w2.Registered())
	require.NoError(t, w2.Open(ctx))
	assert.Equal(t, "conv-1", w2.ConversationID())
	assert.EqualValues(t, 1, e.backend.registers.Load())
	assert.EqualValues(t, 1, e.backend.creates.Load())
}

func TestOpen_CreateFailureClearsSession(t *testing.T) {
	e := newEnv(t)
	w := e.widget(t, newRecorder())
	require.NoError(t, w.Register(ctx, w.LeadFromConfig()))

	_, err := e.store.LoadSession(ctx, "agent-1")
	require.NoError(t, err)

	e.backend.failCreate.Store(true)
	require.Error(t, w.Open(ctx))

	_, err = e.store.LoadSession(ctx, "agent-1")
	assert.ErrorIs(t, err, storage.ErrNoSession)
	assert.Empty(t, w.ConversationID())
}

func TestOpen_WelcomeFromAgent(t *testing.T) {
	e := newEnv(t)
	r := newRecorder()
	w := e.widget(t, r)
	require.NoError(t, w.Register(ctx, w.LeadFromConfig()))

	agent, err := w.LoadAgent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ava", agent.Name)
	assert.Equal(t, "Ava", w.Title())

	require.NoError(t, w.Open(ctx))
	shown := r.shown()
	require.Len(t, shown, 1)
	assert.Equal(t, "Hello from Ava", shown[0].Body())
	assert.True(t, shown[0].Synthetic)
}

func TestSend_PostsAndConfirms(t *testing.T) {
	e := newEnv(t)
	r := newRecorder()
	w := e.widget(t, r)
	assert.ErrorIs(t, w.Send(ctx, "hi"), ErrNotOpen)

	require.NoError(t, w.Register(ctx, w.LeadFromConfig()))
	require.NoError(t, w.Open(ctx))
	require.NoError(t, w.Send(ctx, "  hello there "))

	assert.EqualValues(t, 1, e.backend.sends.Load())
	assert.Equal(t, "hello there", e.backend.lastMessage)

	shown := r.shown()
	require.Len(t, shown, 1)
	assert.Equal(t, "77", shown[0].ID)
	assert.False(t, shown[0].Temporary)
	assert.Equal(t, 1, w.Engine().Snapshot().Pending)

	require.Eventually(t, func() bool {
		msgs, err := e.store.History(ctx, "conv-1", 10)
		return err == nil && len(msgs) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNewConversation_Switches(t *testing.T) {
	e := newEnv(t)
	r := newRecorder()
	w := e.widget(t, r)
	require.NoError(t, w.Register(ctx, w.LeadFromConfig()))
	require.NoError(t, w.Open(ctx))
	require.NoError(t, w.Send(ctx, "first"))

	require.NoError(t, w.NewConversation(ctx))
	assert.Equal(t, "conv-2", w.ConversationID())
	assert.Equal(t, "conv-2", w.Engine().ConversationID())
	assert.Zero(t, w.Engine().Snapshot().Pending)

	rec, err := e.store.LoadSession(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-2", rec.ConversationID)
}

func TestWatchConfig_PublishesEdits(t *testing.T) {
	t.Setenv("WIDGETSYNC_HOME", t.TempDir())
	t.Setenv("WIDGETSYNC_POLL_MS", "")
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)

	e := newEnv(t)
	w := e.widget(t, newRecorder())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveTOML(config.Default(), path))
	require.NoError(t, w.WatchConfig(path))

	edited := config.Default()
	edited.Realtime.PollIntervalMs = 5000
	require.NoError(t, config.SaveTOML(edited, path))

	require.Eventually(t, func() bool {
		return config.Global().Realtime.PollIntervalMs == 5000
	}, 5*time.Second, 20*time.Millisecond)
}

func TestInit_SingleInstance(t *testing.T) {
	resetInstanceForTesting()
	t.Cleanup(resetInstanceForTesting)
	e := newEnv(t)

	first, err := Init(ctx, Options{Config: e.cfg, Renderer: newRecorder()})
	require.NoError(t, err)
	second, err := Init(ctx, Options{Config: config.Default(), Renderer: newRecorder()})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, Current())
}
