// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// testServer upgrades every request and hands the server side of the
// connection to the test.
type testServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	header chan http.Header
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		conns:  make(chan *websocket.Conn, 4),
		header: make(chan http.Header, 4),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.header <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + DefaultPath
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(waitFor):
		t.Fatal("no connection")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data string) {
	t.Helper()
	frame := `{"event":"` + event + `","data":` + data + `}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestConnect_SendsBearerAndFiresOnConnect(t *testing.T) {
	ts := newTestServer(t)
	connected := make(chan struct{}, 1)
	ch := New(ts.wsURL(), Handlers{OnConnect: func() { connected <- struct{}{} }}, nil)
	ch.SetToken("tok")

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	ts.accept(t)

	select {
	case h := <-ts.header:
		assert.Equal(t, "Bearer tok", h.Get("Authorization"))
	case <-time.After(waitFor):
		t.Fatal("no handshake")
	}
	select {
	case <-connected:
	case <-time.After(waitFor):
		t.Fatal("OnConnect not called")
	}
	assert.True(t, ch.Connected())
}

func TestConnect_ErrorFiresOnConnectError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var got error
	ch := New("ws"+strings.TrimPrefix(srv.URL, "http"), Handlers{OnConnectError: func(err error) { got = err }}, nil)
	err := ch.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, got)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, ch.Connected())
}

func TestDispatch_TypedEvents(t *testing.T) {
	ts := newTestServer(t)
	statuses := make(chan StatusEvent, 1)
	responses := make(chan ResponseEvent, 2)
	joined := make(chan string, 1)
	roomErrs := make(chan string, 1)
	ch := New(ts.wsURL(), Handlers{
		OnStatus:            func(ev StatusEvent) { statuses <- ev },
		OnResponse:          func(ev ResponseEvent) { responses <- ev },
		OnJoined:            func(id string) { joined <- id },
		OnConversationError: func(msg string) { roomErrs <- msg },
	}, nil)
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	server := ts.accept(t)

	send(t, server, "bogus", `{}`)
	send(t, server, EventChatStatus, `{"conversation_id":7,"message_id":"m1","status":"processing"}`)
	send(t, server, EventChatResponse, `{"conversation_id":"7","message":{"id":9,"role":"assistant","content":"hi"}}`)
	send(t, server, EventChatResponse, `{"conversation_id":"7","status":"failed","error":"llm down"}`)
	send(t, server, EventConversationJoined, `{"conversation_id":"7"}`)
	send(t, server, EventConversationError, `{"error":"no access"}`)

	select {
	case ev := <-statuses:
		assert.Equal(t, "7", string(ev.ConversationID))
		assert.Equal(t, "m1", string(ev.MessageID))
	case <-time.After(waitFor):
		t.Fatal("no status")
	}
	select {
	case ev := <-responses:
		assert.Equal(t, ResponseStatusCompleted, ev.Status)
		assert.Equal(t, "9", string(ev.Message.ID))
		assert.Equal(t, "hi", ev.Message.Content)
	case <-time.After(waitFor):
		t.Fatal("no response")
	}
	select {
	case ev := <-responses:
		assert.True(t, ev.Failed())
		assert.Equal(t, "llm down", ev.Error)
	case <-time.After(waitFor):
		t.Fatal("no failed response")
	}
	select {
	case id := <-joined:
		assert.Equal(t, "7", id)
	case <-time.After(waitFor):
		t.Fatal("no join")
	}
	select {
	case msg := <-roomErrs:
		assert.Equal(t, "no access", msg)
	case <-time.After(waitFor):
		t.Fatal("no room error")
	}
	assert.Equal(t, "7", ch.JoinedConversation())
}

func TestJoinLeave_EmitFrames(t *testing.T) {
	ts := newTestServer(t)
	ch := New(ts.wsURL(), Handlers{}, nil)
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	server := ts.accept(t)

	require.NoError(t, ch.Join("c1"))
	require.NoError(t, ch.Leave("c1"))

	for _, want := range []string{EventJoinConversation, EventLeaveConversation} {
		_ = server.SetReadDeadline(time.Now().Add(waitFor))
		_, data, err := server.ReadMessage()
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, want, frame.Event)
		assert.JSONEq(t, `{"conversation_id":"c1"}`, string(frame.Data))
	}
}

func TestDisconnect_FiresOnceAndAllowsReconnect(t *testing.T) {
	ts := newTestServer(t)
	disconnects := make(chan error, 2)
	ch := New(ts.wsURL(), Handlers{OnDisconnect: func(err error) { disconnects <- err }}, nil)
	require.NoError(t, ch.Connect(context.Background()))
	server := ts.accept(t)

	server.Close()
	select {
	case <-disconnects:
	case <-time.After(waitFor):
		t.Fatal("no disconnect")
	}
	assert.Eventually(t, func() bool { return !ch.Connected() }, waitFor, 10*time.Millisecond)

	require.NoError(t, ch.Connect(context.Background()))
	ts.accept(t)
	assert.True(t, ch.Connected())
	require.NoError(t, ch.Close())
	assert.Len(t, disconnects, 0)
}

func TestWriteWithoutConnection(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", Handlers{}, nil)
	assert.ErrorIs(t, ch.Join("c1"), ErrNotConnected)
	assert.NoError(t, ch.Close())
}

func TestEndpointFromBase(t *testing.T) {
	got, err := EndpointFromBase("https://api.example.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/ws", got)

	got, err = EndpointFromBase("http://localhost:8080/api", "/socket")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/socket", got)

	_, err = EndpointFromBase("ftp://x", "")
	assert.Error(t, err)
}
