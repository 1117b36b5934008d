// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/push"
	"github.com/jeranaias/widgetsync/internal/transport"
)

var ctx = context.Background()

// =============================================================================
// TRANSPORT
// =============================================================================

func TestEngine_SocketConnectJoinsRoomAndStopsPolling(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())

	snap := h.eng.Snapshot()
	assert.Equal(t, transport.StateSocketActive, snap.Transport)
	assert.False(t, snap.PollTimerArmed, "idle with a live socket schedules no poll")
	assert.Equal(t, "conv-1", snap.JoinedRoom)
	assert.Equal(t, []string{"conv-1"}, h.push.joins)

	h.clock.Advance(time.Minute)
	assert.Zero(t, h.backend.fetches)
}

func TestEngine_PollsInParallelWhilePending(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hi"))

	snap := h.eng.Snapshot()
	assert.True(t, snap.PollTimerArmed)
	assert.Equal(t, transport.DefaultActiveInterval, snap.PollInterval)
	assert.True(t, h.renderer.isTyping())

	h.clock.Advance(3 * time.Second)
	assert.Equal(t, 3, h.backend.fetches)
}

func TestEngine_DisconnectFallsBackToPollingAndRetries(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	h.push.disconnect(errors.New("reset by peer"))

	snap := h.eng.Snapshot()
	assert.Equal(t, transport.StateSocketFailed, snap.Transport)
	assert.True(t, snap.PollTimerArmed)
	assert.True(t, snap.RetryArmed)
	assert.Empty(t, snap.JoinedRoom)

	h.clock.Advance(30 * time.Second)

	snap = h.eng.Snapshot()
	assert.Equal(t, 2, h.push.connects)
	assert.Equal(t, transport.StateSocketActive, snap.Transport)
	assert.False(t, snap.PollTimerArmed)
	assert.Equal(t, []string{"conv-1", "conv-1"}, h.push.joins)
}

func TestEngine_ConnectErrorKeepsPolling(t *testing.T) {
	h := newHarness(t)
	h.push.connectErr = errors.New("403")
	require.NoError(t, h.eng.Start())

	snap := h.eng.Snapshot()
	assert.Equal(t, transport.StateSocketFailed, snap.Transport)
	assert.True(t, snap.PollTimerArmed)

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, h.backend.fetches)
}

func TestEngine_HideStopsPolling(t *testing.T) {
	h := newHarness(t, withoutSocket())
	require.NoError(t, h.eng.Start())
	require.True(t, h.eng.Snapshot().PollTimerArmed)

	h.eng.Hide()
	assert.False(t, h.eng.Snapshot().PollTimerArmed)
	h.clock.Advance(time.Minute)
	assert.Zero(t, h.backend.fetches)

	h.eng.Show()
	assert.True(t, h.eng.Snapshot().PollTimerArmed)
}

func TestEngine_SetIdleInterval(t *testing.T) {
	h := newHarness(t, withoutSocket())
	require.NoError(t, h.eng.Start())
	h.eng.SetIdleInterval(10 * time.Second)

	assert.Equal(t, 10*time.Second, h.eng.Snapshot().PollInterval)
	h.clock.Advance(9 * time.Second)
	assert.Zero(t, h.backend.fetches)
	h.clock.Advance(time.Second)
	assert.Equal(t, 1, h.backend.fetches)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestEngine_OptimisticPromotionKeepsIdentity(t *testing.T) {
	h := newHarness(t, withoutSocket())
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hello"))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	local := shown[0].LocalID
	assert.True(t, shown[0].Temporary)

	h.backend.setHistory(userAt("42", "hello", epoch))
	h.clock.Advance(time.Second)

	shown = h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, local, shown[0].LocalID)
	assert.Equal(t, "42", shown[0].ID)
	assert.False(t, shown[0].Temporary)
	assert.Equal(t, 1, h.renderer.renders[local])
	assert.Equal(t, 1, h.eng.Snapshot().Pending, "a user echo does not resolve the round trip")
}

func TestEngine_SendResponseIDPromotes(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.sendRes = api.SendResult{MessageID: "m1", TaskID: "t1"}
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hello"))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, "m1", shown[0].ID)
	assert.True(t, h.history.has("m1"))

	h.backend.setHistory(userAt("m1", "hello", epoch))
	h.clock.Advance(time.Second)
	assert.Len(t, h.renderer.visible(), 1)
}

func TestEngine_StatusIDMatchesEchoWithDifferentText(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hello"))

	h.push.handlers.OnStatus(push.StatusEvent{ConversationID: "conv-1", MessageID: "m7", Status: "processing"})
	h.backend.setHistory(userAt("m7", "hello (edited by server)", epoch))
	h.clock.Advance(time.Second)

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, "m7", shown[0].ID)
}

func TestEngine_EchoBeforeSendResponseReplacesOptimisticEntry(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.sendRes = api.SendResult{MessageID: "m1"}
	h.backend.onSend = func(string) {
		// The poll lands while the send request is still out.
		h.backend.setHistory(userAt("m1", "hello (edited by server)", epoch))
		require.NoError(t, h.eng.LoadHistory(ctx, false))
	}
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hello"))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, "m1", shown[0].ID)
	assert.False(t, shown[0].Temporary)
	assert.Len(t, h.renderer.removed, 1)
	assert.Equal(t, 1, h.eng.Snapshot().Pending)
}

func TestEngine_AtMostOnceAcrossTransports(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hi"))

	reply := wire("a1", "assistant", "hello back", epoch.Add(time.Second))
	h.backend.setHistory(
		userAt("u1", "hi", epoch),
		assistantAt("a1", "hello back", epoch.Add(time.Second)),
	)

	// Poll wins the race, push delivers the same reply twice afterwards.
	h.clock.Advance(time.Second)
	h.push.handlers.OnResponse(push.ResponseEvent{ConversationID: "conv-1", Message: reply, Status: push.ResponseStatusCompleted})
	h.push.handlers.OnResponse(push.ResponseEvent{ConversationID: "conv-1", Message: reply})

	assert.Equal(t, 1, h.renderer.withServerID("a1"))
	assert.Equal(t, 1, h.renderer.withServerID("u1"))
	assert.Len(t, h.renderer.visible(), 2)
	assert.Zero(t, h.eng.Snapshot().Pending)
	assert.False(t, h.renderer.isTyping())

	h.clock.Advance(5 * time.Minute)
	assert.Empty(t, h.renderer.noticeTexts(), "resolved entries never time out")
}

func TestEngine_PushFirstThenPoll(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hi"))

	h.push.handlers.OnResponse(push.ResponseEvent{
		ConversationID: "conv-1",
		Message:        wire("a1", "assistant", "hello back", epoch.Add(time.Second)),
	})
	assert.Zero(t, h.eng.Snapshot().Pending)
	assert.False(t, h.eng.Snapshot().PollTimerArmed)

	h.backend.setHistory(assistantAt("a1", "hello back", epoch.Add(time.Second)))
	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Equal(t, 1, h.renderer.withServerID("a1"))
	assert.True(t, h.history.has("a1"))
}

func TestEngine_OneReplySettlesOneRoundTrip(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "first"))
	require.NoError(t, h.eng.SendMessage(ctx, "second"))
	require.Equal(t, 2, h.eng.Snapshot().Pending)

	h.push.handlers.OnResponse(push.ResponseEvent{
		ConversationID: "conv-1",
		Message:        wire("a1", "assistant", "answer to first", epoch.Add(time.Second)),
		Status:         push.ResponseStatusCompleted,
	})
	assert.Equal(t, 1, h.eng.Snapshot().Pending)
	assert.True(t, h.renderer.isTyping(), "second message still awaits its reply")

	h.clock.Advance(2 * time.Minute)
	assert.Equal(t, []string{TextTimeout}, h.renderer.noticeTexts())
	assert.Zero(t, h.eng.Snapshot().Pending)
}

func TestEngine_OtherConversationIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	h.push.handlers.OnResponse(push.ResponseEvent{
		ConversationID: "conv-9",
		Message:        wire("x1", "assistant", "elsewhere", epoch),
	})
	assert.Empty(t, h.renderer.visible())
}

func TestEngine_MissingEntryIsRenderedAgain(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.setHistory(assistantAt("a1", "answer", epoch))
	require.NoError(t, h.eng.LoadHistory(ctx, true))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	local := shown[0].LocalID
	h.renderer.vanish(local)

	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Equal(t, 1, h.renderer.withServerID("a1"))
	assert.Equal(t, 2, h.renderer.renders[local])

	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Equal(t, 2, h.renderer.renders[local])
}

func TestEngine_EarlierReplyDoesNotResolve(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.clock.Advance(time.Hour)
	require.NoError(t, h.eng.SendMessage(ctx, "question"))

	h.backend.setHistory(assistantAt("old", "stale answer", epoch))
	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Equal(t, 1, h.eng.Snapshot().Pending)

	h.backend.setHistory(
		assistantAt("old", "stale answer", epoch),
		assistantAt("new", "fresh answer", epoch.Add(2*time.Hour)),
	)
	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Zero(t, h.eng.Snapshot().Pending)
}

func TestEngine_CitationsResolvedOnAssistantMessages(t *testing.T) {
	h := newHarness(t, withoutSocket())
	m := assistantAt("a1", "Revenue grew [1].", epoch)
	m.Sources = []model.SourceDescriptor{{Number: 1, Name: "Q3.pdf", URL: "https://minio.knowrithm.org/b/Q3.pdf"}}
	h.backend.setHistory(m)
	require.NoError(t, h.eng.LoadHistory(ctx, true))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, "Revenue grew ¹.", shown[0].Body())
	require.Len(t, shown[0].References, 1)
	assert.Equal(t, "Q3.pdf", shown[0].References[0].DisplayName)
	assert.True(t, shown[0].References[0].IsFileAsset)
}

func TestEngine_CacheBound(t *testing.T) {
	h := newHarness(t, withoutSocket())
	msgs := make([]*model.Message, 600)
	for i := range msgs {
		msgs[i] = assistantAt("id-"+strconv.Itoa(i), "m"+strconv.Itoa(i), epoch.Add(time.Duration(i)*time.Second))
	}
	h.backend.setHistory(msgs...)
	require.NoError(t, h.eng.LoadHistory(ctx, true))

	assert.Len(t, h.renderer.visible(), 600)
	assert.Equal(t, 500, h.eng.Snapshot().CachedIDs)
	require.NoError(t, h.eng.call(func() {
		for i := 100; i < 600; i++ {
			assert.True(t, h.eng.cache.Has("id-"+strconv.Itoa(i)), "id-%d", i)
		}
		assert.False(t, h.eng.cache.Has("id-0"))
	}))

	// Evicted ids are still recognised through the store, which mirrors
	// the view and is not trimmed with the cache.
	require.NoError(t, h.eng.LoadHistory(ctx, false))
	assert.Len(t, h.renderer.visible(), 600)
	snap := h.eng.Snapshot()
	assert.Len(t, snap.Messages, 600)
	assert.Equal(t, 500, snap.CachedIDs)
}

func TestEngine_WelcomeOnEmptyHistory(t *testing.T) {
	h := newHarness(t, withoutSocket(), withWelcome("Hi! How can I help?"))
	require.NoError(t, h.eng.LoadHistory(ctx, true))

	shown := h.renderer.visible()
	require.Len(t, shown, 1)
	assert.True(t, shown[0].Synthetic)
	assert.Equal(t, model.RoleAssistant, shown[0].Role)

	h.backend.setHistory(assistantAt("a1", "first", epoch))
	require.NoError(t, h.eng.LoadHistory(ctx, true))
	shown = h.renderer.visible()
	require.Len(t, shown, 1)
	assert.Equal(t, "a1", shown[0].ID)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestEngine_TimeoutSurfacedOnce(t *testing.T) {
	h := newHarness(t, withoutSocket())
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "anyone?"))

	h.clock.Advance(89 * time.Second)
	assert.Empty(t, h.renderer.noticeTexts())

	h.clock.Advance(time.Second)
	h.clock.Advance(5 * time.Minute)

	assert.Equal(t, []string{TextTimeout}, h.renderer.noticeTexts())
	snap := h.eng.Snapshot()
	assert.Zero(t, snap.Pending)
	assert.Equal(t, transport.DefaultIdleInterval, snap.PollInterval)
	assert.False(t, h.renderer.isTyping())
}

func TestEngine_PushFailureNotice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hi"))

	h.push.handlers.OnResponse(push.ResponseEvent{ConversationID: "conv-1", Status: push.ResponseStatusFailed, Error: "llm down"})

	assert.Equal(t, []string{TextAssistantError}, h.renderer.noticeTexts())
	assert.Zero(t, h.eng.Snapshot().Pending)

	h.clock.Advance(2 * time.Minute)
	assert.Len(t, h.renderer.noticeTexts(), 1)
}

func TestEngine_RoomErrorNotice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	h.push.handlers.OnConversationError("no access")
	assert.Equal(t, []string{"no access"}, h.renderer.noticeTexts())
}

func TestEngine_SendFailureRollsBack(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.sendErr = errors.New("boom")
	require.NoError(t, h.eng.Start())

	err := h.eng.SendMessage(ctx, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Empty(t, h.renderer.visible())
	assert.Len(t, h.renderer.removed, 1)
	assert.Equal(t, []string{TextSendFailed}, h.renderer.noticeTexts())
	assert.Zero(t, h.eng.Snapshot().Pending)
}

func TestEngine_SessionExpired(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.sendErr = fmt.Errorf("send: %w", api.ErrSessionExpired)
	require.NoError(t, h.eng.Start())

	err := h.eng.SendMessage(ctx, "hello")
	require.ErrorIs(t, err, ErrSessionExpired)

	snap := h.eng.Snapshot()
	assert.True(t, snap.SessionExpired)
	assert.False(t, snap.PollTimerArmed)
	assert.Zero(t, snap.Pending)
	assert.Equal(t, []string{TextSessionExpired}, h.renderer.noticeTexts())

	require.ErrorIs(t, h.eng.SendMessage(ctx, "again"), ErrSessionExpired)
	assert.Len(t, h.backend.sends, 1)
	require.ErrorIs(t, h.eng.LoadHistory(ctx, false), ErrSessionExpired)
}

func TestEngine_PollSessionExpired(t *testing.T) {
	h := newHarness(t, withoutSocket())
	h.backend.fetchErr = api.ErrSessionExpired
	require.NoError(t, h.eng.Start())

	h.clock.Advance(transport.DefaultIdleInterval)
	assert.True(t, h.eng.Snapshot().SessionExpired)
	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.backend.fetches)
	assert.Len(t, h.renderer.noticeTexts(), 1)
}

func TestEngine_InputValidation(t *testing.T) {
	h := newHarness(t, withoutSocket())
	assert.ErrorIs(t, h.eng.SendMessage(ctx, "   \n"), ErrEmptyMessage)

	require.NoError(t, h.eng.SwitchConversation(""))
	assert.ErrorIs(t, h.eng.SendMessage(ctx, "hi"), ErrNoConversation)
	assert.Equal(t, []string{TextNotReady}, h.renderer.noticeTexts())
	assert.ErrorIs(t, h.eng.LoadHistory(ctx, true), ErrNoConversation)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestEngine_SwitchConversationClearsState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.eng.Start())
	require.NoError(t, h.eng.SendMessage(ctx, "hi"))

	require.NoError(t, h.eng.SwitchConversation("conv-2"))

	snap := h.eng.Snapshot()
	assert.Equal(t, "conv-2", snap.ConversationID)
	assert.Zero(t, snap.Pending)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, h.renderer.visible())
	assert.Equal(t, []string{"conv-1"}, h.push.leaves)
	assert.Equal(t, []string{"conv-1", "conv-2"}, h.push.joins)
	assert.Equal(t, "conv-2", snap.JoinedRoom)

	h.clock.Advance(5 * time.Minute)
	assert.Empty(t, h.renderer.noticeTexts())
}

func TestEngine_ShutdownIsFinal(t *testing.T) {
	h := newHarness(t, withoutSocket())
	require.NoError(t, h.eng.Start())
	h.eng.Shutdown()

	assert.ErrorIs(t, h.eng.Start(), ErrClosed)
	assert.ErrorIs(t, h.eng.SendMessage(ctx, "hi"), ErrClosed)
	assert.False(t, h.eng.Snapshot().PollTimerArmed)
	assert.Zero(t, h.clock.Pending())
}

func TestEngine_OwnLoop(t *testing.T) {
	b := &fakeBackend{}
	b.setHistory(assistantAt("a1", "hello", epoch))
	r := newFakeRenderer()
	eng := New(Config{ConversationID: "c", Transport: transport.Config{}}, Deps{Backend: b, Renderer: r})

	require.NoError(t, eng.LoadHistory(ctx, true))
	assert.Len(t, r.visible(), 1)
	eng.Shutdown()
	assert.ErrorIs(t, eng.LoadHistory(ctx, true), ErrClosed)
}
