// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/push"
)

// =============================================================================
// ARBITER HOOKS
// =============================================================================

// connectLocked starts a push connection attempt. The outcome arrives
// through the push handlers.
func (e *Engine) connectLocked() {
	if e.push == nil {
		e.arbiter.SocketFailed("push channel disabled")
		return
	}
	if e.push.Connected() {
		e.socketUpLocked()
		return
	}
	ch := e.push
	e.spawn(func() {
		if err := ch.Connect(e.ctx); err != nil {
			e.logger.Debug("push connect attempt failed", zap.Error(err))
		}
	})
}

// pollLocked runs one history fetch off the loop and applies the result.
func (e *Engine) pollLocked() {
	convID := e.conversationID
	if convID == "" || e.expired {
		e.arbiter.PollDone()
		return
	}
	e.spawn(func() {
		msgs, err := e.backend.FetchMessages(e.ctx, convID, 1, e.pageSize)
		e.exec.Post(func() {
			defer e.arbiter.PollDone()
			if convID != e.conversationID {
				return
			}
			if err != nil {
				if errors.Is(err, ErrSessionExpired) {
					e.expireSessionLocked()
					return
				}
				e.logger.Warn("poll failed", zap.Error(err))
				if head := e.tracker.Overdue(e.clock.Now()); head != nil {
					e.expireLocked(head)
				}
				return
			}
			e.applyBatchLocked(msgs)
		})
	})
}

func (e *Engine) socketUpLocked() {
	e.socketUp = true
	e.arbiter.SocketConnected()
	e.joinRoomLocked()
}

func (e *Engine) joinRoomLocked() {
	if e.push == nil || !e.socketUp || e.conversationID == "" || e.joinedRoom == e.conversationID {
		return
	}
	convID, ch := e.conversationID, e.push
	e.spawn(func() {
		if err := ch.Join(convID); err != nil {
			e.logger.Debug("join room failed", zap.String("conversation", convID), zap.Error(err))
		}
	})
}

// =============================================================================
// PUSH EVENTS
// =============================================================================

// PushHandlers returns handlers for the push channel. Each one only posts
// to the engine loop, so they are safe to call from the channel's reader.
func (e *Engine) PushHandlers() push.Handlers {
	return push.Handlers{
		OnConnect: func() {
			e.exec.Post(e.socketUpLocked)
		},
		OnDisconnect: func(err error) {
			e.exec.Post(func() { e.socketDownLocked("disconnect", err) })
		},
		OnConnectError: func(err error) {
			e.exec.Post(func() { e.socketDownLocked("connect error", err) })
		},
		OnStatus: func(ev push.StatusEvent) {
			e.exec.Post(func() { e.onStatusLocked(ev) })
		},
		OnResponse: func(ev push.ResponseEvent) {
			e.exec.Post(func() { e.onResponseLocked(ev) })
		},
		OnJoined: func(id string) {
			e.exec.Post(func() {
				if id == "" || id == e.conversationID {
					e.joinedRoom = e.conversationID
				}
			})
		},
		OnConversationError: func(msg string) {
			e.exec.Post(func() {
				e.logger.Warn("conversation room error", zap.String("message", msg))
				text := TextAssistantError
				if msg != "" {
					text = msg
				}
				e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: text})
			})
		},
	}
}

func (e *Engine) socketDownLocked(reason string, err error) {
	e.socketUp = false
	e.joinedRoom = ""
	if err != nil {
		reason += ": " + err.Error()
	}
	e.arbiter.SocketFailed(reason)
}

func (e *Engine) forThisConversation(id string) bool {
	return id == "" || id == e.conversationID
}

func (e *Engine) onStatusLocked(ev push.StatusEvent) {
	if e.closed || !e.forThisConversation(string(ev.ConversationID)) {
		return
	}
	if entry := e.tracker.AttachFromStatus(string(ev.MessageID)); entry != nil {
		e.logger.Debug("status attached message id",
			zap.String("entry", entry.ID),
			zap.String("message_id", string(ev.MessageID)),
			zap.String("status", ev.Status))
	}
}

func (e *Engine) onResponseLocked(ev push.ResponseEvent) {
	if e.closed || e.expired || !e.forThisConversation(string(ev.ConversationID)) {
		return
	}
	hasContent := strings.TrimSpace(ev.Message.Content) != ""
	if ev.Failed() && !hasContent {
		e.logger.Warn("assistant reported failure", zap.String("error", ev.Error))
		if head := e.tracker.Head(); head != nil {
			e.tracker.Fail(head)
		}
		e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: TextAssistantError})
		e.syncPendingLocked()
		return
	}
	if !hasContent && ev.Message.ID == "" {
		return
	}

	msg := ev.Message.ToModel()
	before := e.tracker.Head()
	kept := e.handleIncomingLocked(msg)
	if kept != nil && kept == msg && !ev.Failed() && msg.Role == model.RoleAssistant {
		// A fresh reply over push is authoritative for the oldest round
		// trip, unless the incoming rules already resolved it. One reply
		// settles at most one entry.
		if before != nil && before.Queued() {
			e.tracker.Resolve(before)
		}
	}
	e.syncPendingLocked()
	if kept != nil {
		e.persistLocked([]*model.Message{kept})
	}
}
