// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/pending"
)

// SendMessage renders text optimistically, opens a pending entry for the
// reply and posts it to the backend. The returned error is also shown to
// the user as a notice; callers decide whether to say more.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	var (
		convID string
		msg    *model.Message
		entry  *pending.Entry
		err    error
	)
	if cerr := e.call(func() {
		switch {
		case e.closed:
			err = ErrClosed
			return
		case e.expired:
			err = ErrSessionExpired
			return
		case e.conversationID == "":
			e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: TextNotReady})
			err = ErrNoConversation
			return
		}
		convID = e.conversationID
		msg = model.NewUserMessage(text)
		msg.SentAt = e.clock.Now()
		e.store.Append(msg)
		e.renderer.RenderMessage(msg.Clone())
		entry = e.tracker.Create(msg)
		e.syncPendingLocked()
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}

	res, sendErr := e.backend.SendUserMessage(ctx, convID, text)

	if cerr := e.call(func() {
		if convID != e.conversationID {
			// The conversation changed while the request was out.
			return
		}
		if sendErr != nil {
			e.sendFailedLocked(msg, entry, sendErr)
			return
		}
		e.tracker.SendReturned(entry, res.MessageID, res.TaskID)
		if res.MessageID != "" && msg.Temporary {
			if e.store.ByServerID(res.MessageID) != nil {
				// The echo arrived first and did not match the optimistic
				// text, so it is already on screen under its own entry.
				if e.store.Remove(msg.LocalID) {
					e.renderer.RemoveMessage(msg.LocalID)
				}
			} else if e.store.Promote(msg, res.MessageID) {
				e.registerLocked(res.MessageID)
				e.renderer.UpdateMessage(msg.Clone())
				e.persistLocked([]*model.Message{msg})
			}
		}
		e.logger.Debug("message sent",
			zap.String("local", msg.LocalID),
			zap.String("message_id", res.MessageID),
			zap.String("task_id", res.TaskID))
	}); cerr != nil {
		return cerr
	}
	if sendErr != nil {
		return fmt.Errorf("send message: %w", sendErr)
	}
	return nil
}

func (e *Engine) sendFailedLocked(msg *model.Message, entry *pending.Entry, err error) {
	if errors.Is(err, ErrSessionExpired) {
		e.expireSessionLocked()
		return
	}
	e.logger.Warn("send failed", zap.Error(err))
	e.tracker.Fail(entry)
	if msg.Temporary && e.store.Remove(msg.LocalID) {
		e.renderer.RemoveMessage(msg.LocalID)
	}
	e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: TextSendFailed})
	e.syncPendingLocked()
}

// LoadHistory fetches the first page of history and applies it. The
// initial load replaces the view and shows the welcome line when the
// conversation is empty.
func (e *Engine) LoadHistory(ctx context.Context, initial bool) error {
	var convID string
	var err error
	if cerr := e.call(func() {
		switch {
		case e.closed:
			err = ErrClosed
		case e.expired:
			err = ErrSessionExpired
		case e.conversationID == "":
			err = ErrNoConversation
		default:
			convID = e.conversationID
		}
	}); cerr != nil {
		return cerr
	}
	if err != nil {
		return err
	}

	msgs, fetchErr := e.backend.FetchMessages(ctx, convID, 1, e.pageSize)

	if cerr := e.call(func() {
		if convID != e.conversationID {
			return
		}
		if fetchErr != nil {
			if errors.Is(fetchErr, ErrSessionExpired) {
				e.expireSessionLocked()
			}
			return
		}
		if initial {
			e.clearViewLocked()
			if len(msgs) == 0 && e.welcome != "" {
				e.handleIncomingLocked(model.NewSyntheticMessage(e.welcome))
				return
			}
		}
		e.applyBatchLocked(msgs)
	}); cerr != nil {
		return cerr
	}
	if fetchErr != nil {
		return fmt.Errorf("load history: %w", fetchErr)
	}
	return nil
}
