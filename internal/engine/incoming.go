// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/pending"
)

// applyBatchLocked feeds a batch from either transport through the
// incoming rules, then runs the timeout backstop.
func (e *Engine) applyBatchLocked(msgs []*model.Message) {
	var confirmed []*model.Message
	for _, m := range msgs {
		if kept := e.handleIncomingLocked(m); kept != nil {
			confirmed = append(confirmed, kept)
		}
	}
	if head := e.tracker.Overdue(e.clock.Now()); head != nil {
		e.expireLocked(head)
	}
	e.syncPendingLocked()
	e.persistLocked(confirmed)
}

// handleIncomingLocked applies one message. It returns the message that
// now holds the server id when the message was newly confirmed, or nil.
func (e *Engine) handleIncomingLocked(m *model.Message) *model.Message {
	if m == nil {
		return nil
	}
	if !m.HasID() {
		if m.Role == model.RoleAssistant {
			e.resolver.Apply(m)
		}
		e.store.Append(m)
		e.renderer.RenderMessage(m.Clone())
		return nil
	}

	// The store decides duplicates. It holds exactly what the view holds,
	// so it grows with the transcript; the id cache only tracks the newest
	// rendered ids.
	if existing := e.store.ByServerID(m.ID); existing != nil {
		if e.renderer.IsRendered(existing.LocalID) {
			if !e.cache.Has(m.ID) {
				e.registerLocked(m.ID)
			}
			e.logger.Debug("duplicate message dropped", zap.String("id", m.ID))
			return nil
		}
		// Known but missing from the view: show it again.
		e.logger.Warn("rendered entry missing, re-rendering", zap.String("id", m.ID))
		e.renderer.RenderMessage(existing.Clone())
		e.registerLocked(m.ID)
		return nil
	}

	switch m.Role {
	case model.RoleUser:
		return e.handleUserLocked(m)
	case model.RoleAssistant:
		return e.handleAssistantLocked(m)
	default:
		e.store.Append(m)
		e.registerLocked(m.ID)
		e.renderer.RenderMessage(m.Clone())
		return m
	}
}

func (e *Engine) handleUserLocked(m *model.Message) *model.Message {
	var local *model.Message
	if entry := e.tracker.FindByServerID(m.ID); entry != nil && entry.Message != nil && entry.Message.Temporary {
		local = entry.Message
	}
	if local == nil {
		local = e.store.FindTemporary(model.RoleUser, m.RawContent)
	}
	if local == nil {
		e.store.Append(m)
		e.registerLocked(m.ID)
		e.renderer.RenderMessage(m.Clone())
		return m
	}

	if !e.store.Promote(local, m.ID) {
		e.logger.Debug("promotion refused", zap.String("id", m.ID), zap.String("local", local.LocalID))
		return nil
	}
	if !m.CreatedAt.IsZero() {
		local.CreatedAt = m.CreatedAt
	}
	e.registerLocked(m.ID)
	if entry := e.tracker.FindByMessage(local); entry != nil {
		e.tracker.AttachServerID(entry, m.ID)
	}
	e.renderer.UpdateMessage(local.Clone())
	e.logger.Debug("optimistic message confirmed", zap.String("id", m.ID), zap.String("local", local.LocalID))
	return local
}

func (e *Engine) handleAssistantLocked(m *model.Message) *model.Message {
	e.resolver.Apply(m)
	e.store.Append(m)
	e.registerLocked(m.ID)
	e.renderer.RenderMessage(m.Clone())

	if head := e.tracker.Head(); head != nil && e.looksLikeReply(m) {
		e.tracker.Resolve(head)
	}
	return m
}

// looksLikeReply correlates by time only: the reply must not predate the
// latest user message. Messages without a timestamp are accepted.
func (e *Engine) looksLikeReply(m *model.Message) bool {
	last := e.store.LastUser()
	if last == nil {
		return true
	}
	at, userAt := m.Timestamp(), last.Timestamp()
	if at.IsZero() || userAt.IsZero() {
		return true
	}
	return !at.Before(userAt)
}

func (e *Engine) registerLocked(id string) {
	e.cache.Register(id, e.store.RecentIDs)
}

// expireLocked terminates an entry whose deadline passed. The notice is
// shown only by the call that actually removed it.
func (e *Engine) expireLocked(entry *pending.Entry) {
	if !e.tracker.Expire(entry) {
		return
	}
	e.logger.Warn("response timed out", zap.String("entry", entry.ID), zap.String("message_id", entry.ServerMessageID))
	e.renderer.ShowNotice(Notice{Kind: NoticeError, Text: TextTimeout})
	e.syncPendingLocked()
}

// persistLocked writes confirmed messages off the loop.
func (e *Engine) persistLocked(msgs []*model.Message) {
	if e.history == nil || len(msgs) == 0 || e.conversationID == "" {
		return
	}
	convID := e.conversationID
	batch := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, m.Clone())
	}
	e.spawn(func() {
		added, err := e.history.AppendMessages(e.ctx, convID, batch)
		if err != nil {
			e.logger.Warn("persist history failed", zap.Error(err))
			return
		}
		if added > 0 {
			if err := e.history.PruneHistory(e.ctx, convID, 0); err != nil {
				e.logger.Warn("prune history failed", zap.Error(err))
			}
		}
	})
}
