// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/widgetsync/internal/model"
)

// DefaultHistoryLimit is how many messages are kept per conversation.
const DefaultHistoryLimit = 500

type storedSources struct {
	Sources    []model.SourceDescriptor `json:"sources,omitempty"`
	AllSources []model.SourceDescriptor `json:"all_sources,omitempty"`
}

// AppendMessages records confirmed messages. Messages without a server id
// are skipped and ids already stored are left untouched.
func (s *DB) AppendMessages(ctx context.Context, conversationID string, msgs []*model.Message) (int, error) {
	if conversationID == "" || len(msgs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?",
		conversationID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO messages
		 (conversation_id, message_id, role, content, sources, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, m := range msgs {
		if m == nil || !m.HasID() || m.Synthetic {
			continue
		}
		sources := ""
		if len(m.Sources) > 0 || len(m.AllSources) > 0 {
			b, err := json.Marshal(storedSources{Sources: m.Sources, AllSources: m.AllSources})
			if err != nil {
				return 0, fmt.Errorf("failed to marshal sources: %w", err)
			}
			sources = string(b)
		}
		var created int64
		if ts := m.Timestamp(); !ts.IsZero() {
			created = ts.UnixMilli()
		}
		res, err := stmt.ExecContext(ctx, conversationID, m.ID, m.Role.String(), m.RawContent, sources, created, next+1)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return added, nil
}

// History returns up to limit of the newest stored messages, oldest first.
func (s *DB) History(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, sources, created_at FROM (
			SELECT message_id, role, content, sources, created_at, seq FROM messages
			WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var (
			id, role, content, sources string
			created                    int64
		)
		if err := rows.Scan(&id, &role, &content, &sources, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var ts time.Time
		if created > 0 {
			ts = time.UnixMilli(created)
		}
		m := model.NewConfirmedMessage(id, model.ParseRole(role), content, ts)
		if sources != "" {
			var ss storedSources
			if json.Unmarshal([]byte(sources), &ss) == nil {
				m.Sources = ss.Sources
				m.AllSources = ss.AllSources
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PruneHistory keeps only the newest keep messages of a conversation.
func (s *DB) PruneHistory(ctx context.Context, conversationID string, keep int) error {
	if keep <= 0 {
		keep = DefaultHistoryLimit
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND seq <= (
			SELECT COALESCE(MAX(seq), 0) - ? FROM messages WHERE conversation_id = ?
		 )`, conversationID, keep, conversationID)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

// DeleteHistory removes every stored message of a conversation.
func (s *DB) DeleteHistory(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
