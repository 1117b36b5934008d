// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
)

// ErrNoSession is returned when no record exists for an agent.
var ErrNoSession = errors.New("no stored session")

// SessionRecord is what survives a restart for one agent.
type SessionRecord struct {
	AgentID        string
	ConversationID string
	Session        api.Session
	Lead           *api.Lead
	UpdatedAt      time.Time
}

// LoadSession returns the record for agentID or ErrNoSession. A record
// whose sealed fields no longer open is treated as absent.
func (s *DB) LoadSession(ctx context.Context, agentID string) (*SessionRecord, error) {
	var (
		convID          string
		access, refresh []byte
		lead            []byte
		updated         int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, access_token, refresh_token, lead, updated_at
		 FROM sessions WHERE agent_id = ?`, agentID).
		Scan(&convID, &access, &refresh, &lead, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rec := &SessionRecord{
		AgentID:        agentID,
		ConversationID: convID,
		UpdatedAt:      time.Unix(updated, 0),
	}
	if rec.Session.AccessToken, err = s.seal.openString(access); err != nil {
		s.logger.Warn("discarding unreadable session", zap.String("agent", agentID), zap.Error(err))
		return nil, ErrNoSession
	}
	if rec.Session.RefreshToken, err = s.seal.openString(refresh); err != nil {
		rec.Session.RefreshToken = ""
	}
	if len(lead) > 0 {
		plain, err := s.seal.open(lead)
		if err == nil {
			var l api.Lead
			if json.Unmarshal(plain, &l) == nil {
				rec.Lead = &l
			}
		}
	}
	return rec, nil
}

// SaveSession inserts or replaces the record for rec.AgentID.
func (s *DB) SaveSession(ctx context.Context, rec SessionRecord) error {
	if rec.AgentID == "" {
		return errors.New("agent id is required")
	}
	access, err := s.seal.sealString(rec.Session.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.seal.sealString(rec.Session.RefreshToken)
	if err != nil {
		return err
	}
	var lead []byte
	if rec.Lead != nil {
		plain, err := json.Marshal(rec.Lead)
		if err != nil {
			return fmt.Errorf("failed to marshal lead: %w", err)
		}
		if lead, err = s.seal.seal(plain); err != nil {
			return err
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (agent_id, conversation_id, access_token, refresh_token, lead, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			lead = excluded.lead,
			updated_at = excluded.updated_at`,
		rec.AgentID, rec.ConversationID, access, refresh, lead, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SetConversation updates only the conversation id of an existing record.
func (s *DB) SetConversation(ctx context.Context, agentID, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET conversation_id = ?, updated_at = ? WHERE agent_id = ?",
		conversationID, time.Now().Unix(), agentID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoSession
	}
	return nil
}

// ClearSession deletes the record for agentID. Deleting twice is a no-op.
func (s *DB) ClearSession(ctx context.Context, agentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE agent_id = ?", agentID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
