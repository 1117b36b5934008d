// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// Store is the ordered log of rendered messages for one conversation.
//
// Store is not safe for concurrent use. It is owned by the reconciliation
// engine, which confines it to its event loop.
type Store struct {
	messages []*Message
	byLocal  map[string]*Message
	byServer map[string]*Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byLocal:  make(map[string]*Message),
		byServer: make(map[string]*Message),
	}
}

// Append adds a message at the end of the log.
func (s *Store) Append(m *Message) {
	s.messages = append(s.messages, m)
	s.byLocal[m.LocalID] = m
	if m.ID != "" {
		s.byServer[m.ID] = m
	}
}

// Remove deletes the message with the given local id. It reports whether
// anything was removed; removing twice is a no-op.
func (s *Store) Remove(localID string) bool {
	m, ok := s.byLocal[localID]
	if !ok {
		return false
	}
	delete(s.byLocal, localID)
	if m.ID != "" && s.byServer[m.ID] == m {
		delete(s.byServer, m.ID)
	}
	for i, cur := range s.messages {
		if cur == m {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	return true
}

// ByServerID returns the message confirmed with id, or nil.
func (s *Store) ByServerID(id string) *Message {
	if id == "" {
		return nil
	}
	return s.byServer[id]
}

// FindTemporary returns the oldest unconfirmed message with the given role
// whose trimmed content equals content.
func (s *Store) FindTemporary(role Role, content string) *Message {
	want := NormalizeContent(content)
	for _, m := range s.messages {
		if m.Temporary && m.Role == role && NormalizeContent(m.RawContent) == want {
			return m
		}
	}
	return nil
}

// Promote attaches a server id to a temporary message in place and clears
// its temporary flag. It returns false when m is not held by the store or
// already carries a different id.
func (s *Store) Promote(m *Message, id string) bool {
	if m == nil || id == "" || s.byLocal[m.LocalID] != m {
		return false
	}
	if m.ID != "" && m.ID != id {
		return false
	}
	m.ID = id
	m.Temporary = false
	s.byServer[id] = m
	return true
}

// LastUser returns the most recent user message, or nil.
func (s *Store) LastUser() *Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleUser {
			return s.messages[i]
		}
	}
	return nil
}

// RecentIDs returns up to n server ids, taken from the newest end of the
// log and returned in log order.
func (s *Store) RecentIDs(n int) []string {
	ids := make([]string, 0, n)
	for i := len(s.messages) - 1; i >= 0 && len(ids) < n; i-- {
		if id := s.messages[i].ID; id != "" {
			ids = append(ids, id)
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// Messages returns the log in order. The slice is a copy; the messages are not.
func (s *Store) Messages() []*Message {
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Reset removes every message.
func (s *Store) Reset() {
	s.messages = nil
	s.byLocal = make(map[string]*Message)
	s.byServer = make(map[string]*Message)
}

// NormalizeContent is the comparison form used to match optimistic
// messages against their server echo.
func NormalizeContent(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
