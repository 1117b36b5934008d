// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ParseRole maps a server role string onto a Role. Anything that is not a
// user turn is shown as assistant output.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
type Message struct {
	// Identity. LocalID never changes and is what renderers key on; ID is
	// empty until the server confirms the message.
	LocalID string `json:"local_id"`
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`

	// Content
	RawContent     string      `json:"content"`
	DisplayContent string      `json:"display_content,omitempty"`
	References     []Reference `json:"references,omitempty"`

	// Citation seed data supplied by the server.
	Sources    []SourceDescriptor `json:"sources,omitempty"`
	AllSources []SourceDescriptor `json:"all_sources,omitempty"`

	// CreatedAt is the server timestamp; zero when unknown.
	CreatedAt time.Time `json:"created_at,omitempty"`
	// SentAt is the local dispatch time of an optimistic message.
	SentAt time.Time `json:"-"`

	// Temporary is true until the server confirms the message.
	Temporary bool `json:"-"`
	// Synthetic marks locally generated content such as the welcome line.
	Synthetic bool `json:"-"`
}

// NewUserMessage creates an optimistic user message.
func NewUserMessage(content string) *Message {
	now := time.Now()
	return &Message{
		LocalID:        uuid.NewString(),
		Role:           RoleUser,
		RawContent:     content,
		DisplayContent: content,
		SentAt:         now,
		Temporary:      true,
	}
}

// NewConfirmedMessage creates a message received from a transport.
func NewConfirmedMessage(id string, role Role, content string, createdAt time.Time) *Message {
	return &Message{
		LocalID:    uuid.NewString(),
		ID:         id,
		Role:       role,
		RawContent: content,
		CreatedAt:  createdAt,
	}
}

// NewSyntheticMessage creates an id-less assistant message such as a greeting.
func NewSyntheticMessage(content string) *Message {
	return &Message{
		LocalID:        uuid.NewString(),
		Role:           RoleAssistant,
		RawContent:     content,
		DisplayContent: content,
		Synthetic:      true,
	}
}

// HasID reports whether the server has assigned an id.
func (m *Message) HasID() bool {
	return m != nil && m.ID != ""
}

// Timestamp returns the best known time for the message: the server
// timestamp when present, else the local send time.
func (m *Message) Timestamp() time.Time {
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt
	}
	return m.SentAt
}

// Body returns the content to show, falling back to the raw content when
// no annotated form has been produced.
func (m *Message) Body() string {
	if m.DisplayContent != "" {
		return m.DisplayContent
	}
	return m.RawContent
}

// Clone returns a copy that shares no slices with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.References = append([]Reference(nil), m.References...)
	c.Sources = append([]SourceDescriptor(nil), m.Sources...)
	c.AllSources = append([]SourceDescriptor(nil), m.AllSources...)
	return &c
}
