// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/widgetsync/internal/model"
)

// =============================================================================
// FLEXIBLE SCALARS
// =============================================================================

// ID is a server identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*id = ID(n.String())
	}
	return nil
}

// Timestamp is a server time that may be RFC 3339, a naive ISO string or
// unix seconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable values leave the
// time zero rather than failing the whole payload.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Time = time.Time{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		if secs, err := strconv.ParseFloat(string(data), 64); err == nil {
			t.Time = time.Unix(0, int64(secs*float64(time.Second))).UTC()
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// Metadata carries optional message extras.
type Metadata struct {
	AllSources []model.SourceDescriptor `json:"all_sources,omitempty"`
}

// WireMessage is a message as the backend encodes it, in history
// responses and in push events alike.
type WireMessage struct {
	ID        ID                       `json:"id"`
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	CreatedAt Timestamp                `json:"created_at"`
	Sources   []model.SourceDescriptor `json:"sources,omitempty"`
	Metadata  *Metadata                `json:"metadata,omitempty"`
}

// ToModel converts the wire form into a confirmed model.Message.
func (w WireMessage) ToModel() *model.Message {
	m := model.NewConfirmedMessage(string(w.ID), model.ParseRole(w.Role), w.Content, w.CreatedAt.Time)
	m.Sources = w.Sources
	if w.Metadata != nil {
		m.AllSources = w.Metadata.AllSources
	}
	return m
}

// =============================================================================
// REQUEST / RESPONSE BODIES
// =============================================================================

// Lead is the visitor registration payload.
type Lead struct {
	FirstName string `json:"first_name" toml:"first_name"`
	LastName  string `json:"last_name" toml:"last_name"`
	Email     string `json:"email" toml:"email"`
	Phone     string `json:"phone,omitempty" toml:"phone"`
	AgentID   string `json:"agent_id" toml:"agent_id"`
}

// Session holds the bearer tokens issued by lead registration.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Valid reports whether an access token is present.
func (s Session) Valid() bool { return s.AccessToken != "" }

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	AccessCamel  string `json:"accessToken"`
	RefreshToken string `json:"refresh_token"`
	RefreshCamel string `json:"refreshToken"`
}

func (t tokenBody) session() Session {
	s := Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if s.AccessToken == "" {
		s.AccessToken = t.AccessCamel
	}
	if s.RefreshToken == "" {
		s.RefreshToken = t.RefreshCamel
	}
	return s
}

// registerResponse accepts tokens nested under "tokens" or at top level.
type registerResponse struct {
	Tokens *tokenBody `json:"tokens"`
	tokenBody
}

// Agent is the public profile of the agent behind the widget.
type Agent struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	CompanyID      ID     `json:"company_id"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}

// Greeting returns the welcome line to show in an empty conversation.
func (a *Agent) Greeting() string {
	if a == nil {
		return ""
	}
	if a.WelcomeMessage != "" {
		return a.WelcomeMessage
	}
	if a.Name != "" {
		return "Hi! I'm " + a.Name + ". How can I help you today?"
	}
	return ""
}

type agentResponse struct {
	Agent Agent `json:"agent"`
}

type createConversationRequest struct {
	AgentID string `json:"agent_id"`
	Title   string `json:"title"`
}

type createConversationResponse struct {
	Conversation struct {
		ID ID `json:"id"`
	} `json:"conversation"`
}

type sendRequest struct {
	Message string `json:"message"`
}

// SendResult is what the send endpoint reports. Either field may be empty.
type SendResult struct {
	MessageID string
	TaskID    string
}

type sendResponse struct {
	MessageID ID `json:"message_id"`
	TaskID    ID `json:"task_id"`
}

type messagesResponse struct {
	Messages []WireMessage `json:"messages"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Error, e.Message, e.Detail} {
		if s != "" {
			return s
		}
	}
	return ""
}
