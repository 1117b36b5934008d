// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"encoding/json"

	"github.com/jeranaias/widgetsync/internal/api"
)

// Event names on the wire.
const (
	EventChatStatus         = "chat_status"
	EventChatResponse       = "chat_response"
	EventConversationJoined = "conversation_joined"
	EventConversationError  = "conversation_error"
	EventJoinConversation   = "join_conversation"
	EventLeaveConversation  = "leave_conversation"
)

// Response statuses. A missing status means completed.
const (
	ResponseStatusCompleted = "completed"
	ResponseStatusFailed    = "failed"
)

// Frame is one websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusEvent reports progress on a sent message.
type StatusEvent struct {
	ConversationID api.ID `json:"conversation_id"`
	MessageID      api.ID `json:"message_id"`
	TaskID         api.ID `json:"task_id"`
	Status         string `json:"status"`
}

// ResponseEvent delivers an assistant reply, or reports that none is coming.
type ResponseEvent struct {
	ConversationID api.ID          `json:"conversation_id"`
	Message        api.WireMessage `json:"message"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// Failed reports whether the backend gave up on the reply.
func (e ResponseEvent) Failed() bool { return e.Status == ResponseStatusFailed }

type roomPayload struct {
	ConversationID api.ID `json:"conversation_id"`
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
