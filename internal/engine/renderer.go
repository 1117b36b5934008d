// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "github.com/jeranaias/widgetsync/internal/model"

// NoticeKind classifies a user-visible notice.
type NoticeKind int

const (
	NoticeError NoticeKind = iota
	NoticeInfo
)

// String returns the kind name.
func (k NoticeKind) String() string {
	if k == NoticeInfo {
		return "info"
	}
	return "error"
}

// Notice texts.
const (
	TextTimeout        = "Response timed out. Please try again."
	TextAssistantError = "The assistant could not respond. Please try again."
	TextSessionExpired = "Session expired. Please restart the chat."
	TextSendFailed     = "Failed to send message. Please try again."
	TextNotReady       = "Conversation not ready. Please wait and try again."
)

// Notice is a banner for the user. Renderers dismiss it on their own
// after a few seconds.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Renderer draws the conversation. The engine passes copies, keyed by
// Message.LocalID, which stays the same when a message is promoted.
type Renderer interface {
	// RenderMessage appends a new entry.
	RenderMessage(m *model.Message)
	// UpdateMessage replaces the entry with the same LocalID in place.
	UpdateMessage(m *model.Message)
	// RemoveMessage deletes an entry. Unknown ids are ignored.
	RemoveMessage(localID string)
	// IsRendered reports whether the entry is currently shown.
	IsRendered(localID string) bool
	ShowNotice(n Notice)
	// SetTyping toggles the waiting-for-reply indicator.
	SetTyping(on bool)
}
