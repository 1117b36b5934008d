// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/widgetsync/internal/engine"
	"github.com/jeranaias/widgetsync/internal/model"
)

// Messages delivered to the model by the Bridge.
type (
	// RenderMsg appends a new entry.
	RenderMsg struct{ Message *model.Message }
	// UpdateMsg replaces an entry in place, keyed by LocalID.
	UpdateMsg struct{ Message *model.Message }
	// RemoveMsg drops an entry.
	RemoveMsg struct{ LocalID string }
	// NoticeMsg shows a banner.
	NoticeMsg struct{ Notice engine.Notice }
	// TypingMsg toggles the typing indicator.
	TypingMsg struct{ On bool }
)

// Internal messages.
type (
	dismissNoticeMsg struct{ seq int }
	sentMsg          struct{ err error }
	visibilityMsg    struct{ hidden bool }
)
