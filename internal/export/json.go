// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jeranaias/widgetsync/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON. Metadata and timestamps are
// always included.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// TranscriptJSON is the exported document.
type TranscriptJSON struct {
	AgentID        string        `json:"agent_id"`
	ConversationID string        `json:"conversation_id"`
	Title          string        `json:"title"`
	ExportedAt     time.Time     `json:"exported_at"`
	Messages       []MessageJSON `json:"messages"`
}

// MessageJSON is one exported message.
type MessageJSON struct {
	ID             string                   `json:"id"`
	Role           model.Role               `json:"role"`
	Content        string                   `json:"content"`
	DisplayContent string                   `json:"display_content,omitempty"`
	References     []model.Reference        `json:"references,omitempty"`
	Sources        []model.SourceDescriptor `json:"sources,omitempty"`
	CreatedAt      *time.Time               `json:"created_at,omitempty"`
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil || len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	doc := TranscriptJSON{
		AgentID:        t.AgentID,
		ConversationID: t.ConversationID,
		Title:          t.title(),
		ExportedAt:     e.options.now().UTC(),
		Messages:       make([]MessageJSON, 0, len(t.Messages)),
	}
	for _, m := range t.Messages {
		out := MessageJSON{
			ID:      m.ID,
			Role:    m.Role,
			Content: m.RawContent,
			Sources: m.Sources,
		}
		if m.Role == model.RoleAssistant {
			out.DisplayContent, out.References = e.options.resolved(m)
		}
		if ts := m.Timestamp(); !ts.IsZero() {
			ts = ts.UTC()
			out.CreatedAt = &ts
		}
		doc.Messages = append(doc.Messages, out)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
