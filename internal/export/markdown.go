// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/widgetsync/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil || len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	first, last := t.span()

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.title()))
		fmt.Fprintf(&sb, "agent: %s\n", escapeYAML(t.AgentID))
		fmt.Fprintf(&sb, "conversation: %s\n", escapeYAML(t.ConversationID))
		if !first.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", first.Format(time.RFC3339))
			fmt.Fprintf(&sb, "updated: %s\n", last.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: widgetsync\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.title()))

	for i, msg := range t.Messages {
		label := msg.Role.DisplayName()
		if ts := msg.Timestamp(); e.options.IncludeTimestamps && !ts.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(ts))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		content, refs := e.options.resolved(msg)
		sb.WriteString(strings.TrimSpace(content))
		sb.WriteString("\n\n")
		if len(refs) > 0 {
			sb.WriteString(formatReferences(refs))
			sb.WriteString("\n")
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if e.options.IncludeMetadata && !first.IsZero() {
		fmt.Fprintf(&sb, "\n---\n\n*%d messages, %s to %s*\n",
			len(t.Messages), formatTimestamp(first), formatTimestamp(last))
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatReferences lists references the way the chat window does: the
// superscript, then a link or the bare name.
func formatReferences(refs []model.Reference) string {
	var sb strings.Builder
	sb.WriteString("**References:**\n\n")
	for _, ref := range refs {
		name := escapeMarkdown(ref.DisplayName)
		if ref.URL != "" {
			fmt.Fprintf(&sb, "- %s [%s](%s)", ref.Superscript, name, ref.URL)
		} else {
			fmt.Fprintf(&sb, "- %s %s", ref.Superscript, name)
		}
		if ref.IsFileAsset && ref.Extension != "" {
			fmt.Fprintf(&sb, " (%s)", strings.ToUpper(ref.Extension))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// escapeMarkdown escapes characters that break headings and link labels.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

var markdownEscaper = strings.NewReplacer(
	"#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]",
)

// escapeYAML quotes a front matter value when it needs it.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
