// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored conversation transcripts to files.
//
// Assistant turns are passed through the citation resolver first, so an
// exported transcript carries the same superscripts and reference lists
// the chat window shows.
//
// # Supported Formats
//
//   - Markdown: Human-readable, with a References section per reply
//   - JSON: Machine-readable, with resolved references
//
// # Usage
//
//	t := &export.Transcript{AgentID: "42", ConversationID: id, Messages: msgs}
//	path, err := export.ExportToFile(t, export.NewMarkdownExporter(opts), opts)
package export
