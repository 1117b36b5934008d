// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation turns raw assistant text into display text plus a
// numbered, deduplicated reference list.
//
// # Pipeline
//
//  1. Build the source map from server sources, metadata sources and any
//     trailing "References:" block. Server numbers win on conflict.
//  2. Replace bracketed markers such as [2] or [Source 1, Source 3]. Bullet
//     lines get inline "→" links, prose gets superscript footnotes.
//  3. Footnote bare URLs (markdown self-links, parenthesized and inline).
//  4. Swap "View Source" placeholders for a link, or drop them.
//  5. Bold bullet labels ("- Revenue: ..." becomes "- **Revenue**: ...").
//  6. Emit one Reference per footnote in index order.
//
// Resolve never panics and never fails: on any internal error it returns
// the input unchanged with no references.
//
// # Usage
//
//	r := citation.New(citation.Options{FileHosts: []string{"files.example.com"}}, logger)
//	res := r.Resolve(citation.Input{Content: body, Sources: msg.Sources})
package citation
