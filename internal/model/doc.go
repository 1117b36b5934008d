// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the realtime engine,
// the citation resolver and the renderers.
//
// # Key Types
//
//   - Message: one conversation turn, optimistic (Temporary) until the server confirms it
//   - Reference: a deduplicated citation target derived from assistant content
//   - SourceDescriptor: server-supplied citation seed data
//   - Store: the ordered log of rendered messages, keyed by server id when known
//   - IDCache: the bounded set of server ids already rendered
//
// # Usage
//
//	store := model.NewStore()
//	msg := model.NewUserMessage("Hello!")
//	store.Append(msg)
//	store.Promote(msg, "42")
package model
