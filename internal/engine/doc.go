// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine reconciles message delivery for one conversation.
//
// Replies can arrive over the push channel, through history polling, or
// not at all. The Engine merges both sources into a single deduplicated
// message log, promotes optimistic user messages in place when the server
// echoes them, tracks outstanding round trips, and surfaces a timeout
// when a reply never comes.
//
// # Concurrency
//
// All engine state is owned by an Executor that runs closures one at a
// time. Push events, timer callbacks and HTTP completions only post
// closures; methods whose names end in Locked assume they are running on
// the executor. Blocking HTTP calls run outside it. Renderer methods are
// invoked from the executor, so renderers that draw elsewhere must hand
// the work off themselves.
package engine
