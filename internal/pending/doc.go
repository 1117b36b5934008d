// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pending tracks user messages that are waiting for an assistant
// reply.
//
// Entries form a FIFO queue; the head is the oldest outstanding round trip
// and is the one matched first against incoming replies. Each entry carries
// a deadline timer. Every terminal transition (Resolve, Fail, Expire) removes
// the entry exactly once; repeating it is a no-op that returns false.
//
// The Tracker is not safe for concurrent use. Deadline callbacks run on the
// clock's goroutine, so owners must hop back onto their own event loop
// before calling Expire.
package pending
