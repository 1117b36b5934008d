// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package push is the realtime channel to the backend.
//
// The backend sends JSON frames of the form {"event": name, "data": {...}}
// over a websocket. Channel decodes them and hands typed events to the
// Handlers it was built with. Handlers run on the channel's reader
// goroutine, so owners that need single-threaded state should post the
// work to their own loop.
package push
