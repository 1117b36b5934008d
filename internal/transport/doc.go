// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport decides which delivery channel is live at any moment.
//
// The Arbiter is a state machine over the push channel:
//
//	SocketPreferred -> SocketConnecting -> SocketActive
//	SocketConnecting/SocketActive -> SocketFailed (polling, one retry armed)
//	SocketFailed -> SocketConnecting (when the retry fires)
//	PollingOnly (push disabled by configuration)
//
// Polling runs whenever the push channel is not active, and also alongside
// an active push channel while any reply is still pending. Its cadence is
// fast while replies are pending and idle otherwise. With nothing pending
// and the push channel connected no poll timer exists at all.
//
// The Arbiter is confined to its owner's event loop. Timer callbacks are
// routed through the post function supplied at construction.
package transport
