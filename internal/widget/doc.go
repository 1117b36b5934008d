// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package widget is the shell around the reconciliation engine. It owns
// the session (restore, registration, persistence), the conversation
// lifecycle and the wiring between the HTTP client, the push channel and
// the renderer.
//
// A process has at most one widget. Init creates it on first use and every
// later call returns the same handle; it is never torn down before exit.
package widget
