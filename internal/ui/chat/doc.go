// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the terminal chat window.

The engine talks to the window through a Bridge, which implements the
engine's Renderer contract from any goroutine by forwarding bubbletea
messages to the running program:

	bridge := chat.NewBridge()
	m := chat.New(chat.Options{Theme: theme, Title: "Support", Send: send})
	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.Attach(p)

The Bridge keeps its own record of which entries are shown so the engine
can ask IsRendered without waiting on the program.
*/
package chat
