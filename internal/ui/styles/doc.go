// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the palette and lipgloss styles of the chat window.

Colors are lipgloss.AdaptiveColor values, so they follow the terminal's
background. A theme name of "dark" or "light" pins the choice:

	theme := styles.NewTheme("auto")
	bubble := theme.AssistantBubble.Width(60).Render(text)
*/
package styles
