// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for command output.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set.

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/widgetsync/internal/ui/styles"
)

// ApplyColorProfile configures lipgloss for the current terminal. Main
// calls it once flags are parsed.
func ApplyColorProfile(args Args) {
	if args.NoColor {
		ForceColorsEnabled(false)
	}
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// TitleStyle is used for command titles and the chat header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Brand)

	// SectionStyle is used for config sections.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(28)

	// ValueStyle is used for values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// ErrorStyle marks errors.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Danger).
			Bold(true)

	// InfoStyle marks informational notices.
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	// DimStyle is used for hints and the typing line.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// UserLabelStyle and AssistantLabelStyle head each printed turn.
	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.UserFg)
	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(styles.AssistantFg)
)

// RenderConditional styles text only when colors are enabled.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}
