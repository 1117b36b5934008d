// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the chat window.
type Theme struct {
	// Name is "dark", "light" or "auto" as configured.
	Name   string
	IsDark bool

	Header    lipgloss.Style
	Subtitle  lipgloss.Style
	StatusBar lipgloss.Style

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	Pending         lipgloss.Style

	ReferenceIndex lipgloss.Style
	ReferenceName  lipgloss.Style
	ReferenceURL   lipgloss.Style

	NoticeError lipgloss.Style
	NoticeInfo  lipgloss.Style

	Typing lipgloss.Style
	Prompt lipgloss.Style
	Input  lipgloss.Style
}

// NewTheme builds the theme. "dark" and "light" override detection.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	t := &Theme{Name: name}
	switch name {
	case "dark":
		t.IsDark = true
		lipgloss.SetHasDarkBackground(true)
	case "light":
		t.IsDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		t.Name = "auto"
		t.IsDark = termenv.HasDarkBackground()
	}
	t.initStyles()
	return t
}

// GlamourStyle is the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Brand).
		Background(SurfaceDim).
		Padding(0, 1)

	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(UserBorder)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBorder).
		Padding(0, 1)

	t.Pending = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.ReferenceIndex = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	t.ReferenceName = lipgloss.NewStyle().Foreground(TextPrimary)
	t.ReferenceURL = lipgloss.NewStyle().Foreground(TextMuted).Underline(true)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Danger).
		Background(DangerBg).
		Bold(true).
		Padding(0, 1)
	t.NoticeInfo = lipgloss.NewStyle().
		Foreground(Caution).
		Padding(0, 1)

	t.Typing = lipgloss.NewStyle().Foreground(Accent)
	t.Prompt = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Border)
}
