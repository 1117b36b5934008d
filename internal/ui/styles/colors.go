// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENTS
// =============================================================================

// Brand is the header and prompt color.
var Brand = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Accent marks assistant output and links.
var Accent = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Danger is used for error notices.
var Danger = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// DangerBg sits behind error notices.
var DangerBg = lipgloss.AdaptiveColor{Light: "#FEE2E2", Dark: "#881337"}

// Caution is used for informational notices.
var Caution = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACES AND TEXT
// =============================================================================

var (
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Border     = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// =============================================================================
// BUBBLES
// =============================================================================

var (
	UserBorder      = lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#3B82F6"}
	UserFg          = lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#E0F2FE"}
	AssistantBorder = lipgloss.AdaptiveColor{Light: "#C4B5FD", Dark: "#A78BFA"}
	AssistantFg     = lipgloss.AdaptiveColor{Light: "#5B4B8A", Dark: "#E9E4F5"}
)
