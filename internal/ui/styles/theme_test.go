// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitNames(t *testing.T) {
	dark := NewTheme("Dark")
	assert.Equal(t, "dark", dark.Name)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme("light")
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestNewTheme_UnknownFallsBackToAuto(t *testing.T) {
	assert.Equal(t, "auto", NewTheme("neon").Name)
	assert.Equal(t, "auto", NewTheme("").Name)
}

func TestTheme_StylesRender(t *testing.T) {
	th := NewTheme("dark")
	assert.Contains(t, th.UserBubble.Render("hello"), "hello")
	assert.Contains(t, th.NoticeError.Render("boom"), "boom")
}
