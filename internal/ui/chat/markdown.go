// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders assistant bodies with glamour, caching per entry.
type markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]cachedRender
}

type cachedRender struct {
	body string
	out  string
}

func newMarkdown(style string) *markdown {
	return &markdown{style: style, cache: make(map[string]cachedRender)}
}

// setWidth rebuilds the renderer when the wrap width changes.
func (md *markdown) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width && md.renderer != nil {
		return
	}
	md.width = width
	md.cache = make(map[string]cachedRender)

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if md.style == "" || md.style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(md.style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		md.renderer = nil
		return
	}
	md.renderer = r
}

// render returns body as terminal markup, or body itself when rendering
// is unavailable.
func (md *markdown) render(key, body string) string {
	if md.renderer == nil {
		return body
	}
	if c, ok := md.cache[key]; ok && c.body == body {
		return c.out
	}
	out, err := md.renderer.Render(body)
	if err != nil {
		return body
	}
	out = strings.Trim(out, "\n")
	md.cache[key] = cachedRender{body: body, out: out}
	return out
}

func (md *markdown) forget(key string) {
	delete(md.cache, key)
}
