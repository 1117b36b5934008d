// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Formatter renders the markup the resolver inserts into display text.
type Formatter interface {
	// Link renders a hyperlink. title may be empty.
	Link(url, label, title string) string
	// Superscript renders a citation glyph run; indices are the footnote
	// numbers it stands for.
	Superscript(glyphs string, indices []int) string
	// Text escapes a plain label.
	Text(s string) string
}

// HTML renders anchors and <sup> citation markers.
type HTML struct{}

// Link implements Formatter.
func (HTML) Link(url, label, title string) string {
	titleAttr := ""
	if title != "" {
		titleAttr = fmt.Sprintf(` title="%s"`, html.EscapeString(title))
	}
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer"%s>%s</a>`,
		html.EscapeString(url), titleAttr, html.EscapeString(label))
}

// Superscript implements Formatter.
func (HTML) Superscript(glyphs string, indices []int) string {
	return fmt.Sprintf(`<sup class="citation-marker" data-citation="%s" title="View source">%s</sup>`,
		joinInts(indices, ","), glyphs)
}

// Text implements Formatter.
func (HTML) Text(s string) string { return html.EscapeString(s) }

// Markdown renders markdown links and bare superscript glyphs, for
// terminal output.
type Markdown struct{}

// Link implements Formatter.
func (Markdown) Link(url, label, _ string) string {
	return "[" + label + "](" + url + ")"
}

// Superscript implements Formatter.
func (Markdown) Superscript(glyphs string, _ []int) string { return glyphs }

// Text implements Formatter.
func (Markdown) Text(s string) string { return s }

// FormatterByName maps a config value onto a Formatter. Unknown names
// get HTML.
func FormatterByName(name string) Formatter {
	if strings.EqualFold(strings.TrimSpace(name), "markdown") {
		return Markdown{}
	}
	return HTML{}
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// =============================================================================
// GENERATED MARKUP PROTECTION
// =============================================================================

// Generated markup is parked behind NUL-delimited tokens while later passes
// run, so a link inserted for a citation is never re-matched as a bare URL
// or a bullet label.
var tokenPattern = regexp.MustCompile(`\x00(\d+)\x00`)

type protector struct {
	parts []string
}

func (p *protector) keep(markup string) string {
	if markup == "" {
		return ""
	}
	p.parts = append(p.parts, markup)
	return "\x00" + strconv.Itoa(len(p.parts)-1) + "\x00"
}

func (p *protector) restore(text string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		n, err := strconv.Atoi(strings.Trim(tok, "\x00"))
		if err != nil || n < 0 || n >= len(p.parts) {
			return ""
		}
		return p.parts[n]
	})
}
