// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"strings"
	"unicode"
)

var viewSourcePattern = regexp.MustCompile(`(?i)(\s*-\s*|\s+)?View Source\b`)

// replaceViewSource swaps each "View Source" placeholder for a link to the
// latest footnote URL, or to the next queued source. Placeholders with no
// URL to point at are removed.
func (p *pass) replaceViewSource(text string) string {
	locs := viewSourcePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		last = loc[1]

		entry := p.placeholderTarget()
		if entry == nil {
			continue
		}
		if prev := text[:loc[0]]; prev != "" && !unicode.IsSpace(rune(prev[len(prev)-1])) {
			b.WriteByte(' ')
		}
		b.WriteString(p.keep(p.format.Link(entry.url, p.opts.LinkLabel+" →", entry.name)))
	}
	b.WriteString(text[last:])
	return b.String()
}

func (p *pass) placeholderTarget() *footnote {
	if p.notes.last != nil && p.notes.last.url != "" {
		return p.notes.last
	}
	if existing := p.notes.firstWithURL(); existing != nil {
		p.notes.last = existing
		return existing
	}
	for len(p.queue) > 0 {
		candidate := p.queue[0]
		p.queue = p.queue[1:]
		if entry := p.notes.ensure(candidate); entry.url != "" {
			return entry
		}
	}
	return nil
}
