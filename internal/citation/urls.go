// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"net/url"
	"regexp"
	"strings"
)

// bareURLPattern matches, leftmost first: a markdown link, a parenthesized
// URL, or an inline URL preceded by whitespace, ">" or "(".
var bareURLPattern = regexp.MustCompile(`(?i)` +
	`\[([^\]\x00\n]+)\]\((https?://[^)\s\x00]+)\)` +
	`|\((https?://[^)\s\x00]+)\)` +
	`|(^|[\s>(])(https?://[^\s)\x00]+)`)

var trailingPunctPattern = regexp.MustCompile(`[.,;:]+$`)

// SanitizeURL returns the canonical form of an absolute http(s) URL, or ""
// when raw is anything else.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// normalizeCandidateURL sanitizes raw, trimming trailing sentence
// punctuation when that is what makes it invalid.
func normalizeCandidateURL(raw string) string {
	candidate := strings.TrimSpace(raw)
	for attempt := 0; attempt <= 3 && candidate != ""; attempt++ {
		if safe := SanitizeURL(candidate); safe != "" && !trailingPunctPattern.MatchString(candidate) {
			return safe
		}
		trimmed := trailingPunctPattern.ReplaceAllString(candidate, "")
		if trimmed == candidate {
			break
		}
		candidate = trimmed
	}
	return SanitizeURL(candidate)
}

// footnoteBareURLs replaces URLs left in the text with footnote
// superscripts keyed by the normalized URL, numbered in reading order.
func (p *pass) footnoteBareURLs(text string) string {
	return replaceSubmatch(bareURLPattern, text, func(m []string) (string, bool) {
		switch {
		case m[2] != "":
			label, target := m[1], m[2]
			sup := p.superscriptForURL(target)
			if sup == "" {
				return "", false
			}
			if normalizeCandidateURL(label) == normalizeCandidateURL(target) {
				return sup, true
			}
			return label + sup, true
		case m[3] != "":
			sup := p.superscriptForURL(m[3])
			return sup, sup != ""
		default:
			prefix, raw := m[4], m[5]
			trailing := trailingPunctPattern.FindString(raw)
			sup := p.superscriptForURL(strings.TrimSuffix(raw, trailing))
			if sup == "" {
				return "", false
			}
			return prefix + sup + trailing, true
		}
	})
}

// superscriptForURL ensures a footnote for raw and returns its protected
// superscript token, or "" when raw is not a usable URL.
func (p *pass) superscriptForURL(raw string) string {
	safe := normalizeCandidateURL(raw)
	if safe == "" {
		return ""
	}
	entry := p.notes.ensure(sourceInfo{URL: safe})
	return p.superscript([]int{entry.index})
}

// replaceSubmatch is ReplaceAllStringFunc with access to submatches. When
// fn returns false the match is left untouched.
func replaceSubmatch(re *regexp.Regexp, text string, fn func(m []string) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range matches {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(text[last:loc[0]])
		if out, ok := fn(groups); ok {
			b.WriteString(out)
		} else {
			b.WriteString(groups[0])
		}
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
