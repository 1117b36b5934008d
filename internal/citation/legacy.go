// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// A references block starts on its own line: "References:", "**Sources**:".
	referenceHeadingPattern = regexp.MustCompile(`(?im)^[ \t]*(\*\*)?(references|sources|citations|bibliography)(\*\*)?[ \t]*:(\*\*)?[ \t]*$`)
	legacyBulletPattern     = regexp.MustCompile(`^[-*][ \t]*`)
	legacySuperPattern      = regexp.MustCompile(`^([⁰¹²³⁴⁵⁶⁷⁸⁹]+)\s*(.*)$`)
	legacySourcePattern     = regexp.MustCompile(`(?i)^(?:Document\s+)?Source\s*(\d+)\s*[:\-]?\s*(.*)$`)
	legacyNumberedPattern   = regexp.MustCompile(`^\[?(\d+)[\].:)]\s+(.*)$`)
	legacyAnchorPattern     = regexp.MustCompile(`(?i)href="([^"]+)"`)
	htmlTagPattern          = regexp.MustCompile(`<[^>]+>`)
)

// splitReferenceBlock separates a trailing references block from the body.
// The block is only split off when at least one entry parses from it.
func splitReferenceBlock(text string) (string, []sourceInfo) {
	loc := referenceHeadingPattern.FindStringIndex(text)
	if loc == nil {
		return text, nil
	}
	entries := parseReferenceLines(text[loc[1]:])
	if len(entries) == 0 {
		return text, nil
	}
	return strings.TrimRight(text[:loc[0]], " \t\r\n"), entries
}

// parseReferenceLines reads lines such as "² Q3 report (https://...)",
// "Source 2: Q3 report" or "2. Q3 report".
func parseReferenceLines(block string) []sourceInfo {
	var out []sourceInfo
	seen := make(map[int]bool)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(legacyBulletPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}

		var number int
		var remainder string
		if m := legacySuperPattern.FindStringSubmatch(line); m != nil {
			first := strings.SplitN(strings.ReplaceAll(ParseSuperscript(m[1]), "-", ","), ",", 2)[0]
			number, _ = strconv.Atoi(first)
			remainder = m[2]
		} else if m := legacySourcePattern.FindStringSubmatch(line); m != nil {
			number, _ = strconv.Atoi(m[1])
			remainder = m[2]
		} else if m := legacyNumberedPattern.FindStringSubmatch(line); m != nil {
			number, _ = strconv.Atoi(m[1])
			remainder = m[2]
		}
		if number <= 0 || seen[number] {
			continue
		}

		remainder = strings.TrimSpace(remainder)
		var url string
		if m := descriptorURLPattern.FindStringSubmatch(remainder); m != nil {
			url = SanitizeURL(m[1])
			remainder = strings.TrimSpace(strings.Replace(remainder, m[0], "", 1))
		} else if m := legacyAnchorPattern.FindStringSubmatch(remainder); m != nil {
			url = SanitizeURL(m[1])
			remainder = strings.TrimSpace(htmlTagPattern.ReplaceAllString(remainder, ""))
		} else if safe := normalizeCandidateURL(remainder); safe != "" && !strings.ContainsAny(remainder, " \t") {
			url = safe
			remainder = ""
		}
		remainder = strings.TrimSpace(sourcePrefixPattern.ReplaceAllString(remainder, ""))
		if url == "" && remainder == "" {
			continue
		}
		seen[number] = true
		out = append(out, sourceInfo{Number: number, URL: url, Name: remainder})
	}
	return out
}
