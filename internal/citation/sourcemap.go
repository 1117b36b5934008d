// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/widgetsync/internal/model"
)

var (
	descriptorNumberPattern   = regexp.MustCompile(`(?i)(?:Document\s+)?Source\s+(\d+)`)
	descriptorFallbackPattern = regexp.MustCompile(`^\s*(\d+)[\s:.\-]`)
	descriptorURLPattern      = regexp.MustCompile(`(?i)\((https?://[^)]+)\)`)
	descriptorLeadingPattern  = regexp.MustCompile(`^[:\-\x{2013}\x{2014}\s]+`)
	multiSpacePattern         = regexp.MustCompile(`\s{2,}`)
)

// sourceInfo is one resolvable citation target.
type sourceInfo struct {
	Number int
	URL    string
	Name   string
}

// sourceMap maps citation numbers to their targets.
type sourceMap map[int]sourceInfo

// add records info under its number, filling only fields that are still
// empty. Callers add in priority order so earlier sources win.
func (m sourceMap) add(info sourceInfo) {
	if info.Number <= 0 {
		return
	}
	cur := m[info.Number]
	cur.Number = info.Number
	if cur.URL == "" {
		cur.URL = SanitizeURL(info.URL)
	}
	if cur.Name == "" {
		cur.Name = strings.TrimSpace(info.Name)
	}
	m[info.Number] = cur
}

// usable drops entries with neither a URL nor a name.
func (m sourceMap) usable() sourceMap {
	out := make(sourceMap, len(m))
	for n, info := range m {
		if info.URL != "" || info.Name != "" {
			out[n] = info
		}
	}
	return out
}

// buildSourceMap merges server sources, metadata sources and legacy block
// entries, in that order of precedence.
func buildSourceMap(sources, allSources []model.SourceDescriptor, legacy []sourceInfo) sourceMap {
	m := make(sourceMap)
	for _, d := range sources {
		if info, ok := parseDescriptor(d); ok {
			m.add(info)
		}
	}
	for _, d := range allSources {
		if info, ok := parseDescriptor(d); ok {
			m.add(info)
		}
	}
	for _, info := range legacy {
		m.add(info)
	}
	return m.usable()
}

// parseDescriptor extracts a number, URL and name from a descriptor. The
// descriptor text may itself carry the number and URL, as in
// "Document Source 3: Q3.pdf (https://files/q3.pdf)".
func parseDescriptor(d model.SourceDescriptor) (sourceInfo, bool) {
	number := d.Number
	url := SanitizeURL(d.URL)
	working := strings.TrimSpace(d.Name)
	if working == "" {
		working = strings.TrimSpace(d.Text)
	}
	if working == "" && url == "" && number <= 0 {
		return sourceInfo{}, false
	}

	if loc := descriptorNumberPattern.FindStringSubmatchIndex(working); loc != nil {
		if n, err := strconv.Atoi(working[loc[2]:loc[3]]); err == nil {
			number = n
		}
		working = strings.TrimSpace(working[:loc[0]] + working[loc[1]:])
	} else if number <= 0 {
		if loc := descriptorFallbackPattern.FindStringSubmatchIndex(working); loc != nil {
			if n, err := strconv.Atoi(working[loc[2]:loc[3]]); err == nil {
				number = n
			}
			working = strings.TrimSpace(working[loc[1]:])
		}
	}

	if loc := descriptorURLPattern.FindStringSubmatchIndex(working); loc != nil {
		if extracted := SanitizeURL(working[loc[2]:loc[3]]); extracted != "" && url == "" {
			url = extracted
		}
		working = strings.TrimSpace(working[:loc[0]] + working[loc[1]:])
	}

	working = descriptorLeadingPattern.ReplaceAllString(working, "")
	working = strings.TrimSpace(multiSpacePattern.ReplaceAllString(working, " "))
	if working == "" && url != "" {
		working = strings.Replace(FilenameFromURL(url), ".txt.txt", ".txt", 1)
	}

	if number <= 0 {
		return sourceInfo{}, false
	}
	return sourceInfo{Number: number, URL: url, Name: working}, true
}

// placeholderQueue lists URL-bearing sources in ascending number order.
func (m sourceMap) placeholderQueue() []sourceInfo {
	queue := make([]sourceInfo, 0, len(m))
	for _, info := range m {
		if info.URL != "" {
			queue = append(queue, info)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].Number < queue[j].Number })
	return queue
}
