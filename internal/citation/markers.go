// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	citationPattern = regexp.MustCompile(`(?i)\[(?:Source\s+)?\d+(?:,\s*(?:Source\s+)?\d+)*\]`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*]|\d+\.)\s+`)
	digitsPattern   = regexp.MustCompile(`\d+`)
)

// citationNumbers extracts the distinct numbers of a marker such as
// "[Source 1, Source 3]" in order of appearance.
func citationNumbers(marker string) []int {
	inner := strings.TrimSuffix(strings.TrimPrefix(marker, "["), "]")
	var numbers []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(inner, ",") {
		d := digitsPattern.FindString(part)
		if d == "" {
			continue
		}
		n, err := strconv.Atoi(d)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	return numbers
}

// replaceMarkers rewrites every citation marker, line by line. With an
// empty source map the markers are simply removed.
func (p *pass) replaceMarkers(text string) string {
	if !citationPattern.MatchString(text) {
		return text
	}
	if len(p.sources) == 0 {
		return citationPattern.ReplaceAllString(text, "")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		bullet := bulletPattern.MatchString(line)
		lines[i] = p.replaceLineMarkers(line, bullet)
	}
	return strings.Join(lines, "\n")
}

func (p *pass) replaceLineMarkers(line string, bullet bool) string {
	locs := citationPattern.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(line[last:loc[0]])
		last = loc[1]

		infos := p.resolveNumbers(citationNumbers(line[loc[0]:loc[1]]))
		if len(infos) == 0 {
			continue
		}
		if bullet {
			link := p.bulletLinks(infos)
			if prev := b.String(); prev != "" && !unicode.IsSpace(rune(prev[len(prev)-1])) {
				b.WriteByte(' ')
			}
			b.WriteString(link)
			continue
		}
		indices := make([]int, 0, len(infos))
		for _, info := range infos {
			indices = append(indices, p.notes.ensure(info).index)
		}
		b.WriteString(p.superscript(indices))
	}
	b.WriteString(line[last:])
	return b.String()
}

// resolveNumbers keeps the numbers present in the source map.
func (p *pass) resolveNumbers(numbers []int) []sourceInfo {
	infos := make([]sourceInfo, 0, len(numbers))
	for _, n := range numbers {
		if info, ok := p.sources[n]; ok {
			infos = append(infos, info)
		}
	}
	return infos
}

// bulletLinks renders inline links for a marker inside a bullet line. A
// single shared URL yields one link, otherwise one link per target joined
// by " | ".
func (p *pass) bulletLinks(infos []sourceInfo) string {
	unique := make(map[string]bool)
	allURLs := true
	for _, info := range infos {
		if info.URL == "" {
			allURLs = false
			continue
		}
		unique[info.URL] = true
	}

	if allURLs && len(unique) == 1 {
		primary := infos[0]
		return p.keep(p.format.Link(primary.URL, p.linkLabel(primary.Name, 0), primary.Name))
	}

	parts := make([]string, len(infos))
	for i, info := range infos {
		n := 0
		if len(infos) > 1 {
			n = i + 1
		}
		label := p.linkLabel(info.Name, n)
		if info.URL != "" {
			parts[i] = p.format.Link(info.URL, label, info.Name)
		} else {
			parts[i] = p.format.Text(label)
		}
	}
	return p.keep(strings.Join(parts, " | "))
}

// linkLabel is "<name> →", or the generic label numbered when n > 0.
func (p *pass) linkLabel(name string, n int) string {
	if name != "" {
		return name + " →"
	}
	if n > 0 {
		return p.opts.LinkLabel + " " + strconv.Itoa(n) + " →"
	}
	return p.opts.LinkLabel + " →"
}
