// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"sort"
	"strconv"
	"strings"
)

// footnote is one numbered entry created while resolving a message.
type footnote struct {
	index   int
	numbers []int
	url     string
	name    string
}

func (f *footnote) hasNumber(n int) bool {
	for _, v := range f.numbers {
		if v == n {
			return true
		}
	}
	return false
}

// footnotes assigns stable indices to citation targets within one message.
// An entry is found again by citation number, by URL or, for targets with
// neither, by name.
type footnotes struct {
	entries  []*footnote
	byNumber map[int]*footnote
	byURL    map[string]*footnote
	byName   map[string]*footnote
	last     *footnote
}

func newFootnotes() *footnotes {
	return &footnotes{
		byNumber: make(map[int]*footnote),
		byURL:    make(map[string]*footnote),
		byName:   make(map[string]*footnote),
	}
}

// ensure returns the footnote for info, creating it with the next index
// when unseen. Known entries absorb the new citation number, URL and name.
func (s *footnotes) ensure(info sourceInfo) *footnote {
	var entry *footnote
	if info.Number > 0 {
		entry = s.byNumber[info.Number]
	}
	if entry == nil && info.URL != "" {
		entry = s.byURL[info.URL]
	}
	if entry == nil && info.Number <= 0 && info.URL == "" && info.Name != "" {
		entry = s.byName[info.Name]
	}

	if entry == nil {
		entry = &footnote{index: len(s.entries) + 1}
		s.entries = append(s.entries, entry)
		if info.Number <= 0 && info.URL == "" && info.Name != "" {
			s.byName[info.Name] = entry
		}
	}

	if info.Number > 0 && !entry.hasNumber(info.Number) {
		entry.numbers = append(entry.numbers, info.Number)
	}
	if entry.url == "" && info.URL != "" {
		entry.url = info.URL
	}
	if entry.name == "" && info.Name != "" {
		entry.name = info.Name
	}
	if info.Number > 0 {
		s.byNumber[info.Number] = entry
	}
	if entry.url != "" {
		s.byURL[entry.url] = entry
	}
	s.last = entry
	return entry
}

// firstWithURL returns the oldest entry carrying a URL.
func (s *footnotes) firstWithURL() *footnote {
	for _, e := range s.entries {
		if e.url != "" {
			return e
		}
	}
	return nil
}

// =============================================================================
// SUPERSCRIPT GLYPHS
// =============================================================================

var superscriptDigits = [...]rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}

// ToSuperscript renders a non-negative integer with superscript digits.
func ToSuperscript(n int) string {
	if n < 0 {
		return ""
	}
	digits := []rune(strconv.Itoa(n))
	for i, d := range digits {
		digits[i] = superscriptDigits[d-'0']
	}
	return string(digits)
}

// ParseSuperscript turns a glyph run such as "¹,³" or "²–⁵" back into
// plain form ("1,3", "2-5"). Unknown characters are ignored.
func ParseSuperscript(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\'' || r == ',' || r == ' ' || r == '\t':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), ",") {
				b.WriteByte(',')
			}
		case r == '–' || r == '-':
			b.WriteByte('-')
		default:
			for d, glyph := range superscriptDigits {
				if r == glyph {
					b.WriteByte(byte('0' + d))
					break
				}
			}
		}
	}
	return strings.Trim(b.String(), ",")
}

// superscriptGroup renders a set of footnote indices. Four or more
// contiguous indices collapse into a range.
func superscriptGroup(indices []int) (string, []int) {
	seen := make(map[int]bool, len(indices))
	unique := make([]int, 0, len(indices))
	for _, i := range indices {
		if i > 0 && !seen[i] {
			seen[i] = true
			unique = append(unique, i)
		}
	}
	if len(unique) == 0 {
		return "", nil
	}
	sort.Ints(unique)

	if len(unique) >= 4 && contiguous(unique) {
		return ToSuperscript(unique[0]) + "–" + ToSuperscript(unique[len(unique)-1]), unique
	}
	parts := make([]string, len(unique))
	for i, idx := range unique {
		parts[i] = ToSuperscript(idx)
	}
	return strings.Join(parts, ","), unique
}

func contiguous(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return false
		}
	}
	return true
}
