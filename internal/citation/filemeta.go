// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/widgetsync/internal/model"
)

// MaxDisplayNameWidth bounds ShortenDisplayName output, in terminal columns.
const MaxDisplayNameWidth = 35

var (
	duplicateExtPattern = regexp.MustCompile(`(?i)(\.[a-z0-9]+)+$`)
	sourcePrefixPattern = regexp.MustCompile(`(?i)^Source\s+\d+:\s*`)
	inlineParenURL      = regexp.MustCompile(`(?i)\s*\(https?://[^)]+\)\s*`)
)

var extensionKinds = map[string]model.FileKind{
	"txt":  model.FileKindText,
	"pdf":  model.FileKindDocument,
	"doc":  model.FileKindDocument,
	"docx": model.FileKindDocument,
	"xls":  model.FileKindSpreadsheet,
	"xlsx": model.FileKindSpreadsheet,
	"xml":  model.FileKindData,
	"json": model.FileKindData,
	"csv":  model.FileKindData,
	"jpg":  model.FileKindImage,
	"jpeg": model.FileKindImage,
	"png":  model.FileKindImage,
	"gif":  model.FileKindImage,
}

// KindForExtension classifies a hosted file by extension.
func KindForExtension(ext string) model.FileKind {
	if kind, ok := extensionKinds[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return kind
	}
	return model.FileKindGeneric
}

// FilenameFromURL returns the decoded last path segment of rawURL with a
// repeated extension collapsed ("report.pdf.pdf" becomes "report.pdf").
func FilenameFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(u.EscapedPath(), "/")
	if trimmed == "" {
		return ""
	}
	name := path.Base(trimmed)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return collapseDuplicateExtension(name)
}

// collapseDuplicateExtension reduces a trailing run of one repeated
// extension to a single copy. RE2 has no backreferences, so the run is
// matched loosely and checked here.
func collapseDuplicateExtension(name string) string {
	loc := duplicateExtPattern.FindStringIndex(name)
	if loc == nil {
		return name
	}
	tail := name[loc[0]:]
	exts := strings.Split(tail, ".")[1:]
	// Only the trailing repeats of the final extension collapse.
	lastExt := exts[len(exts)-1]
	keep := len(exts)
	for keep > 1 && strings.EqualFold(exts[keep-2], lastExt) {
		keep--
	}
	if keep == len(exts) {
		return name
	}
	return name[:loc[0]] + "." + strings.Join(exts[:keep], ".")
}

// isHostedFile reports whether rawURL points at one of the file hosts.
func isHostedFile(rawURL string, hosts map[string]bool) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return hosts[strings.ToLower(u.Hostname())]
}

// buildReference derives display metadata for a footnote.
func buildReference(entry *footnote, hosts map[string]bool) model.Reference {
	safeURL := SanitizeURL(entry.url)
	fallback := FilenameFromURL(safeURL)
	name := strings.TrimSpace(entry.name)
	if name == "" {
		name = fallback
	}
	if name == "" {
		name = "Reference"
	}
	filename := fallback
	if filename == "" {
		filename = name
	}

	ref := model.Reference{
		Index:       entry.index,
		Superscript: ToSuperscript(entry.index),
		DisplayName: name,
		URL:         safeURL,
		Filename:    filename,
		FileKind:    model.FileKindLink,
		Numbers:     append([]int(nil), entry.numbers...),
	}
	if isHostedFile(safeURL, hosts) {
		ref.IsFileAsset = true
		if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
			ref.Extension = strings.ToLower(filename[i+1:])
		}
		ref.FileKind = KindForExtension(ref.Extension)
	}
	return ref
}

// ShortenDisplayName tidies a reference name for compact display: source
// prefixes and inline URLs are dropped, a bare URL becomes its filename,
// ".txt" is hidden and the result is cut to MaxDisplayNameWidth columns.
func ShortenDisplayName(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = sourcePrefixPattern.ReplaceAllString(cleaned, "")
	cleaned = inlineParenURL.ReplaceAllString(cleaned, "")
	if SanitizeURL(cleaned) != "" {
		if file := FilenameFromURL(cleaned); file != "" {
			cleaned = file
		}
	}
	cleaned = collapseDuplicateExtension(cleaned)
	cleaned = strings.TrimSuffix(cleaned, ".txt")
	return runewidth.Truncate(cleaned, MaxDisplayNameWidth, "...")
}
