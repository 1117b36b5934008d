// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/model"
)

// DefaultFileHost is the hosted-file domain used when none is configured.
const DefaultFileHost = "minio.knowrithm.org"

// DefaultLinkLabel is the generic label for inline source links.
const DefaultLinkLabel = "Learn more"

// Options configures a Resolver.
type Options struct {
	// FileHosts lists hostnames whose URLs are treated as file assets.
	FileHosts []string
	// LinkLabel is the generic inline link label ("Learn more").
	LinkLabel string
	// Format renders inserted markup. Defaults to HTML.
	Format Formatter
	// AppendFootnotes appends a "**References:**" section listing the
	// footnotes to the display text, for renderers without a reference UI.
	AppendFootnotes bool
}

// Input is the message to resolve.
type Input struct {
	Content    string
	Sources    []model.SourceDescriptor
	AllSources []model.SourceDescriptor
}

// InputFromMessage builds an Input from a message's raw content and sources.
func InputFromMessage(m *model.Message) Input {
	return Input{Content: m.RawContent, Sources: m.Sources, AllSources: m.AllSources}
}

// Result is the annotated content and its reference list.
type Result struct {
	DisplayContent string
	References     []model.Reference
}

// Resolver annotates assistant content with citations. It holds no
// per-message state and is safe for concurrent use.
type Resolver struct {
	opts   Options
	hosts  map[string]bool
	logger *zap.Logger
}

// New creates a Resolver.
func New(opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LinkLabel == "" {
		opts.LinkLabel = DefaultLinkLabel
	}
	if opts.Format == nil {
		opts.Format = HTML{}
	}
	if len(opts.FileHosts) == 0 {
		opts.FileHosts = []string{DefaultFileHost}
	}
	hosts := make(map[string]bool, len(opts.FileHosts))
	for _, h := range opts.FileHosts {
		hosts[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &Resolver{opts: opts, hosts: hosts, logger: logger}
}

// Resolve annotates in.Content. It never panics: any failure yields the
// original content and no references.
func (r *Resolver) Resolve(in Input) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("citation resolution failed", zap.String("panic", fmt.Sprint(rec)))
			res = Result{DisplayContent: in.Content}
		}
	}()
	if in.Content == "" {
		return Result{}
	}

	content := strings.ReplaceAll(in.Content, "\x00", "")
	body, legacy := splitReferenceBlock(content)
	sources := buildSourceMap(in.Sources, in.AllSources, legacy)

	p := &pass{
		opts:    r.opts,
		format:  r.opts.Format,
		sources: sources,
		queue:   sources.placeholderQueue(),
		notes:   newFootnotes(),
	}

	text := p.replaceMarkers(body)
	text = p.footnoteBareURLs(text)
	text = p.replaceViewSource(text)
	text = boldBulletLabels(text)

	refs := make([]model.Reference, 0, len(p.notes.entries))
	for _, entry := range p.notes.entries {
		if entry.url == "" && entry.name == "" {
			continue
		}
		refs = append(refs, buildReference(entry, r.hosts))
	}

	if r.opts.AppendFootnotes {
		if section := p.footnoteSection(refs); section != "" {
			text = text + "\n\n" + section
		}
	}

	return Result{DisplayContent: p.restore(text), References: refs}
}

// Apply resolves an assistant message in place.
func (r *Resolver) Apply(m *model.Message) {
	if m == nil || m.Role != model.RoleAssistant {
		return
	}
	res := r.Resolve(InputFromMessage(m))
	m.DisplayContent = res.DisplayContent
	m.References = res.References
}

// =============================================================================
// RESOLUTION PASS
// =============================================================================

// pass holds the state of resolving one message.
type pass struct {
	protector
	opts    Options
	format  Formatter
	sources sourceMap
	queue   []sourceInfo
	notes   *footnotes
}

// superscript renders and protects a footnote glyph run.
func (p *pass) superscript(indices []int) string {
	glyphs, sorted := superscriptGroup(indices)
	if glyphs == "" {
		return ""
	}
	return p.keep(p.format.Superscript(glyphs, sorted))
}

// footnoteSection lists the references as "¹ name" lines.
func (p *pass) footnoteSection(refs []model.Reference) string {
	if len(refs) == 0 {
		return ""
	}
	lines := []string{"**References:**"}
	for _, ref := range refs {
		label := ref.DisplayName
		if ref.URL != "" {
			lines = append(lines, ref.Superscript+" "+p.keep(p.format.Link(ref.URL, label, "")))
			continue
		}
		lines = append(lines, ref.Superscript+" "+p.keep(p.format.Text(label)))
	}
	return strings.Join(lines, "\n")
}
