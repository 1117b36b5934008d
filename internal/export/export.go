// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/model"
	"github.com/jeranaias/widgetsync/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is one stored conversation, oldest message first.
type Transcript struct {
	AgentID        string
	ConversationID string
	Title          string
	Messages       []*model.Message
}

// title returns the heading used for the transcript.
func (t *Transcript) title() string {
	if t.Title != "" {
		return t.Title
	}
	return "Conversation " + t.ConversationID
}

// span returns the timestamps of the first and last dated messages.
func (t *Transcript) span() (first, last time.Time) {
	for _, m := range t.Messages {
		ts := m.Timestamp()
		if ts.IsZero() {
			continue
		}
		if first.IsZero() {
			first = ts
		}
		last = ts
	}
	return first, last
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for transcript exporters.
type Exporter interface {
	// Export converts a transcript to the target format.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeMetadata adds the front matter and session block.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Resolver annotates assistant replies. Nil uses a markdown resolver
	// with default settings.
	Resolver *citation.Resolver

	// Now stamps the export. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

func (o *Options) resolver() *citation.Resolver {
	if o.Resolver == nil {
		o.Resolver = citation.New(citation.Options{Format: citation.Markdown{}}, nil)
	}
	return o.Resolver
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// resolved returns the display text and references for m. User turns are
// passed through untouched.
func (o *Options) resolved(m *model.Message) (string, []model.Reference) {
	if m.Role != model.RoleAssistant {
		return m.RawContent, nil
	}
	res := o.resolver().Resolve(citation.InputFromMessage(m))
	return res.DisplayContent, res.References
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ByName returns the exporter for a format name.
func ByName(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportToFile exports a transcript into opts.OutputDir and returns the
// file path. The file is readable only by the owner since transcripts may
// contain lead details.
func ExportToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(t.title()),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	outputPath := filepath.Join(dir, filename)
	if err := util.WriteFileAtomic(outputPath, content, util.PrivateFilePerm); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var filenameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-",
	"<", "-", ">", "-", "|", "-", " ", "_", "\t", "_", "\n", "_", "\r", "_",
)

// sanitizeFilename makes s safe to use in a file name on any platform.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	s = filenameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '-'
		}
		return r
	}, s)
	if s == "" {
		return "conversation"
	}
	return s
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
