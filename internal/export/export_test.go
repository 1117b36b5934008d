// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/widgetsync/internal/model"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func testTranscript() *Transcript {
	reply := model.NewConfirmedMessage("m2", model.RoleAssistant, "Claim [1]", fixedNow.Add(time.Minute))
	reply.Sources = []model.SourceDescriptor{{Number: 1, Name: "Alpha", URL: "https://example.com/a"}}
	return &Transcript{
		AgentID:        "42",
		ConversationID: "conv-1",
		Messages: []*model.Message{
			model.NewConfirmedMessage("m1", model.RoleUser, "What changed?", fixedNow),
			reply,
		},
	}
}

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestMarkdownExporter_ResolvesCitations(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(testTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Conversation conv-1\nagent: 42\n"))
	assert.Contains(t, md, "# Conversation conv-1")
	assert.Contains(t, md, "### You <sub>10:30:00</sub>")
	assert.Contains(t, md, "### Assistant <sub>10:31:00</sub>")
	assert.Contains(t, md, "Claim ¹")
	assert.NotContains(t, md, "[1]")
	assert.Contains(t, md, "**References:**")
	assert.Contains(t, md, "- ¹ [Alpha](https://example.com/a)")
	assert.Contains(t, md, "generator: widgetsync")
}

func TestMarkdownExporter_WithoutMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(testTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Conversation conv-1"))
	assert.Contains(t, md, "### You\n\nWhat changed?")
	assert.NotContains(t, md, "<sub>")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(testOptions("")).Export(testTranscript())
	require.NoError(t, err)

	var doc TranscriptJSON
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "conv-1", doc.ConversationID)
	require.Len(t, doc.Messages, 2)

	user := doc.Messages[0]
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Empty(t, user.DisplayContent)

	reply := doc.Messages[1]
	assert.Equal(t, "Claim [1]", reply.Content)
	assert.Equal(t, "Claim ¹", reply.DisplayContent)
	require.Len(t, reply.References, 1)
	assert.Equal(t, "Alpha", reply.References[0].DisplayName)
	require.NotNil(t, reply.CreatedAt)
	assert.True(t, reply.CreatedAt.Equal(fixedNow.Add(time.Minute)))
}

func TestExporters_EmptyTranscript(t *testing.T) {
	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		_, err := exp.Export(&Transcript{ConversationID: "c"})
		assert.ErrorIs(t, err, ErrEmptyTranscript)
		_, err = exp.Export(nil)
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	opts := testOptions(dir)
	tr := testTranscript()
	tr.Title = "Q3 revenue: follow/up"

	path, err := ExportToFile(tr, NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_Q3_revenue-_follow-up_20250304_103000.md"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestByName(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"markdown", ".md"},
		{"MD", ".md"},
		{"json", ".json"},
	}
	for _, tt := range tests {
		exp, err := ByName(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, exp.FileExtension())
	}

	_, err := ByName("html", nil)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "conversation"},
		{"a b", "a_b"},
		{"x/y\\z", "x-y-z"},
		{"bell\x07", "bell-"},
		{strings.Repeat("é", 60), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
