// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// resolve.go - The "resolve" command: runs the citation resolver over
// text read from stdin.
//
// Examples:
//   echo "Revenue grew [1]." | widgetsync resolve --sources sources.json
//   widgetsync resolve --markup html --json < reply.txt
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/model"
)

// ResolveOutput is the result printed by "resolve".
type ResolveOutput struct {
	DisplayContent string            `json:"display_content"`
	References     []model.Reference `json:"references"`
}

// HandleResolve handles the "resolve" command.
func HandleResolve(args Args, in io.Reader, out io.Writer) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return NewCommandError("resolve", "load", "could not read configuration", err)
	}

	markup := args.Markup
	if markup == "" {
		markup = cfg.Citations.Markup
	}
	switch strings.ToLower(markup) {
	case "html", "markdown":
	default:
		return NewValidationError("markup", markup, "must be html or markdown")
	}

	sources, err := readSources(args.SourcesFile)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return NewCommandError("resolve", "read", "could not read stdin", err)
	}

	resolver := citation.New(citation.Options{
		FileHosts:       cfg.Citations.FileHosts,
		LinkLabel:       cfg.Citations.LinkLabel,
		Format:          citation.FormatterByName(markup),
		AppendFootnotes: args.Footnotes,
	}, nil)
	res := resolver.Resolve(citation.Input{
		Content: strings.TrimSuffix(string(body), "\n"),
		Sources: sources,
	})

	output := ResolveOutput{DisplayContent: res.DisplayContent, References: res.References}
	if output.References == nil {
		output.References = []model.Reference{}
	}
	if args.JSON {
		return NewJSONResponse("resolve", output).Print(out)
	}

	fmt.Fprintln(out, output.DisplayContent)
	if len(output.References) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(output.References)
}

// readSources decodes a JSON array of source descriptors. Entries may be
// objects or plain strings.
func readSources(path string) ([]model.SourceDescriptor, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewCommandError("resolve", "read", "could not read sources file", err)
	}
	var sources []model.SourceDescriptor
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, NewValidationError("sources", path, "expected a JSON array of source descriptors: "+err.Error())
	}
	return sources, nil
}
