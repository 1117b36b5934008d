// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - The "history" command: prints, exports or clears the
// stored transcript of the current conversation.
//
// Examples:
//   widgetsync history
//   widgetsync history export --format json --out ~/transcripts
//   widgetsync history clear --yes
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/citation"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/export"
	"github.com/jeranaias/widgetsync/internal/storage"
	"github.com/jeranaias/widgetsync/internal/ui/styles"
)

// HandleHistory handles the "history" command.
func HandleHistory(args Args, w io.Writer) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return NewCommandError("history", "load", "could not read configuration", err)
	}
	if cfg.Agent.AgentID == "" {
		return fmt.Errorf("%w: set agent.agent_id with 'widgetsync config set'", api.ErrNotConfigured)
	}
	if !cfg.Storage.PersistSession {
		return NewCommandError("history", "open", "storage.persist_session is off, nothing is stored", nil)
	}

	store, err := openStore("history", cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rec, err := store.LoadSession(ctx, cfg.Agent.AgentID)
	if err != nil {
		if errors.Is(err, storage.ErrNoSession) {
			return NewCommandError("history", "load", "no stored conversation for agent "+cfg.Agent.AgentID, err)
		}
		return err
	}

	switch args.Subcommand {
	case "", "show":
		t, err := loadTranscript(ctx, store, rec)
		if err != nil {
			return err
		}
		return historyShow(cfg, t, args.JSON, w)
	case "export":
		t, err := loadTranscript(ctx, store, rec)
		if err != nil {
			return err
		}
		return historyExport(cfg, t, args, w)
	case "clear":
		if !args.Yes {
			return NewValidationError("--yes", "", "clearing history cannot be undone, pass --yes to confirm")
		}
		if err := store.DeleteHistory(ctx, rec.ConversationID); err != nil {
			return NewCommandError("history", "clear", "could not delete messages", err)
		}
		if args.JSON {
			return NewJSONResponse("history clear", map[string]string{"conversation_id": rec.ConversationID}).Print(w)
		}
		if !args.Quiet {
			fmt.Fprintf(w, "Cleared stored messages for conversation %s\n", rec.ConversationID)
		}
		return nil
	default:
		return NewValidationError("history subcommand", args.Subcommand, "must be one of show, export, clear")
	}
}

func loadTranscript(ctx context.Context, store *storage.DB, rec *storage.SessionRecord) (*export.Transcript, error) {
	msgs, err := store.History(ctx, rec.ConversationID, 0)
	if err != nil {
		return nil, NewCommandError("history", "load", "could not read messages", err)
	}
	return &export.Transcript{
		AgentID:        rec.AgentID,
		ConversationID: rec.ConversationID,
		Messages:       msgs,
	}, nil
}

// exportOptions builds a resolver from the citation settings. Exports are
// always markdown regardless of citations.markup.
func exportOptions(cfg *config.Config) *export.Options {
	opts := export.DefaultOptions()
	opts.Resolver = citation.New(citation.Options{
		FileHosts: cfg.Citations.FileHosts,
		LinkLabel: cfg.Citations.LinkLabel,
		Format:    citation.Markdown{},
	}, nil)
	return opts
}

func historyShow(cfg *config.Config, t *export.Transcript, jsonMode bool, w io.Writer) error {
	opts := exportOptions(cfg)
	if len(t.Messages) == 0 {
		if jsonMode {
			return NewJSONResponse("history show", map[string]any{"conversation_id": t.ConversationID, "messages": []any{}}).Print(w)
		}
		fmt.Fprintln(w, RenderConditional(DimStyle, "No stored messages."))
		return nil
	}

	if jsonMode {
		doc, err := export.NewJSONExporter(opts).Export(t)
		if err != nil {
			return err
		}
		return NewJSONResponse("history show", json.RawMessage(doc)).Print(w)
	}

	opts.IncludeMetadata = false
	md, err := export.NewMarkdownExporter(opts).Export(t)
	if err != nil {
		return err
	}
	if ColorsEnabled() {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(styles.NewTheme(cfg.UI.Theme).GlamourStyle()),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			if out, err := r.Render(string(md)); err == nil {
				md = []byte(out)
			}
		}
	}
	_, err = w.Write(md)
	return err
}

func historyExport(cfg *config.Config, t *export.Transcript, args Args, w io.Writer) error {
	opts := exportOptions(cfg)
	if args.OutputDir != "" {
		opts.OutputDir = args.OutputDir
	}
	exporter, err := export.ByName(args.Format, opts)
	if err != nil {
		return NewValidationError("format", args.Format, "must be markdown or json")
	}
	path, err := export.ExportToFile(t, exporter, opts)
	if err != nil {
		if errors.Is(err, export.ErrEmptyTranscript) {
			return NewCommandError("history", "export", "no stored messages", err)
		}
		return NewCommandError("history", "export", "could not write transcript", err)
	}
	if args.JSON {
		return NewJSONResponse("history export", map[string]any{
			"path":     path,
			"format":   exporter.MimeType(),
			"messages": len(t.Messages),
		}).Print(w)
	}
	if !args.Quiet {
		fmt.Fprintf(w, "Exported %d messages to %s\n", len(t.Messages), path)
	}
	return nil
}
