// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and help text for widgetsync.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdResolve
	CmdConfig
	CmdHistory
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command's name.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdResolve:
		return "resolve"
	case CmdConfig:
		return "config"
	case CmdHistory:
		return "history"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	NoColor    bool
	ConfigPath string // --config: use this file instead of ~/.widgetsync/config.toml

	// chat
	Plain           bool   // line-oriented REPL instead of the terminal UI
	Theme           string // overrides ui.theme
	NewConversation bool

	// config, history
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// history
	Format    string // export format: markdown or json
	OutputDir string
	Yes       bool // confirms "history clear"

	// resolve
	SourcesFile string
	Markup      string
	Footnotes   bool

	// Name is the command word as typed, for error messages.
	Name string

	// Raw args (remaining after the command word)
	Raw []string
}

const usageText = `widgetsync - terminal client for hosted agent chat

Usage:
  widgetsync                         Start chatting (same as "chat")
  widgetsync chat [flags]            Chat with the configured agent
  widgetsync resolve [flags]         Annotate citations in text read from stdin
  widgetsync config [subcommand]     Show or change configuration
  widgetsync history [subcommand]    Show, export or clear the stored transcript
  widgetsync version                 Show version information
  widgetsync help                    Show this help

Chat flags:
  --plain                 Line-oriented chat, no full-screen UI
  --theme dark|light|auto Override ui.theme
  --new                   Start a new conversation instead of resuming

  In the chat window: enter sends, ctrl+n starts a new conversation,
  ctrl+h minimises, pgup/pgdown scroll, esc or ctrl+c quits.
  In plain mode: /new, /help and /quit.

Resolve flags:
  --sources FILE          JSON array of source descriptors
  --markup html|markdown  Output markup (default: citations.markup)
  --footnotes             Append a References section

Config subcommands:
  config show             Print the effective configuration
  config get KEY          Print one key (dot notation)
  config set KEY VALUE    Change one key and save
  config keys             List every key
  config path             Print the config file path

History subcommands:
  history show            Print the stored conversation
  history export          Write it to a file
    --format markdown|json  Export format (default: markdown)
    --out DIR               Output directory (default: current directory)
  history clear --yes     Delete the stored messages

Global flags:
  -c, --config FILE       Config file to use
  --json                  JSON output where supported
  --no-color              Disable colors
  -q, --quiet             Minimal output
  -v, --verbose           Debug logging

Environment:
  WIDGETSYNC_HOME             Config directory (default: ~/.widgetsync)
  WIDGETSYNC_AGENT_ID         Overrides agent.agent_id
  WIDGETSYNC_API_URL          Overrides agent.api_url
  WIDGETSYNC_SOCKET           0 disables the push channel
  WIDGETSYNC_POLL_MS          Overrides realtime.poll_interval_ms
  WIDGETSYNC_LOG_LEVEL        Overrides logging.level
  WIDGETSYNC_STORAGE_SECRET   Overrides storage.secret
  NO_COLOR                    Disables colors

Examples:
  widgetsync config set agent.agent_id 42
  widgetsync config set agent.api_url https://api.example.com
  widgetsync chat
  echo "Revenue grew [1]." | widgetsync resolve --sources sources.json
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "widgetsync %s\n", Version)
	fmt.Fprintf(w, "  commit:  %s\n", GitCommit)
	fmt.Fprintf(w, "  built:   %s\n", BuildDate)
	fmt.Fprintf(w, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// VersionData is the JSON shape of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args, w io.Writer) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}).Print(w)
	}
	PrintVersion(w)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdChat, args
	}

	args.Name = remaining[0]
	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "chat":
		parseChatArgs(&args, remaining)
		return CmdChat, args

	case "resolve":
		parseResolveArgs(&args, remaining)
		return CmdResolve, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "history":
		parseHistoryArgs(&args, remaining)
		return CmdHistory, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		// Bare chat flags such as "widgetsync --plain".
		if strings.HasPrefix(cmd, "-") {
			args.Name = "chat"
			args.Raw = append([]string{cmd}, remaining...)
			parseChatArgs(&args, args.Raw)
			return CmdChat, args
		}
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags and returns the other arguments.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	remaining := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--no-color":
			args.NoColor = true
		case (arg == "-c" || arg == "--config") && i+1 < len(argv):
			args.ConfigPath = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

func parseChatArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "plain", "new")
	args.Plain = p.BoolFlag("plain")
	args.NewConversation = p.BoolFlag("new")
	args.Theme = p.Flag("theme")
}

func parseResolveArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "footnotes")
	args.SourcesFile = p.FlagOrDefault("sources", p.Flag("s"))
	args.Markup = p.Flag("markup")
	args.Footnotes = p.BoolFlag("footnotes")
}

func parseConfigArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = p.Subcommand()
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
}

func parseHistoryArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "yes", "y")
	args.Subcommand = p.Subcommand()
	args.Format = p.FlagOrDefault("format", p.Flag("f"))
	args.OutputDir = p.FlagOrDefault("out", p.Flag("o"))
	args.Yes = p.BoolFlag("yes") || p.BoolFlag("y")
}
