// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the subcommand handlers of
// widgetsync.
//
// # Commands
//
//   - chat: talk to the configured agent, in the terminal UI or a plain
//     line-oriented REPL when the terminal cannot host one
//   - resolve: run the citation resolver over stdin
//   - config: show, read and write configuration keys
//   - history: show, export or clear the stored transcript
//   - version: print build information
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    err = cli.HandleChat(args)
//	case cli.CmdResolve:
//	    err = cli.HandleResolve(args, os.Stdin, os.Stdout)
//	}
//
// Handlers return errors; GetExitCode maps them onto process exit codes.
// Commands that print data accept --json.
package cli
