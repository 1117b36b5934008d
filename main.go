// widgetsync - terminal client for hosted agent chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/jeranaias/widgetsync/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()
	cli.ApplyColorProfile(args)

	var err error
	switch cmd {
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdResolve:
		err = cli.HandleResolve(args, os.Stdin, os.Stdout)
	case cli.CmdConfig:
		err = cli.HandleConfig(args, os.Stdout)
	case cli.CmdHistory:
		err = cli.HandleHistory(args, os.Stdout)
	case cli.CmdVersion:
		err = cli.HandleVersion(args, os.Stdout)
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args.Name)
		cli.PrintUsage(os.Stderr)
		os.Exit(cli.ExitUsageError)
	}

	if err != nil {
		out := os.Stderr
		if args.JSON {
			out = os.Stdout
		}
		cli.DisplayError(out, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}
