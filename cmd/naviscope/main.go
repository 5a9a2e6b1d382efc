// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command naviscope is the thinnest possible non-interactive front-end over
// the Query DSL (spec Section 6): build or refresh a project's index, then
// run one query against it and print the result. The interactive shell, the
// LSP wire handler, and the MCP tool dispatch are separate collaborators
// that sit on top of the same internal/engine and internal/queryengine
// packages; this binary is not one of them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/biuld/naviscope/internal/logging"
)

var log *logging.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".", "project root directory")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output as JSON for scripting")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if verboseFlag {
			level = logging.LevelDebug
		}
		log = logging.New(logging.Config{
			Level:   level,
			Service: "naviscope",
			Quiet:   false,
		})
		// internal/engine and internal/discovery log through the package-level
		// slog default rather than taking a Logger directly, so route it
		// through the same configured handler --verbose controls.
		slog.SetDefault(log.Slog())
	}

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
}
