// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// indexCmd runs a full rebuild of the project's graph and persists it, the
// one-shot equivalent of what Engine.Watch keeps current incrementally.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the project's code knowledge graph index",
	Run:   runIndex,
}

func runIndex(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	e, closeStore, err := newEngine(rootFlag)
	if err != nil {
		outputError("failed to open index store", err)
		os.Exit(ExitIndexFailure)
	}
	defer closeStore()

	if err := e.Rebuild(ctx); err != nil {
		outputError("rebuild failed", err)
		os.Exit(exitCodeFor(err, true))
	}

	if err := e.Save(ctx); err != nil {
		outputError("saving index failed", err)
		os.Exit(ExitIndexFailure)
	}

	g, err := e.Snapshot()
	if err != nil {
		outputError("unexpected snapshot failure after rebuild", err)
		os.Exit(ExitError)
	}

	if jsonFlag {
		outputJSON(map[string]any{
			"success": true,
			"nodes":   len(g.AllNodes()),
		})
	} else {
		log.Info("index built", "root", rootFlag, "nodes", len(g.AllNodes()))
	}
	os.Exit(ExitSuccess)
}
