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
	"errors"

	"github.com/biuld/naviscope/internal/queryengine"
)

// Exit codes, per spec Section 6: "0 success; 1 generic failure; 2 invalid
// query; 3 I/O failure reading the project; 4 index load/save failure".
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitInvalidQuery = 2
	ExitProjectIO    = 3
	ExitIndexFailure = 4
)

// ErrNoIndex is returned when a query command finds no on-disk index and
// the caller did not request an on-the-fly rebuild.
var ErrNoIndex = errors.New("no index found for this project; run 'naviscope index' first")

// exitCodeFor maps an error to one of the five exit codes. io classifies
// whether err arose while reading the project tree (discovery/manifest) as
// opposed to loading/saving the index itself.
func exitCodeFor(err error, io bool) int {
	switch {
	case err == nil:
		return ExitSuccess
	case isQueryFault(err):
		return ExitInvalidQuery
	case io:
		return ExitProjectIO
	default:
		return ExitIndexFailure
	}
}

// isQueryFault reports whether err is one of queryengine's sentinel "query
// is well-formed but cannot be answered" errors.
func isQueryFault(err error) bool {
	switch {
	case errors.Is(err, queryengine.ErrUnknownSymbol),
		errors.Is(err, queryengine.ErrUnresolvablePosition),
		errors.Is(err, queryengine.ErrMalformedQuery),
		errors.Is(err, queryengine.ErrUnknownKind):
		return true
	default:
		return false
	}
}
