// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package queryengine

import "errors"

// Sentinel errors surfaced as a "query fault" (spec Section 7: "malformed
// query or unknown symbol. Surface to caller").
var (
	// ErrUnknownSymbol is returned when a query names an FQN not present in
	// the snapshot.
	ErrUnknownSymbol = errors.New("queryengine: unknown symbol")

	// ErrUnresolvablePosition is returned when a refs query by position
	// cannot resolve to any node.
	ErrUnresolvablePosition = errors.New("queryengine: position does not resolve to a node")

	// ErrMalformedQuery is returned when a Query is missing a field its Kind requires.
	ErrMalformedQuery = errors.New("queryengine: malformed query")

	// ErrUnknownKind is returned for a Query.Kind outside the six defined kinds.
	ErrUnknownKind = errors.New("queryengine: unknown query kind")
)
