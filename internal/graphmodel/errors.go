// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphmodel

import "errors"

// Sentinel errors for graph builder operations.
var (
	// ErrGraphSealed is returned when attempting to modify a builder that
	// has already been sealed into an Immutable graph.
	ErrGraphSealed = errors.New("builder already sealed")

	// ErrNodeNotFound is returned when an edge or an upgrade references a
	// node ID that does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEmptyFQN is returned when AddNode is called with an empty FQN.
	ErrEmptyFQN = errors.New("node FQN must not be empty")

	// ErrPlaceholderKindMismatch is returned when UpgradePlaceholder targets
	// a node that is not currently a Placeholder.
	ErrPlaceholderKindMismatch = errors.New("target node is not a placeholder")
)
