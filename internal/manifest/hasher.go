// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package manifest

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes a file's content fingerprint.
type Hasher interface {
	HashFile(path string) (string, error)
	HashBytes(content []byte) string
}

// XXHasher is the default Hasher, using xxhash for a fast 64-bit digest
// (the same family of hash already pulled in transitively by badger's
// dependency on ristretto, so no second hashing library is introduced).
type XXHasher struct {
	bufSize int
}

// NewXXHasher creates an XXHasher. bufSize of 0 selects a sensible default
// streaming buffer size.
func NewXXHasher(bufSize int) *XXHasher {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &XXHasher{bufSize: bufSize}
}

// HashFile streams path through xxhash without loading it fully into memory.
func (h *XXHasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	digest := xxhash.New()
	buf := make([]byte, h.bufSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// HashBytes hashes in-memory content, used when a file has already been
// read for parsing and re-reading it for hashing would be wasteful.
func (h *XXHasher) HashBytes(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
