// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/biuld/naviscope/internal/graphmodel"
)

// magic tags the on-disk payload as a Naviscope index (spec Section 6: "a
// 4-byte magic... guards against loading a file that is not a Naviscope
// index at all").
var magic = [4]byte{'N', 'V', 'S', 'C'}

// formatVersion is the current on-disk payload layout version. decode
// accepts only payloads carrying exactly this version; any other version is
// rejected with ErrUnknownFormat rather than silently misinterpreted.
const formatVersion uint16 = 1

// ErrUnknownFormat is returned when a stored payload's magic or format
// version does not match what this build of IndexStore understands.
var ErrUnknownFormat = errors.New("storage: unrecognized index format")

// ErrNotFound is returned by Load when no snapshot exists yet for a project
// root (spec Section 4.C: "load() returns false if no prior index exists").
var ErrNotFound = errors.New("storage: no index found for project root")

// snapshot is the gob-serializable form of a sealed graph: its full node,
// edge, and file-record sets, flattened out of graphmodel.Immutable's
// internal lookup tables.
type snapshot struct {
	Nodes []*graphmodel.Node
	Edges []*graphmodel.Edge
	Files []*graphmodel.SourceFileRecord
}

func init() {
	gob.Register(&graphmodel.Node{})
	gob.Register(&graphmodel.Edge{})
	gob.Register(&graphmodel.SourceFileRecord{})
}

// IndexStore persists one graph snapshot per project root in a shared badger
// database, keyed by a hash of the project root so distinct projects never
// collide (Open Question resolution, SPEC_FULL.md Section 9: "per-project
// storage keys... never shared cross-project").
type IndexStore struct {
	db *DB
}

// NewIndexStore wraps an already-open DB.
func NewIndexStore(db *DB) *IndexStore {
	return &IndexStore{db: db}
}

// ProjectKey derives the badger key for a project root: sha256 of its
// canonical (absolute, cleaned) path. No third-party hashing library in the
// dependency pack addresses path-keying, so this one spot uses the standard
// library by design (see DESIGN.md's codec entry).
func ProjectKey(projectRoot string) []byte {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return []byte(hex.EncodeToString(sum[:]))
}

// Save encodes g's full node/edge/file-record set and writes it under
// projectRoot's key, overwriting any prior snapshot.
func (s *IndexStore) Save(ctx context.Context, projectRoot string, g *graphmodel.Immutable) error {
	snap := snapshot{
		Nodes: g.AllNodes(),
		Edges: g.AllEdges(),
		Files: g.AllFileRecords(),
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(snap); err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.BigEndian, formatVersion)
	binary.Write(&buf, binary.BigEndian, uint16(0)) // flags, reserved
	binary.Write(&buf, binary.BigEndian, uint32(payload.Len()))
	buf.Write(payload.Bytes())

	key := ProjectKey(projectRoot)
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

// Load reads and decodes the snapshot for projectRoot, rebuilding a fresh
// Immutable graph via a Builder (spec Section 4.C: load/save round-trip a
// "versioned payload"). Returns ErrNotFound if no snapshot is stored yet.
func (s *IndexStore) Load(ctx context.Context, projectRoot string) (*graphmodel.Immutable, error) {
	key := ProjectKey(projectRoot)
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, getErr := txn.Get(key)
		if getErr != nil {
			if errors.Is(getErr, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return getErr
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	snap, err := decode(raw)
	if err != nil {
		return nil, err
	}

	b := graphmodel.NewBuilder()
	for _, n := range snap.Nodes {
		if _, addErr := b.AddNode(n); addErr != nil {
			return nil, fmt.Errorf("storage: rebuild node %q: %w", n.FQN, addErr)
		}
	}
	for _, rec := range snap.Files {
		b.UpsertFile(rec)
	}
	for _, e := range snap.Edges {
		if addErr := b.AddEdge(e.From, e.To, e.Kind, e.Location); addErr != nil {
			return nil, fmt.Errorf("storage: rebuild edge %s->%s: %w", e.From, e.To, addErr)
		}
	}

	return b.Seal(ctx)
}

func decode(raw []byte) (*snapshot, error) {
	const headerLen = 4 + 2 + 2 + 4
	if len(raw) < headerLen {
		return nil, ErrUnknownFormat
	}
	if !bytes.Equal(raw[:4], magic[:]) {
		return nil, ErrUnknownFormat
	}
	version := binary.BigEndian.Uint16(raw[4:6])
	if version != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnknownFormat, version)
	}
	payloadLen := binary.BigEndian.Uint32(raw[8:12])
	if uint32(len(raw)-headerLen) < payloadLen {
		return nil, ErrUnknownFormat
	}
	payload := raw[headerLen : headerLen+int(payloadLen)]

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot: %w", err)
	}
	return &snap, nil
}
