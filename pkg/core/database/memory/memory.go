// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package memory implements the database.Store contract entirely in
// process memory. It is used by tests and satisfies the exact same
// contract as the heavy (storm/bbolt) backend, mirroring the teacher's
// map-of-indices layout in pkg/core/database/lite.
package memory

import (
	"sort"
	"sync"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/database"
)

// Store is an in-memory, mutex-guarded block store.
type Store struct {
	mu sync.RWMutex

	blocks     map[block.Hash]block.SignedBlock
	heightToID map[block.Height]block.Hash
	last       block.Hash
	hasLast    bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		blocks:     make(map[block.Hash]block.SignedBlock),
		heightToID: make(map[block.Height]block.Hash),
	}
}

// Put is total and idempotent on an identical (hash, block).
func (s *Store) Put(b block.SignedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[b.Header.Hash] = b
	s.heightToID[b.Header.Height] = b.Header.Hash

	if !s.hasLast || b.Header.Height >= s.blocks[s.last].Header.Height {
		s.last = b.Header.Hash
		s.hasLast = true
	}

	return nil
}

// Get returns the block with the given hash, if present.
func (s *Store) Get(h block.Hash) (block.SignedBlock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[h]
	return b, ok, nil
}

// Contains is a point query by hash.
func (s *Store) Contains(h block.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blocks[h]
	return ok, nil
}

// Last returns the maximum-height block present, if any.
func (s *Store) Last() (block.SignedBlock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasLast {
		return block.SignedBlock{}, false, nil
	}

	return s.blocks[s.last], true, nil
}

// Range yields stored blocks whose height is in [from, to), ascending.
func (s *Store) Range(from, to block.Height) ([]database.RangeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	heights := make([]block.Height, 0, len(s.heightToID))

	for h := range s.heightToID {
		if h >= from && h < to {
			heights = append(heights, h)
		}
	}

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	out := make([]database.RangeResult, 0, len(heights))
	for _, h := range heights {
		out = append(out, database.RangeResult{Block: s.blocks[s.heightToID[h]]})
	}

	return out, nil
}

// IsEmpty reports whether the store holds no blocks.
func (s *Store) IsEmpty() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blocks) == 0, nil
}

// Persist is a no-op for the in-memory backend: there is nothing to flush,
// everything already lives in process memory. Provided so Store satisfies
// database.Store.
func (s *Store) Persist() error { return nil }

// Close releases no resources for the in-memory backend.
func (s *Store) Close() error { return nil }
