// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package database defines the block store contract shared by the two
// backends (heavy, for production; memory, for tests). Callers depend only
// on the Store interface, never on a concrete backend.
package database

import (
	"github.com/dusk-network/dusk-da/pkg/core/block"
)

// RangeResult is one entry of a Range scan. Err is non-nil when that
// specific entry failed to decode; callers skip such entries and continue
// (spec §7: "Codec decode failure on range scan: skip that entry, continue").
type RangeResult struct {
	Block block.SignedBlock
	Err   error
}

// Store is the durable, ordered, hash-indexed block persistence contract.
// Put is total and idempotent; it does not validate parent linkage (that is
// the reorder buffer's job). Persist is an explicit durability barrier:
// once it returns, every prior Put survives process termination.
type Store interface {
	// Put stores a block. Idempotent on identical (hash, block). I/O
	// failures are logged by the implementation and must not advance the
	// in-memory Last() pointer.
	Put(b block.SignedBlock) error

	// Get returns the block with the given hash, if present.
	Get(h block.Hash) (block.SignedBlock, bool, error)

	// Contains is a point query by hash.
	Contains(h block.Hash) (bool, error)

	// Last returns the maximum-height block present, if any.
	Last() (block.SignedBlock, bool, error)

	// Range yields stored blocks whose height is in [from, to), ascending.
	Range(from, to block.Height) ([]RangeResult, error)

	// IsEmpty reports whether the store holds no blocks.
	IsEmpty() (bool, error)

	// Persist is a durability barrier. After it returns, all prior Puts
	// survive a crash. Implementations may batch writes between barriers.
	Persist() error

	// Close releases any resources held by the backend.
	Close() error
}
