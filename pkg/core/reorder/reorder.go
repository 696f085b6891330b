// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package reorder holds blocks whose parent hasn't been seen yet, releasing
// them in order once their lineage completes. It is the Go counterpart of
// the original Rust implementation's BTreeSet<SignedBlock> buffer
// (original_source/src/data_availability.rs), realized here with
// google/btree for the ordered-by-(height,hash) set the teacher's own
// pkg/p2p/peer/dupemap keys its caches by round/height in spirit of.
package reorder

import (
	"github.com/google/btree"

	"github.com/dusk-network/dusk-da/pkg/core/block"
)

// item adapts block.SignedBlock to btree.Item, ordering by (height, hash).
type item struct {
	b block.SignedBlock
}

func (a item) Less(than btree.Item) bool {
	return block.Less(a.b, than.(item).b)
}

// Buffer is an ordered set of blocks keyed by (height, hash), holding
// blocks whose parent is not yet in the store.
type Buffer struct {
	tree *btree.BTree
	byID map[block.Hash]struct{}
}

// New creates an empty reorder buffer.
func New() *Buffer {
	return &Buffer{
		tree: btree.New(32),
		byID: make(map[block.Hash]struct{}),
	}
}

// Insert adds b to the buffer. A no-op if b is already present.
func (buf *Buffer) Insert(b block.SignedBlock) {
	if _, ok := buf.byID[b.Header.Hash]; ok {
		return
	}

	buf.tree.ReplaceOrInsert(item{b})
	buf.byID[b.Header.Hash] = struct{}{}
}

// Has reports whether a block with the given hash is currently buffered.
func (buf *Buffer) Has(h block.Hash) bool {
	_, ok := buf.byID[h]
	return ok
}

// Len returns the number of buffered blocks.
func (buf *Buffer) Len() int {
	return buf.tree.Len()
}

// PopLinkedFrom iteratively removes and returns buffered blocks that chain
// off lastHash, in ascending (height, hash) order, starting from the
// lowest-keyed buffered block. It stops as soon as the lowest-keyed
// remaining block's parent hash doesn't match the running "last hash". A
// lower-keyed buffered block from an unrelated branch therefore stops the
// drain, and linked blocks keyed above it stay buffered. This is iterative, never recursive, so draining an arbitrarily long
// buffered chain (spec invariant 5: 10,000 orphans) cannot overflow the
// stack.
func (buf *Buffer) PopLinkedFrom(lastHash block.Hash) []block.SignedBlock {
	var released []block.SignedBlock

	for {
		min := buf.tree.Min()
		if min == nil {
			break
		}

		first := min.(item).b
		if first.Header.ParentHash != lastHash {
			break
		}

		buf.tree.DeleteMin()
		delete(buf.byID, first.Header.Hash)

		released = append(released, first)
		lastHash = first.Header.Hash
	}

	return released
}
