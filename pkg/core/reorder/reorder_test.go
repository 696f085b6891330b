// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package reorder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/reorder"
)

func chainBlock(height block.Height, self, parent byte) block.SignedBlock {
	var h, p block.Hash
	h[0] = self
	p[0] = parent
	return block.SignedBlock{Header: block.Header{Height: height, Hash: h, ParentHash: p}}
}

func TestPopLinkedFromEmptyBuffer(t *testing.T) {
	buf := reorder.New()
	var genesis block.Hash

	released := buf.PopLinkedFrom(genesis)
	assert.Empty(t, released)
}

func TestPopLinkedFromReleasesContiguousChain(t *testing.T) {
	buf := reorder.New()

	b1 := chainBlock(1, 1, 0)
	b2 := chainBlock(2, 2, 1)
	b3 := chainBlock(3, 3, 2)

	// Insert out of order, as blocks may arrive over the wire unordered.
	buf.Insert(b3)
	buf.Insert(b1)
	buf.Insert(b2)

	var genesis block.Hash
	released := buf.PopLinkedFrom(genesis)

	assert.Equal(t, []block.SignedBlock{b1, b2, b3}, released)
	assert.Equal(t, 0, buf.Len())
}

func TestPopLinkedFromStopsAtGap(t *testing.T) {
	buf := reorder.New()

	b1 := chainBlock(1, 1, 0)
	b3 := chainBlock(3, 3, 2) // parent (hash=2) never arrives

	buf.Insert(b1)
	buf.Insert(b3)

	var genesis block.Hash
	released := buf.PopLinkedFrom(genesis)

	assert.Equal(t, []block.SignedBlock{b1}, released)
	assert.Equal(t, 1, buf.Len())
	assert.True(t, buf.Has(b3.Header.Hash))
}

func TestInsertIsIdempotent(t *testing.T) {
	buf := reorder.New()
	b1 := chainBlock(1, 1, 0)

	buf.Insert(b1)
	buf.Insert(b1)

	assert.Equal(t, 1, buf.Len())
}

func TestPopLinkedFromDeepChainDoesNotOverflow(t *testing.T) {
	buf := reorder.New()

	const depth = 10000

	blocks := make([]block.SignedBlock, 0, depth)

	var parent byte
	for i := 1; i <= depth; i++ {
		self := byte(i % 256)
		// Use height as the true discriminator since hash bytes wrap at 256;
		// insert in reverse to also exercise out-of-order insertion at scale.
		b := chainBlock(block.Height(i), self, parent)
		b.Header.Hash[1] = byte(i >> 8)
		b.Header.Hash[2] = byte(i >> 16)
		if i > 1 {
			b.Header.ParentHash[1] = byte((i - 1) >> 8)
			b.Header.ParentHash[2] = byte((i - 1) >> 16)
		}
		blocks = append(blocks, b)
		parent = self
	}

	for i := len(blocks) - 1; i >= 0; i-- {
		buf.Insert(blocks[i])
	}

	var genesis block.Hash
	released := buf.PopLinkedFrom(genesis)

	assert.Len(t, released, depth)
	assert.Equal(t, 0, buf.Len())
}
