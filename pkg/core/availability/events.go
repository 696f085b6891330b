// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package availability is the data availability core: it owns the block
// store, the reorder buffer, the stream server's peer table, and the
// catch-up client's state machine, and drives all of them from a single
// goroutine's select loop so none of that state ever needs a lock. Its
// shape follows the teacher's pkg/core/chain.Chain (one owning goroutine,
// eventBus.Publish for fan-out, logrus.WithFields for structured logging),
// generalized from "accept consensus-verified blocks" to "accept,
// deduplicate, reorder and redistribute arbitrary signed blocks."
package availability

import "github.com/dusk-network/dusk-da/pkg/core/block"

// MempoolEvent is produced by the block builder / mempool.
type MempoolEvent struct {
	// BuiltBlock is set when the mempool has assembled a new block to
	// distribute.
	BuiltBlock *block.SignedBlock
	// StartedBuildingHeight is set when the mempool announces it has begun
	// building the block at this height, which bounds how far catch-up
	// needs to stream before handing control back to live consensus.
	StartedBuildingHeight *block.Height
}

// GenesisEvent carries the genesis block, or signals a restart from
// already-persisted state with no genesis block attached.
type GenesisEvent struct {
	// Block is set only on a fresh chain. A restart from persisted state
	// carries a nil Block and is otherwise treated as "need catch-up."
	Block *block.SignedBlock
}

// PeerEvent announces a newly discovered remote peer we could catch up
// from.
type PeerEvent struct {
	NewPeerDAAddress string
}

// DataEvent is published once a block has been durably ordered and stored,
// for the rest of the node to consume.
type DataEvent struct {
	OrderedBlock block.SignedBlock
}
