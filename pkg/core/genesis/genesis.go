// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package genesis builds the height-0 block a freshly bootstrapped network
// agrees on without any prior coordination, the same role the teacher's
// pkg/config/genesis/generation.go plays for the full chain, narrowed to
// what the DA core needs: a deterministic, content-addressed placeholder
// block to seed the store and reorder buffer before real consensus-built
// blocks start arriving.
package genesis

import (
	"crypto/sha256"

	"github.com/dusk-network/dusk-da/pkg/core/block"
)

// Config parameterizes genesis block construction. Txs are included
// verbatim in the genesis block, e.g. to seed initial account balances.
type Config struct {
	Slot uint64
	Txs  [][]byte
}

// Generate builds the genesis block for cfg. Its hash is the content hash
// of the rest of the header plus its transactions, so any two nodes given
// the same Config independently compute the same genesis hash, the same
// way the teacher's Generate derives Header.Hash from CalculateRoot and
// CalculateHash over the assembled block rather than a random or
// operator-supplied value.
func Generate(cfg Config) block.SignedBlock {
	h := block.Header{
		Height:     0,
		Slot:       cfg.Slot,
		ParentHash: block.Hash{},
	}

	b := block.SignedBlock{Header: h, Txs: cfg.Txs}
	b.Header.Hash = contentHash(b)

	return b
}

// contentHash hashes the block's encoded form with its own hash field held
// at zero, so the hash commits to everything else about the block. This is
// plain sha256, not a teacher-supplied library, because the DA core never
// otherwise needs to compute a block hash - consensus always supplies one
// for every non-genesis block - and reaching for a third-party hashing
// library for a single stdlib-sized call here would add a dependency with
// nothing else in the tree to exercise it.
func contentHash(b block.SignedBlock) block.Hash {
	data, err := block.Encode(b)
	if err != nil {
		panic("genesis: encoding candidate genesis block: " + err.Error())
	}

	sum := sha256.Sum256(data)
	return block.Hash(sum)
}
