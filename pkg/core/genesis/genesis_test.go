// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package genesis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/genesis"
)

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := genesis.Config{Slot: 1, Txs: [][]byte{[]byte("seed-tx")}}

	a := genesis.Generate(cfg)
	b := genesis.Generate(cfg)

	assert.Equal(t, a.Header.Hash, b.Header.Hash)
	assert.True(t, a.IsGenesis())
	assert.True(t, a.ParentHash().IsZero())
}

func TestGenerateDiffersByConfig(t *testing.T) {
	a := genesis.Generate(genesis.Config{Slot: 1})
	b := genesis.Generate(genesis.Config{Slot: 2})

	assert.NotEqual(t, a.Header.Hash, b.Header.Hash)
}

func TestGenerateDefaultConfig(t *testing.T) {
	b := genesis.Generate(genesis.Config{})
	assert.Equal(t, block.Height(0), b.HeightOf())
}
