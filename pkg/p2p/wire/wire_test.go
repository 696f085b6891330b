// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package wire_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/p2p/wire"
)

func TestWriteReadBlockRoundTrip(t *testing.T) {
	b := block.SignedBlock{
		Header: block.Header{Height: 3, Slot: 1},
		Txs:    [][]byte{[]byte("payload")},
	}

	var buf bytes.Buffer
	require.NoError(t, wire.WriteBlock(&buf, b))

	got, err := wire.ReadBlock(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, b.Header, got.Header)
}

func TestWriteReadRequestBlockHeight(t *testing.T) {
	req := wire.ClientRequest{Tag: wire.TagBlockHeight, StartHeight: 17}

	var buf bytes.Buffer
	require.NoError(t, wire.WriteRequest(&buf, req))

	got, err := wire.ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestWriteReadRequestPing(t *testing.T) {
	req := wire.ClientRequest{Tag: wire.TagPing}

	var buf bytes.Buffer
	require.NoError(t, wire.WriteRequest(&buf, req))

	got, err := wire.ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, wire.TagPing, got.Tag)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	oversized := uint32(wire.MaxFrameSize) + 1
	_ = oversized

	var prefix [4]byte
	prefix[0] = 0xFF // forces a huge length in big-endian
	buf.Write(prefix[:])

	_, err := wire.ReadFrame(bufio.NewReader(&buf))
	assert.Error(t, err)
}

func TestMultipleFramesOnSameStream(t *testing.T) {
	var buf bytes.Buffer

	b1 := block.SignedBlock{Header: block.Header{Height: 1}}
	b2 := block.SignedBlock{Header: block.Header{Height: 2}}

	require.NoError(t, wire.WriteBlock(&buf, b1))
	require.NoError(t, wire.WriteBlock(&buf, b2))

	r := bufio.NewReader(&buf)

	got1, err := wire.ReadBlock(r)
	require.NoError(t, err)
	assert.Equal(t, block.Height(1), got1.Header.Height)

	got2, err := wire.ReadBlock(r)
	require.NoError(t, err)
	assert.Equal(t, block.Height(2), got2.Header.Height)
}
