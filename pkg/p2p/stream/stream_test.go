// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package stream_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/p2p/stream"
	"github.com/dusk-network/dusk-da/pkg/p2p/wire"
)

func TestServerHandshakeAndPush(t *testing.T) {
	srv, err := stream.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	handshakes := srv.Handshakes()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := stream.Dial(ctx, srv.Addr().String(), 0)
	require.NoError(t, err)
	defer client.Close()

	var hs stream.Handshake
	select {
	case hs = <-handshakes:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}

	require.NoError(t, hs.Err)
	assert.Equal(t, block.Height(0), hs.StartHeight)

	pingCh := make(chan string, 1)
	peer := stream.NewPeer(hs.Conn, hs.PeerID, pingCh)
	defer peer.Close()

	want := block.SignedBlock{Header: block.Header{Height: 1}}
	require.NoError(t, peer.Send(want))

	blocks := client.Blocks(ctx)
	select {
	case got, ok := <-blocks:
		require.True(t, ok)
		assert.Equal(t, want.Header, got.Header)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for block")
	}
}

func TestHandshakeRejectsPing(t *testing.T) {
	srv, err := stream.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	handshakes := srv.Handshakes()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteRequest(conn, wire.ClientRequest{Tag: wire.TagPing}))

	select {
	case hs := <-handshakes:
		assert.Error(t, hs.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake")
	}
}
