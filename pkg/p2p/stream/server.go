// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package stream

import (
	"fmt"
	"net"
	"time"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/p2p/wire"
)

// handshakeTimeout bounds how long a connecting peer has to send its
// initial catch-up request before the connection is dropped.
const handshakeTimeout = 30 * time.Second

// Handshake is the result of accepting one incoming connection and reading
// its first frame, which must name the height the peer wants to stream
// from. Grounded on the original implementation's spawned per-connection
// future that reads exactly one DataAvailabilityServerRequest::BlockHeight
// before handing the connection off to the main loop.
type Handshake struct {
	PeerID      string
	Conn        net.Conn
	StartHeight block.Height
	Err         error
}

// Server accepts streaming connections on a single listening socket.
type Server struct {
	ln net.Listener
}

// Listen binds a TCP listener at addr.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding stream server at %s: %w", addr, err)
	}
	return &Server{ln: ln}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Handshakes returns a channel fed with one Handshake per accepted
// connection. Each connection's handshake read runs in its own goroutine
// (mirroring the original implementation's JoinSet of pending stream
// requests), so one slow or malicious connecting peer can never stall
// acceptance of the next.
func (s *Server) Handshakes() <-chan Handshake {
	out := make(chan Handshake, 16)

	go func() {
		defer close(out)

		for {
			conn, err := s.ln.Accept()
			if err != nil {
				return
			}

			go func() {
				h := doHandshake(conn)
				out <- h
			}()
		}
	}()

	return out
}

func doHandshake(conn net.Conn) Handshake {
	peerID := conn.RemoteAddr().String()

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	req, err := wire.ReadRequest(conn)
	if err != nil {
		_ = conn.Close()
		return Handshake{PeerID: peerID, Err: fmt.Errorf("reading handshake from %s: %w", peerID, err)}
	}

	if req.Tag != wire.TagBlockHeight {
		_ = conn.Close()
		return Handshake{PeerID: peerID, Err: fmt.Errorf("peer %s sent a ping instead of a catch-up request", peerID)}
	}

	return Handshake{PeerID: peerID, Conn: conn, StartHeight: req.StartHeight}
}
