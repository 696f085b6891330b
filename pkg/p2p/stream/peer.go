// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package stream implements the server side (push) and client side (pull,
// catch-up) of the block streaming protocol over pkg/p2p/wire framing. Its
// actor shape follows the teacher's pkg/p2p/peer/peermgr.Peer: each
// connection gets its own read and write goroutines so a slow or hostile
// peer's I/O never blocks the single-threaded event loop that owns block
// ordering and peer bookkeeping.
package stream

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/p2p/wire"
)

// errPeerClosed and errPeerStalled are the two reasons Peer.Send can fail:
// the connection already ended, or the peer is too slow to keep its
// outbound buffer from filling up.
var (
	errPeerClosed  = errors.New("stream: peer connection closed")
	errPeerStalled = errors.New("stream: peer outbound buffer full")
)

var log = logrus.WithFields(logrus.Fields{"process": "da_stream"})

// outboundBufferSize bounds how many blocks may be queued for a single peer
// before it is considered non-responsive and evicted. Mirrors the teacher's
// peermgr outputBufferSize / the original implementation's bounded mpsc
// channels.
const outboundBufferSize = 256

// defaultFanoutRate and defaultFanoutBurst pace how fast a single peer is
// fed blocks, the same way the teacher's mempool paces tx propagation with
// a per-peer rate.Limiter: a peer dialing in for a deep catch-up replay
// should not be able to monopolize this node's egress bandwidth.
const (
	defaultFanoutRate  = 200 // blocks per second
	defaultFanoutBurst = 64
)

// Peer is a single connected streaming client: an accepted connection the
// event loop has registered for either live fan-out, historical catch-up,
// or both.
type Peer struct {
	ID   string
	conn net.Conn

	outCh  chan block.SignedBlock
	pingCh chan<- string
	doneCh chan struct{}

	limiter *rate.Limiter

	closeOnce sync.Once
}

// NewPeer wraps an accepted connection and starts its reader and writer
// goroutines. pingCh receives this peer's ID every time it sends any
// well-formed client frame, so the event loop can update liveness bookkeeping without the
// writer or reader goroutine ever touching shared state directly.
func NewPeer(conn net.Conn, id string, pingCh chan<- string) *Peer {
	p := &Peer{
		ID:      id,
		conn:    conn,
		outCh:   make(chan block.SignedBlock, outboundBufferSize),
		pingCh:  pingCh,
		doneCh:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(defaultFanoutRate), defaultFanoutBurst),
	}

	go p.writeLoop()
	go p.readLoop()

	return p
}

// Send queues a block to be streamed to this peer. It never blocks: if the
// peer's outbound buffer is full, the peer is considered stalled and the
// send fails so the caller can evict it, matching the original
// implementation's treatment of a send error as grounds to stop streaming.
func (p *Peer) Send(b block.SignedBlock) error {
	select {
	case p.outCh <- b:
		return nil
	case <-p.doneCh:
		return errPeerClosed
	default:
		p.Close()
		return errPeerStalled
	}
}

// Done returns a channel closed once this peer's connection has ended, for
// any reason (read error, write error, or explicit Close).
func (p *Peer) Done() <-chan struct{} {
	return p.doneCh
}

// Close tears down the connection and stops both goroutines.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.doneCh)
		_ = p.conn.Close()
	})
}

func (p *Peer) writeLoop() {
	w := bufio.NewWriter(p.conn)

	for {
		select {
		case b := <-p.outCh:
			if err := p.limiter.Wait(context.Background()); err != nil {
				log.WithError(err).WithField("peer", p.ID).Debug("rate limiter wait aborted")
				p.Close()
				return
			}
			if err := wire.WriteBlock(w, b); err != nil {
				log.WithError(err).WithField("peer", p.ID).Debug("writing block to peer")
				p.Close()
				return
			}
			if err := w.Flush(); err != nil {
				log.WithError(err).WithField("peer", p.ID).Debug("flushing to peer")
				p.Close()
				return
			}
		case <-p.doneCh:
			return
		}
	}
}

func (p *Peer) readLoop() {
	r := bufio.NewReader(p.conn)

	for {
		if _, err := wire.ReadRequest(r); err != nil {
			log.WithError(err).WithField("peer", p.ID).Debug("peer read loop ending")
			p.Close()
			return
		}

		// Any inbound frame counts as a keepalive, not just an explicit Ping:
		// a peer re-requesting a height is just as much a sign of life.
		select {
		case p.pingCh <- p.ID:
		case <-p.doneCh:
			return
		case <-time.After(time.Second):
			// Event loop is backed up; drop the keepalive rather than
			// block this peer's reader.
		}
	}
}
