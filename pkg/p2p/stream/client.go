// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/p2p/wire"
)

// dialTimeout bounds how long catch-up dialing a peer may take, mirroring
// the teacher's connmgr dial-with-timeout pattern.
const dialTimeout = 10 * time.Second

// Catchup pulls blocks from a single remote peer's stream server, starting
// at fromHeight, until the connection ends or ctx is cancelled. It is the
// pull-protocol counterpart of Server/Peer's push protocol, grounded on the
// original implementation's RawDAListener-backed catchup_task.
type Catchup struct {
	conn net.Conn

	mu  sync.Mutex
	err error
}

// Dial connects to addr and sends the initial catch-up request naming
// fromHeight as the first height wanted.
func Dial(ctx context.Context, addr string, fromHeight block.Height) (*Catchup, error) {
	d := net.Dialer{Timeout: dialTimeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing catch-up peer %s: %w", addr, err)
	}

	req := wire.ClientRequest{Tag: wire.TagBlockHeight, StartHeight: fromHeight}
	if err := wire.WriteRequest(conn, req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sending catch-up request to %s: %w", addr, err)
	}

	return &Catchup{conn: conn}, nil
}

// Blocks streams decoded blocks off the connection onto the returned
// channel until EOF, a decode error, or ctx cancellation, at which point
// the channel is closed. The last error encountered, if any, is available
// via Err after the channel closes; a clean EOF or an ends-on-cancellation
// is not recorded as an error.
func (c *Catchup) Blocks(ctx context.Context) <-chan block.SignedBlock {
	out := make(chan block.SignedBlock, 32)

	go func() {
		defer close(out)
		defer c.conn.Close()

		r := bufio.NewReader(c.conn)

		go func() {
			<-ctx.Done()
			_ = c.conn.Close()
		}()

		for {
			b, err := wire.ReadBlock(r)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					c.setErr(err)
				}
				return
			}

			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (c *Catchup) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Err returns the last non-EOF, non-cancellation error encountered while
// streaming blocks, if any. Safe to call once the Blocks channel has closed.
func (c *Catchup) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the catch-up connection.
func (c *Catchup) Close() error {
	return c.conn.Close()
}
