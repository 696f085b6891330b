// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package availability

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/database"
	"github.com/dusk-network/dusk-da/pkg/core/dedup"
	"github.com/dusk-network/dusk-da/pkg/core/eventbus"
	"github.com/dusk-network/dusk-da/pkg/core/reorder"
	"github.com/dusk-network/dusk-da/pkg/p2p/stream"
)

var log = logrus.WithFields(logrus.Fields{"process": "da_core"})

// livenessTimeout is how long a streaming peer may go without sending a
// ping before it is considered dead and evicted. 5 minutes, matching the
// original implementation's `60 * 5` second liveness window. A var, not a
// const, so tests can shrink it rather than waiting out the real window.
var livenessTimeout = 5 * time.Minute

// historicalSend is one step of a peer's catch-up replay: the remaining
// block hashes to send it, oldest-first, stored reversed so the next hash
// to send is always the slice's last element (a stack, avoiding an O(n)
// pop-from-front on every step).
type historicalSend struct {
	remaining []block.Hash
	peerID    string
}

// Core is the data availability engine. A single goroutine must call Run;
// every other method either is called from within Run or communicates with
// it exclusively through channels, so Core's mutable fields are never
// accessed concurrently.
type Core struct {
	store  database.Store
	buffer *reorder.Buffer
	filter *dedup.Filter
	bus    *eventbus.Bus
	server *stream.Server

	dialAddr func(ctx context.Context, addr string, from block.Height) (*stream.Catchup, error)

	peers    map[string]*stream.Peer
	lastPing map[string]time.Time

	needCatchup   bool
	catching      bool
	catchupCancel context.CancelFunc
	catchupHeight *block.Height

	// catchupGen is bumped every time askForCatchupBlocks starts a new
	// attempt, so a catchupStreamEnded signal from an attempt that has
	// since been superseded or already resolved (target reached, consensus
	// caught up) can be told apart from the current one and ignored.
	catchupGen uint64

	runCtx context.Context

	catchupBlocksCh     chan block.SignedBlock
	catchupStreamEndCh  chan catchupStreamEnd
	historicalCh        chan historicalSend
	pingCh              chan string

	mempoolCh <-chan any
	genesisCh <-chan any
	peerCh    <-chan any
}

// catchupStreamEnd reports that a catch-up attempt's block stream has ended
// (EOF, decode error, or the dial-time connection dropping), independent of
// whether the target height was reached. gen identifies which attempt this
// is, matching Core.catchupGen at the time the attempt started.
type catchupStreamEnd struct {
	gen uint64
	err error
}

// New builds a Core ready to Run. server must already be listening. Bus
// subscriptions happen here, not in Run, so a caller may safely
// bus.Publish a genesis or peer event before calling Run without the
// event racing the core's own subscription and being dropped.
func New(store database.Store, bus *eventbus.Bus, server *stream.Server) *Core {
	c := &Core{
		store:  store,
		buffer: reorder.New(),
		filter: dedup.New(),
		bus:    bus,
		server: server,

		dialAddr: stream.Dial,

		peers:    make(map[string]*stream.Peer),
		lastPing: make(map[string]time.Time),

		catchupBlocksCh:    make(chan block.SignedBlock, 100),
		catchupStreamEndCh: make(chan catchupStreamEnd, 1),
		historicalCh:       make(chan historicalSend, 100),
		pingCh:             make(chan string, 100),

		mempoolCh: bus.Subscribe(eventbus.TopicMempool),
		genesisCh: bus.Subscribe(eventbus.TopicGenesis),
		peerCh:    bus.Subscribe(eventbus.TopicPeer),
	}

	// Seed the duplicate filter with every block already in the store, so
	// its "not seen" answer stays exact after a restart from persisted state.
	if last, ok, err := store.Last(); err == nil && ok {
		if results, err := store.Range(0, last.HeightOf()+1); err == nil {
			for _, r := range results {
				if r.Err == nil {
					c.filter.Insert(r.Block.Hash())
				}
			}
		}
	}

	return c
}

// Run drives the event loop until ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	c.runCtx = ctx
	handshakes := c.server.Handshakes()

	log.Info("data availability core started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()

		case v := <-c.mempoolCh:
			c.handleMempoolEvent(v.(MempoolEvent))

		case v := <-c.genesisCh:
			c.handleGenesisEvent(v.(GenesisEvent))

		case v := <-c.peerCh:
			c.handlePeerEvent(ctx, v.(PeerEvent))

		case hs := <-handshakes:
			if hs.Err != nil {
				log.WithError(hs.Err).Debug("rejecting stream handshake")
				continue
			}
			c.startStreamingToPeer(hs)

		case b, ok := <-c.catchupBlocksCh:
			if ok {
				c.handleCatchupBlock(b)
			}

		case d := <-c.catchupStreamEndCh:
			c.handleCatchupStreamEnded(d)

		case hsnd := <-c.historicalCh:
			c.sendNextHistorical(hsnd)

		case id := <-c.pingCh:
			c.lastPing[id] = time.Now()
		}
	}
}

func (c *Core) shutdown() {
	if c.catchupCancel != nil {
		c.catchupCancel()
	}
	for _, p := range c.peers {
		p.Close()
	}
	_ = c.server.Close()
}

func (c *Core) handleMempoolEvent(evt MempoolEvent) {
	if evt.BuiltBlock != nil {
		c.handleSignedBlock(*evt.BuiltBlock)
	}

	if evt.StartedBuildingHeight == nil {
		return
	}

	height := *evt.StartedBuildingHeight
	until := height - 1
	c.catchupHeight = &until

	if c.catching && c.catchupCancel != nil {
		have := block.Height(0)
		if last, ok, err := c.store.Last(); err == nil && ok {
			have = last.HeightOf()
		}
		if have >= height {
			log.WithField("height", height).Info("stopped streaming blocks, consensus has caught up")
			c.catchupCancel()
			c.catchupCancel = nil
			c.catching = false
			c.needCatchup = false
		}
	}
}

func (c *Core) handleGenesisEvent(evt GenesisEvent) {
	if evt.Block != nil {
		c.handleSignedBlock(*evt.Block)
		return
	}

	// Restarting from already-persisted state: there is no genesis block to
	// replay, so ask the network for whatever we're missing instead.
	c.needCatchup = true
}

func (c *Core) handlePeerEvent(ctx context.Context, evt PeerEvent) {
	if !c.needCatchup || c.catching {
		return
	}
	c.askForCatchupBlocks(ctx, evt.NewPeerDAAddress)
}

func (c *Core) askForCatchupBlocks(ctx context.Context, addr string) {
	log.WithField("peer", addr).Info("streaming data from peer")

	start := block.Height(0)
	if last, ok, err := c.store.Last(); err == nil && ok {
		start = last.HeightOf() + 1
	}

	catchCtx, cancel := context.WithCancel(ctx)

	client, err := c.dialAddr(catchCtx, addr, start)
	if err != nil {
		log.WithError(err).WithField("peer", addr).Warn("setting up catch-up stream failed")
		cancel()
		return
	}

	c.catchupGen++
	gen := c.catchupGen

	c.catching = true
	c.catchupCancel = cancel

	blocks := client.Blocks(catchCtx)

	go func() {
		for b := range blocks {
			select {
			case c.catchupBlocksCh <- b:
			case <-catchCtx.Done():
				return
			}
		}

		// The stream ended (EOF, decode error, or cancellation); either way
		// the goroutine feeding catchupBlocksCh is now dead, so the event
		// loop must be told to clear catching itself if this attempt is
		// still the current one and never reached its target.
		select {
		case c.catchupStreamEndCh <- catchupStreamEnd{gen: gen, err: client.Err()}:
		case <-catchCtx.Done():
		}
	}()
}

// handleCatchupStreamEnded reacts to a catch-up attempt's block stream
// ending before (or without) having reached catchupHeight. If this signal
// belongs to a stale attempt - superseded by a newer dial, or already
// resolved via handleCatchupBlock reaching the target or the consensus
// catch-up in handleMempoolEvent - it is ignored. Otherwise catching is
// cleared while needCatchup stays true, so the next PeerEvent retries
// against another peer.
func (c *Core) handleCatchupStreamEnded(d catchupStreamEnd) {
	if d.gen != c.catchupGen || !c.catching {
		return
	}

	if d.err != nil {
		log.WithError(d.err).Warn("catch-up stream ended with error before reaching target height, awaiting next peer")
	} else {
		log.Warn("catch-up stream ended before reaching target height, awaiting next peer")
	}

	if c.catchupCancel != nil {
		c.catchupCancel()
		c.catchupCancel = nil
	}
	c.catching = false
}

func (c *Core) handleCatchupBlock(b block.SignedBlock) {
	c.handleSignedBlock(b)

	if c.catchupHeight == nil || !c.catching {
		return
	}

	if *c.catchupHeight <= b.HeightOf() {
		log.WithField("height", b.HeightOf()).Info("caught up to target height")
		if c.catchupCancel != nil {
			c.catchupCancel()
			c.catchupCancel = nil
		}
		c.catching = false
		c.needCatchup = false
	}
}

// handleSignedBlock is the acceptance pipeline: dedupe, check lineage,
// buffer orphans, or store and cascade-release anything the new block
// unblocks.
func (c *Core) handleSignedBlock(b block.SignedBlock) {
	hash := b.Hash()

	// Fast path: the cuckoo filter never produces a false negative, so a
	// "not seen" answer proves this hash has never been committed and the
	// authoritative store lookup below can be skipped entirely. A "seen"
	// answer is only a hint (false positives are possible) and still falls
	// through to Contains to confirm.
	if c.filter.Seen(hash) {
		contains, err := c.store.Contains(hash)
		if err != nil {
			log.WithError(err).WithField("hash", hash).Error("checking block store")
			return
		}
		if contains {
			log.WithField("hash", hash).WithField("height", b.HeightOf()).Warn("block already exists")
			return
		}
	}

	empty, err := c.store.IsEmpty()
	if err != nil {
		log.WithError(err).Error("checking block store")
		return
	}

	if !empty {
		parentOK, err := c.store.Contains(b.ParentHash())
		if err != nil {
			log.WithError(err).Error("checking parent block")
			return
		}
		if !parentOK {
			log.WithField("hash", hash).WithField("parent", b.ParentHash()).Debug("buffering block, parent not found")
			c.buffer.Insert(b)
			return
		}
	} else if !b.IsGenesis() {
		log.WithField("hash", hash).Debug("buffering block, genesis block missing")
		c.buffer.Insert(b)
		return
	}

	c.addProcessedBlock(b)
	c.popBuffer(hash)

	if err := c.store.Persist(); err != nil {
		log.WithError(err).Error("persisting block store")
	}
}

func (c *Core) popBuffer(lastHash block.Hash) {
	for _, b := range c.buffer.PopLinkedFrom(lastHash) {
		c.addProcessedBlock(b)
	}
}

func (c *Core) addProcessedBlock(b block.SignedBlock) {
	if err := c.store.Put(b); err != nil {
		log.WithError(err).WithField("hash", b.Hash()).Error("storing block")
		return
	}
	c.filter.Insert(b.Hash())

	if b.HeightOf()%10 == 0 || len(b.Txs) > 0 {
		log.WithField("height", b.HeightOf()).WithField("hash", b.Hash()).WithField("txs", len(b.Txs)).Info("new block")
	}

	now := time.Now()

	for id, peer := range c.peers {
		last, ok := c.lastPing[id]
		if ok && now.Sub(last) > livenessTimeout {
			log.WithField("peer", id).Info("peer timed out")
			peer.Close()
			delete(c.peers, id)
			delete(c.lastPing, id)
			continue
		}

		if err := peer.Send(b); err != nil {
			log.WithError(err).WithField("peer", id).Debug("couldn't send new block to peer, stopping stream")
			delete(c.peers, id)
			delete(c.lastPing, id)
		}
	}

	c.bus.Publish(eventbus.TopicData, DataEvent{OrderedBlock: b})
}

func (c *Core) startStreamingToPeer(hs stream.Handshake) {
	upTo := hs.StartHeight
	if last, ok, err := c.store.Last(); err == nil && ok {
		upTo = last.HeightOf() + 1
	}

	results, err := c.store.Range(hs.StartHeight, upTo)
	if err != nil {
		log.WithError(err).WithField("peer", hs.PeerID).Error("ranging blocks for catch-up")
		_ = hs.Conn.Close()
		return
	}

	hashes := make([]block.Hash, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			log.WithError(r.Err).WithField("peer", hs.PeerID).Warn("skipping undecodable stored block")
			continue
		}
		hashes = append(hashes, r.Block.Hash())
	}

	// Reverse so the stack-style pop in sendNextHistorical yields ascending
	// delivery order (oldest first) without a front-removal on every step.
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}

	// Enrol the peer for live fan-out only once the historical snapshot is
	// taken, so no block is both replayed and pushed live.
	peer := stream.NewPeer(hs.Conn, hs.PeerID, c.pingCh)
	c.peers[hs.PeerID] = peer
	c.lastPing[hs.PeerID] = time.Now()

	log.WithField("peer", hs.PeerID).Info("started streaming to peer")

	c.enqueueHistorical(historicalSend{remaining: hashes, peerID: hs.PeerID})
}

// enqueueHistorical hands hs to historicalCh without dropping the batch
// when the queue is full: a dropped batch would silently stall a peer's
// catch-up with no retry. The common case (queue
// has room) returns immediately; only when the queue is saturated does the
// send move to a background goroutine that blocks until it is accepted or
// Run's context is cancelled, so the event loop itself is never held up
// waiting on its own queue.
func (c *Core) enqueueHistorical(hs historicalSend) {
	select {
	case c.historicalCh <- hs:
		return
	default:
	}

	go func() {
		select {
		case c.historicalCh <- hs:
		case <-c.runCtx.Done():
		}
	}()
}

func (c *Core) sendNextHistorical(hs historicalSend) {
	if len(hs.remaining) == 0 {
		return
	}

	hash := hs.remaining[len(hs.remaining)-1]
	remaining := hs.remaining[:len(hs.remaining)-1]

	peer, ok := c.peers[hs.peerID]
	if !ok {
		return
	}

	b, found, err := c.store.Get(hash)
	if err != nil || !found {
		return
	}

	if err := peer.Send(b); err != nil {
		delete(c.peers, hs.peerID)
		delete(c.lastPing, hs.peerID)
		return
	}

	if len(remaining) > 0 {
		c.enqueueHistorical(historicalSend{remaining: remaining, peerID: hs.peerID})
	}
}
