// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package eventbus is a minimal topic-based pub/sub bus, generalizing the
// ChanListener dispatch style of the wider dusk-blockchain codebase's
// util/nativeutils/eventbus package to the handful of event types the DA
// core exchanges with the rest of the node (mempool, genesis, peer
// discovery, and the ordered-block feed it produces). Subscribers read off
// a channel; publishers never block on a slow or absent subscriber.
package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"process": "eventbus"})

// Topic names an event category.
type Topic string

const (
	// TopicMempool carries MempoolEvent values produced by the mempool/block
	// builder (a built block, or notice that block-building has started).
	TopicMempool Topic = "mempool"
	// TopicGenesis carries GenesisEvent values, namely the genesis block.
	TopicGenesis Topic = "genesis"
	// TopicPeer carries PeerEvent values announcing newly discovered peers.
	TopicPeer Topic = "peer"
	// TopicData carries DataEvent values: blocks the DA core has finished
	// ordering and persisting, for consumption by the rest of the node.
	TopicData Topic = "data"
)

// subscriberBufferSize bounds how far a subscriber may lag before published
// events to it are dropped, mirroring ChanListener.forward's non-blocking
// send-or-drop behavior.
const subscriberBufferSize = 64

// Bus dispatches published events to per-topic subscriber channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan any
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]chan any)}
}

// Subscribe returns a channel that receives every value later published to
// topic.
func (b *Bus) Subscribe(topic Topic) <-chan any {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, subscriberBufferSize)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish fans payload out to every current subscriber of topic. A
// subscriber whose buffer is full is skipped rather than blocking the
// publisher, and the drop is logged.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			log.WithField("topic", topic).Warn("subscriber buffer full, dropping event")
		}
	}
}
