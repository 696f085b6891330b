// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package dedup provides a fast, probabilistic pre-filter for incoming
// blocks, sitting in front of the authoritative store/reorder-buffer
// membership checks the same way the teacher's
// pkg/p2p/peer/dupemap/tmpmap.go sits in front of full message processing:
// a cuckoo filter answers the common case (a hash never seen before)
// cheaply, and only hashes it reports as seen pay for a map or disk lookup.
package dedup

import (
	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/sirupsen/logrus"

	"github.com/dusk-network/dusk-da/pkg/core/block"
)

var log = logrus.WithFields(logrus.Fields{"process": "dedup"})

// capacity bounds the filter's false-positive rate under sustained churn.
// The teacher's tmpmap sizes similarly for its peer-message cache; we size
// generously since a false positive here only costs an extra authoritative
// lookup, never a correctness violation (Filter is advisory, never the
// final word - see Seen).
const capacity uint = 1 << 20

// Filter is a probabilistic duplicate pre-filter. It is not safe for
// concurrent use: it has no internal locking and is owned by the single
// event-loop goroutine, matching the rest of the DA core's single-owner
// concurrency model.
//
// InsertUnique can fail once the cuckoo table's local neighbourhood fills
// up, well before the nominal capacity is exhausted; the cuckoo filter
// offers no way to retry that doesn't risk evicting genuine entries.
// overflow catches those rare rejected hashes so Seen never reports a false
// negative for a hash this Filter was actually asked to record - it is
// expected to stay empty or near-empty in normal operation.
type Filter struct {
	cf       *cuckoo.Filter
	overflow map[block.Hash]struct{}
}

// New creates an empty filter.
func New() *Filter {
	return &Filter{cf: cuckoo.NewFilter(capacity)}
}

// Seen reports whether h has probably been inserted before. A false
// positive is possible (reports seen when it wasn't); a false negative is
// not. A "seen" answer is therefore only a hint, to be confirmed against
// the authoritative store. A "not seen" answer is exact only for hashes
// recorded through Insert: a hash stored elsewhere without being inserted
// here also reads as "not seen".
func (f *Filter) Seen(h block.Hash) bool {
	if _, ok := f.overflow[h]; ok {
		return true
	}
	return f.cf.Lookup(h[:])
}

// Insert records h as seen. If the cuckoo table rejects the insert (its
// local bucket neighbourhood is full), h is tracked in a small overflow set
// instead of being silently dropped, so Seen keeps its no-false-negatives
// guarantee.
func (f *Filter) Insert(h block.Hash) {
	if ok := f.cf.InsertUnique(h[:]); ok {
		return
	}

	log.WithField("hash", h).Warn("cuckoo filter rejected insert, tracking in overflow set")

	if f.overflow == nil {
		f.overflow = make(map[block.Hash]struct{})
	}
	f.overflow[h] = struct{}{}
}

// Reset discards all recorded hashes, e.g. after a backend swap or a
// catch-up resync where stale positives would otherwise persist.
func (f *Filter) Reset() {
	f.cf = cuckoo.NewFilter(capacity)
	f.overflow = nil
}
