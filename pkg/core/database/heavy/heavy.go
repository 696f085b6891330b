// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package heavy is the production block store backend: a bbolt-backed,
// crash-consistent embedded database accessed through asdine/storm, the
// same ORM the teacher repo uses for its capi read models
// (pkg/core/consensus/capi/model.go) and registers as a pluggable driver in
// pkg/core/database/heavy/driver.go.
package heavy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/sirupsen/logrus"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/database"
)

var log = logrus.WithFields(logrus.Fields{"process": "da_store"})

// DriverName identifies this backend, matching the teacher's
// driver-registration naming convention (heavy/driver.go's DriverName).
const DriverName = "heavy_bbolt_v1"

// DirName is the directory name the persistence layout lives under, per
// spec §6 ("data_availability.db" under the configured data directory).
const DirName = "data_availability.db"

// storedBlock is the storm-mapped record. Hash is hex-encoded because storm
// indexes require comparable, encodable Go types; raw [32]byte arrays work
// too, but hex keeps the bolt bucket human-inspectable for debugging, which
// is the same tradeoff the teacher's capi models make with string IDs.
type storedBlock struct {
	HashHex string `storm:"id"`
	Height  uint64 `storm:"index"`
	Data    []byte
}

const lastPointerID = "last"

type lastPointer struct {
	ID      string `storm:"id"`
	HashHex string
}

// Store is the bbolt/storm-backed production Store implementation.
type Store struct {
	db *storm.DB

	last       block.Hash
	lastHeight block.Height
	hasLast    bool
}

// New opens (creating if absent) the block store rooted at dataDir, i.e.
// dataDir/data_availability.db.
func New(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, DirName)

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("creating block store directory at %s: %w", path, err)
	}

	db, err := storm.Open(filepath.Join(path, "blocks.bolt"))
	if err != nil {
		return nil, fmt.Errorf("opening block store at %s: %w", path, err)
	}

	s := &Store{db: db}

	var lp lastPointer
	if err := db.One("ID", lastPointerID, &lp); err == nil {
		var h block.Hash
		if err := decodeHash(lp.HashHex, &h); err == nil {
			var rec storedBlock
			if err := db.One("HashHex", lp.HashHex, &rec); err == nil {
				s.last = h
				s.lastHeight = block.Height(rec.Height)
				s.hasLast = true
			}
		}
	} else if err != storm.ErrNotFound {
		return nil, fmt.Errorf("loading last pointer: %w", err)
	}

	return s, nil
}

// Put stores a block. It writes through synchronously: bbolt's transaction
// commit (mmap + fsync) is itself crash-consistent, so a Put that returns
// nil has already survived a would-be crash, and the in-memory last
// pointer is only advanced once the commit succeeds.
func (s *Store) Put(b block.SignedBlock) error {
	data, err := block.Encode(b)
	if err != nil {
		log.WithError(err).WithField("hash", b.Header.Hash).Error("encoding block")
		return fmt.Errorf("encoding block: %w", err)
	}

	rec := storedBlock{
		HashHex: encodeHash(b.Header.Hash),
		Height:  uint64(b.Header.Height),
		Data:    data,
	}

	if err := s.db.Save(&rec); err != nil {
		log.WithError(err).WithField("hash", b.Header.Hash).Error("storing block")
		return fmt.Errorf("storing block: %w", err)
	}

	if !s.hasLast || b.Header.Height >= s.lastHeight {
		lp := lastPointer{ID: lastPointerID, HashHex: rec.HashHex}
		if err := s.db.Save(&lp); err != nil {
			// Block itself is durable; only the convenience pointer failed
			// to update, so Last() keeps returning the previous tip until a
			// later Put succeeds in advancing it.
			log.WithError(err).Warn("updating last pointer")
		} else {
			s.last = b.Header.Hash
			s.lastHeight = b.Header.Height
			s.hasLast = true
		}
	}

	return nil
}

// Get returns the block with the given hash, if present.
func (s *Store) Get(h block.Hash) (block.SignedBlock, bool, error) {
	var rec storedBlock

	err := s.db.One("HashHex", encodeHash(h), &rec)
	if err == storm.ErrNotFound {
		return block.SignedBlock{}, false, nil
	}
	if err != nil {
		return block.SignedBlock{}, false, fmt.Errorf("reading block: %w", err)
	}

	b, err := block.Decode(rec.Data)
	if err != nil {
		return block.SignedBlock{}, false, fmt.Errorf("decoding block: %w", err)
	}

	return b, true, nil
}

// Contains is a point query by hash.
func (s *Store) Contains(h block.Hash) (bool, error) {
	var rec storedBlock

	err := s.db.One("HashHex", encodeHash(h), &rec)
	if err == storm.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking block: %w", err)
	}

	return true, nil
}

// Last returns the maximum-height block present, if any.
func (s *Store) Last() (block.SignedBlock, bool, error) {
	if !s.hasLast {
		return block.SignedBlock{}, false, nil
	}

	return s.Get(s.last)
}

// Range yields stored blocks whose height is in [from, to), ascending.
func (s *Store) Range(from, to block.Height) ([]database.RangeResult, error) {
	if to <= from {
		return nil, nil
	}

	var recs []storedBlock

	err := s.db.Select(
		q.Gte("Height", uint64(from)),
		q.Lt("Height", uint64(to)),
	).OrderBy("Height").Find(&recs)
	if err == storm.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ranging blocks: %w", err)
	}

	out := make([]database.RangeResult, 0, len(recs))
	for _, rec := range recs {
		b, decErr := block.Decode(rec.Data)
		if decErr != nil {
			out = append(out, database.RangeResult{Err: fmt.Errorf("decoding block at height %d: %w", rec.Height, decErr)})
			continue
		}
		out = append(out, database.RangeResult{Block: b})
	}

	return out, nil
}

// IsEmpty reports whether the store holds no blocks.
func (s *Store) IsEmpty() (bool, error) {
	count, err := s.db.Count(&storedBlock{})
	if err != nil {
		return false, fmt.Errorf("counting blocks: %w", err)
	}
	return count == 0, nil
}

// Persist is a durability barrier. bbolt commits (and by default fsyncs)
// on every successful Save, so by the time Put returns nil the write has
// already survived a would-be crash; Persist additionally forces the
// underlying bolt file descriptor to sync, covering the case where the
// backend is later reconfigured to batch writes.
func (s *Store) Persist() error {
	if err := s.db.Bolt.Sync(); err != nil {
		log.WithError(err).Error("persisting block store")
		return fmt.Errorf("persisting block store: %w", err)
	}
	return nil
}

// Close releases the underlying bolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeHash(h block.Hash) string {
	return fmt.Sprintf("%x", h[:])
}

func decodeHash(hex string, out *block.Hash) error {
	if len(hex) != block.HashSize*2 {
		return fmt.Errorf("invalid hash hex length %d", len(hex))
	}

	for i := 0; i < block.HashSize; i++ {
		var b byte
		if _, err := fmt.Sscanf(hex[i*2:i*2+2], "%02x", &b); err != nil {
			return err
		}
		out[i] = b
	}

	return nil
}
