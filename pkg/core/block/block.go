// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package block defines the signed block payload the data availability core
// moves around. The core treats the block as opaque: it never validates
// signatures, staking weights or state transitions, it only orders and
// persists blocks by their header fields.
package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HashSize is the fixed width, in bytes, of a block hash or parent hash.
const HashSize = 32

// Hash is a fixed-width, equality-comparable content hash.
type Hash [HashSize]byte

// IsZero reports whether h is the zero hash (used by genesis blocks, whose
// parent hash has no predecessor).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders the full hash as lowercase hex (64 characters).
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Height is a monotone block height, starting at 0 at genesis.
type Height uint64

// Header carries the fields the DA core cares about. Everything else about
// a block (staking actions, certificates, state roots) lives outside this
// package's concern and is not modeled here.
type Header struct {
	Hash       Hash
	ParentHash Hash
	Height     Height
	Slot       uint64
}

// SignedBlock is the opaque-to-the-core payload the DA core receives from
// consensus/mempool, persists, and streams to peers. Txs are kept as raw
// opaque byte payloads; the core never inspects their contents.
type SignedBlock struct {
	Header Header
	Txs    [][]byte
}

// Hash returns the block's content hash.
func (b SignedBlock) Hash() Hash { return b.Header.Hash }

// ParentHash returns the block's parent hash.
func (b SignedBlock) ParentHash() Hash { return b.Header.ParentHash }

// HeightOf returns the block's height.
func (b SignedBlock) HeightOf() Height { return b.Header.Height }

// IsGenesis reports whether b is the height-0 block.
func (b SignedBlock) IsGenesis() bool { return b.Header.Height == 0 }

// Less implements the total, stable ordering on (height, hash) used by the
// reorder buffer: ascending height, then ascending hash.
func Less(a, b SignedBlock) bool {
	if a.Header.Height != b.Header.Height {
		return a.Header.Height < b.Header.Height
	}
	return bytes.Compare(a.Header.Hash[:], b.Header.Hash[:]) < 0
}

// Encode writes a deterministic, versioned binary encoding of b to w.
// Layout: version byte, height (LE u64), slot (LE u64), hash (32 bytes),
// parent hash (32 bytes), tx count (LE u32), then each tx as a length (LE
// u32) followed by its bytes. No padding. Round-trips byte-for-byte with
// Decode.
func Encode(b SignedBlock) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(wireVersion)

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(b.Header.Height))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], b.Header.Slot)
	buf.Write(scratch[:])
	buf.Write(b.Header.Hash[:])
	buf.Write(b.Header.ParentHash[:])

	var scratch4 [4]byte
	binary.LittleEndian.PutUint32(scratch4[:], uint32(len(b.Txs)))
	buf.Write(scratch4[:])

	for _, tx := range b.Txs {
		binary.LittleEndian.PutUint32(scratch4[:], uint32(len(tx)))
		buf.Write(scratch4[:])
		buf.Write(tx)
	}

	return buf.Bytes(), nil
}

// wireVersion is bumped whenever Encode/Decode's layout changes.
const wireVersion = 1

// Decode parses a block previously produced by Encode.
func Decode(data []byte) (SignedBlock, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return SignedBlock{}, fmt.Errorf("reading version: %w", err)
	}
	if version != wireVersion {
		return SignedBlock{}, fmt.Errorf("unsupported block wire version %d", version)
	}

	var h Header

	var scratch [8]byte
	if _, err := readFull(r, scratch[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("reading height: %w", err)
	}
	h.Height = Height(binary.LittleEndian.Uint64(scratch[:]))

	if _, err := readFull(r, scratch[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("reading slot: %w", err)
	}
	h.Slot = binary.LittleEndian.Uint64(scratch[:])

	if _, err := readFull(r, h.Hash[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("reading hash: %w", err)
	}
	if _, err := readFull(r, h.ParentHash[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("reading parent hash: %w", err)
	}

	var scratch4 [4]byte
	if _, err := readFull(r, scratch4[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("reading tx count: %w", err)
	}

	txCount := binary.LittleEndian.Uint32(scratch4[:])
	txs := make([][]byte, 0, txCount)

	for i := uint32(0); i < txCount; i++ {
		if _, err := readFull(r, scratch4[:]); err != nil {
			return SignedBlock{}, fmt.Errorf("reading tx %d length: %w", i, err)
		}

		txLen := binary.LittleEndian.Uint32(scratch4[:])
		tx := make([]byte, txLen)

		if _, err := readFull(r, tx); err != nil {
			return SignedBlock{}, fmt.Errorf("reading tx %d payload: %w", i, err)
		}

		txs = append(txs, tx)
	}

	return SignedBlock{Header: h, Txs: txs}, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
