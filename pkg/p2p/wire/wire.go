// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package wire implements the length-prefixed TCP framing the stream server
// and catch-up client speak. Every frame, in either direction, is a
// big-endian uint32 byte length followed by that many payload bytes - the
// Go analogue of the original implementation's tokio_util LengthDelimitedCodec
// framing (original_source/src/data_availability.rs). Client-to-server
// frames carry a one-byte tag distinguishing a catch-up request from a
// keepalive ping; server-to-client frames are always a block.Encode payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dusk-network/dusk-da/pkg/core/block"
)

// MaxFrameSize bounds a single frame, guarding the server and client against
// a peer claiming an absurd length prefix and exhausting memory.
const MaxFrameSize = 64 << 20 // 64 MiB

// Client request tags.
const (
	TagBlockHeight byte = 0x00
	TagPing        byte = 0x01
)

// ClientRequest is what a connecting peer sends first (a catch-up request
// naming the height to start streaming from), and may continue to send
// thereafter (pings, to keep the connection alive across long gaps between
// new blocks).
type ClientRequest struct {
	Tag         byte
	StartHeight block.Height // only meaningful when Tag == TagBlockHeight
}

// WriteFrame writes a length-prefixed frame: a big-endian uint32 length
// followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame payload of %d bytes exceeds max %d", len(payload), MaxFrameSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}

	return nil
}

// ReadFrame reads one length-prefixed frame's payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("peer announced frame of %d bytes, exceeds max %d", n, MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	return payload, nil
}

// WriteBlock frames and writes a single block, the server -> client
// direction of the wire protocol.
func WriteBlock(w io.Writer, b block.SignedBlock) error {
	data, err := block.Encode(b)
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadBlock reads and decodes a single framed block.
func ReadBlock(r io.Reader) (block.SignedBlock, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return block.SignedBlock{}, err
	}
	return block.Decode(payload)
}

// WriteRequest frames and writes a client request, the client -> server
// direction of the wire protocol.
func WriteRequest(w io.Writer, req ClientRequest) error {
	switch req.Tag {
	case TagBlockHeight:
		payload := make([]byte, 9)
		payload[0] = TagBlockHeight
		binary.LittleEndian.PutUint64(payload[1:], uint64(req.StartHeight))
		return WriteFrame(w, payload)
	case TagPing:
		return WriteFrame(w, []byte{TagPing})
	default:
		return fmt.Errorf("unknown client request tag %d", req.Tag)
	}
}

// ReadRequest reads and parses a single framed client request.
func ReadRequest(r io.Reader) (ClientRequest, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return ClientRequest{}, err
	}
	if len(payload) == 0 {
		return ClientRequest{}, fmt.Errorf("empty client request frame")
	}

	switch payload[0] {
	case TagBlockHeight:
		if len(payload) != 9 {
			return ClientRequest{}, fmt.Errorf("malformed BlockHeight request: want 9 bytes, got %d", len(payload))
		}
		height := block.Height(binary.LittleEndian.Uint64(payload[1:]))
		return ClientRequest{Tag: TagBlockHeight, StartHeight: height}, nil
	case TagPing:
		return ClientRequest{Tag: TagPing}, nil
	default:
		return ClientRequest{}, fmt.Errorf("unknown client request tag %d", payload[0])
	}
}
