// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"encoding/binary"
	"io"
	"math/big"
)

// maxPacketLength bounds the packet_length field so a corrupt or
// malicious peer cannot make the Decoder allocate unbounded memory
// before authentication has even been checked.
const maxPacketLength = 256 * 1024

// decoder is the read-direction mirror of encoder: it consumes bytes
// from the wire and produces payloads. Conceptually it is a small state
// machine -- AWAIT_LENGTH (accumulate and decrypt the 4-byte length
// prefix), then AWAIT_REST (accumulate, authenticate, and decrypt the
// remainder) -- but since every Read call here blocks on the
// underlying connection via io.ReadFull, the two states are just the
// two halves of readPacket rather than separate entry points.
type decoder struct {
	r          io.Reader
	cipher     cipherSuite
	compressor compressor
	seq        uint32
}

func newPlaintextDecoder(r io.Reader) *decoder {
	return &decoder{r: r, cipher: noneCipher{}, compressor: noneCompressor{}}
}

// readPacket reads, authenticates, decrypts, and decompresses exactly
// one packet, returning its payload (the bytes after padding_length,
// before padding).
func (d *decoder) readPacket() ([]byte, error) {
	lengthWire := make([]byte, d.cipher.lengthPrefixSize())
	if _, err := io.ReadFull(d.r, lengthWire); err != nil {
		return nil, ioErrorf(err, "read packet length")
	}

	length, err := d.cipher.decryptLength(d.seq, lengthWire)
	if err != nil {
		return nil, err
	}
	if length == 0 || length > maxPacketLength {
		return nil, protocolErrorf("invalid packet length %d", length)
	}

	rest := make([]byte, int(length)+d.cipher.tagSize())
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return nil, ioErrorf(err, "read packet body")
	}

	var plainLength [4]byte
	binary.BigEndian.PutUint32(plainLength[:], length)

	content, err := d.cipher.open(d.seq, plainLength[:], rest)
	if err != nil {
		return nil, err
	}
	d.seq++

	if len(content) == 0 {
		return nil, protocolErrorf("empty packet content")
	}
	paddingLen := int(content[0])
	if paddingLen+1 > len(content) {
		return nil, protocolErrorf("padding length %d exceeds packet", paddingLen)
	}
	payload := content[1 : len(content)-paddingLen]

	payload, err = d.compressor.decompress(payload)
	if err != nil {
		return nil, ioErrorf(err, "decompress")
	}
	return payload, nil
}

// rekey installs new read-direction (server to client) algorithms,
// deriving fresh keys from the completed key exchange's shared secret
// and exchange hash per RFC 4253 section 7.2's letters B (IV), D
// (encryption key), F (integrity key). The packet sequence number is
// never reset by a rekey -- it is a 32-bit counter for the lifetime of
// the connection, per RFC 4253 section 6.2, and simply wraps on
// overflow.
func (d *decoder) rekey(algs DirectionAlgorithms, K *big.Int, H, sessionID []byte) error {
	cs, err := deriveDirectionCipher(algs, K, H, sessionID, 'B', 'D', 'F')
	if err != nil {
		return err
	}
	comp, err := newCompressor(algs.Compression)
	if err != nil {
		return err
	}
	d.cipher = cs
	d.compressor = comp
	return nil
}
