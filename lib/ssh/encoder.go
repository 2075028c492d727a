// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"encoding/binary"
)

// encoder turns payloads into wire packets: SSH_MSG_* payload bytes go
// in, packet_length|padding_length|payload|padding|tag comes out, per
// RFC 4253 section 6. It owns the write-direction cipher, compressor,
// and packet sequence number; Transport.write holds writeMu for the
// duration of every call into it.
type encoder struct {
	cipher     cipherSuite
	compressor compressor
	seq        uint32
}

func newPlaintextEncoder() *encoder {
	return &encoder{cipher: noneCipher{}, compressor: noneCompressor{}}
}

// encode assembles and seals one packet for payload, advancing the
// sequence number. The returned slice is ready to write to the
// underlying connection as-is.
func (e *encoder) encode(payload []byte) ([]byte, error) {
	payload, err := e.compressor.compress(payload)
	if err != nil {
		return nil, ioErrorf(err, "compress")
	}

	blockSize := e.cipher.blockSize()
	if blockSize < 8 {
		blockSize = 8
	}

	// Padding is chosen so packet_length(4) + padding_length(1) +
	// payload + padding is a multiple of blockSize, with at least 4
	// bytes of padding.
	paddingLen := blockSize - (5+len(payload))%blockSize
	if paddingLen < 4 {
		paddingLen += blockSize
	}
	// RFC 4253 section 6 requires a packet of at least 16 bytes,
	// length field included; with blockSize >= 8 and the 4-byte floor
	// above the smallest packet is exactly 16 bytes (empty payload).

	padding := make([]byte, paddingLen)
	if _, err := rand.Read(padding); err != nil {
		return nil, ioErrorf(err, "generate padding")
	}

	packetLen := uint32(1 + len(payload) + paddingLen)

	plain := make([]byte, 4+packetLen)
	binary.BigEndian.PutUint32(plain[:4], packetLen)
	plain[4] = byte(paddingLen)
	copy(plain[5:], payload)
	copy(plain[5+len(payload):], padding)

	sealed, err := e.cipher.seal(e.seq, plain)
	if err != nil {
		return nil, err
	}
	e.seq++
	return sealed, nil
}
