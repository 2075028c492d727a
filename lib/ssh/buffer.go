// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"encoding/binary"
	"math/big"
)

// buffer is an extensible byte buffer with independent read and write
// positions, used both to assemble outbound message payloads and to parse
// inbound ones. All multi-byte integers are big-endian; strings are
// length-prefixed by a uint32, per RFC 4251, section 5.
type buffer struct {
	data []byte
	pos  int
}

func newBuffer(data []byte) *buffer {
	return &buffer{data: data}
}

// available returns the number of unread bytes remaining.
func (b *buffer) available() int {
	return len(b.data) - b.pos
}

// mark saves the current read position so it can be restored later,
// letting a parser step back after a partial read.
func (b *buffer) mark() int {
	return b.pos
}

// restore resets the read position to a value previously returned by mark.
func (b *buffer) restore(pos int) {
	b.pos = pos
}

// bytes returns the full backing byte range, e.g. a marshaled message
// payload or the input to a kex hash.
func (b *buffer) bytes() []byte {
	return b.data
}

// remaining returns the unread tail of the backing range.
func (b *buffer) remaining() []byte {
	return b.data[b.pos:]
}

func (b *buffer) readByte() (byte, error) {
	if b.available() < 1 {
		return 0, errShortBuffer
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *buffer) readBool() (bool, error) {
	v, err := b.readByte()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (b *buffer) readUint32() (uint32, error) {
	if b.available() < 4 {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint32(b.data[b.pos : b.pos+4])
	b.pos += 4
	return v, nil
}

func (b *buffer) readUint64() (uint64, error) {
	if b.available() < 8 {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint64(b.data[b.pos : b.pos+8])
	b.pos += 8
	return v, nil
}

// readString reads a uint32-length-prefixed byte string and returns a copy.
func (b *buffer) readString() ([]byte, error) {
	n, err := b.readUint32()
	if err != nil {
		return nil, err
	}
	if uint64(b.available()) < uint64(n) {
		return nil, errShortBuffer
	}
	out := make([]byte, n)
	copy(out, b.data[b.pos:b.pos+int(n)])
	b.pos += int(n)
	return out, nil
}

func (b *buffer) readUTF8() (string, error) {
	s, err := b.readString()
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// readMpint reads a two's-complement, big-endian, minimal-length
// multiple-precision integer, per RFC 4251, section 5.
func (b *buffer) readMpint() (*big.Int, error) {
	s, err := b.readString()
	if err != nil {
		return nil, err
	}
	result := new(big.Int)
	if len(s) == 0 {
		return result, nil
	}
	if s[0]&0x80 != 0 {
		return nil, protocolErrorf("negative mpint is not supported")
	}
	result.SetBytes(s)
	return result, nil
}

// readNameList reads a comma-separated name-list, per RFC 4251, section 5.
func (b *buffer) readNameList() ([]string, error) {
	s, err := b.readUTF8()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return splitComma(s), nil
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func (b *buffer) writeByte(v byte) {
	b.data = append(b.data, v)
}

func (b *buffer) writeBool(v bool) {
	if v {
		b.data = append(b.data, 1)
	} else {
		b.data = append(b.data, 0)
	}
}

func (b *buffer) writeUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *buffer) writeUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *buffer) writeString(s []byte) {
	b.writeUint32(uint32(len(s)))
	b.data = append(b.data, s...)
}

func (b *buffer) writeUTF8(s string) {
	b.writeString([]byte(s))
}

func (b *buffer) writeMpint(n *big.Int) {
	if n.Sign() == 0 {
		b.writeUint32(0)
		return
	}
	bs := n.Bytes()
	if bs[0]&0x80 != 0 {
		b.writeUint32(uint32(len(bs) + 1))
		b.data = append(b.data, 0)
		b.data = append(b.data, bs...)
		return
	}
	b.writeString(bs)
}

func (b *buffer) writeNameList(names []string) {
	joined := joinComma(names)
	b.writeUTF8(joined)
}

func joinComma(names []string) string {
	if len(names) == 0 {
		return ""
	}
	total := len(names) - 1
	for _, n := range names {
		total += len(n)
	}
	out := make([]byte, 0, total)
	for i, n := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, n...)
	}
	return string(out)
}

func (b *buffer) writeRaw(p []byte) {
	b.data = append(b.data, p...)
}

var errShortBuffer = protocolErrorf("unexpected end of packet")
