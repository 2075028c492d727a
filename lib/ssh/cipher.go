// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// cipherSuite is the uniform interface the Encoder and Decoder drive
// regardless of which concrete algorithm is negotiated: it hides how
// the packet length is encrypted (a separate length key for
// chacha20-poly1305@openssh.com, the shared CTR keystream for the
// classic aes*-ctr + hmac-* combination), and whether integrity comes
// from a detached MAC or an AEAD tag.
type cipherSuite interface {
	// lengthPrefixSize returns how many bytes of the packet_length field
	// must be available before decryptLength can be called.
	lengthPrefixSize() int

	// tagSize returns the number of trailing integrity bytes (MAC or
	// AEAD tag) appended after the padded payload.
	tagSize() int

	// decryptLength decrypts (if necessary) and returns the packet_length
	// field found in the first lengthPrefixSize() bytes of the packet.
	decryptLength(seq uint32, lengthBytes []byte) (uint32, error)

	// open authenticates and decrypts one full packet (everything after
	// the already-consumed length prefix, through the tag), returning
	// the padding_length/payload/padding region in a new slice.
	open(seq uint32, lengthBytes, rest []byte) ([]byte, error)

	// seal encrypts and authenticates one full packet (packet_length
	// through padding) and returns the wire bytes, including the tag.
	seal(seq uint32, plaintext []byte) ([]byte, error)

	// blockSize is the cipher's block size, used to compute padding, per
	// RFC 4253 section 6.
	blockSize() int
}

// noneCipher implements cipherSuite for the "none" cipher with no MAC:
// used only before the first NEWKEYS, when packets are sent in the
// clear. It is never negotiated as a post-kex algorithm.
type noneCipher struct{}

func (noneCipher) lengthPrefixSize() int { return 4 }
func (noneCipher) tagSize() int          { return 0 }
func (noneCipher) blockSize() int        { return 8 }

func (noneCipher) decryptLength(seq uint32, lengthBytes []byte) (uint32, error) {
	return binary.BigEndian.Uint32(lengthBytes), nil
}

func (noneCipher) open(seq uint32, lengthBytes, rest []byte) ([]byte, error) {
	return rest, nil
}

func (noneCipher) seal(seq uint32, plaintext []byte) ([]byte, error) {
	return plaintext, nil
}

// hmacMAC wraps the detached-MAC half of a classic (non-AEAD) cipher
// suite: hmac-sha2-256 computed over seq||packet.
type hmacMAC struct {
	key  []byte
	size int
}

func (m *hmacMAC) compute(seq uint32, packet []byte) []byte {
	mac := hmac.New(sha256.New, m.key)
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], seq)
	mac.Write(seqBuf[:])
	mac.Write(packet)
	return mac.Sum(nil)[:m.size]
}

// ctrCipher implements cipherSuite for aes{128,256}-ctr combined with
// hmac-sha2-256, the classic SSH cipher construction: the packet length
// is encrypted along with everything else, and integrity comes from a
// detached MAC over the plaintext.
// ctrCipher's keystream is one continuous CTR counter run across the
// entire connection direction (matching how every SSH aes*-ctr
// implementation behaves): it is created once in newCTRCipher and every
// subsequent XORKeyStream call picks up where the last left off. Packets
// must be sealed/opened strictly in sequence order.
type ctrCipher struct {
	stream cipher.Stream
	mac    *hmacMAC
	blkSz  int
}

func newCTRCipher(key, iv, macKey []byte, macSize int) (*ctrCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &ctrCipher{
		stream: cipher.NewCTR(block, iv),
		mac:    &hmacMAC{key: macKey, size: macSize},
		blkSz:  block.BlockSize(),
	}, nil
}

func (c *ctrCipher) lengthPrefixSize() int { return 4 }
func (c *ctrCipher) tagSize() int          { return c.mac.size }
func (c *ctrCipher) blockSize() int        { return c.blkSz }

func (c *ctrCipher) decryptLength(seq uint32, lengthBytes []byte) (uint32, error) {
	// The length field is decrypted against the running keystream;
	// callers must call this exactly once per packet, immediately
	// before open, since it advances keystream state.
	out := make([]byte, 4)
	c.stream.XORKeyStream(out, lengthBytes)
	return binary.BigEndian.Uint32(out), nil
}

func (c *ctrCipher) open(seq uint32, lengthBytes, rest []byte) ([]byte, error) {
	if len(rest) < c.mac.size {
		return nil, macErrorf("ctr: packet shorter than MAC size")
	}
	body := rest[:len(rest)-c.mac.size]
	tag := rest[len(rest)-c.mac.size:]

	plain := make([]byte, len(body))
	c.stream.XORKeyStream(plain, body)

	full := make([]byte, 0, len(lengthBytes)+len(plain))
	full = append(full, lengthBytes...)
	full = append(full, plain...)
	want := c.mac.compute(seq, full)
	if !hmac.Equal(want, tag) {
		return nil, macErrorf("ctr: MAC mismatch")
	}
	return plain, nil
}

func (c *ctrCipher) seal(seq uint32, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	c.stream.XORKeyStream(out, plaintext)
	tag := c.mac.compute(seq, plaintext)
	return append(out, tag...), nil
}

// chachaCipher implements cipherSuite for chacha20-poly1305@openssh.com,
// the transport's preferred cipher: a pair of chacha20 streams keyed
// independently for the length field and the payload, authenticated by
// a Poly1305 tag whose one-time key is derived from the payload
// stream's first block. The tag covers ciphertext (unlike the classic
// construction's detached MAC over plaintext), and the encrypted length
// field doubles as part of the AEAD associated data.
type chachaCipher struct {
	lengthKey  [32]byte
	payloadKey [32]byte
}

func newChachaCipher(lengthKey, payloadKey []byte) *chachaCipher {
	c := &chachaCipher{}
	copy(c.lengthKey[:], lengthKey)
	copy(c.payloadKey[:], payloadKey)
	return c
}

func (c *chachaCipher) lengthPrefixSize() int { return 4 }
func (c *chachaCipher) tagSize() int          { return poly1305.TagSize }
func (c *chachaCipher) blockSize() int        { return 8 }

func nonceFromSeq(seq uint32) [12]byte {
	var nonce [12]byte
	binary.BigEndian.PutUint32(nonce[8:], seq)
	return nonce
}

func (c *chachaCipher) lengthStream(seq uint32) (cipher.Stream, error) {
	nonce := nonceFromSeq(seq)
	return chacha20.NewUnauthenticatedCipher(c.lengthKey[:], nonce[:])
}

func (c *chachaCipher) payloadStream(seq uint32) (*chacha20.Cipher, error) {
	nonce := nonceFromSeq(seq)
	return chacha20.NewUnauthenticatedCipher(c.payloadKey[:], nonce[:])
}

func (c *chachaCipher) polyKey(stream *chacha20.Cipher) [32]byte {
	var polyKey [32]byte
	stream.XORKeyStream(polyKey[:], polyKey[:])
	stream.SetCounter(1)
	return polyKey
}

func (c *chachaCipher) decryptLength(seq uint32, lengthBytes []byte) (uint32, error) {
	stream, err := c.lengthStream(seq)
	if err != nil {
		return 0, ioErrorf(err, "chacha20poly1305: length stream")
	}
	out := make([]byte, 4)
	stream.XORKeyStream(out, lengthBytes)
	return binary.BigEndian.Uint32(out), nil
}

// open authenticates and decrypts rest (payload+padding ciphertext,
// followed by the tag). lengthBytes is the already-decrypted (plaintext)
// packet_length field, per the cipherSuite-wide convention; the AAD
// Poly1305 actually covers is the encrypted wire form of that field, so
// open re-derives it here from the (stateless, per-seq) length stream.
func (c *chachaCipher) open(seq uint32, lengthBytes, rest []byte) ([]byte, error) {
	if len(rest) < poly1305.TagSize {
		return nil, macErrorf("chacha20poly1305: packet shorter than tag size")
	}
	ciphertext := rest[:len(rest)-poly1305.TagSize]
	tag := rest[len(rest)-poly1305.TagSize:]

	lengthStream, err := c.lengthStream(seq)
	if err != nil {
		return nil, ioErrorf(err, "chacha20poly1305: length stream")
	}
	wireLength := make([]byte, 4)
	lengthStream.XORKeyStream(wireLength, lengthBytes)

	payloadStream, err := c.payloadStream(seq)
	if err != nil {
		return nil, ioErrorf(err, "chacha20poly1305: payload stream")
	}
	polyKey := c.polyKey(payloadStream)

	authData := make([]byte, 0, len(wireLength)+len(ciphertext))
	authData = append(authData, wireLength...)
	authData = append(authData, ciphertext...)

	var tagOut [poly1305.TagSize]byte
	poly1305.Sum(&tagOut, authData, &polyKey)
	if !hmac.Equal(tagOut[:], tag) {
		return nil, macErrorf("chacha20poly1305: tag mismatch")
	}

	plain := make([]byte, len(ciphertext))
	payloadStream.XORKeyStream(plain, ciphertext)
	return plain, nil
}

// seal encrypts plaintext (packet_length through padding) and appends
// the Poly1305 tag, which covers the encrypted length field too.
func (c *chachaCipher) seal(seq uint32, plaintext []byte) ([]byte, error) {
	if len(plaintext) < 4 {
		return nil, protocolErrorf("chacha20poly1305: packet too short to seal")
	}
	lengthStream, err := c.lengthStream(seq)
	if err != nil {
		return nil, ioErrorf(err, "chacha20poly1305: length stream")
	}
	out := make([]byte, len(plaintext))
	lengthStream.XORKeyStream(out[:4], plaintext[:4])

	payloadStream, err := c.payloadStream(seq)
	if err != nil {
		return nil, ioErrorf(err, "chacha20poly1305: payload stream")
	}
	polyKey := c.polyKey(payloadStream)
	payloadStream.XORKeyStream(out[4:], plaintext[4:])

	var tag [poly1305.TagSize]byte
	poly1305.Sum(&tag, out, &polyKey)
	return append(out, tag[:]...), nil
}

// cipherFactory constructs a cipherSuite from key material already
// derived by deriveKey; kept as a table so deriveDirectionCipher can
// look a negotiated algorithm up by name without a long switch.
type cipherFactory struct {
	keySize   int
	ivSize    int
	needsMAC  bool
	construct func(key, iv, macKey []byte) (cipherSuite, error)
}

var cipherFactories = map[string]cipherFactory{
	"chacha20-poly1305@openssh.com": {
		keySize: 64,
		ivSize:  0,
		construct: func(key, iv, macKey []byte) (cipherSuite, error) {
			return newChachaCipher(key[:32], key[32:64]), nil
		},
	},
	"aes128-ctr": {
		keySize:  16,
		ivSize:   aes.BlockSize,
		needsMAC: true,
		construct: func(key, iv, macKey []byte) (cipherSuite, error) {
			return newCTRCipher(key, iv, macKey, macSizes["hmac-sha2-256"])
		},
	},
	"aes256-ctr": {
		keySize:  32,
		ivSize:   aes.BlockSize,
		needsMAC: true,
		construct: func(key, iv, macKey []byte) (cipherSuite, error) {
			return newCTRCipher(key, iv, macKey, macSizes["hmac-sha2-256"])
		},
	},
}

var macSizes = map[string]int{
	"hmac-sha2-256": sha256.Size,
}

var macKeySizes = map[string]int{
	"hmac-sha2-256": sha256.Size,
}

// deriveDirectionCipher builds the cipherSuite for one direction of
// traffic, deriving its key material from the key exchange result via
// the RFC 4253 section 7.2 lettered KDF (deriveKey in kex.go).
// ivLetter/keyLetter/macLetter select which of the six derived secrets
// (A-F) belong to this direction: callers pass ('A','C','E') for
// client-to-server and ('B','D','F') for server-to-client.
func deriveDirectionCipher(algs DirectionAlgorithms, K *big.Int, H, sessionID []byte, ivLetter, keyLetter, macLetter byte) (cipherSuite, error) {
	factory, ok := cipherFactories[algs.Cipher]
	if !ok {
		return nil, protocolErrorf("unsupported cipher %q", algs.Cipher)
	}

	key := deriveKey(sha256.New, keyLetter, factory.keySize, K, H, sessionID)

	var iv []byte
	if factory.ivSize > 0 {
		iv = deriveKey(sha256.New, ivLetter, factory.ivSize, K, H, sessionID)
	}

	var macKey []byte
	if factory.needsMAC {
		size, ok := macKeySizes[algs.MAC]
		if !ok {
			return nil, protocolErrorf("unsupported MAC %q", algs.MAC)
		}
		macKey = deriveKey(sha256.New, macLetter, size, K, H, sessionID)
	}

	return factory.construct(key, iv, macKey)
}
