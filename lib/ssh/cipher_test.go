// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestChachaCipherSealOpenRoundTrip(t *testing.T) {
	lengthKey := randBytes(t, 32)
	payloadKey := randBytes(t, 32)

	sealer := newChachaCipher(lengthKey, payloadKey)
	opener := newChachaCipher(lengthKey, payloadKey)

	plaintext := []byte{4, 'h', 'e', 'l', 'l', 'o', 0, 0, 0, 0}
	// first 4 bytes are packet_length, rest is padding_length+payload+padding
	packetLen := uint32(len(plaintext) - 4)
	plaintext[0] = byte(packetLen >> 24)
	plaintext[1] = byte(packetLen >> 16)
	plaintext[2] = byte(packetLen >> 8)
	plaintext[3] = byte(packetLen)

	sealed, err := sealer.seal(0, plaintext)
	require.NoError(t, err)
	require.Equal(t, len(plaintext)+tagSizeOf(t, opener), len(sealed))

	decryptedLen, err := opener.decryptLength(0, sealed[:4])
	require.NoError(t, err)
	require.Equal(t, packetLen, decryptedLen)

	content, err := opener.open(0, plaintext[:4], sealed[4:])
	require.NoError(t, err)
	require.Equal(t, plaintext[4:], content)
}

func tagSizeOf(t *testing.T, c cipherSuite) int {
	t.Helper()
	return c.tagSize()
}

func TestChachaCipherRejectsTamperedCiphertext(t *testing.T) {
	lengthKey := randBytes(t, 32)
	payloadKey := randBytes(t, 32)
	c := newChachaCipher(lengthKey, payloadKey)

	plaintext := []byte{0, 0, 0, 5, 1, 'a', 'b', 'c', 'd'}
	sealed, err := c.seal(0, plaintext)
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff

	_, err = c.open(0, plaintext[:4], sealed[4:])
	require.Error(t, err)
}

func TestCTRCipherMultiplePacketsUseContinuousKeystream(t *testing.T) {
	key := randBytes(t, 16)
	iv := randBytes(t, 16)
	macKey := randBytes(t, 32)

	sealer, err := newCTRCipher(key, iv, macKey, 32)
	require.NoError(t, err)
	opener, err := newCTRCipher(key, iv, macKey, 32)
	require.NoError(t, err)

	for seq := uint32(0); seq < 3; seq++ {
		plaintext := []byte{0, 0, 0, 12, 4, 'p', 'i', 'n', 'g', '!', '!', '!', '!', '!', '!', '!'}
		sealed, err := sealer.seal(seq, plaintext)
		require.NoError(t, err)

		length, err := opener.decryptLength(seq, sealed[:4])
		require.NoError(t, err)
		require.EqualValues(t, 12, length)

		content, err := opener.open(seq, plaintext[:4], sealed[4:])
		require.NoError(t, err)
		require.Equal(t, plaintext[4:], content)
	}
}

func TestCTRCipherRejectsBadMAC(t *testing.T) {
	key := randBytes(t, 16)
	iv := randBytes(t, 16)
	macKey := randBytes(t, 32)

	sealer, err := newCTRCipher(key, iv, macKey, 32)
	require.NoError(t, err)
	opener, err := newCTRCipher(key, iv, macKey, 32)
	require.NoError(t, err)

	plaintext := []byte{0, 0, 0, 5, 1, 'a', 'b', 'c', 'd'}
	sealed, err := sealer.seal(0, plaintext)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = opener.decryptLength(0, sealed[:4])
	require.NoError(t, err)
	_, err = opener.open(0, plaintext[:4], sealed[4:])
	require.Error(t, err)
}

func TestZlibCompressorRoundTrip(t *testing.T) {
	c, err := newZlibOpenSSHCompressor()
	require.NoError(t, err)

	in := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	compressed, err := c.compress(in)
	require.NoError(t, err)
	require.NotEqual(t, in, compressed)

	out, err := c.decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestNoneCompressorIsPassthrough(t *testing.T) {
	var c noneCompressor
	in := []byte("unchanged")
	out, err := c.compress(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
}
