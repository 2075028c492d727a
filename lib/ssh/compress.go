// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"compress/flate"
	"io"
)

// compressor applies a negotiated compression algorithm to packet
// payloads, after decryption on read and before encryption on write.
type compressor interface {
	compress(in []byte) ([]byte, error)
	decompress(in []byte) ([]byte, error)
}

// noneCompressor implements the "none" algorithm: a no-op pass-through.
type noneCompressor struct{}

func (noneCompressor) compress(in []byte) ([]byte, error)   { return in, nil }
func (noneCompressor) decompress(in []byte) ([]byte, error) { return in, nil }

// zlibOpenSSHCompressor implements zlib@openssh.com: identical to
// zlib, except compression does not begin until after authentication
// completes. The transport layer itself has no notion of
// authentication, so this type just does the DEFLATE framing; it is
// Service.SetAuthenticated's responsibility (see service.go) to tell
// the Transport when to flip its compressor in.
type zlibOpenSSHCompressor struct {
	w    *flate.Writer
	wBuf bytes.Buffer
}

func newZlibOpenSSHCompressor() (*zlibOpenSSHCompressor, error) {
	z := &zlibOpenSSHCompressor{}
	w, err := flate.NewWriter(&z.wBuf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	z.w = w
	return z, nil
}

func (z *zlibOpenSSHCompressor) compress(in []byte) ([]byte, error) {
	z.wBuf.Reset()
	if _, err := z.w.Write(in); err != nil {
		return nil, err
	}
	if err := z.w.Flush(); err != nil {
		return nil, err
	}
	out := make([]byte, z.wBuf.Len())
	copy(out, z.wBuf.Bytes())
	return out, nil
}

func (z *zlibOpenSSHCompressor) decompress(in []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var preferredCompressionOrder = []string{"none", "zlib@openssh.com"}

// newCompressor builds the compressor for a negotiated algorithm name.
// zlib@openssh.com's delayed start (RFC deferred-compression, see
// draft-miller-secsh-compression-delayed) is enforced by the caller:
// Transport only swaps a zlib compressor in once its Service reports
// the connection authenticated, via SetAuthenticated.
func newCompressor(name string) (compressor, error) {
	switch name {
	case "", "none":
		return noneCompressor{}, nil
	case "zlib@openssh.com":
		return newZlibOpenSSHCompressor()
	default:
		return nil, protocolErrorf("unsupported compression algorithm %q", name)
	}
}
