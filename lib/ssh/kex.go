// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// kexResult is everything a completed key exchange hands back to the
// keyExchanger: the shared secret, the exchange hash H (which doubles as
// the session identifier on the very first kex, per RFC 4253 section
// 7.2), and the host key that signed it.
type kexResult struct {
	H        []byte
	K        *big.Int
	HostKey  []byte
	Signature *signatureMsg
}

// kexAlgorithm is implemented by every supported key-exchange method.
// client drives the client half of the exchange given the magics
// collected so far (both banners, both KEXINIT payloads) and an
// io-capable round-tripper supplied by the keyExchanger.
type kexAlgorithm interface {
	// Client runs the client side of the exchange. send transmits a kex
	// sub-protocol message and returns once it has been written; recv
	// blocks for the next kex sub-protocol message.
	Client(magics *handshakeMagics, send func(payload []byte) error, recv func() ([]byte, error)) (*kexResult, error)
}

// curve25519sha256 implements curve25519-sha256 (RFC 8731), the primary
// key-exchange algorithm of this transport.
type curve25519sha256 struct{}

func (curve25519sha256) Client(magics *handshakeMagics, send func([]byte) error, recv func() ([]byte, error)) (*kexResult, error) {
	var clientPriv [32]byte
	if _, err := rand.Read(clientPriv[:]); err != nil {
		return nil, ioErrorf(err, "failed to generate curve25519 key")
	}
	clientPub, err := curve25519.X25519(clientPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, ioErrorf(err, "curve25519 scalar multiplication failed")
	}

	if err := send((&kexECDHInitMsg{ClientPubKey: clientPub}).marshal()); err != nil {
		return nil, err
	}

	payload, err := recv()
	if err != nil {
		return nil, err
	}
	reply, err := parseKexECDHReplyMsg(payload)
	if err != nil {
		return nil, err
	}

	secret, err := curve25519.X25519(clientPriv[:], reply.EphemeralPubKey)
	if err != nil {
		return nil, newTransportError(DisconnectKeyExchangeFailed, "curve25519: %v", err)
	}

	h := sha256.New()
	writeKexHashPreamble(h, magics, reply.HostKey, clientPub, reply.EphemeralPubKey, secret)

	sig, err := parseSignature(reply.Signature)
	if err != nil {
		return nil, err
	}

	return &kexResult{
		H:         h.Sum(nil),
		K:         new(big.Int).SetBytes(secret),
		HostKey:   reply.HostKey,
		Signature: sig,
	}, nil
}

// writeKexHashPreamble assembles the byte string hashed to produce H, per
// RFC 4253 section 8 (adapted for ECDH key agreement per RFC 5656
// section 4): V_C, V_S, I_C, I_S, K_S, Q_C, Q_S, K, in that order, with
// K encoded as an mpint and everything else as a length-prefixed string.
func writeKexHashPreamble(h hash.Hash, magics *handshakeMagics, hostKey, clientPub, serverPub, secret []byte) {
	b := newBuffer(nil)
	magics.writeTo(b)
	b.writeString(hostKey)
	b.writeString(clientPub)
	b.writeString(serverPub)
	b.writeMpint(new(big.Int).SetBytes(secret))
	h.Write(b.bytes())
}

// ecdhNIST implements the ecdh-sha2-nistp{256,384,521} family (RFC 5656)
// as a secondary algorithm set, exercised when curve25519-sha256 is not
// in the negotiated KexAlgos.
type ecdhNIST struct {
	curve  ecdh.Curve
	hasher func() hash.Hash
}

func (k ecdhNIST) Client(magics *handshakeMagics, send func([]byte) error, recv func() ([]byte, error)) (*kexResult, error) {
	priv, err := k.curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, ioErrorf(err, "failed to generate ECDH key")
	}
	clientPub := priv.PublicKey().Bytes()

	if err := send((&kexECDHInitMsg{ClientPubKey: clientPub}).marshal()); err != nil {
		return nil, err
	}

	payload, err := recv()
	if err != nil {
		return nil, err
	}
	reply, err := parseKexECDHReplyMsg(payload)
	if err != nil {
		return nil, err
	}

	serverPub, err := k.curve.NewPublicKey(reply.EphemeralPubKey)
	if err != nil {
		return nil, newTransportError(DisconnectKeyExchangeFailed, "ecdh: invalid server public key: %v", err)
	}
	secret, err := priv.ECDH(serverPub)
	if err != nil {
		return nil, newTransportError(DisconnectKeyExchangeFailed, "ecdh: %v", err)
	}

	h := k.hasher()
	writeKexHashPreamble(h, magics, reply.HostKey, clientPub, reply.EphemeralPubKey, secret)

	sig, err := parseSignature(reply.Signature)
	if err != nil {
		return nil, err
	}

	return &kexResult{
		H:         h.Sum(nil),
		K:         new(big.Int).SetBytes(secret),
		HostKey:   reply.HostKey,
		Signature: sig,
	}, nil
}

var supportedKexAlgorithms = map[string]kexAlgorithm{
	"curve25519-sha256":           curve25519sha256{},
	"ecdh-sha2-nistp256":          ecdhNIST{curve: ecdh.P256(), hasher: sha256.New},
	"ecdh-sha2-nistp384":          ecdhNIST{curve: ecdh.P384(), hasher: sha512.New384},
	"ecdh-sha2-nistp521":          ecdhNIST{curve: ecdh.P521(), hasher: sha512.New},
}

// preferredKexOrder is the order in which this transport offers (and
// prefers) key-exchange algorithms in its own KEXINIT.
var preferredKexOrder = []string{
	"curve25519-sha256",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
	"ecdh-sha2-nistp521",
}

// deriveKey implements the key-derivation function of RFC 4253, section
// 7.2: HASH(K || H || letter || session_id), repeated with the growing
// output appended to itself until it is at least n bytes long.
func deriveKey(hasher func() hash.Hash, letter byte, n int, K *big.Int, H, sessionID []byte) []byte {
	kbuf := newBuffer(nil)
	kbuf.writeMpint(K)

	first := hasher()
	first.Write(kbuf.bytes())
	first.Write(H)
	first.Write([]byte{letter})
	first.Write(sessionID)
	out := first.Sum(nil)

	for len(out) < n {
		hh := hasher()
		hh.Write(kbuf.bytes())
		hh.Write(H)
		hh.Write(out)
		out = append(out, hh.Sum(nil)...)
	}
	return out[:n]
}
