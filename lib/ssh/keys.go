// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
)

// PublicKey represents a public key that the transport can use to verify a
// host's KEX_ECDH_REPLY signature, or that a Signer can produce signatures
// under. Only ssh-ed25519 is implemented; the interface exists so that
// additional host-key algorithms can be added without touching the
// key-exchange state machine.
type PublicKey interface {
	// Type returns the algorithm name, e.g. "ssh-ed25519".
	Type() string

	// Marshal returns the wire encoding of the public key, as it appears
	// in a KEX_ECDH_REPLY host key blob.
	Marshal() []byte

	// Verify checks sig against data. sig.Format must match Type().
	Verify(data []byte, sig *signatureMsg) error
}

// Signer can produce a signature that a PublicKey.Verify of the
// corresponding public half will accept. Transport itself never signs
// anything (it is a client-only implementation); Signer exists so that
// tests can stand up an in-process server-style peer.
type Signer interface {
	PublicKey() PublicKey
	Sign(data []byte) (*signatureMsg, error)
}

const keyTypeED25519 = "ssh-ed25519"

type ed25519PublicKey struct {
	pub ed25519.PublicKey
}

func (k *ed25519PublicKey) Type() string { return keyTypeED25519 }

func (k *ed25519PublicKey) Marshal() []byte {
	b := newBuffer(nil)
	b.writeUTF8(keyTypeED25519)
	b.writeString(k.pub)
	return b.bytes()
}

func (k *ed25519PublicKey) Verify(data []byte, sig *signatureMsg) error {
	if sig.Format != keyTypeED25519 {
		return protocolErrorf("ed25519: signature format mismatch: %s", sig.Format)
	}
	if !ed25519.Verify(k.pub, data, sig.Blob) {
		return protocolErrorf("ed25519: signature verification failed")
	}
	return nil
}

// ParsePublicKey parses a host-key blob as it arrives in a
// KEX_ECDH_REPLY message: a name string followed by algorithm-specific
// data, per RFC 4253 section 6.6.
func ParsePublicKey(in []byte) (PublicKey, error) {
	b := newBuffer(in)
	algo, err := b.readUTF8()
	if err != nil {
		return nil, err
	}
	switch algo {
	case keyTypeED25519:
		keyBytes, err := b.readString()
		if err != nil {
			return nil, err
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, protocolErrorf("ed25519: invalid public key length %d", len(keyBytes))
		}
		return &ed25519PublicKey{pub: ed25519.PublicKey(keyBytes)}, nil
	default:
		return nil, protocolErrorf("ssh: unsupported host key algorithm %q", algo)
	}
}

type ed25519Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps an ed25519 key pair as a Signer. It is used by
// tests (through GenerateEd25519Signer) to stand up an in-process server
// half of the handshake.
func NewEd25519Signer(pub ed25519.PublicKey, priv ed25519.PrivateKey) Signer {
	return &ed25519Signer{pub: pub, priv: priv}
}

// GenerateEd25519Signer creates a fresh random ed25519 host key.
func GenerateEd25519Signer() (Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(pub, priv), nil
}

func (s *ed25519Signer) PublicKey() PublicKey {
	return &ed25519PublicKey{pub: s.pub}
}

func (s *ed25519Signer) Sign(data []byte) (*signatureMsg, error) {
	sig := ed25519.Sign(s.priv, data)
	return &signatureMsg{Format: keyTypeED25519, Blob: sig}, nil
}

// HostKeyVerifier decides whether a server's host key (presented during
// kex) should be trusted. It mirrors the shape of crypto/tls's
// certificate verification callback: it runs on the goroutine that is
// driving the key exchange and a non-nil error aborts the handshake with
// DisconnectHostKeyNotVerifiable.
type HostKeyVerifier func(hostname string, key PublicKey) error

// InsecureIgnoreHostKey returns a HostKeyVerifier that accepts any host
// key. It exists for tests and local experimentation; production callers
// should supply a verifier backed by a known_hosts-style store.
func InsecureIgnoreHostKey() HostKeyVerifier {
	return func(hostname string, key PublicKey) error { return nil }
}

// FixedHostKey returns a HostKeyVerifier that accepts only the exact key
// given, compared by its marshaled wire form.
func FixedHostKey(key PublicKey) HostKeyVerifier {
	want := key.Marshal()
	return func(hostname string, got PublicKey) error {
		gotBytes := got.Marshal()
		if len(gotBytes) != len(want) {
			return newTransportError(DisconnectHostKeyNotVerifiable, "host key mismatch for %s", hostname)
		}
		for i := range want {
			if want[i] != gotBytes[i] {
				return newTransportError(DisconnectHostKeyNotVerifiable, "host key mismatch for %s", hostname)
			}
		}
		return nil
	}
}
