// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"

	"golang.org/x/crypto/curve25519"
	check "gopkg.in/check.v1"
)

// Hook gocheck into go test; this is the only file in the package that
// exercises gocheck, kept separate so the rest of the suite stays on
// testify/require.
func TestGocheck(t *testing.T) { check.TestingT(t) }

type KexSuite struct{}

var _ = check.Suite(&KexSuite{})

// serverCurve25519Half plays the server side of a curve25519-sha256
// exchange by hand, using only the primitives a client also has access
// to (buffer, messages, a Signer). It exists so curve25519sha256.Client
// can be exercised against a real peer without a server-side
// kexAlgorithm implementation, which this transport has no need for.
func serverCurve25519Half(c *check.C, magics *handshakeMagics, hostSigner Signer, clientInit []byte) (serverReplyPayload []byte, expectH []byte, expectK *big.Int) {
	initMsg, err := parseKexECDHInitMsg(clientInit)
	c.Assert(err, check.IsNil)

	var serverPriv [32]byte
	_, err = rand.Read(serverPriv[:])
	c.Assert(err, check.IsNil)
	serverPub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	c.Assert(err, check.IsNil)

	secret, err := curve25519.X25519(serverPriv[:], initMsg.ClientPubKey)
	c.Assert(err, check.IsNil)

	hostKeyBlob := hostSigner.PublicKey().Marshal()

	h := sha256.New()
	writeKexHashPreamble(h, magics, hostKeyBlob, initMsg.ClientPubKey, serverPub, secret)
	H := h.Sum(nil)

	sig, err := hostSigner.Sign(H)
	c.Assert(err, check.IsNil)

	reply := &kexECDHReplyMsg{
		HostKey:         hostKeyBlob,
		EphemeralPubKey: serverPub,
		Signature:       sig.marshal(),
	}
	return reply.marshal(), H, new(big.Int).SetBytes(secret)
}

func (s *KexSuite) TestCurve25519ClientMatchesHandRolledServer(c *check.C) {
	signer, err := GenerateEd25519Signer()
	c.Assert(err, check.IsNil)

	magics := &handshakeMagics{
		clientVersion: []byte("SSH-2.0-sshcore_1.0"),
		serverVersion: []byte("SSH-2.0-OpenSSH_9.0"),
		clientKexInit: []byte("client-kexinit-payload"),
		serverKexInit: []byte("server-kexinit-payload"),
	}

	var serverReply []byte
	var wantH []byte
	var wantK *big.Int

	send := func(payload []byte) error {
		serverReply, wantH, wantK = serverCurve25519Half(c, magics, signer, payload)
		return nil
	}
	recv := func() ([]byte, error) {
		return serverReply, nil
	}

	algo := curve25519sha256{}
	result, err := algo.Client(magics, send, recv)
	c.Assert(err, check.IsNil)

	c.Check(result.H, check.DeepEquals, wantH)
	c.Check(result.K.Cmp(wantK), check.Equals, 0)
	c.Check(result.HostKey, check.DeepEquals, signer.PublicKey().Marshal())

	hostKey, err := ParsePublicKey(result.HostKey)
	c.Assert(err, check.IsNil)
	c.Check(hostKey.Verify(result.H, result.Signature), check.IsNil)
}

func (s *KexSuite) TestCurve25519ClientRejectsTamperedSignature(c *check.C) {
	signer, err := GenerateEd25519Signer()
	c.Assert(err, check.IsNil)

	magics := &handshakeMagics{
		clientVersion: []byte("SSH-2.0-sshcore_1.0"),
		serverVersion: []byte("SSH-2.0-OpenSSH_9.0"),
		clientKexInit: []byte("client-kexinit-payload"),
		serverKexInit: []byte("server-kexinit-payload"),
	}

	var serverReply []byte
	send := func(payload []byte) error {
		serverReply, _, _ = serverCurve25519Half(c, magics, signer, payload)
		return nil
	}
	recv := func() ([]byte, error) {
		return serverReply, nil
	}

	algo := curve25519sha256{}
	result, err := algo.Client(magics, send, recv)
	c.Assert(err, check.IsNil)

	hostKey, err := ParsePublicKey(result.HostKey)
	c.Assert(err, check.IsNil)

	tampered := &signatureMsg{Format: result.Signature.Format, Blob: append([]byte{}, result.Signature.Blob...)}
	tampered.Blob[0] ^= 0xff
	c.Check(hostKey.Verify(result.H, tampered), check.NotNil)
}

func (s *KexSuite) TestDeriveKeyIsDeterministicAndLengthBound(c *check.C) {
	K := big.NewInt(123456789)
	H := []byte("exchange-hash")
	sessionID := []byte("session-id")

	k1 := deriveKey(sha256.New, 'A', 48, K, H, sessionID)
	k2 := deriveKey(sha256.New, 'A', 48, K, H, sessionID)
	c.Check(k1, check.DeepEquals, k2)
	c.Check(len(k1), check.Equals, 48)

	kOther := deriveKey(sha256.New, 'B', 48, K, H, sessionID)
	c.Check(kOther, check.Not(check.DeepEquals), k1)
}
