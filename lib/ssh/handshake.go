// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"io"
	"sync"
)

// keyExchanger owns every key-exchange round on a Transport: the
// initial kex that must complete before any other traffic is allowed,
// and every rekey after it, whether triggered by the peer's KEXINIT or
// by this side crossing its RekeyThreshold. It does not own the wire
// itself (that belongs to the encoder/decoder); it only drives the kex
// sub-protocol messages and, on success, installs new keys into both.
//
// Writers (Transport.write) must not send ordinary traffic while a kex
// round is in progress: they call waitForIdle, which blocks until no
// round is active, then re-checks before writing. The Reader goroutine
// drives an incoming KEXINIT synchronously, on its own goroutine,
// inline with packet delivery -- this is what makes NEWKEYS atomic:
// readOnePacket never returns a post-rekey packet to the dispatcher
// until the Decoder has already been swapped to the new keys.
type keyExchanger struct {
	t *Transport

	mu   sync.Mutex
	cond *sync.Cond

	// sentInit is the KEXINIT this side has sent for the round
	// currently in progress, or nil if no round is active.
	sentInit       *kexInitMsg
	sentInitPacket []byte

	writtenSinceKex uint64
	readSinceKex    uint64

	sessionID []byte

	// err is set if a kex round failed; once set every future write
	// and read fails with it.
	err error
}

func newKeyExchanger(t *Transport) *keyExchanger {
	k := &keyExchanger{t: t}
	k.cond = sync.NewCond(&k.mu)
	return k
}

func (k *keyExchanger) getSessionID() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sessionID
}

// waitForIdle blocks while a kex round is in progress. Callers must
// re-check whatever invariant they need after it returns, since the
// round that just finished may not be the last one.
func (k *keyExchanger) waitForIdle() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for k.sentInit != nil && k.err == nil {
		k.cond.Wait()
	}
	return k.err
}

// noteWrite records len(p) bytes written since the last kex, and kicks
// off a rekey if the threshold has been crossed. Called by
// Transport.write after the packet has been sent and the write lock
// released (sendInitLocked takes that lock itself).
func (k *keyExchanger) noteWrite(n int) error {
	k.mu.Lock()
	k.writtenSinceKex += uint64(n)
	needsKex := k.writtenSinceKex > k.t.config.RekeyThreshold && k.sentInit == nil
	k.mu.Unlock()
	if needsKex {
		_, _, err := k.sendInitLocked()
		return err
	}
	return nil
}

func (k *keyExchanger) sendInitLocked() (*kexInitMsg, []byte, error) {
	k.mu.Lock()
	if k.sentInit != nil {
		msg, packet := k.sentInit, k.sentInitPacket
		k.mu.Unlock()
		return msg, packet, nil
	}
	k.mu.Unlock()

	msg := &kexInitMsg{
		KexAlgos:                k.t.config.KeyExchanges,
		ServerHostKeyAlgos:      k.t.config.HostKeyAlgorithms,
		CiphersClientServer:     k.t.config.Ciphers,
		CiphersServerClient:     k.t.config.Ciphers,
		MACsClientServer:        k.t.config.MACs,
		MACsServerClient:        k.t.config.MACs,
		CompressionClientServer: k.t.config.Compressions,
		CompressionServerClient: k.t.config.Compressions,
	}
	if _, err := io.ReadFull(rand.Reader, msg.Cookie[:]); err != nil {
		return nil, nil, ioErrorf(err, "failed to generate KEXINIT cookie")
	}
	packet := msg.marshal()
	packetCopy := append([]byte(nil), packet...)

	k.mu.Lock()
	k.sentInit = msg
	k.sentInitPacket = packetCopy
	k.mu.Unlock()

	if err := k.t.sendRaw(packetCopy); err != nil {
		return nil, nil, err
	}
	return msg, packetCopy, nil
}

// requestInitialKex starts the first key exchange from the calling
// goroutine (Transport.init, before the Transport is handed back to
// its caller) by sending KEXINIT, and blocks until the Reader has
// finished the round and NEWKEYS has been exchanged in both directions.
func (k *keyExchanger) requestInitialKex() error {
	_, _, err := k.sendInitLocked()
	if err != nil {
		return err
	}
	// The peer's KEXINIT and the rest of the round are driven by
	// runRound, invoked from the Reader goroutine once it sees the
	// peer's KEXINIT arrive. We block here until that round finishes.
	return k.waitForIdle()
}

// runRound drives one full key-exchange round to completion, given the
// peer's KEXINIT payload as received by the Reader. It must be called
// on the Reader's goroutine: it performs the curve25519 exchange
// synchronously and installs the new keys into the Decoder before
// returning, which is what gives NEWKEYS its atomicity on the read
// side. It returns the marker to feed the dispatcher in place of the
// peer's KEXINIT (msgIgnore on a rekey, msgNewKeys on the first kex).
func (k *keyExchanger) runRound(peerInitPacket []byte) ([]byte, error) {
	_, myInitPacket, err := k.sendInitLocked()
	if err != nil {
		return nil, err
	}

	peerInit, err := parseKexInitMsg(peerInitPacket)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	myInit := k.sentInit
	firstKex := k.sessionID == nil
	k.mu.Unlock()

	magics := &handshakeMagics{
		clientVersion: k.t.clientVersion,
		serverVersion: k.t.serverVersion,
		clientKexInit: myInitPacket,
		serverKexInit: peerInitPacket,
	}

	algs, err := findAgreedAlgorithms(myInit, peerInit)
	if err != nil {
		k.fail(err)
		return nil, err
	}

	// A peer that guessed wrong sends one extra kex packet we must
	// discard, per RFC 4253 section 7.
	if peerInit.FirstKexFollows && (myInit.KexAlgos[0] != peerInit.KexAlgos[0] || myInit.ServerHostKeyAlgos[0] != peerInit.ServerHostKeyAlgos[0]) {
		if _, err := k.t.recvRaw(); err != nil {
			k.fail(err)
			return nil, err
		}
	}

	kex, ok := supportedKexAlgorithms[algs.Kex]
	if !ok {
		err := newTransportError(DisconnectKeyAlgorithmNotSupported, "unsupported kex algorithm %q", algs.Kex)
		k.fail(err)
		return nil, err
	}

	result, err := kex.Client(magics, k.t.sendRaw, k.t.recvRaw)
	if err != nil {
		k.fail(err)
		return nil, err
	}

	hostKey, err := ParsePublicKey(result.HostKey)
	if err != nil {
		k.fail(err)
		return nil, err
	}
	if err := hostKey.Verify(result.H, result.Signature); err != nil {
		wrapped := newTransportError(DisconnectKeyExchangeFailed, "host key signature invalid")
		k.fail(wrapped)
		return nil, wrapped
	}
	if k.t.hostKeyVerifier != nil {
		if err := k.t.hostKeyVerifier(k.t.dialAddress, hostKey); err != nil {
			wrapped := newTransportError(DisconnectHostKeyNotVerifiable, "host key rejected: %v", err)
			k.fail(wrapped)
			return nil, wrapped
		}
	}

	k.mu.Lock()
	if k.sessionID == nil {
		k.sessionID = result.H
	}
	sessionID := k.sessionID
	k.mu.Unlock()

	// NEWKEYS itself travels under the keys that were in effect before
	// this round, in both directions, per RFC 4253 section 7.3: we send
	// ours (still old write keys), then read the peer's (still old read
	// keys), and only once both have actually crossed the wire do we
	// swap either direction's cipherSuite. Doing all of this inline, on
	// the Reader's own goroutine, before readOnePacket returns to its
	// caller, is what makes the swap atomic: no packet in either
	// direction can ever be mistaken for using stale keys.
	if err := k.t.sendRaw([]byte{msgNewKeys}); err != nil {
		k.fail(err)
		return nil, err
	}
	peerNewKeys, err := k.t.recvRaw()
	if err != nil {
		k.fail(err)
		return nil, err
	}
	if len(peerNewKeys) == 0 || peerNewKeys[0] != msgNewKeys {
		err := unexpectedMessageError(msgNewKeys, peerNewKeys[0])
		k.fail(err)
		return nil, err
	}

	if err := k.t.decoder.rekey(algs.R, result.K, result.H, sessionID); err != nil {
		k.fail(err)
		return nil, err
	}
	if err := k.t.installWriteKeys(algs.W, result.K, result.H, sessionID); err != nil {
		k.fail(err)
		return nil, err
	}

	k.mu.Lock()
	k.sentInit = nil
	k.sentInitPacket = nil
	k.writtenSinceKex = 0
	k.readSinceKex = 0
	k.cond.Broadcast()
	k.mu.Unlock()

	if firstKex {
		return []byte{msgNewKeys}, nil
	}
	if k.t.metrics != nil {
		k.t.metrics.rekeysTotal.Inc()
	}
	return []byte{msgIgnore}, nil
}

// isActive reports whether a kex round is currently in progress.
func (k *keyExchanger) isActive() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sentInit != nil
}

func (k *keyExchanger) fail(err error) {
	k.mu.Lock()
	if k.err == nil {
		k.err = err
	}
	k.cond.Broadcast()
	k.mu.Unlock()
}

// noteRead records len(p) bytes read since the last kex, and reports
// whether the threshold has been crossed -- the Reader uses this to
// decide whether to solicit a rekey by sending its own KEXINIT.
func (k *keyExchanger) noteRead(n int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.readSinceKex += uint64(n)
	return k.readSinceKex > k.t.config.RekeyThreshold && k.sentInit == nil
}
