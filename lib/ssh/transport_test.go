// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bufio"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/curve25519"

	"github.com/stretchr/testify/require"
)

// testServer plays the server half of the handshake by hand, using the
// same low-level primitives (buffer, messages, encoder/decoder,
// curve25519) a real OpenSSH server would use on the wire. It exists
// because this package implements only the client; transport_test.go
// needs a peer to talk to.
type testServer struct {
	conn    net.Conn
	dec     *decoder
	enc     *encoder
	signer  Signer
	version []byte
}

func newTestServer(conn net.Conn, signer Signer) *testServer {
	return &testServer{conn: conn, dec: newPlaintextDecoder(conn), enc: newPlaintextEncoder(), signer: signer}
}

func (s *testServer) send(payload []byte) error {
	packet, err := s.enc.encode(payload)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(packet)
	return err
}

func (s *testServer) recv() ([]byte, error) {
	return s.dec.readPacket()
}

func defaultKexInit() *kexInitMsg {
	var cfg Config
	cfg.SetDefaults()
	return &kexInitMsg{
		KexAlgos:                cfg.KeyExchanges,
		ServerHostKeyAlgos:      cfg.HostKeyAlgorithms,
		CiphersClientServer:     cfg.Ciphers,
		CiphersServerClient:     cfg.Ciphers,
		MACsClientServer:        cfg.MACs,
		MACsServerClient:        cfg.MACs,
		CompressionClientServer: cfg.Compressions,
		CompressionServerClient: cfg.Compressions,
	}
}

// runHandshake drives the server half of version exchange, one
// curve25519-sha256 kex round, and NEWKEYS, leaving s ready to exchange
// service-range traffic under the negotiated ciphers.
func (s *testServer) runHandshake(clientVersion []byte) error {
	serverInit := defaultKexInit()
	if _, err := rand.Read(serverInit.Cookie[:]); err != nil {
		return err
	}
	serverInitPacket := serverInit.marshal()
	if err := s.send(serverInitPacket); err != nil {
		return err
	}

	clientInitPacket, err := s.recv()
	if err != nil {
		return err
	}
	clientInit, err := parseKexInitMsg(clientInitPacket)
	if err != nil {
		return err
	}

	algs, err := findAgreedAlgorithms(clientInit, serverInit)
	if err != nil {
		return err
	}

	magics := &handshakeMagics{
		clientVersion: clientVersion,
		serverVersion: s.version,
		clientKexInit: clientInitPacket,
		serverKexInit: serverInitPacket,
	}

	initPacket, err := s.recv()
	if err != nil {
		return err
	}
	initMsg, err := parseKexECDHInitMsg(initPacket)
	if err != nil {
		return err
	}

	var serverPriv [32]byte
	if _, err := rand.Read(serverPriv[:]); err != nil {
		return err
	}
	serverPub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	secret, err := curve25519.X25519(serverPriv[:], initMsg.ClientPubKey)
	if err != nil {
		return err
	}

	hostKeyBlob := s.signer.PublicKey().Marshal()
	h := sha256.New()
	writeKexHashPreamble(h, magics, hostKeyBlob, initMsg.ClientPubKey, serverPub, secret)
	H := h.Sum(nil)
	K := new(big.Int).SetBytes(secret)

	sig, err := s.signer.Sign(H)
	if err != nil {
		return err
	}
	reply := &kexECDHReplyMsg{HostKey: hostKeyBlob, EphemeralPubKey: serverPub, Signature: sig.marshal()}
	if err := s.send(reply.marshal()); err != nil {
		return err
	}

	if err := s.send([]byte{msgNewKeys}); err != nil {
		return err
	}
	peerNewKeys, err := s.recv()
	if err != nil {
		return err
	}
	if len(peerNewKeys) == 0 || peerNewKeys[0] != msgNewKeys {
		return protocolErrorf("expected NEWKEYS from client")
	}

	// Server write direction mirrors the client's read direction
	// (letters B,D,F); server read direction mirrors the client's
	// write direction (letters A,C,E).
	writeCipher, err := deriveDirectionCipher(algs.R, K, H, H, 'B', 'D', 'F')
	if err != nil {
		return err
	}
	writeComp, err := newCompressor(algs.R.Compression)
	if err != nil {
		return err
	}
	s.enc.cipher = writeCipher
	s.enc.compressor = writeComp

	readCipher, err := deriveDirectionCipher(algs.W, K, H, H, 'A', 'C', 'E')
	if err != nil {
		return err
	}
	readComp, err := newCompressor(algs.W.Compression)
	if err != nil {
		return err
	}
	s.dec.cipher = readCipher
	s.dec.compressor = readComp
	return nil
}

// handshakeOverPipe wires a Transport to a hand-rolled testServer over a
// loopback TCP connection (not net.Pipe: the handshake's sequential
// write-then-read ordering on both ends would deadlock against
// net.Pipe's unbuffered rendezvous semantics), and returns once both
// sides consider the initial key exchange complete.
func handshakeOverPipe(t *testing.T) (*Transport, *testServer, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	signer, err := GenerateEd25519Signer()
	require.NoError(t, err)

	serverConnCh := make(chan net.Conn, 1)
	serverReady := make(chan error, 1)
	var srv *testServer
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverReady <- err
			return
		}
		serverConnCh <- conn
		srv = newTestServer(conn, signer)

		r := bufio.NewReader(conn)
		srv.version = []byte("SSH-2.0-testserver_1.0")
		if _, err := conn.Write(append(append([]byte{}, srv.version...), '\r', '\n')); err != nil {
			serverReady <- err
			return
		}
		line, err := r.ReadBytes('\n')
		if err != nil {
			serverReady <- err
			return
		}
		clientVersion := trimCRLF(line)
		serverReady <- srv.runHandshake(clientVersion)
	}()

	config := &ClientConfig{HostKeyVerifier: InsecureIgnoreHostKey()}
	transport, err := Dial("tcp", ln.Addr().String(), config)
	require.NoError(t, err)

	require.NoError(t, <-serverReady)
	serverConn := <-serverConnCh
	return transport, srv, serverConn
}

func TestTransportHandshakeCompletes(t *testing.T) {
	transport, _, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	require.True(t, transport.IsRunning())
	require.NotEmpty(t, transport.SessionID())
}

type collectingService struct {
	name     string
	received chan []byte
	closed   chan error
}

func newCollectingService(name string) *collectingService {
	return &collectingService{name: name, received: make(chan []byte, 8), closed: make(chan error, 1)}
}

func (c *collectingService) Name() string { return c.name }

func (c *collectingService) HandlePacket(payload []byte) error {
	c.received <- append([]byte(nil), payload...)
	return nil
}

func (c *collectingService) NotifyUnimplemented(seq uint32) {}

func (c *collectingService) NotifyDisconnect() {}

func (c *collectingService) Closed(err error) {
	select {
	case c.closed <- err:
	default:
	}
}

func TestTransportRequestServiceAndMessageDelivery(t *testing.T) {
	transport, srv, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	serverSawRequest := make(chan string, 1)
	go func() {
		payload, err := srv.recv()
		if err != nil {
			return
		}
		b := newBuffer(payload[1:])
		name, _ := b.readUTF8()
		serverSawRequest <- name
		acceptBuf := newBuffer([]byte{msgServiceAccept})
		acceptBuf.writeUTF8(name)
		_ = srv.send(acceptBuf.bytes())
	}()

	err := transport.RequestService(ServiceConnection, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, ServiceConnection, <-serverSawRequest)

	svc := newCollectingService(ServiceConnection)
	transport.SetService(svc)

	clientPayload := append([]byte{50}, []byte("hello-service")...)
	require.NoError(t, transport.Write(clientPayload))

	serverGot, err := srv.recv()
	require.NoError(t, err)
	require.Equal(t, clientPayload, serverGot)

	serverPayload := append([]byte{51}, []byte("hi-client")...)
	require.NoError(t, srv.send(serverPayload))

	select {
	case got := <-svc.received:
		require.Equal(t, serverPayload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for service delivery")
	}
}

func TestTransportRequestServiceTimeout(t *testing.T) {
	transport, _, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	err := transport.RequestService(ServiceConnection, 50*time.Millisecond)
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, DisconnectTimeout, te.Reason)
}

func TestTransportSendsUnimplementedForUnknownTransportMessage(t *testing.T) {
	transport, srv, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	const unknownTransportMsg = 7
	require.NoError(t, srv.send([]byte{unknownTransportMsg}))

	reply, err := srv.recv()
	require.NoError(t, err)
	require.Equal(t, byte(msgUnimplemented), reply[0])
}

func TestTransportPeerDisconnectTearsDown(t *testing.T) {
	transport, srv, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()

	require.NoError(t, srv.send((&disconnectMsg{Reason: uint32(DisconnectByApplication), Message: "bye"}).marshal()))

	err := transport.Join()
	require.Error(t, err)
	require.False(t, transport.IsRunning())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, DisconnectByApplication, te.Reason)
}

func TestTransportCloseIsIdempotent(t *testing.T) {
	transport, _, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	require.False(t, transport.IsRunning())
}
