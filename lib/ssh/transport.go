// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bufio"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// packetVersion is the identification string this transport sends
// during version exchange, per RFC 4253 section 4.2.
const packetVersion = "SSH-2.0-sshcore_1.0"

// maxVersionBannerLineLength bounds any single line read during version
// exchange (including the identification line itself), per RFC 4253
// section 4.2.
const maxVersionBannerLineLength = 256

// maxVersionBannerHeaderBytes bounds how much pre-version-banner chatter
// (a pre-auth MOTD, say) this transport accumulates before giving up,
// per RFC 4253 section 4.2.
const maxVersionBannerHeaderBytes = 16 * 1024

// Transport is the client-side core of an SSH connection: version
// exchange, key exchange and rekeying, packet encryption, and
// transport-level message dispatch. It does not implement user
// authentication or channel multiplexing; install a Service (with
// SetService, after RequestService's SERVICE_ACCEPT) to consume
// everything above this layer.
type Transport struct {
	conn   net.Conn
	config *ClientConfig

	clientVersion, serverVersion []byte
	dialAddress                 string
	hostKeyVerifier              HostKeyVerifier

	kex     *keyExchanger
	decoder *decoder
	reader  *reader

	writeMu sync.Mutex
	encoder *encoder

	serviceMu      sync.Mutex
	service        Service
	wantedService  string
	serviceLatch   *latch
	authenticated  bool

	// lastRecvMsg is the message id of the last packet handed up by the
	// Reader, used only by die to decide whether a closing DISCONNECT
	// would just echo one we already received.
	lastRecvMsg atomic.Uint32

	heartbeat *heartbeater

	dead     chan struct{}
	closeMu  sync.Mutex
	closeErr error

	metrics *Metrics
	log     *logrus.Entry
}

// Dial connects to addr over network, then performs version exchange
// and the initial key exchange, returning a ready-to-use Transport. It
// is a convenience wrapper around net.Dialer.Dial (no dial timeout) and
// NewTransport.
func Dial(network, addr string, config *ClientConfig) (*Transport, error) {
	var d net.Dialer
	conn, err := d.Dial(network, addr)
	if err != nil {
		return nil, ioErrorf(err, "dial %s", addr)
	}
	t, err := NewTransport(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewTransport runs version exchange and the initial key exchange over
// an already-connected net.Conn, named dialAddress for host-key
// verification and logging. It blocks until the handshake completes (or
// fails) and the transport is ready to carry SSH_MSG_SERVICE_REQUEST.
func NewTransport(conn net.Conn, dialAddress string, config *ClientConfig) (*Transport, error) {
	if config.HostKeyVerifier == nil {
		return nil, protocolErrorf("ClientConfig.HostKeyVerifier must be set")
	}
	fullConfig := *config
	fullConfig.setDefaults()

	t := &Transport{
		conn:            conn,
		config:          &fullConfig,
		dialAddress:     dialAddress,
		hostKeyVerifier: fullConfig.HostKeyVerifier,
		service:         nullService{},
		serviceLatch:    newLatch(),
		dead:            make(chan struct{}),
		metrics:         globalMetrics,
		log:             logrus.WithField("component", "ssh-transport").WithField("addr", dialAddress),
	}
	t.kex = newKeyExchanger(t)
	t.encoder = newPlaintextEncoder()

	if err := t.init(); err != nil {
		return nil, err
	}
	return t, nil
}

// init runs version exchange, starts the Reader goroutine, and drives
// the first key exchange to completion before returning.
func (t *Transport) init() error {
	clientVersion := t.config.ClientVersion
	if clientVersion == "" {
		clientVersion = packetVersion
	}
	t.clientVersion = []byte(clientVersion)

	serverVersion, err := exchangeVersions(t.conn, t.clientVersion)
	if err != nil {
		t.conn.Close()
		return err
	}
	t.serverVersion = serverVersion
	t.decoder = newPlaintextDecoder(t.conn)
	t.reader = newReader(t)

	go t.reader.run()

	if err := t.kex.requestInitialKex(); err != nil {
		t.conn.Close()
		return err
	}

	if t.metrics != nil {
		t.metrics.handshakesTotal.Inc()
	}

	t.log.Debug("transport handshake complete")
	return nil
}

// exchangeVersions writes our identification string and reads the
// peer's, per RFC 4253 section 4.2. The peer's line may be preceded by
// other lines which MUST be ignored (used by some servers to print a
// pre-auth banner); this transport tolerates up to
// maxVersionBannerHeaderBytes of such chatter before giving up. Every
// line, including the identification line itself, must be CRLF
// terminated and no longer than maxVersionBannerLineLength; a bare LF is
// a protocol error, as is a line exceeding the cap. Once found, the
// identification line must begin with "SSH-2.0-" or "SSH-1.99-", or the
// exchange fails with PROTOCOL_VERSION_NOT_SUPPORTED.
func exchangeVersions(conn net.Conn, clientVersion []byte) ([]byte, error) {
	if _, err := conn.Write(append(append([]byte{}, clientVersion...), '\r', '\n')); err != nil {
		return nil, ioErrorf(err, "write version banner")
	}

	r := bufio.NewReader(conn)
	var total int
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, ioErrorf(err, "read version banner")
		}
		if len(line) > maxVersionBannerLineLength {
			return nil, protocolErrorf("version banner line exceeded %d bytes", maxVersionBannerLineLength)
		}
		if len(line) < 2 || line[len(line)-2] != '\r' {
			return nil, protocolErrorf("version banner line terminated by bare LF")
		}
		total += len(line)
		if total > maxVersionBannerHeaderBytes {
			return nil, protocolErrorf("version banner header exceeded %d bytes", maxVersionBannerHeaderBytes)
		}
		line = trimCRLF(line)
		if len(line) >= 4 && string(line[:4]) == "SSH-" {
			if !hasSupportedVersionPrefix(line) {
				return nil, newTransportError(DisconnectProtocolVersionNotSupported,
					"unsupported protocol version %q", line)
			}
			return line, nil
		}
		// Not the version line; RFC 4253 section 4.2 says to ignore it.
	}
}

// hasSupportedVersionPrefix reports whether line (already stripped of
// its CRLF) begins with one of the two protocol-version prefixes this
// transport accepts, per RFC 4253 section 4.2.
func hasSupportedVersionPrefix(line []byte) bool {
	s := string(line)
	return strings.HasPrefix(s, "SSH-2.0-") || strings.HasPrefix(s, "SSH-1.99-")
}

// recordRecv notes the message id of the most recently handled inbound
// packet read by the Reader (a KEXINIT included; the packets a kex round
// reads itself through recvRaw are not recorded); die uses it to avoid
// echoing a DISCONNECT back to a peer that just sent one.
func (t *Transport) recordRecv(msg byte) {
	t.lastRecvMsg.Store(uint32(msg))
}

func trimCRLF(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// sendRaw encodes and writes payload directly, bypassing rekey
// bookkeeping. It is used internally by the keyExchanger for the kex
// sub-protocol's own messages, which must never themselves trigger or
// wait for a rekey.
func (t *Transport) sendRaw(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.sendRawLocked(payload)
}

func (t *Transport) sendRawLocked(payload []byte) error {
	packet, err := t.encoder.encode(payload)
	if err != nil {
		return err
	}
	if _, err := t.conn.Write(packet); err != nil {
		return ioErrorf(err, "write packet")
	}
	return nil
}

// recvRaw reads the next raw payload directly off the decoder. It is
// used internally by the keyExchanger, on the Reader's own goroutine,
// to read the kex sub-protocol's own response messages.
func (t *Transport) recvRaw() ([]byte, error) {
	return t.decoder.readPacket()
}

// installWriteKeys swaps the write-direction cipherSuite and
// compressor in, deriving fresh key material from the completed key
// exchange. It must only be called after this side's own NEWKEYS has
// already been written under the prior keys.
func (t *Transport) installWriteKeys(algs DirectionAlgorithms, K *big.Int, H, sessionID []byte) error {
	cs, err := deriveDirectionCipher(algs, K, H, sessionID, 'A', 'C', 'E')
	if err != nil {
		return err
	}
	comp, err := newCompressor(algs.Compression)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	t.encoder.cipher = cs
	t.encoder.compressor = comp
	t.writeMu.Unlock()
	return nil
}

// write sends an ordinary (non-kex) payload. Per invariant I2, a
// transport-control message in [1,49] other than SERVICE_REQUEST is
// allowed to proceed even while a kex round is in progress; everything
// else blocks until the round finishes, using a release-reacquire-recheck
// loop rather than holding writeMu across the wait: waitForIdle is
// called without any lock held, and after acquiring writeMu this
// re-checks kex.isActive in case a new round started in the interim.
func (t *Transport) write(payload []byte) error {
	gatedByKex := len(payload) == 0 || !isTransportRangeMsg(payload[0]) || payload[0] == msgServiceRequest
	for {
		if gatedByKex {
			if err := t.kex.waitForIdle(); err != nil {
				return err
			}
		}
		t.writeMu.Lock()
		if gatedByKex && t.kex.isActive() {
			t.writeMu.Unlock()
			continue
		}
		err := t.sendRawLocked(payload)
		t.writeMu.Unlock()
		if err != nil {
			t.die(err)
			return err
		}
		if err := t.kex.noteWrite(len(payload)); err != nil {
			t.die(err)
			return err
		}
		if t.metrics != nil {
			t.metrics.bytesWritten.Add(float64(len(payload)))
		}
		return nil
	}
}

// Write implements io.Writer-style access to the Service layer's raw
// payload channel; payload must already include its SSH message id as
// the first byte, and must be in the Service's own id range (>= 50).
func (t *Transport) Write(payload []byte) error {
	if len(payload) == 0 || isTransportRangeMsg(payload[0]) || isKexRangeMsg(payload[0]) {
		return protocolErrorf("Write is only for service-range messages")
	}
	return t.write(payload)
}

// RequestService sends SSH_MSG_SERVICE_REQUEST for name and blocks
// until SERVICE_ACCEPT arrives (or timeout elapses, or the Transport
// dies). A zero timeout waits indefinitely.
func (t *Transport) RequestService(name string, timeout time.Duration) error {
	t.serviceMu.Lock()
	t.wantedService = name
	t.serviceMu.Unlock()

	if err := t.write((&serviceRequestMsg{Service: name}).marshal()); err != nil {
		return err
	}
	return t.serviceLatch.waitTimeout(timeout)
}

// SetService installs s as the consumer of every message outside the
// transport's own and the kex sub-protocol's id ranges. It is normally
// called once RequestService has returned successfully.
func (t *Transport) SetService(s Service) {
	t.serviceMu.Lock()
	old := t.service
	t.service = s
	t.serviceMu.Unlock()
	old.Closed(nil)
}

// SetAuthenticated tells the Transport that the installed Service has
// finished authenticating the connection, which is the trigger point
// for zlib@openssh.com's delayed compression start (RFC deferred
// compression). It has no effect if "none" was negotiated.
func (t *Transport) SetAuthenticated() {
	t.serviceMu.Lock()
	t.authenticated = true
	t.serviceMu.Unlock()
}

func (t *Transport) handleServiceAccept(msg *serviceAcceptMsg) {
	t.serviceMu.Lock()
	want := t.wantedService
	t.serviceMu.Unlock()
	if msg.Service != want {
		t.serviceLatch.trigger(protocolErrorf("SERVICE_ACCEPT for %q, wanted %q", msg.Service, want))
		return
	}
	t.serviceLatch.trigger(nil)
}

func (t *Transport) handlePeerUnimplemented(msg *unimplementedMsg) {
	t.log.WithField("seq", msg.Seq).Debug("peer sent UNIMPLEMENTED")
	t.serviceMu.Lock()
	svc := t.service
	t.serviceMu.Unlock()
	svc.NotifyUnimplemented(msg.Seq)
}

func (t *Transport) handlePeerDebug(msg *debugMsg) {
	entry := t.log.WithField("alwaysDisplay", msg.AlwaysDisplay)
	if msg.AlwaysDisplay {
		entry.Info(msg.Message)
	} else {
		entry.Debug(msg.Message)
	}
}

func (t *Transport) deliverToService(payload []byte) bool {
	t.serviceMu.Lock()
	svc := t.service
	t.serviceMu.Unlock()
	if _, ok := svc.(nullService); ok {
		return false
	}
	if err := svc.HandlePacket(payload); err != nil {
		t.die(wrapTransportError(DisconnectByApplication, err, "service %q failed", svc.Name()))
	}
	return true
}

// sendUnimplemented replies to an unrecognized message with
// SSH_MSG_UNIMPLEMENTED, per RFC 4253 section 11.4.
func (t *Transport) sendUnimplemented(seq uint32) {
	_ = t.sendRaw((&unimplementedMsg{Seq: seq}).marshal())
}

// Disconnect sends SSH_MSG_DISCONNECT with the given reason and message
// and tears the Transport down locally. It notifies the active Service
// first, per the disconnect contract, then sends the packet itself (die
// is told not to send its own, so exactly one DISCONNECT reaches the
// wire).
func (t *Transport) Disconnect(reason DisconnectReason, message string) error {
	t.serviceMu.Lock()
	svc := t.service
	t.serviceMu.Unlock()
	svc.NotifyDisconnect()

	err := t.sendRaw((&disconnectMsg{Reason: uint32(reason), Message: message}).marshal())
	t.dieWithDisconnect(newTransportError(reason, "local disconnect: %s", message), false)
	return err
}

// Close tears the Transport down without sending a DISCONNECT message.
func (t *Transport) Close() error {
	t.dieWithDisconnect(newTransportError(DisconnectByApplication, "closed locally"), false)
	return nil
}

// die tears the Transport down exactly once on a fatal error from any
// component: it wakes every latch waiter, notifies the KeyExchanger and
// the active Service, installs the null-service, best-effort sends a
// closing DISCONNECT (unless the peer just sent one themselves), then
// closes the connection and stops the heartbeat.
func (t *Transport) die(err error) {
	t.dieWithDisconnect(err, true)
}

func (t *Transport) dieWithDisconnect(err error, sendDisconnect bool) {
	t.closeMu.Lock()
	if t.closeErr != nil {
		t.closeMu.Unlock()
		return
	}
	t.closeErr = err
	t.closeMu.Unlock()

	t.serviceLatch.trigger(err)
	t.kex.fail(err)

	t.serviceMu.Lock()
	svc := t.service
	t.service = nullService{}
	t.serviceMu.Unlock()
	svc.Closed(err)

	reason := errDisconnectReason(err)
	if sendDisconnect && reason != DisconnectUnknown && byte(t.lastRecvMsg.Load()) != msgDisconnect {
		_ = t.sendRaw((&disconnectMsg{Reason: uint32(reason), Message: err.Error()}).marshal())
	}

	t.conn.Close()
	if t.heartbeat != nil {
		t.heartbeat.close()
	}
	close(t.dead)

	if t.metrics != nil {
		t.metrics.disconnectsTotal.WithLabelValues(fmt.Sprint(reason)).Inc()
	}
	t.log.WithError(err).Debug("transport closed")
}

func errDisconnectReason(err error) DisconnectReason {
	var te *TransportError
	if e, ok := err.(*TransportError); ok {
		te = e
	}
	if te == nil {
		return DisconnectUnknown
	}
	return te.Reason
}

// IsRunning reports whether the Transport is still alive.
func (t *Transport) IsRunning() bool {
	select {
	case <-t.dead:
		return false
	default:
		return true
	}
}

// Join blocks until the Transport dies, returning the error that
// caused teardown (a local Close records a DisconnectByApplication
// TransportError).
func (t *Transport) Join() error {
	<-t.dead
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closeErr
}

// SessionID returns the exchange hash from the very first key
// exchange, which never changes across rekeys; it is nil until the
// initial key exchange completes. Per RFC 4253 section 7.2, this value
// is also used by higher-layer authentication methods.
func (t *Transport) SessionID() []byte {
	return t.kex.getSessionID()
}

// StartHeartbeat begins sending periodic SSH_MSG_IGNORE packets every
// interval, to keep idle-timing middleboxes and NATs from dropping the
// connection. It must be called at most once.
func (t *Transport) StartHeartbeat(interval time.Duration) {
	t.heartbeat = newHeartbeater(t, interval)
	go t.heartbeat.run()
}
