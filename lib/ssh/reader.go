// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// reader owns the Decoder and runs on its own goroutine for the
// lifetime of the Transport, turning wire packets into either:
//   - transparent handling (IGNORE, DEBUG are dropped; KEXINIT drives a
//     keyExchanger round inline, before anything else is read),
//   - a transport-level event latched onto the Transport (DISCONNECT,
//     UNIMPLEMENTED, service accept), or
//   - delivery to the installed Service, for anything in the Service's
//     own message-id range.
//
// Running kex inline on this goroutine -- rather than handing the
// KEXINIT off to a separate goroutine -- is what makes NEWKEYS
// atomic on the read side: readOnePacket never returns to its caller,
// and never reads another packet, until the Decoder has already been
// swapped onto the post-kex keys.
type reader struct {
	t *Transport
}

func newReader(t *Transport) *reader {
	return &reader{t: t}
}

// run is the goroutine body. It exits (and tears the Transport down)
// on the first unrecoverable read error.
func (r *reader) run() {
	for {
		payload, err := r.readOnePacket()
		if err != nil {
			r.t.die(err)
			return
		}
		if payload == nil {
			// A kex round completed with nothing to deliver upward
			// (a rekey collapses to msgIgnore further down, but a
			// nil here means "fully internal", reserved for future
			// transport-only message types).
			continue
		}
		if r.dispatch(payload) {
			return
		}
	}
}

// readOnePacket reads exactly one payload and, if it was a KEXINIT,
// fully drives the resulting key-exchange round before returning --
// the round's own synthetic marker (msgIgnore/msgNewKeys) comes back
// in place of the KEXINIT payload itself, matching the convention that
// a key exchange is invisible to everything above the Reader.
func (r *reader) readOnePacket() ([]byte, error) {
	if needsKex := r.t.kex.noteRead(0); needsKex {
		if _, _, err := r.t.kex.sendInitLocked(); err != nil {
			return nil, err
		}
	}

	p, err := r.t.decoder.readPacket()
	if err != nil {
		return nil, err
	}
	r.t.kex.noteRead(len(p))

	if len(p) == 0 {
		return nil, protocolErrorf("empty payload")
	}

	r.t.recordRecv(p[0])

	if p[0] == msgKexInit {
		return r.t.kex.runRound(p)
	}
	return p, nil
}

// dispatch handles everything that isn't part of the kex sub-protocol.
// It returns true if the Transport has been torn down and the Reader
// goroutine should exit.
func (r *reader) dispatch(p []byte) bool {
	switch p[0] {
	case msgIgnore:
		return false

	case msgNewKeys:
		// The marker runRound returns after the first kex; the round
		// is already complete, so there is nothing to dispatch.
		return false

	case msgDebug:
		msg, err := parseDebugMsg(p)
		if err != nil {
			r.t.die(err)
			return true
		}
		r.t.handlePeerDebug(msg)
		return false

	case msgUnimplemented:
		msg, err := parseUnimplementedMsg(p)
		if err != nil {
			r.t.die(err)
			return true
		}
		if r.t.kex.isActive() {
			r.t.die(protocolErrorf("peer sent UNIMPLEMENTED during key exchange (seq %d)", msg.Seq))
			return true
		}
		r.t.handlePeerUnimplemented(msg)
		return false

	case msgDisconnect:
		msg, err := parseDisconnectMsg(p)
		if err != nil {
			r.t.die(err)
			return true
		}
		r.t.die(wrapTransportError(DisconnectReason(msg.Reason), nil, "peer disconnected: %s", msg.Message))
		return true

	case msgServiceAccept:
		msg, err := parseServiceAcceptMsg(p)
		if err != nil {
			r.t.die(err)
			return true
		}
		r.t.handleServiceAccept(msg)
		return false

	default:
		if isTransportRangeMsg(p[0]) {
			// An unrecognized message in the transport's own range is
			// a peer using a feature we don't implement; reply with
			// UNIMPLEMENTED per RFC 4253 section 11.4 rather than
			// treating it as fatal.
			r.t.sendUnimplemented(r.t.decoder.seq - 1)
			return false
		}
		if !r.t.deliverToService(p) {
			r.t.sendUnimplemented(r.t.decoder.seq - 1)
		}
		return false
	}
}
