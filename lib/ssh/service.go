// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// Service is the pluggable consumer of everything above the transport
// layer: user authentication (ssh-userauth) and the connection protocol
// (ssh-connection) both live outside this package and are modeled as a
// Service installed with Transport.SetService once RequestService's
// SSH_MSG_SERVICE_ACCEPT has arrived.
//
// HandlePacket is called on the Reader's goroutine for every message
// whose id falls outside the transport's own range (>= 50, per RFC 4250
// section 4.1.2) and outside the kex sub-protocol's range. Returning an
// error tears the Transport down with DisconnectByApplication.
type Service interface {
	// Name is the service name this Service expects to have been
	// requested under, e.g. "ssh-connection".
	Name() string

	// HandlePacket delivers one payload to the service.
	HandlePacket(payload []byte) error

	// NotifyUnimplemented tells the service that the peer replied
	// SSH_MSG_UNIMPLEMENTED to seq, outside of a key exchange (an
	// UNIMPLEMENTED received while a kex round is in progress is fatal
	// to the Transport itself and never reaches here).
	NotifyUnimplemented(seq uint32)

	// NotifyDisconnect tells the service that a local Disconnect is
	// about to send SSH_MSG_DISCONNECT, ahead of Closed.
	NotifyDisconnect()

	// Closed is called once, when the Transport is tearing down or when
	// SetService replaces this Service, so the Service can release its
	// own resources. err is the reason the Transport is closing, or nil
	// when the Service was replaced by SetService.
	Closed(err error)
}

// nullService is installed on every Transport until SetService is
// called, and again during teardown. Transport never hands it a
// packet: a service-range message that arrives while it is installed
// is answered with SSH_MSG_UNIMPLEMENTED by the Reader.
type nullService struct{}

func (nullService) Name() string { return "" }

func (nullService) HandlePacket(payload []byte) error {
	return protocolErrorf("no service installed for message type %d", payload[0])
}

func (nullService) NotifyUnimplemented(uint32) {}

func (nullService) NotifyDisconnect() {}

func (nullService) Closed(error) {}
