// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "fmt"

// DisconnectReason is the small integer carried in SSH_MSG_DISCONNECT
// describing why a session is ending. See RFC 4253, section 11.1.
type DisconnectReason uint32

// The well-known disconnect reasons from RFC 4253, section 11.1, plus the
// sentinel Unknown used when no reason applies.
const (
	DisconnectUnknown                    DisconnectReason = 0
	DisconnectHostNotAllowedToConnect     DisconnectReason = 1
	DisconnectProtocolError               DisconnectReason = 2
	DisconnectKeyExchangeFailed           DisconnectReason = 3
	DisconnectReserved                    DisconnectReason = 4
	DisconnectMACError                    DisconnectReason = 5
	DisconnectCompressionError            DisconnectReason = 6
	DisconnectServiceNotAvailable         DisconnectReason = 7
	DisconnectProtocolVersionNotSupported DisconnectReason = 8
	DisconnectHostKeyNotVerifiable        DisconnectReason = 9
	DisconnectConnectionLost              DisconnectReason = 10
	DisconnectByApplication               DisconnectReason = 11
	DisconnectTooManyConnections          DisconnectReason = 12
	DisconnectAuthCancelledByUser         DisconnectReason = 13
	DisconnectNoMoreAuthMethodsAvailable  DisconnectReason = 14
	DisconnectIllegalUserName             DisconnectReason = 15

	// DisconnectKeyAlgorithmNotSupported is not part of RFC 4253; it is
	// used internally when the negotiated key-exchange algorithm has no
	// implementation here, as distinct from a general key-exchange
	// failure (no common algorithm at all is DisconnectKeyExchangeFailed).
	DisconnectKeyAlgorithmNotSupported DisconnectReason = 0xfffe

	// DisconnectTimeout is not part of RFC 4253; it is used internally
	// for latch waits (RequestService's wait for SERVICE_ACCEPT) that
	// never resolved in time.
	DisconnectTimeout DisconnectReason = 0xffff
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectUnknown:
		return "unknown"
	case DisconnectHostNotAllowedToConnect:
		return "host not allowed to connect"
	case DisconnectProtocolError:
		return "protocol error"
	case DisconnectKeyExchangeFailed:
		return "key exchange failed"
	case DisconnectMACError:
		return "MAC error"
	case DisconnectCompressionError:
		return "compression error"
	case DisconnectServiceNotAvailable:
		return "service not available"
	case DisconnectProtocolVersionNotSupported:
		return "protocol version not supported"
	case DisconnectHostKeyNotVerifiable:
		return "host key not verifiable"
	case DisconnectConnectionLost:
		return "connection lost"
	case DisconnectByApplication:
		return "disconnected by application"
	case DisconnectTooManyConnections:
		return "too many connections"
	case DisconnectAuthCancelledByUser:
		return "auth cancelled by user"
	case DisconnectNoMoreAuthMethodsAvailable:
		return "no more auth methods available"
	case DisconnectIllegalUserName:
		return "illegal user name"
	case DisconnectKeyAlgorithmNotSupported:
		return "key algorithm not supported"
	case DisconnectTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("disconnect reason %d", uint32(r))
	}
}

// TransportError is the error type returned for every transport-layer
// failure: I/O failures, protocol violations, key-exchange failures, peer
// disconnects, and timeouts. It carries the DisconnectReason that would be
// (or was) sent or received on the wire, and wraps the underlying cause so
// callers can use errors.As/errors.Is against it.
type TransportError struct {
	Reason  DisconnectReason
	Message string
	Cause   error
}

func newTransportError(reason DisconnectReason, format string, args ...interface{}) *TransportError {
	return &TransportError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func wrapTransportError(reason DisconnectReason, cause error, format string, args ...interface{}) *TransportError {
	return &TransportError{Reason: reason, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ssh: %s (%s): %v", e.Message, e.Reason, e.Cause)
	}
	return fmt.Sprintf("ssh: %s (%s)", e.Message, e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// UnexpectedMessageError results when the SSH message that we received
// didn't match what we wanted.
type UnexpectedMessageError struct {
	Expected, Got byte
}

func (u *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("ssh: unexpected message type %d (expected %d)", u.Got, u.Expected)
}

func unexpectedMessageError(expected, got byte) error {
	return wrapTransportError(DisconnectProtocolError, &UnexpectedMessageError{expected, got}, "unexpected message")
}

func protocolErrorf(format string, args ...interface{}) error {
	return newTransportError(DisconnectProtocolError, format, args...)
}

func macErrorf(format string, args ...interface{}) error {
	return newTransportError(DisconnectMACError, format, args...)
}

func ioErrorf(cause error, format string, args ...interface{}) error {
	return wrapTransportError(DisconnectConnectionLost, cause, format, args...)
}

func timeoutErrorf(format string, args ...interface{}) error {
	return newTransportError(DisconnectTimeout, format, args...)
}
