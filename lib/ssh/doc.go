// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ssh implements the client-side transport layer of the SSH
// protocol (RFC 4251-4254): version exchange, key exchange, packet framing
// and encryption, and transport-level message dispatch. Package ssh does
// not implement user authentication or the connection/channel
// multiplexing layer; those are modeled as a pluggable Service, installed
// with Transport.SetService or requested with Transport.RequestService.
package ssh
