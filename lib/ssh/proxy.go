// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"context"
	"net"

	"golang.org/x/net/proxy"
)

// DialThroughProxy connects to addr via a SOCKS5 proxy listening at
// proxyAddr, then runs the usual version and key exchange over that
// connection. It is useful for reaching hosts only visible from behind
// a jump box that doesn't itself speak SSH.
func DialThroughProxy(proxyAddr, network, addr string, config *ClientConfig) (*Transport, error) {
	dialer, err := proxy.SOCKS5(network, proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, ioErrorf(err, "configure SOCKS5 dialer for %s", proxyAddr)
	}

	var conn net.Conn
	if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
		conn, err = ctxDialer.DialContext(context.Background(), network, addr)
	} else {
		conn, err = dialer.Dial(network, addr)
	}
	if err != nil {
		return nil, ioErrorf(err, "dial %s through proxy %s", addr, proxyAddr)
	}

	t, err := NewTransport(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}
