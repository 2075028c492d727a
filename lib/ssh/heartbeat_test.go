// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatSendsIgnoreOnInterval(t *testing.T) {
	transport, srv, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	transport.StartHeartbeat(20 * time.Millisecond)

	got, err := srv.recv()
	require.NoError(t, err)
	require.Equal(t, byte(msgIgnore), got[0])
}

func TestHeartbeatStopsOnClose(t *testing.T) {
	transport, _, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()

	transport.StartHeartbeat(10 * time.Millisecond)
	require.NoError(t, transport.Close())

	// close must be idempotent and must not panic even if the ticker
	// goroutine is mid-send when the Transport dies.
	time.Sleep(30 * time.Millisecond)
	require.False(t, transport.IsRunning())
}

func TestHeartbeaterNonPositiveIntervalIsNoop(t *testing.T) {
	transport, _, serverConn := handshakeOverPipe(t)
	defer serverConn.Close()
	defer transport.Close()

	h := newHeartbeater(transport, 0)
	done := make(chan struct{})
	go func() {
		h.run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeater with non-positive interval did not return immediately")
	}
}
