// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import "time"

// heartbeater periodically sends SSH_MSG_IGNORE to keep NAT mappings
// and idle-timeout-happy middleboxes from dropping the connection, the
// same role smux's session keepalive plays for its own multiplexed
// transport. It runs on its own goroutine and stops as soon as the
// Transport it is attached to dies.
type heartbeater struct {
	t        *Transport
	interval time.Duration
	stop     chan struct{}
}

func newHeartbeater(t *Transport, interval time.Duration) *heartbeater {
	return &heartbeater{t: t, interval: interval, stop: make(chan struct{})}
}

func (h *heartbeater) run() {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Goes through write, not sendRaw, so the heartbeat counts
			// toward the rekey threshold. IGNORE is a transport-range
			// message, so write does not hold it back during a kex round.
			if err := h.t.write((&ignoreMsg{}).marshal()); err != nil {
				return
			}
		case <-h.t.dead:
			return
		case <-h.stop:
			return
		}
	}
}

func (h *heartbeater) close() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}
