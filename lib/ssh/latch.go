// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"sync"
	"time"
)

// latch is a one-shot event with an optional error payload: it starts
// open (unfired), is fired exactly once by trigger, and any number of
// goroutines can wait on it, with or without a deadline. It backs
// RequestService's wait for SERVICE_ACCEPT; Transport.Join waits on the
// Transport's dead channel instead.
type latch struct {
	mu     sync.Mutex
	cond   *sync.Cond
	fired  bool
	err    error
}

func newLatch() *latch {
	l := &latch{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// trigger fires the latch with err, if it hasn't already fired. Only
// the first call has any effect.
func (l *latch) trigger(err error) {
	l.mu.Lock()
	if !l.fired {
		l.fired = true
		l.err = err
		l.cond.Broadcast()
	}
	l.mu.Unlock()
}

// wait blocks until the latch fires, and returns its error payload.
func (l *latch) wait() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for !l.fired {
		l.cond.Wait()
	}
	return l.err
}

// waitTimeout blocks until the latch fires or d elapses, whichever
// comes first. A timeout returns a TransportError with
// DisconnectTimeout; it does not fire the latch itself, so a later
// trigger is still observed by other waiters.
func (l *latch) waitTimeout(d time.Duration) error {
	if d <= 0 {
		return l.wait()
	}

	done := make(chan error, 1)
	go func() { done <- l.wait() }()

	timer := time.AfterFunc(d, func() {
		// Wake every waiter (including the goroutine above) to re-check;
		// this does not fire the latch, so the goroutine above waits
		// again and only exits, into its buffered channel, once the
		// latch fires.
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return timeoutErrorf("timed out waiting for event")
	}
}

// isFired reports whether the latch has fired, without blocking.
func (l *latch) isFired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fired
}
