// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors this package exposes for
// every Transport it creates. Callers that don't care about metrics
// never need to touch this type; NewTransport always records into
// globalMetrics, which is registered only when RegisterDefaultMetrics
// is called.
type Metrics struct {
	handshakesTotal  prometheus.Counter
	disconnectsTotal *prometheus.CounterVec
	bytesWritten     prometheus.Counter
	rekeysTotal      prometheus.Counter
}

// NewMetrics creates a fresh, unregistered Metrics set. Callers that
// want isolation from the global default registry (e.g. tests running
// in parallel) can construct their own and register it with a private
// prometheus.Registry.
func NewMetrics() *Metrics {
	return &Metrics{
		handshakesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sshcore",
			Subsystem: "transport",
			Name:      "handshakes_total",
			Help:      "Number of completed initial key exchanges.",
		}),
		disconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sshcore",
			Subsystem: "transport",
			Name:      "disconnects_total",
			Help:      "Number of transport teardowns, labeled by disconnect reason.",
		}, []string{"reason"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sshcore",
			Subsystem: "transport",
			Name:      "bytes_written_total",
			Help:      "Payload bytes written to the service layer, pre-encryption.",
		}),
		rekeysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sshcore",
			Subsystem: "transport",
			Name:      "rekeys_total",
			Help:      "Number of key-exchange rounds after the initial handshake.",
		}),
	}
}

// Register adds every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.handshakesTotal, m.disconnectsTotal, m.bytesWritten, m.rekeysTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// globalMetrics is registered against prometheus.DefaultRegisterer the
// first time it is touched by RegisterDefaultMetrics; until then it is
// still usable standalone (an unregistered collector can still be
// incremented), so every Transport can record into it unconditionally.
var globalMetrics = NewMetrics()

// RegisterDefaultMetrics registers this package's global metrics
// against prometheus.DefaultRegisterer, so they're exposed by the
// default promhttp.Handler. It is safe to call more than once.
func RegisterDefaultMetrics() error {
	err := globalMetrics.Register(prometheus.DefaultRegisterer)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}
