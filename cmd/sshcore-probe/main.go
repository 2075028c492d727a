// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sshcore-probe dials an SSH server, completes the transport
// handshake, requests a service, waits briefly, and disconnects. It
// exists to exercise the transport contract end to end; it does not
// authenticate or open channels, since user authentication and the
// connection protocol live above this package.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcore/sshcore/lib/ssh"
)

func main() {
	addr := flag.String("addr", "localhost:22", "host:port to probe")
	service := flag.String("service", ssh.ServiceUserAuth, "service name to request")
	timeout := flag.Duration("timeout", 5*time.Second, "SERVICE_ACCEPT wait timeout")
	profilePath := flag.String("profile", "", "optional YAML algorithm profile to load")
	insecure := flag.Bool("insecure", true, "skip host key verification (this probe has no known_hosts store)")
	flag.Parse()

	log := logrus.WithField("component", "sshcore-probe")

	config := &ssh.ClientConfig{}
	if *insecure {
		config.HostKeyVerifier = ssh.InsecureIgnoreHostKey()
	} else {
		log.Fatal("no known_hosts-backed verifier is implemented; rerun with -insecure")
	}

	if *profilePath != "" {
		profile, err := ssh.LoadProfile(*profilePath)
		if err != nil {
			log.WithError(err).Fatal("failed to load algorithm profile")
		}
		profile.Apply(&config.Config)
	}

	log.WithField("addr", *addr).Info("dialing")
	transport, err := ssh.Dial("tcp", *addr, config)
	if err != nil {
		log.WithError(err).Fatal("handshake failed")
	}
	defer transport.Close()

	log.WithField("sessionID", transport.SessionID()).Info("handshake complete")

	if err := transport.RequestService(*service, *timeout); err != nil {
		log.WithError(err).Fatal("service request failed")
	}
	log.WithField("service", *service).Info("service accepted")

	transport.StartHeartbeat(30 * time.Second)
	time.Sleep(*timeout)

	if err := transport.Disconnect(ssh.DisconnectByApplication, "sshcore-probe done"); err != nil {
		log.WithError(err).Warn("disconnect failed")
		os.Exit(1)
	}
	log.Info("disconnected cleanly")
}
