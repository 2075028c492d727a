// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"crypto/rand"
	"io"
)

// ServiceUserAuth and ServiceConnection are the two well-known
// service names a caller may request over this transport, per RFC 4253
// section 4 and RFC 4252/4254. The transport itself is agnostic to
// which service is requested; these are exported as conveniences.
const (
	ServiceUserAuth   = "ssh-userauth"
	ServiceConnection = "ssh-connection"
)

// DirectionAlgorithms names the cipher, MAC, and compression algorithm
// negotiated for one direction of traffic.
type DirectionAlgorithms struct {
	Cipher      string
	MAC         string
	Compression string
}

// Algorithms is the full set of algorithms agreed between the two
// KEXINIT messages of a single key exchange.
type Algorithms struct {
	Kex     string
	HostKey string
	W       DirectionAlgorithms // client (write) to server
	R       DirectionAlgorithms // server to client (read)
}

func findCommon(what string, client, server []string) (string, error) {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c, nil
			}
		}
	}
	return "", newTransportError(DisconnectKeyExchangeFailed,
		"no common algorithm for %s; client offered: %v, server offered: %v", what, client, server)
}

// findAgreedAlgorithms implements the negotiation rule of RFC 4253
// section 7.1: for each of the eight algorithm-name-lists, the first
// client preference that also appears in the server's list wins.
func findAgreedAlgorithms(clientKexInit, serverKexInit *kexInitMsg) (*Algorithms, error) {
	var result Algorithms
	var err error

	if result.Kex, err = findCommon("key exchange", clientKexInit.KexAlgos, serverKexInit.KexAlgos); err != nil {
		return nil, err
	}
	if result.HostKey, err = findCommon("host key", clientKexInit.ServerHostKeyAlgos, serverKexInit.ServerHostKeyAlgos); err != nil {
		return nil, err
	}
	if result.W.Cipher, err = findCommon("client to server cipher", clientKexInit.CiphersClientServer, serverKexInit.CiphersClientServer); err != nil {
		return nil, err
	}
	if result.R.Cipher, err = findCommon("server to client cipher", clientKexInit.CiphersServerClient, serverKexInit.CiphersServerClient); err != nil {
		return nil, err
	}
	if result.W.MAC, err = findCommon("client to server MAC", clientKexInit.MACsClientServer, serverKexInit.MACsClientServer); err != nil {
		return nil, err
	}
	if result.R.MAC, err = findCommon("server to client MAC", clientKexInit.MACsServerClient, serverKexInit.MACsServerClient); err != nil {
		return nil, err
	}
	if result.W.Compression, err = findCommon("client to server compression", clientKexInit.CompressionClientServer, serverKexInit.CompressionClientServer); err != nil {
		return nil, err
	}
	if result.R.Compression, err = findCommon("server to client compression", clientKexInit.CompressionServerClient, serverKexInit.CompressionServerClient); err != nil {
		return nil, err
	}
	return &result, nil
}

// minRekeyThreshold mirrors RFC 4253 section 9's guidance that rekeying
// too often defeats its own purpose; a threshold below this makes no
// forward progress possible.
const minRekeyThreshold uint64 = 256

// defaultRekeyThreshold is applied when Config.RekeyThreshold is unset,
// per RFC 4253 section 9's suggestion of rekeying after 1 GiB.
const defaultRekeyThreshold uint64 = 1 << 30

// Config carries the algorithm preferences and behavioral knobs shared
// by every Transport created from it. The zero value is valid; call
// SetDefaults, or let NewTransport do it, to fill in sensible
// defaults for anything left unset.
type Config struct {
	// Rand provides the source of entropy for key generation and
	// nonces. If nil, crypto/rand.Reader is used.
	Rand io.Reader

	// RekeyThreshold is the number of bytes sent or received in one
	// direction after which this transport initiates a rekey. Must be
	// at least minRekeyThreshold; zero selects defaultRekeyThreshold.
	RekeyThreshold uint64

	// KeyExchanges lists the allowed key-exchange algorithms, most
	// preferred first. Nil selects preferredKexOrder.
	KeyExchanges []string

	// Ciphers lists the allowed ciphers, most preferred first. Nil
	// selects preferredCipherOrder.
	Ciphers []string

	// MACs lists the allowed MAC algorithms for non-AEAD ciphers, most
	// preferred first. Nil selects preferredMACOrder.
	MACs []string

	// HostKeyAlgorithms lists the allowed host-key algorithms, most
	// preferred first. Nil selects preferredHostKeyOrder.
	HostKeyAlgorithms []string

	// Compressions lists the allowed compression algorithms, most
	// preferred first. Nil selects preferredCompressionOrder.
	Compressions []string
}

var preferredCipherOrder = []string{
	"chacha20-poly1305@openssh.com",
	"aes128-ctr",
	"aes256-ctr",
}

var preferredHostKeyOrder = []string{
	keyTypeED25519,
}

// SetDefaults fills in unset fields of c with this transport's default
// algorithm preferences. It is idempotent and safe to call more than
// once.
func (c *Config) SetDefaults() {
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.KeyExchanges == nil {
		c.KeyExchanges = preferredKexOrder
	}
	if c.Ciphers == nil {
		c.Ciphers = preferredCipherOrder
	}
	if c.MACs == nil {
		c.MACs = preferredMACOrder
	}
	if c.HostKeyAlgorithms == nil {
		c.HostKeyAlgorithms = preferredHostKeyOrder
	}
	if c.Compressions == nil {
		c.Compressions = preferredCompressionOrder
	}
	if c.RekeyThreshold == 0 {
		c.RekeyThreshold = defaultRekeyThreshold
	}
	if c.RekeyThreshold < minRekeyThreshold {
		c.RekeyThreshold = minRekeyThreshold
	}
}

// ClientConfig extends Config with the client-specific policy of how a
// server's host key is verified.
type ClientConfig struct {
	Config

	// HostKeyVerifier decides whether to trust the server's host key.
	// It must be set; NewTransport returns an error if it is nil.
	HostKeyVerifier HostKeyVerifier

	// ClientVersion overrides the identification string this transport
	// sends. If empty, packetVersion is used.
	ClientVersion string
}

func (c *ClientConfig) setDefaults() {
	c.Config.SetDefaults()
	if c.ClientVersion == "" {
		c.ClientVersion = packetVersion
	}
}
