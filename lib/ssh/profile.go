// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Profile is a YAML-loadable algorithm selection, letting an operator
// pin a Transport to a known compatibility set (e.g. "legacy" to talk
// to an old appliance still requiring aes128-ctr) without recompiling.
type Profile struct {
	Name              string   `yaml:"name"`
	KeyExchanges      []string `yaml:"key_exchanges,omitempty"`
	Ciphers           []string `yaml:"ciphers,omitempty"`
	MACs              []string `yaml:"macs,omitempty"`
	HostKeyAlgorithms []string `yaml:"host_key_algorithms,omitempty"`
	Compressions      []string `yaml:"compressions,omitempty"`
	RekeyThresholdMiB uint64   `yaml:"rekey_threshold_mib,omitempty"`
}

// DefaultProfile mirrors this package's built-in algorithm defaults, so
// it can be written out as a starting point for a custom profile file.
var DefaultProfile = Profile{
	Name:              "default",
	KeyExchanges:      preferredKexOrder,
	Ciphers:           preferredCipherOrder,
	MACs:              preferredMACOrder,
	HostKeyAlgorithms: preferredHostKeyOrder,
	Compressions:      preferredCompressionOrder,
}

// LoadProfile reads and parses a Profile from a YAML file at path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Apply copies p's non-empty fields onto cfg, leaving anything p didn't
// specify untouched (so SetDefaults can still fill gaps afterward).
func (p *Profile) Apply(cfg *Config) {
	if len(p.KeyExchanges) > 0 {
		cfg.KeyExchanges = p.KeyExchanges
	}
	if len(p.Ciphers) > 0 {
		cfg.Ciphers = p.Ciphers
	}
	if len(p.MACs) > 0 {
		cfg.MACs = p.MACs
	}
	if len(p.HostKeyAlgorithms) > 0 {
		cfg.HostKeyAlgorithms = p.HostKeyAlgorithms
	}
	if len(p.Compressions) > 0 {
		cfg.Compressions = p.Compressions
	}
	if p.RekeyThresholdMiB > 0 {
		cfg.RekeyThreshold = p.RekeyThresholdMiB << 20
	}
}
