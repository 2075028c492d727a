// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// This transport supports exactly two MAC arrangements: "none" (used
// only pre-kex, folded into noneCipher) and hmac-sha2-256 carried as
// part of the classic aes*-ctr cipherSuite (cipher.go's hmacMAC). There
// is no standalone mac.go cipherSuite implementation because RFC 4253's
// MAC algorithm negotiation is only meaningful paired with a
// non-AEAD cipher; with chacha20-poly1305@openssh.com the MAC lists are
// still negotiated as usual, but the result is ignored.

var preferredMACOrder = []string{"hmac-sha2-256", "none"}
