// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

// Message ids, RFC 4253 section 12 and RFC 4250 section 4.1.2. The
// transport range is [1,49]; the kex range is {20,21} union [30,49];
// message ids 50 and above belong to a Service.
const (
	msgDisconnect     = 1
	msgIgnore         = 2
	msgUnimplemented  = 3
	msgDebug          = 4
	msgServiceRequest = 5
	msgServiceAccept  = 6

	msgKexInit = 20
	msgNewKeys = 21

	msgKexECDHInit  = 30
	msgKexECDHReply = 31
)

const (
	minTransportMsg = 1
	maxTransportMsg = 49
)

func isKexRangeMsg(msg byte) bool {
	return msg == msgKexInit || msg == msgNewKeys || (msg >= 30 && msg <= 49)
}

func isTransportRangeMsg(msg byte) bool {
	return msg >= minTransportMsg && msg <= maxTransportMsg
}

// handshakeMagics holds the four byte strings hashed into every key
// exchange: both sides' identification strings and both sides' KEXINIT
// payloads, exactly as they appeared on the wire.
type handshakeMagics struct {
	clientVersion, serverVersion []byte
	clientKexInit, serverKexInit []byte
}

func (m *handshakeMagics) writeTo(b *buffer) {
	b.writeString(m.clientVersion)
	b.writeString(m.serverVersion)
	b.writeString(m.clientKexInit)
	b.writeString(m.serverKexInit)
}

// kexInitMsg is SSH_MSG_KEXINIT, RFC 4253 section 7.1.
type kexInitMsg struct {
	Cookie                  [16]byte
	KexAlgos                []string
	ServerHostKeyAlgos      []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string
	FirstKexFollows         bool
	Reserved                uint32
}

func (m *kexInitMsg) marshal() []byte {
	b := newBuffer([]byte{msgKexInit})
	b.writeRaw(m.Cookie[:])
	b.writeNameList(m.KexAlgos)
	b.writeNameList(m.ServerHostKeyAlgos)
	b.writeNameList(m.CiphersClientServer)
	b.writeNameList(m.CiphersServerClient)
	b.writeNameList(m.MACsClientServer)
	b.writeNameList(m.MACsServerClient)
	b.writeNameList(m.CompressionClientServer)
	b.writeNameList(m.CompressionServerClient)
	b.writeNameList(m.LanguagesClientServer)
	b.writeNameList(m.LanguagesServerClient)
	b.writeBool(m.FirstKexFollows)
	b.writeUint32(m.Reserved)
	return b.bytes()
}

func parseKexInitMsg(payload []byte) (*kexInitMsg, error) {
	if len(payload) == 0 || payload[0] != msgKexInit {
		return nil, protocolErrorf("not a KEXINIT payload")
	}
	b := newBuffer(payload[1:])
	m := &kexInitMsg{}
	cookie, err := readFixed(b, 16)
	if err != nil {
		return nil, err
	}
	copy(m.Cookie[:], cookie)
	fields := []*[]string{
		&m.KexAlgos, &m.ServerHostKeyAlgos,
		&m.CiphersClientServer, &m.CiphersServerClient,
		&m.MACsClientServer, &m.MACsServerClient,
		&m.CompressionClientServer, &m.CompressionServerClient,
		&m.LanguagesClientServer, &m.LanguagesServerClient,
	}
	for _, f := range fields {
		nl, err := b.readNameList()
		if err != nil {
			return nil, err
		}
		*f = nl
	}
	m.FirstKexFollows, err = b.readBool()
	if err != nil {
		return nil, err
	}
	m.Reserved, err = b.readUint32()
	if err != nil {
		return nil, err
	}
	return m, nil
}

func readFixed(b *buffer, n int) ([]byte, error) {
	if b.available() < n {
		return nil, errShortBuffer
	}
	out := make([]byte, n)
	copy(out, b.remaining()[:n])
	b.pos += n
	return out, nil
}

// kexECDHInitMsg is SSH_MSG_KEX_ECDH_INIT, RFC 5656 section 4.
type kexECDHInitMsg struct {
	ClientPubKey []byte
}

func (m *kexECDHInitMsg) marshal() []byte {
	b := newBuffer([]byte{msgKexECDHInit})
	b.writeString(m.ClientPubKey)
	return b.bytes()
}

func parseKexECDHInitMsg(payload []byte) (*kexECDHInitMsg, error) {
	if len(payload) == 0 || payload[0] != msgKexECDHInit {
		return nil, protocolErrorf("not a KEX_ECDH_INIT payload")
	}
	b := newBuffer(payload[1:])
	pub, err := b.readString()
	if err != nil {
		return nil, err
	}
	return &kexECDHInitMsg{ClientPubKey: pub}, nil
}

// kexECDHReplyMsg is SSH_MSG_KEX_ECDH_REPLY, RFC 5656 section 4.
type kexECDHReplyMsg struct {
	HostKey         []byte
	EphemeralPubKey []byte
	Signature       []byte
}

func (m *kexECDHReplyMsg) marshal() []byte {
	b := newBuffer([]byte{msgKexECDHReply})
	b.writeString(m.HostKey)
	b.writeString(m.EphemeralPubKey)
	b.writeString(m.Signature)
	return b.bytes()
}

func parseKexECDHReplyMsg(payload []byte) (*kexECDHReplyMsg, error) {
	if len(payload) == 0 || payload[0] != msgKexECDHReply {
		return nil, protocolErrorf("not a KEX_ECDH_REPLY payload")
	}
	b := newBuffer(payload[1:])
	hostKey, err := b.readString()
	if err != nil {
		return nil, err
	}
	ephPub, err := b.readString()
	if err != nil {
		return nil, err
	}
	sig, err := b.readString()
	if err != nil {
		return nil, err
	}
	return &kexECDHReplyMsg{HostKey: hostKey, EphemeralPubKey: ephPub, Signature: sig}, nil
}

type disconnectMsg struct {
	Reason  uint32
	Message string
}

func (m *disconnectMsg) marshal() []byte {
	b := newBuffer([]byte{msgDisconnect})
	b.writeUint32(m.Reason)
	b.writeUTF8(m.Message)
	b.writeUTF8("en")
	return b.bytes()
}

func parseDisconnectMsg(payload []byte) (*disconnectMsg, error) {
	b := newBuffer(payload[1:])
	reason, err := b.readUint32()
	if err != nil {
		return nil, err
	}
	msg, err := b.readUTF8()
	if err != nil {
		// A missing or truncated description is still a valid (if terse)
		// disconnect; the trailing language tag is not read.
		msg = ""
	}
	return &disconnectMsg{Reason: reason, Message: msg}, nil
}

type ignoreMsg struct {
	Data []byte
}

func (m *ignoreMsg) marshal() []byte {
	b := newBuffer([]byte{msgIgnore})
	b.writeString(m.Data)
	return b.bytes()
}

type debugMsg struct {
	AlwaysDisplay bool
	Message       string
}

func parseDebugMsg(payload []byte) (*debugMsg, error) {
	b := newBuffer(payload[1:])
	display, err := b.readBool()
	if err != nil {
		return nil, err
	}
	msg, err := b.readUTF8()
	if err != nil {
		return nil, err
	}
	return &debugMsg{AlwaysDisplay: display, Message: msg}, nil
}

type serviceRequestMsg struct {
	Service string
}

func (m *serviceRequestMsg) marshal() []byte {
	b := newBuffer([]byte{msgServiceRequest})
	b.writeUTF8(m.Service)
	return b.bytes()
}

type serviceAcceptMsg struct {
	Service string
}

func parseServiceAcceptMsg(payload []byte) (*serviceAcceptMsg, error) {
	b := newBuffer(payload[1:])
	svc, err := b.readUTF8()
	if err != nil {
		return nil, err
	}
	return &serviceAcceptMsg{Service: svc}, nil
}

type unimplementedMsg struct {
	Seq uint32
}

func (m *unimplementedMsg) marshal() []byte {
	b := newBuffer([]byte{msgUnimplemented})
	b.writeUint32(m.Seq)
	return b.bytes()
}

func parseUnimplementedMsg(payload []byte) (*unimplementedMsg, error) {
	b := newBuffer(payload[1:])
	seq, err := b.readUint32()
	if err != nil {
		return nil, err
	}
	return &unimplementedMsg{Seq: seq}, nil
}

// signatureMsg is the generic "signature" blob format of RFC 4253,
// section 6.6: a format name followed by the raw signature bytes.
type signatureMsg struct {
	Format string
	Blob   []byte
}

func (s *signatureMsg) marshal() []byte {
	b := newBuffer(nil)
	b.writeUTF8(s.Format)
	b.writeString(s.Blob)
	return b.bytes()
}

func parseSignature(in []byte) (*signatureMsg, error) {
	b := newBuffer(in)
	format, err := b.readUTF8()
	if err != nil {
		return nil, err
	}
	blob, err := b.readString()
	if err != nil {
		return nil, err
	}
	return &signatureMsg{Format: format, Blob: blob}, nil
}
