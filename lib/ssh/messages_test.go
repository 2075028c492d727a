// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKexInitMsgRoundTrip(t *testing.T) {
	msg := &kexInitMsg{
		KexAlgos:                []string{"curve25519-sha256"},
		ServerHostKeyAlgos:      []string{"ssh-ed25519"},
		CiphersClientServer:     []string{"chacha20-poly1305@openssh.com"},
		CiphersServerClient:     []string{"chacha20-poly1305@openssh.com"},
		MACsClientServer:        []string{"none"},
		MACsServerClient:        []string{"none"},
		CompressionClientServer: []string{"none"},
		CompressionServerClient: []string{"none"},
		FirstKexFollows:         true,
	}
	for i := range msg.Cookie {
		msg.Cookie[i] = byte(i)
	}

	got, err := parseKexInitMsg(msg.marshal())
	require.NoError(t, err)
	require.Equal(t, msg.Cookie, got.Cookie)
	require.Equal(t, msg.KexAlgos, got.KexAlgos)
	require.Equal(t, msg.ServerHostKeyAlgos, got.ServerHostKeyAlgos)
	require.Equal(t, msg.CiphersClientServer, got.CiphersClientServer)
	require.True(t, got.FirstKexFollows)
}

func TestParseKexInitMsgRejectsWrongType(t *testing.T) {
	_, err := parseKexInitMsg([]byte{msgKexECDHInit})
	require.Error(t, err)
}

func TestKexECDHInitReplyRoundTrip(t *testing.T) {
	initMsg := &kexECDHInitMsg{ClientPubKey: []byte("client-ephemeral-pub")}
	gotInit, err := parseKexECDHInitMsg(initMsg.marshal())
	require.NoError(t, err)
	require.Equal(t, initMsg.ClientPubKey, gotInit.ClientPubKey)

	replyMsg := &kexECDHReplyMsg{
		HostKey:         []byte("host-key-blob"),
		EphemeralPubKey: []byte("server-ephemeral-pub"),
		Signature:       []byte("sig-blob"),
	}
	gotReply, err := parseKexECDHReplyMsg(replyMsg.marshal())
	require.NoError(t, err)
	require.Equal(t, replyMsg.HostKey, gotReply.HostKey)
	require.Equal(t, replyMsg.EphemeralPubKey, gotReply.EphemeralPubKey)
	require.Equal(t, replyMsg.Signature, gotReply.Signature)
}

func TestDisconnectMsgRoundTrip(t *testing.T) {
	msg := &disconnectMsg{Reason: uint32(DisconnectProtocolError), Message: "bad framing"}
	got, err := parseDisconnectMsg(msg.marshal())
	require.NoError(t, err)
	require.Equal(t, msg.Reason, got.Reason)
	require.Equal(t, msg.Message, got.Message)
}

func TestServiceAcceptRoundTrip(t *testing.T) {
	msg := &serviceRequestMsg{Service: ServiceConnection}
	packet := msg.marshal()
	require.Equal(t, byte(msgServiceRequest), packet[0])

	accept := &serviceAcceptMsg{Service: ServiceConnection}
	acceptPacket := newBuffer([]byte{msgServiceAccept})
	acceptPacket.writeUTF8(accept.Service)
	got, err := parseServiceAcceptMsg(acceptPacket.bytes())
	require.NoError(t, err)
	require.Equal(t, ServiceConnection, got.Service)
}

func TestUnimplementedMsgRoundTrip(t *testing.T) {
	msg := &unimplementedMsg{Seq: 42}
	got, err := parseUnimplementedMsg(msg.marshal())
	require.NoError(t, err)
	require.EqualValues(t, 42, got.Seq)
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := &signatureMsg{Format: keyTypeED25519, Blob: []byte{1, 2, 3, 4}}
	got, err := parseSignature(sig.marshal())
	require.NoError(t, err)
	require.Equal(t, sig.Format, got.Format)
	require.Equal(t, sig.Blob, got.Blob)
}

func TestIsKexRangeMsg(t *testing.T) {
	require.True(t, isKexRangeMsg(msgKexInit))
	require.True(t, isKexRangeMsg(msgNewKeys))
	require.True(t, isKexRangeMsg(msgKexECDHInit))
	require.False(t, isKexRangeMsg(msgDisconnect))
	require.False(t, isKexRangeMsg(50))
}

func TestIsTransportRangeMsg(t *testing.T) {
	require.True(t, isTransportRangeMsg(msgDisconnect))
	require.True(t, isTransportRangeMsg(49))
	require.False(t, isTransportRangeMsg(50))
}
